package parsers

import (
	"github.com/nutriask/server/internal/agent/query"
)

// ParseStructuredQuery sanitises model output and parses it into a validated
// query. Sanitiser failures wrap errx.ErrUnparseableOutput, shape failures
// wrap errx.ErrInvalidQuery.
func ParseStructuredQuery(content string, maxLimit int) (query.Query, error) {
	cleaned, err := CleanJSON(content)
	if err != nil {
		return query.Query{}, err
	}
	return query.ParseQuery([]byte(cleaned), maxLimit)
}
