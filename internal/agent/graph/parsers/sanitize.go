package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	errx "github.com/nutriask/server/internal/core/error"
	logx "github.com/nutriask/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxListItems  = 20        // categories/keywords kept from one analysis
	maxItemLen    = 200       // characters per category/keyword
	maxErrSnippet = 200       // limit error snippet size
)

var isoDatePattern = regexp.MustCompile(`ISODate\("([^"]+)"\)`)

// CleanJSON strips the artifacts models wrap around JSON (code fences, prose
// before the first brace or after the last one, ISODate wrappers, line
// comments) and returns the JSON text. Anything still invalid afterwards is
// reported as errx.ErrUnparseableOutput.
func CleanJSON(content string) (cleaned string, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "json_sanitizer").Msgf("panic recovered: %v", r)
			cleaned = ""
			err = errx.New(errx.ErrUnparseableOutput, http.StatusInternalServerError, errx.SystemErrorMessage)
		}
	}()

	if len(content) > maxContentLen {
		return "", unparseable("content too large (%d bytes)", len(content))
	}

	cleaned = strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = cleaned[len("```json"):]
	case strings.HasPrefix(cleaned, "```"):
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cleaned), "```"))

	if cleaned == "" {
		return "", unparseable("empty content")
	}

	// leading prose
	if cleaned[0] != '{' && cleaned[0] != '[' {
		if idx := strings.IndexAny(cleaned, "{["); idx >= 0 {
			cleaned = cleaned[idx:]
		}
	}
	// trailing prose
	if last := strings.LastIndexAny(cleaned, "}]"); last >= 0 {
		cleaned = cleaned[:last+1]
	}

	cleaned = isoDatePattern.ReplaceAllString(cleaned, `"$1"`)
	cleaned = stripLineComments(cleaned)

	if !json.Valid([]byte(cleaned)) {
		return "", unparseable("invalid json: %s", safeSnippet(cleaned))
	}
	return cleaned, nil
}

// stripLineComments removes // comments that start outside string literals.
func stripLineComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func unparseable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errx.ErrUnparseableOutput, fmt.Sprintf(format, args...))
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
