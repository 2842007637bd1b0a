package reasoning

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
)

type usageKey struct{}

// Usage accumulates token counts and cost for one pipeline run.
type Usage struct {
	mu               sync.Mutex
	calls            int
	promptTokens     int
	completionTokens int
	costUSD          float64
}

// WithUsage binds u to ctx so every completion made under ctx is counted.
func WithUsage(ctx context.Context, u *Usage) context.Context {
	return context.WithValue(ctx, usageKey{}, u)
}

// UsageFrom returns the accumulator bound to ctx, or nil.
func UsageFrom(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

func (u *Usage) Add(t *schema.TokenUsage, costUSD float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if t != nil {
		u.promptTokens += t.PromptTokens
		u.completionTokens += t.CompletionTokens
	}
	u.costUSD += costUSD
}

// Snapshot returns calls, prompt tokens, completion tokens and total cost.
func (u *Usage) Snapshot() (calls, promptTokens, completionTokens int, costUSD float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, u.promptTokens, u.completionTokens, u.costUSD
}
