package reasoning

import (
	"context"
	"errors"
	"time"

	logx "github.com/nutriask/server/pkg/logger"
)

// Middleware decorates a Completer with a cross-cutting concern.
type Middleware func(Completer) Completer

// Wrap applies middlewares in left-to-right order: Wrap(inner, A, B) => A(B(inner)).
func Wrap(inner Completer, mws ...Middleware) Completer {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Timeout --------

// Timeout bounds each call. A non-positive d disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Completer) Completer {
		if d <= 0 {
			return next
		}
		return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, prompt)
		})
	}
}

// -------- Retry with exponential backoff --------

// Retry retries failed calls up to maxAttempts with exponential backoff
// starting at baseDelay. It stops as soon as the caller's context is done.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Completer) Completer {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Completer
	max  int
	base time.Duration
}

func (r *retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		last = err
		if i == r.max-1 {
			break
		}
		logx.Ctx(ctx).Warn().Err(err).Int("attempt", i+1).Int("max_attempts", r.max).Msg("reasoning call failed, retrying")

		timer := time.NewTimer(r.base * time.Duration(1<<i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", errors.Join(last, ctx.Err())
		case <-timer.C:
		}
	}
	return "", last
}

// -------- Logging --------

// WithLogging logs prompt size, latency and failures at debug/error level.
func WithLogging() Middleware {
	return func(next Completer) Completer {
		return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			start := time.Now()
			out, err := next.Complete(ctx, prompt)
			l := logx.Ctx(ctx)
			if err != nil {
				l.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("reasoning call error")
				return out, err
			}
			l.Debug().
				Int("prompt_bytes", len(prompt)).
				Int("completion_bytes", len(out)).
				Dur("elapsed", time.Since(start)).
				Msg("reasoning call done")
			return out, nil
		})
	}
}
