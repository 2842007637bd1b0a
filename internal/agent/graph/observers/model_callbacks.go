package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	agentmodel "github.com/nutriask/server/internal/agent/model"
	logx "github.com/nutriask/server/pkg/logger"
)

// maxLoggedChars keeps prompt and completion logs readable.
const maxLoggedChars = 500

// newModelHandler builds a typed ModelCallbackHandler that logs prompts, completions and usage cost.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Ctx(ctx).Debug().Str("component", string(info.Component)).Str("model", info.Name)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).Str("prompt", clip(lastUserContent(input.Messages)))
			}
			ev.Msg("Reasoning call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			ev := logx.Ctx(ctx).Debug().Str("model", info.Name)
			if output != nil && output.Message != nil {
				ev = ev.Str("completion", clip(strings.TrimSpace(output.Message.Content)))
			}
			if output != nil && output.TokenUsage != nil {
				u := output.TokenUsage
				usage := &schema.TokenUsage{
					PromptTokens:     u.PromptTokens,
					CompletionTokens: u.CompletionTokens,
					TotalTokens:      u.TotalTokens,
				}
				inC, outC, totalC := agentmodel.ComputeCost(usage, agentmodel.ResolvePricing(info.Name))
				ev = ev.
					Int("prompt_tokens", u.PromptTokens).
					Int("completion_tokens", u.CompletionTokens).
					Int("total_tokens", u.TotalTokens).
					Float64("input_cost_usd", inC).
					Float64("output_cost_usd", outC).
					Float64("total_cost_usd", totalC)
			}
			ev.Msg("Reasoning call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Ctx(ctx).Warn().Err(err).Str("model", info.Name).Msg("Reasoning call failed")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

func clip(s string) string {
	if len(s) <= maxLoggedChars {
		return s
	}
	return s[:maxLoggedChars] + "..."
}
