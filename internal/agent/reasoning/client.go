// Package reasoning wraps the external text-generation service behind a
// single Complete(prompt) capability.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/nutriask/server/internal/agent/model"
	errx "github.com/nutriask/server/internal/core/error"
)

// Completer turns a prompt into a text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Client sends each prompt as a single user message to an eino chat model.
// It holds no per-call state and is safe to share between runs.
type Client struct {
	chat      einomodel.BaseChatModel
	modelName string
}

func NewClient(chat einomodel.BaseChatModel, modelName string) *Client {
	return &Client{chat: chat, modelName: modelName}
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.chat == nil {
		return "", errx.WrapReasoning(fmt.Errorf("chat model is nil"))
	}

	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      c.modelName,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})

	out, err := c.chat.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", errx.WrapReasoning(err)
	}
	if out == nil {
		return "", errx.WrapReasoning(fmt.Errorf("empty response"))
	}

	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		if u := UsageFrom(ctx); u != nil {
			_, _, total := model.ComputeCost(out.ResponseMeta.Usage, model.ResolvePricing(c.modelName))
			u.Add(out.ResponseMeta.Usage, total)
		}
	}

	return ExtractText(out), nil
}

// ExtractText flattens a model message into one string: the plain content
// when present, otherwise the text fragments joined by newlines.
func ExtractText(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Content != "" {
		return msg.Content
	}
	parts := make([]string, 0, len(msg.MultiContent))
	for _, p := range msg.MultiContent {
		if p.Type == schema.ChatMessagePartTypeText && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}
