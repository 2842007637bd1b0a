package reasoning

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/nutriask/server/internal/agent/model"
	logx "github.com/nutriask/server/pkg/logger"
)

// GeminiConfig holds the configuration for the Gemini chat model.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   model.ReasoningModelConfig
}

// NewGeminiChatModel creates the Gemini chat model used for every reasoning call.
func NewGeminiChatModel(ctx context.Context, config GeminiConfig) (*gemini.ChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	temperature := config.Model.Temperature
	maxTokens := config.Model.MaxTokens
	cfg := &gemini.Config{
		Client:      client,
		Model:       config.Model.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	if config.Model.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(config.Model.ThinkingBudget),
		}
	}

	chatModel, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating reasoning model")
		return nil, fmt.Errorf("error creating reasoning model: %w", err)
	}
	return chatModel, nil
}

// NewGeminiCompleter builds the Gemini model and wraps it with the logging,
// retry and timeout policy. Retry sits outside Timeout so every attempt gets
// its own deadline.
func NewGeminiCompleter(ctx context.Context, config GeminiConfig, policy model.ReasoningPolicyConfig) (Completer, error) {
	chat, err := NewGeminiChatModel(ctx, config)
	if err != nil {
		return nil, err
	}
	return Wrap(NewClient(chat, config.Model.Model),
		WithLogging(),
		Retry(policy.MaxAttempts, policy.RetryBaseDelay),
		Timeout(policy.Timeout),
	), nil
}
