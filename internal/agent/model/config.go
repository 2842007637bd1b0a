package model

import "time"

// ================ Config ================
type ReasoningModelConfig struct {
	Model       string  `envconfig:"REASONING_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"REASONING_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"REASONING_TEMPERATURE" default:"0.1"`
	// ThinkingBudget caps Gemini thinking tokens; 0 leaves the model default.
	ThinkingBudget int32 `envconfig:"REASONING_THINKING_BUDGET" default:"0"`
}

// ReasoningPolicyConfig bounds every call to the reasoning service.
type ReasoningPolicyConfig struct {
	Timeout        time.Duration `envconfig:"REASONING_TIMEOUT" default:"30s"`
	MaxAttempts    int           `envconfig:"REASONING_MAX_ATTEMPTS" default:"2"`
	RetryBaseDelay time.Duration `envconfig:"REASONING_RETRY_BASE_DELAY" default:"300ms"`
}

type ConversationConfig struct {
	Backend      string `envconfig:"CONVERSATION_BACKEND" default:"mongo"`
	TTL          string `envconfig:"CONVERSATION_TTL" default:"720h"`
	HistoryLimit int    `envconfig:"CONVERSATION_HISTORY_LIMIT" default:"10"`
}

// MemoryFailurePolicy decides what the memory stage does when history cannot be read.
type MemoryFailurePolicy string

const (
	// MemoryFailureDegrade continues to query generation without context.
	MemoryFailureDegrade MemoryFailurePolicy = "degrade"
	// MemoryFailureAbort ends the run with an apology.
	MemoryFailureAbort MemoryFailurePolicy = "abort"
)

type PipelineConfig struct {
	MemoryFailure MemoryFailurePolicy `envconfig:"PIPELINE_MEMORY_FAILURE" default:"degrade"`
	DefaultLimit  int                 `envconfig:"PIPELINE_DEFAULT_LIMIT" default:"10"`
	MaxLimit      int                 `envconfig:"PIPELINE_MAX_LIMIT" default:"50"`
}

type PromptConfig struct {
	Currency       string `envconfig:"PROMPT_CURRENCY" default:"rupees"`
	CurrencySymbol string `envconfig:"PROMPT_CURRENCY_SYMBOL" default:"₹"`
}

// DefaultPromptConfig is used when the caller leaves PromptConfig zero.
var DefaultPromptConfig = PromptConfig{Currency: "rupees", CurrencySymbol: "₹"}
