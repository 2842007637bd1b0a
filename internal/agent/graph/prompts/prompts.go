package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/nutriask/server/internal/agent/model"
)

var (
	//go:embed template/symptom_detector.txt
	symptomDetectorPrompt string
	//go:embed template/relevancy_checker.txt
	relevancyCheckerPrompt string
	//go:embed template/symptom_analyzer.txt
	symptomAnalyzerPrompt string
	//go:embed template/query_generator.txt
	queryGeneratorPrompt string
)

// RenderSymptomDetector renders the symptom-vs-product classification prompt.
func RenderSymptomDetector(ctx context.Context, cfg model.PromptConfig, input string) (string, error) {
	return render(ctx, "symptom_detector", symptomDetectorPrompt, vars(cfg, input, ""))
}

// RenderRelevancyChecker renders the catalog relevancy yes/no prompt.
func RenderRelevancyChecker(ctx context.Context, cfg model.PromptConfig, input string) (string, error) {
	return render(ctx, "relevancy_checker", relevancyCheckerPrompt, vars(cfg, input, ""))
}

// RenderSymptomAnalyzer renders the few-shot symptom-to-category prompt.
func RenderSymptomAnalyzer(ctx context.Context, cfg model.PromptConfig, input string) (string, error) {
	return render(ctx, "symptom_analyzer", symptomAnalyzerPrompt, vars(cfg, input, ""))
}

// RenderQueryGenerator renders the few-shot structured query prompt with the
// user's memory block.
func RenderQueryGenerator(ctx context.Context, cfg model.PromptConfig, input, memory string) (string, error) {
	return render(ctx, "query_generator", queryGeneratorPrompt, vars(cfg, input, memory))
}

func vars(cfg model.PromptConfig, input, memory string) map[string]any {
	if cfg.Currency == "" {
		cfg = model.DefaultPromptConfig
	}
	if memory == "" {
		memory = "No previous conversations"
	}
	return map[string]any{
		"Input":    input,
		"Memory":   memory,
		"Currency": cfg.Currency,
	}
}

// render formats through the Eino prompt component so prompt callbacks fire.
func render(ctx context.Context, name, tpl string, v map[string]any) (string, error) {
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "GoTemplate",
		Component: components.ComponentOfPrompt,
	})

	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(tpl)).Format(ctx, v)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}
