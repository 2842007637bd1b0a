package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nutriask/server/internal/agent/advisor"
	"github.com/nutriask/server/internal/agent/graph"
	"github.com/nutriask/server/internal/agent/graph/conversations"
	"github.com/nutriask/server/internal/agent/model"
	"github.com/nutriask/server/internal/agent/reasoning"
	"github.com/nutriask/server/internal/agent/repo"
	"github.com/nutriask/server/internal/core"
	logx "github.com/nutriask/server/pkg/logger"
	pkgmongo "github.com/nutriask/server/pkg/mongo"
	pkgredis "github.com/nutriask/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the advisor,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Mongo pkgmongo.Config
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Reasoning       model.ReasoningModelConfig
	ReasoningPolicy model.ReasoningPolicyConfig
	Conversation    model.ConversationConfig
	Pipeline        model.PipelineConfig
	Prompt          model.PromptConfig
}

func main() {
	userID := flag.String("user", "64b7f0c2a1b2c3d4e5f60718", "user id the questions are asked as")
	symptomMode := flag.Bool("symptom", false, "send the questions as symptom descriptions")
	showHistory := flag.Bool("history", false, "print the user's conversation history after the run")
	flag.Parse()

	ctx := context.Background()
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: envCfg.Environment, Level: envCfg.LogLevel})

	mongoClient, db, err := envCfg.Mongo.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	logx.Info().Str("database", envCfg.Mongo.Database).Msg("Connected to MongoDB")

	conversationRepo, closeConversations, err := newConversationRepo(ctx, envCfg, db)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise conversation store")
	}
	defer closeConversations()

	completer, err := reasoning.NewGeminiCompleter(ctx, reasoning.GeminiConfig{
		APIKey:  envCfg.APIKey,
		BaseURL: envCfg.BaseURL,
		Model:   envCfg.Reasoning,
	}, envCfg.ReasoningPolicy)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create reasoning client")
	}

	pipeline, err := graph.BuildPipeline(ctx, graph.Config{
		Reasoning:        completer,
		ProductRepo:      repo.NewMongoProductRepository(db),
		ConversationRepo: conversationRepo,
		Conversation:     envCfg.Conversation,
		Pipeline:         envCfg.Pipeline,
		Prompt:           envCfg.Prompt,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	svc := advisor.NewService(pipeline, conversations.NewMemoryManager(conversationRepo, envCfg.Conversation))

	questions := flag.Args()
	if len(questions) == 0 {
		questions = sampleQuestions(*symptomMode)
	}

	for i, q := range questions {
		fmt.Printf("\nQuestion %d: %q\n", i+1, q)

		var res model.AskResult
		if *symptomMode {
			res = svc.CheckSymptoms(ctx, *userID, q)
		} else {
			res = svc.Ask(ctx, *userID, q)
		}

		if !res.Success {
			fmt.Printf("Error: %s\n%s\n", res.Error, res.Response)
		} else {
			fmt.Printf("%s\n", res.Response)
		}
		fmt.Println(strings.Repeat("─", 48))
	}

	if *showHistory {
		h, err := svc.GetHistory(ctx, *userID)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to fetch history")
		}
		b, _ := json.MarshalIndent(h, "", "  ")
		fmt.Println(string(b))
	}
}

// newConversationRepo selects the conversation backend. The returned func
// releases whatever the backend opened.
func newConversationRepo(ctx context.Context, cfg AppConfig, db *mongo.Database) (model.ConversationRepository, func(), error) {
	noop := func() {}
	switch strings.ToLower(cfg.Conversation.Backend) {
	case "", "mongo":
		return repo.NewMongoConversationRepository(db), noop, nil
	case "redis":
		ttl, err := time.ParseDuration(cfg.Conversation.TTL)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
		}
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		logx.Info().Dur("ttl", ttl).Msg("Connected to Redis successfully")
		return repo.NewRedisConversationRepository(rdb, ttl), func() { _ = rdb.Close() }, nil
	case "memory":
		return repo.NewMemoryConversationRepository(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown CONVERSATION_BACKEND %q", cfg.Conversation.Backend)
}

func sampleQuestions(symptoms bool) []string {
	if symptoms {
		return []string{
			"I feel tired and weak",
			"My joints hurt when I wake up",
		}
	}
	return []string{
		"Show me omega-3 products under 500 rupees",
		"products between 100 to 1000 rupees",
		"which can take 2 times a day",
		"Who won the cricket match yesterday?",
	}
}
