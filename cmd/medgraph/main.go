// SPDX-License-Identifier: Apache-2.0

// medgraph serves the medical request pipeline as an MCP tool, over
// streamable HTTP by default or stdio with -stdio.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/arogyalabs/medgraph/pkg/audit"
	"github.com/arogyalabs/medgraph/pkg/compose"
	"github.com/arogyalabs/medgraph/pkg/config"
	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/cypher"
	"github.com/arogyalabs/medgraph/pkg/graph"
	"github.com/arogyalabs/medgraph/pkg/intent"
	"github.com/arogyalabs/medgraph/pkg/llm"
	"github.com/arogyalabs/medgraph/pkg/llm/anthropic"
	"github.com/arogyalabs/medgraph/pkg/llm/openai"
	"github.com/arogyalabs/medgraph/pkg/mcp"
	"github.com/arogyalabs/medgraph/pkg/memory"
	"github.com/arogyalabs/medgraph/pkg/memory/ollamaembed"
	"github.com/arogyalabs/medgraph/pkg/memory/qdrant"
	"github.com/arogyalabs/medgraph/pkg/orchestrator"
	"github.com/arogyalabs/medgraph/pkg/records"
	"github.com/arogyalabs/medgraph/pkg/resilience"
	"github.com/arogyalabs/medgraph/pkg/schema"
	"github.com/arogyalabs/medgraph/pkg/telemetry"
	"github.com/arogyalabs/medgraph/pkg/tools"
	"github.com/arogyalabs/medgraph/pkg/translate"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	addr := flag.String("addr", "localhost:8080", "listen address for the streamable HTTP transport")
	stdio := flag.Bool("stdio", false, "serve over stdio instead of HTTP")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:  "medgraph",
		Version:      version,
		Environment:  cfg.Telemetry.Environment,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		logger.Error("telemetry init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("pipeline construction failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	srv := mcp.NewServer("medgraph", version)
	registerAskTool(srv, orch)

	if *stdio {
		if err := srv.ServeStdio(); err != nil {
			logger.Error("stdio server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	logger.Info("serving MCP over streamable HTTP", slog.String("addr", *addr))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStreamableHTTP(*addr) }()
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*orchestrator.Orchestrator, func(), error) {
	primary := buildProvider(cfg.LLM.Primary)
	secondary := buildProvider(cfg.LLM.Secondary)

	graphClient := graph.New(cfg.Graph.BaseURL, cfg.Graph.Database,
		graph.WithBasicAuth(cfg.Graph.Username, cfg.Graph.Password),
		graph.WithRowLimit(cfg.Graph.RowLimit),
		graph.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})))
	store := records.NewGraphStore(graphClient)

	queryModel := cfg.LLM.QueryModel
	if queryModel == "" {
		queryModel = cfg.LLM.Primary.Model
	}
	generator := cypher.NewGenerator(primary, queryModel, schema.Healthcare(),
		cypher.WithRowLimit(cfg.Graph.RowLimit))

	var index *memory.RecordIndex
	if cfg.Memory.VectorEnabled {
		var err error
		index, err = prepareRecordIndex(ctx, cfg, logger)
		if err != nil {
			logger.Warn("record index unavailable, continuing without it",
				slog.String("error", err.Error()))
			index = nil
		}
	}

	registry := tools.NewRegistry(tools.Deps{
		Store:         store,
		Graph:         graphClient,
		Generator:     generator,
		Index:         semanticIndex(index),
		Summarizer:    primary,
		SummaryModel:  cfg.LLM.Primary.Model,
		Enricher:      primary,
		EnricherModel: cfg.LLM.Primary.Model,
		Logger:        logger,
	})

	composer := compose.New(compose.Config{
		Primary:        primary,
		Secondary:      secondary,
		PrimaryModel:   cfg.LLM.Primary.Model,
		SecondaryModel: cfg.LLM.Secondary.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		TierTimeout:    cfg.Orchestrator.TierTimeout,
		Logger:         logger,
	})

	cleanup := func() {}
	var auditStore audit.Store = audit.NopStore{}
	if cfg.Audit.Enabled {
		sqliteStore, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit store: %w", err)
		}
		auditStore = sqliteStore
		cleanup = func() { sqliteStore.Close() }
	}

	var conversation memory.Conversation = memory.NopConversation{}
	if cfg.Memory.Conversation {
		conversation = memory.NewInMemoryConversation(cfg.Memory.MaxMessages)
	}

	var translator translate.Translator = translate.Nop{}
	if cfg.Translate.Enabled {
		translator = translate.NewClient(cfg.Translate.BaseURL, cfg.Translate.APIKey)
	}

	metrics, err := telemetry.NewPipelineMetrics(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Classifier:     intent.New(triggerTable(cfg.Intents)),
		Registry:       registry,
		Composer:       composer,
		Audit:          auditStore,
		Conversation:   conversation,
		Translator:     translator,
		Metrics:        metrics,
		Logger:         logger,
		ContextBudget:  cfg.Orchestrator.ContextBudget,
		ToolTimeout:    cfg.Orchestrator.ToolTimeout,
		RequestTimeout: cfg.Orchestrator.RequestTimeout,
	})
	return orch, cleanup, nil
}

func buildProvider(pc config.ProviderConfig) llm.Provider {
	switch pc.Kind {
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(pc.Model)}
		if pc.APIKey != "" {
			opts = append(opts, anthropic.WithAPIKey(pc.APIKey))
		}
		if pc.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
		}
		return anthropic.New(opts...)
	case "openai":
		opts := []openai.Option{openai.WithModel(pc.Model)}
		if pc.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(pc.APIKey))
		}
		if pc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pc.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		return llm.NewOllama(pc.BaseURL)
	default:
		return nil
	}
}

func triggerTable(categories []config.IntentCategory) []intent.Category {
	var table []intent.Category
	for _, c := range categories {
		table = append(table, intent.Category{
			Intent:  core.Intent(c.Intent),
			Phrases: c.Phrases,
		})
	}
	return table
}

// prepareRecordIndex wires the optional semantic index. Failures here are
// logged and tolerated; the pipeline works without it.
func prepareRecordIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*memory.RecordIndex, error) {
	vectorStore, err := qdrant.New(cfg.Memory.QdrantAddr)
	if err != nil {
		return nil, err
	}
	embedder := ollamaembed.New(cfg.Memory.EmbedderBaseURL, cfg.Memory.EmbedderModel)
	index := memory.NewRecordIndex(vectorStore, embedder, cfg.Memory.Collection)
	if err := index.Prepare(ctx); err != nil {
		return nil, err
	}
	logger.Info("record index ready", slog.String("collection", cfg.Memory.Collection))
	return index, nil
}

// semanticIndex avoids handing the registry a typed nil.
func semanticIndex(index *memory.RecordIndex) tools.SemanticIndex {
	if index == nil {
		return nil
	}
	return index
}

type askResult struct {
	Text             string   `json:"text"`
	Confidence       float64  `json:"confidence"`
	Sources          []string `json:"sources,omitempty"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	ExecutedQueries  []string `json:"executed_queries,omitempty"`
	Tier             int      `json:"tier"`
}

func registerAskTool(srv *mcp.Server, orch *orchestrator.Orchestrator) {
	opts := []mcpgo.ToolOption{
		mcpgo.WithString("query", mcpgo.Required(), mcpgo.Description("The health question to answer")),
		mcpgo.WithString("actor_id", mcpgo.Required(), mcpgo.Description("Identifier of the requesting user")),
		mcpgo.WithString("role", mcpgo.Required(), mcpgo.Description("Role of the requester: PATIENT or DOCTOR")),
		mcpgo.WithString("subject_id", mcpgo.Description("Whose records to read; defaults to the requester")),
		mcpgo.WithString("record_id", mcpgo.Description("Narrow the request to one health record")),
		mcpgo.WithString("session_id", mcpgo.Description("Conversation session key")),
		mcpgo.WithString("language", mcpgo.Description("Preferred response language code")),
	}

	srv.RegisterTool("ask_medgraph", "Answer a question about a user's health records", opts,
		func(ctx context.Context, args map[string]interface{}) (*mcpgo.CallToolResult, error) {
			role, err := core.ParseRole(strArg(args, "role"))
			if err != nil {
				return mcpgo.NewToolResultError(err.Error()), nil
			}
			resp, err := orch.Process(ctx, core.Request{
				Query:             strArg(args, "query"),
				Actor:             core.Actor{ID: strArg(args, "actor_id"), Role: role},
				SubjectID:         strArg(args, "subject_id"),
				RecordID:          strArg(args, "record_id"),
				SessionID:         strArg(args, "session_id"),
				PreferredLanguage: strArg(args, "language"),
			})
			if err != nil {
				return mcpgo.NewToolResultError(err.Error()), nil
			}

			result := askResult{
				Text:             resp.Text,
				Confidence:       resp.Confidence,
				SuggestedActions: resp.SuggestedActions,
				ExecutedQueries:  resp.ExecutedQueries,
				Tier:             resp.Tier,
			}
			for _, src := range resp.Sources {
				result.Sources = append(result.Sources, string(src))
			}
			payload, err := json.Marshal(result)
			if err != nil {
				return mcpgo.NewToolResultError(err.Error()), nil
			}
			return mcpgo.NewToolResultText(string(payload)), nil
		})
}

func strArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}
