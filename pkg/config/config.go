package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log          LogConfig          `koanf:"log"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
	LLM          LLMConfig          `koanf:"llm"`
	Graph        GraphConfig        `koanf:"graph"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Audit        AuditConfig        `koanf:"audit"`
	Memory       MemoryConfig       `koanf:"memory"`
	Translate    TranslateConfig    `koanf:"translate"`
	Intents      []IntentCategory   `koanf:"intents"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	Environment  string `koanf:"environment"`
}

// ProviderConfig describes one model provider endpoint.
type ProviderConfig struct {
	Kind    string `koanf:"kind"` // anthropic, openai, ollama
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

type LLMConfig struct {
	// Primary serves fallback tiers 1 and 2; Secondary serves tier 3 and
	// must be a different vendor.
	Primary   ProviderConfig `koanf:"primary"`
	Secondary ProviderConfig `koanf:"secondary"`
	// QueryModel is the model used for Cypher generation; defaults to the
	// primary model.
	QueryModel  string  `koanf:"query_model"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

type GraphConfig struct {
	BaseURL  string `koanf:"base_url"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	RowLimit int    `koanf:"row_limit"`
}

type OrchestratorConfig struct {
	ContextBudget  int           `koanf:"context_budget"`
	ToolTimeout    time.Duration `koanf:"tool_timeout"`
	TierTimeout    time.Duration `koanf:"tier_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	DBPath  string `koanf:"db_path"`
}

type MemoryConfig struct {
	Conversation bool `koanf:"conversation"`
	// MaxMessages bounds per-session conversation history.
	MaxMessages int `koanf:"max_messages"`

	// Vector search over record summaries; optional.
	VectorEnabled   bool   `koanf:"vector_enabled"`
	QdrantAddr      string `koanf:"qdrant_addr"`
	Collection      string `koanf:"collection"`
	EmbedderBaseURL string `koanf:"embedder_base_url"`
	EmbedderModel   string `koanf:"embedder_model"`
}

type TranslateConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// IntentCategory is one row of the data-driven trigger-phrase table. The
// classifier is pure; this table is the only thing that shapes it.
type IntentCategory struct {
	Intent  string   `koanf:"intent"`
	Phrases []string `koanf:"phrases"`
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("telemetry.environment", "development")

	k.Set("llm.primary.kind", "anthropic")
	k.Set("llm.primary.model", "claude-sonnet-4-20250514")
	k.Set("llm.secondary.kind", "openai")
	k.Set("llm.secondary.model", "gpt-4o-mini")
	k.Set("llm.temperature", 0.2)
	k.Set("llm.max_tokens", 1024)

	k.Set("graph.base_url", "http://localhost:7474")
	k.Set("graph.database", "neo4j")
	k.Set("graph.row_limit", 50)

	k.Set("orchestrator.context_budget", 8192)
	k.Set("orchestrator.tool_timeout", "15s")
	k.Set("orchestrator.tier_timeout", "20s")
	k.Set("orchestrator.request_timeout", "90s")

	k.Set("audit.enabled", false)
	k.Set("audit.db_path", "medgraph-audit.db")

	k.Set("memory.conversation", true)
	k.Set("memory.max_messages", 40)
	k.Set("memory.vector_enabled", false)
	k.Set("memory.qdrant_addr", "localhost:6334")
	k.Set("memory.collection", "medgraph_records")
	k.Set("memory.embedder_base_url", "http://localhost:11434")
	k.Set("memory.embedder_model", "nomic-embed-text")

	k.Set("translate.enabled", false)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (MEDGRAPH_GRAPH_BASE_URL -> graph.base_url)
	if err := k.Load(env.Provider("MEDGRAPH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "MEDGRAPH_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
