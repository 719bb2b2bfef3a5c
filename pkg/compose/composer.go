// SPDX-License-Identifier: Apache-2.0

// Package compose turns a context bundle into the final response through a
// strict fallback chain: rich primary generation, primary generation
// without retrieved context, a secondary vendor without context, and a
// deterministic template that cannot fail. Confidence is fixed per tier
// and capped by retrieval quality.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/errors"
	"github.com/arogyalabs/medgraph/pkg/llm"
	"github.com/arogyalabs/medgraph/pkg/resilience"
)

// Per-tier confidence and retrieval-quality caps.
const (
	ConfidenceTier1 = 0.90
	ConfidenceTier2 = 0.65
	ConfidenceTier3 = 0.50
	ConfidenceTier4 = 0.15

	// CapEmptyBundle bounds confidence when retrieval produced no context.
	CapEmptyBundle = 0.40
	// CapAllEmptyResults bounds confidence when every tool succeeded but
	// matched nothing.
	CapAllEmptyResults = 0.50
)

// Input is everything composition needs from the pipeline.
type Input struct {
	Query    string
	Actor    core.Actor
	Intents  []core.Intent
	Selected []core.ToolName
	Results  map[core.ToolName]core.ToolResult
	Bundle   *core.ContextBundle
}

// Composer builds responses through the fallback chain.
type Composer struct {
	primary        llm.Provider
	secondary      llm.Provider
	primaryModel   string
	secondaryModel string
	temperature    float64
	maxTokens      int
	tierTimeout    time.Duration
	logger         *slog.Logger
}

// Config wires the composer's providers and budgets. Secondary should be a
// different vendor from primary so a vendor-wide outage cannot take out
// tiers 1 through 3 together.
type Config struct {
	Primary        llm.Provider
	Secondary      llm.Provider
	PrimaryModel   string
	SecondaryModel string
	Temperature    float64
	MaxTokens      int
	TierTimeout    time.Duration
	Logger         *slog.Logger
}

// New creates a Composer.
func New(cfg Config) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.TierTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Composer{
		primary:        cfg.Primary,
		secondary:      cfg.Secondary,
		primaryModel:   cfg.PrimaryModel,
		secondaryModel: cfg.SecondaryModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		tierTimeout:    timeout,
		logger:         logger,
	}
}

type tierOutcome struct {
	text string
	tier int
}

// Compose produces a response. It always returns one: the final tier is a
// deterministic template that cannot fail.
func (c *Composer) Compose(ctx context.Context, in Input) *core.Response {
	chain := &resilience.ChainedFallback{Fallbacks: []resilience.FallbackStrategy{
		c.tierStrategy(2, c.primary, c.primaryModel, c.plainPrompt(in), in),
		c.tierStrategy(3, c.secondary, c.secondaryModel, c.plainPrompt(in), in),
		resilience.FallbackFunc(func(ctx context.Context, primaryErr error) (interface{}, error) {
			return tierOutcome{text: c.template(in), tier: 4}, nil
		}),
	}}

	value, err := resilience.WithFallback(ctx,
		func() (interface{}, error) {
			return c.runTier(ctx, 1, c.primary, c.primaryModel, c.richPrompt(in), in)
		},
		chain)
	if err != nil {
		// Unreachable: the template link always succeeds. Kept so a
		// future chain edit cannot silently drop responses.
		value = tierOutcome{text: c.template(in), tier: 4}
	}
	outcome := value.(tierOutcome)

	confidence := tierConfidence(outcome.tier)
	if ceiling, capped := retrievalCap(in); capped && confidence > ceiling {
		confidence = ceiling
	}

	return &core.Response{
		Text:             outcome.text,
		Confidence:       confidence,
		Sources:          succeededSources(in),
		SuggestedActions: SuggestedActions(dominantIntent(in)),
		ExecutedQueries:  executedQueries(in),
		Tier:             outcome.tier,
	}
}

func (c *Composer) tierStrategy(tier int, provider llm.Provider, model, prompt string, in Input) resilience.FallbackStrategy {
	return resilience.FallbackFunc(func(ctx context.Context, primaryErr error) (interface{}, error) {
		return c.runTier(ctx, tier, provider, model, prompt, in)
	})
}

func (c *Composer) runTier(ctx context.Context, tier int, provider llm.Provider, model, prompt string, in Input) (interface{}, error) {
	if provider == nil {
		return nil, errors.New(errors.CodeLLMError,
			fmt.Sprintf("no provider wired for tier %d", tier), nil)
	}

	value, err := resilience.WithTimeoutResult(ctx,
		resilience.TimeoutConfig{Duration: c.tierTimeout},
		func(ctx context.Context) (interface{}, error) {
			resp, err := provider.Chat(ctx, llm.ChatRequest{
				Model:       model,
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
				Messages: []llm.Message{
					{Role: llm.RoleSystem, Content: prompt},
					{Role: llm.RoleUser, Content: in.Query},
				},
			})
			if err != nil {
				return nil, err
			}
			return resp.Content, nil
		})
	if err != nil {
		c.logger.WarnContext(ctx, "composition tier failed",
			slog.Int("tier", tier),
			slog.String("error", err.Error()))
		return nil, err
	}

	text := strings.TrimSpace(value.(string))
	if text == "" {
		return nil, errors.New(errors.CodeLLMError,
			fmt.Sprintf("tier %d returned an empty response", tier), nil)
	}
	return tierOutcome{text: text, tier: tier}, nil
}

func (c *Composer) richPrompt(in Input) string {
	var b strings.Builder
	if in.Actor.Role == core.RoleDoctor {
		b.WriteString("You are a clinical assistant answering a healthcare professional. Be precise and use standard medical terminology.\n")
	} else {
		b.WriteString("You are a caring medical assistant answering a patient. Use simple language, short sentences, and a reassuring tone. Never invent medical facts.\n")
	}
	b.WriteString("Answer the question using only the retrieved facts below. If the facts do not cover the question, say so plainly.\n\n")
	writeContext(&b, in.Bundle)
	return b.String()
}

// plainPrompt is the degraded prompt for tiers 2 and 3. It carries no
// retrieved context: those tiers run when the rich call failed, so the
// model must not be handed graph data it could misattribute.
func (c *Composer) plainPrompt(in Input) string {
	var b strings.Builder
	if in.Actor.Role == core.RoleDoctor {
		b.WriteString("You are a clinical assistant answering a healthcare professional.\n")
	} else {
		b.WriteString("You are a caring medical assistant answering a patient. Use simple language.\n")
	}
	b.WriteString("Answer the health question briefly from general knowledge. The user's records could not be included; if the answer depends on them, say so and suggest trying again.")
	return b.String()
}

func writeContext(b *strings.Builder, bundle *core.ContextBundle) {
	if bundle.Empty() {
		b.WriteString("Retrieved facts: none.\n")
		return
	}
	b.WriteString("Retrieved facts:\n")
	b.WriteString(bundle.Render())
}

// template is tier 4: a deterministic rendering of whatever was retrieved.
// Identical inputs always produce identical text.
func (c *Composer) template(in Input) string {
	if in.Bundle.Empty() {
		return "I could not retrieve the information needed to answer your question right now. Please try again shortly, or contact your care provider if the question is urgent."
	}
	var b strings.Builder
	b.WriteString("Here is what I found in your health records:\n")
	for _, it := range in.Bundle.Items {
		fmt.Fprintf(&b, "- %s: %s\n", it.Title, it.Body)
	}
	return b.String()
}

func tierConfidence(tier int) float64 {
	switch tier {
	case 1:
		return ConfidenceTier1
	case 2:
		return ConfidenceTier2
	case 3:
		return ConfidenceTier3
	default:
		return ConfidenceTier4
	}
}

// retrievalCap returns the confidence ceiling imposed by retrieval quality.
func retrievalCap(in Input) (float64, bool) {
	if len(in.Selected) > 0 {
		allEmpty := true
		for _, name := range in.Selected {
			res, ok := in.Results[name]
			if !ok || !res.Success || !res.Empty {
				allEmpty = false
				break
			}
		}
		if allEmpty {
			return CapAllEmptyResults, true
		}
	}
	if in.Bundle.Empty() {
		return CapEmptyBundle, true
	}
	return 0, false
}

func succeededSources(in Input) []core.ToolName {
	var out []core.ToolName
	for _, name := range in.Selected {
		if res, ok := in.Results[name]; ok && res.Success {
			out = append(out, name)
		}
	}
	return out
}

func executedQueries(in Input) []string {
	var out []string
	for _, name := range in.Selected {
		if res, ok := in.Results[name]; ok {
			out = append(out, res.Queries...)
		}
	}
	return out
}

func dominantIntent(in Input) core.Intent {
	if len(in.Intents) == 0 {
		return core.IntentGeneralQuery
	}
	return in.Intents[0]
}

// SuggestedActions maps the dominant intent to follow-up actions the client
// can offer.
func SuggestedActions(intent core.Intent) []string {
	switch intent {
	case core.IntentLatestPrescription:
		return []string{"view_health_record", "set_medication_reminder"}
	case core.IntentSearchRecords:
		return []string{"view_health_record", "refine_search"}
	case core.IntentGenerateSummary:
		return []string{"view_health_record", "share_with_doctor"}
	default:
		return []string{"view_health_record", "schedule_appointment"}
	}
}
