package compose

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/llm"
)

func richInput() Input {
	bundle := core.NewContextBundle(0)
	bundle.Append(core.ContextItem{
		Kind: core.KindRecordSummary, Source: core.ToolSearchHealthRecords,
		Title: "Asthma", Body: "Mild asthma, managed with an inhaler.",
	})
	return Input{
		Query:    "tell me about my asthma",
		Actor:    core.Actor{ID: "p1", Role: core.RolePatient},
		Intents:  []core.Intent{core.IntentSearchRecords},
		Selected: []core.ToolName{core.ToolSearchHealthRecords},
		Results: map[core.ToolName]core.ToolResult{
			core.ToolSearchHealthRecords: {
				Tool: core.ToolSearchHealthRecords, Success: true,
				Queries: []string{"MATCH (hr:HealthRecord) RETURN hr"},
			},
		},
		Bundle: bundle,
	}
}

func TestComposeTier1(t *testing.T) {
	c := New(Config{
		Primary:   &llm.MockProvider{Response: "Your asthma is mild and well managed."},
		Secondary: &llm.MockProvider{Response: "secondary"},
	})

	resp := c.Compose(context.Background(), richInput())
	if resp.Tier != 1 {
		t.Fatalf("expected tier 1, got %d", resp.Tier)
	}
	if resp.Confidence != ConfidenceTier1 {
		t.Errorf("expected confidence %v, got %v", ConfidenceTier1, resp.Confidence)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != core.ToolSearchHealthRecords {
		t.Errorf("unexpected sources %v", resp.Sources)
	}
	if len(resp.ExecutedQueries) != 1 {
		t.Errorf("expected executed queries to carry through, got %v", resp.ExecutedQueries)
	}
}

func TestComposeFallsThroughTiersInOrder(t *testing.T) {
	calls := 0
	primary := &llm.MockProvider{ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		return nil, context.DeadlineExceeded
	}}
	c := New(Config{
		Primary:   primary,
		Secondary: &llm.MockProvider{Response: "from the secondary vendor"},
	})

	resp := c.Compose(context.Background(), richInput())
	if resp.Tier != 3 {
		t.Fatalf("expected tier 3 after both primary tiers fail, got %d", resp.Tier)
	}
	if calls != 2 {
		t.Errorf("expected primary to be tried exactly twice, got %d", calls)
	}
	if resp.Confidence != ConfidenceTier3 {
		t.Errorf("expected confidence %v, got %v", ConfidenceTier3, resp.Confidence)
	}
}

func TestComposeLowerTiersDropRetrievedContext(t *testing.T) {
	calls := 0
	var tier2System string
	primary := &llm.MockProvider{ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return nil, context.DeadlineExceeded
		}
		tier2System = req.Messages[0].Content
		return &llm.ChatResponse{Content: "degraded answer"}, nil
	}}
	secondary := &llm.MockProvider{Response: "unused"}
	c := New(Config{Primary: primary, Secondary: secondary})

	resp := c.Compose(context.Background(), richInput())
	if resp.Tier != 2 {
		t.Fatalf("expected tier 2, got %d", resp.Tier)
	}
	if strings.Contains(tier2System, "Asthma") || strings.Contains(tier2System, "inhaler") {
		t.Errorf("tier 2 prompt must not carry retrieved facts, got %q", tier2System)
	}

	tier3 := &llm.MockProvider{Response: "from the secondary vendor"}
	c = New(Config{Primary: &llm.FailingMockProvider{}, Secondary: tier3})
	resp = c.Compose(context.Background(), richInput())
	if resp.Tier != 3 {
		t.Fatalf("expected tier 3, got %d", resp.Tier)
	}
	if len(tier3.Requests) != 1 {
		t.Fatalf("expected one secondary call, got %d", len(tier3.Requests))
	}
	if got := tier3.Requests[0].Messages[0].Content; strings.Contains(got, "Asthma") {
		t.Errorf("tier 3 prompt must not carry retrieved facts, got %q", got)
	}
}

func TestComposeTier4IsDeterministic(t *testing.T) {
	c := New(Config{
		Primary:   &llm.FailingMockProvider{},
		Secondary: &llm.FailingMockProvider{},
	})

	in := richInput()
	first := c.Compose(context.Background(), in)
	if first.Tier != 4 {
		t.Fatalf("expected tier 4 when every provider fails, got %d", first.Tier)
	}
	if first.Confidence != ConfidenceTier4 {
		t.Errorf("expected confidence %v, got %v", ConfidenceTier4, first.Confidence)
	}
	if !strings.Contains(first.Text, "Asthma") {
		t.Errorf("template should render retrieved items, got %q", first.Text)
	}
	for i := 0; i < 10; i++ {
		if got := c.Compose(context.Background(), in); got.Text != first.Text {
			t.Fatal("tier 4 output is not deterministic")
		}
	}
}

func TestComposeWithNoProvidersStillResponds(t *testing.T) {
	c := New(Config{})
	resp := c.Compose(context.Background(), richInput())
	if resp.Tier != 4 || resp.Text == "" {
		t.Errorf("expected template response with no providers, got %+v", resp)
	}
}

func TestComposeEmptyBundleCapsConfidence(t *testing.T) {
	c := New(Config{Primary: &llm.MockProvider{Response: "answer"}})
	in := richInput()
	in.Bundle = core.NewContextBundle(0)
	in.Results = map[core.ToolName]core.ToolResult{
		core.ToolSearchHealthRecords: {Tool: core.ToolSearchHealthRecords, Error: "graph down"},
	}

	resp := c.Compose(context.Background(), in)
	if resp.Tier != 1 {
		t.Fatalf("expected tier 1, got %d", resp.Tier)
	}
	if resp.Confidence != CapEmptyBundle {
		t.Errorf("expected empty-bundle cap %v, got %v", CapEmptyBundle, resp.Confidence)
	}
}

func TestComposeAllEmptyResultsCapsConfidence(t *testing.T) {
	c := New(Config{Primary: &llm.MockProvider{Response: "nothing matched"}})
	in := richInput()
	in.Bundle = core.NewContextBundle(0)
	in.Results = map[core.ToolName]core.ToolResult{
		core.ToolSearchHealthRecords: {Tool: core.ToolSearchHealthRecords, Success: true, Empty: true},
	}

	resp := c.Compose(context.Background(), in)
	if resp.Confidence != CapAllEmptyResults {
		t.Errorf("expected all-empty cap %v, got %v", CapAllEmptyResults, resp.Confidence)
	}
}

func TestComposeTierTimeout(t *testing.T) {
	slow := &llm.MockProvider{ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		time.Sleep(200 * time.Millisecond)
		return &llm.ChatResponse{Content: "too late"}, nil
	}}
	c := New(Config{
		Primary:     slow,
		Secondary:   &llm.MockProvider{Response: "fast secondary"},
		TierTimeout: 10 * time.Millisecond,
	})

	resp := c.Compose(context.Background(), richInput())
	if resp.Tier != 3 {
		t.Fatalf("expected slow primary tiers to time out, got tier %d", resp.Tier)
	}
	if resp.Text != "fast secondary" {
		t.Errorf("unexpected text %q", resp.Text)
	}
}

func TestComposeEmptyProviderOutputFallsThrough(t *testing.T) {
	c := New(Config{
		Primary:   &llm.MockProvider{Response: "   "},
		Secondary: &llm.MockProvider{Response: "usable"},
	})
	resp := c.Compose(context.Background(), richInput())
	if resp.Tier != 3 {
		t.Fatalf("blank output must not count as a response, got tier %d", resp.Tier)
	}
}

func TestSuggestedActionsByIntent(t *testing.T) {
	cases := map[core.Intent]string{
		core.IntentLatestPrescription: "set_medication_reminder",
		core.IntentSearchRecords:      "refine_search",
		core.IntentGenerateSummary:    "share_with_doctor",
		core.IntentGeneralQuery:       "schedule_appointment",
	}
	for intent, want := range cases {
		got := SuggestedActions(intent)
		found := false
		for _, a := range got {
			if a == want {
				found = true
			}
		}
		if !found {
			t.Errorf("intent %s: expected action %q in %v", intent, want, got)
		}
	}
}

func TestComposeEmptyBundleTemplateApologizes(t *testing.T) {
	c := New(Config{})
	in := richInput()
	in.Bundle = core.NewContextBundle(0)
	in.Results = map[core.ToolName]core.ToolResult{}

	resp := c.Compose(context.Background(), in)
	if !strings.Contains(resp.Text, "could not retrieve") {
		t.Errorf("expected apology template, got %q", resp.Text)
	}
	if resp.Confidence != ConfidenceTier4 {
		t.Errorf("expected tier 4 confidence below caps, got %v", resp.Confidence)
	}
}
