package intent

import (
	"reflect"
	"testing"

	"github.com/arogyalabs/medgraph/pkg/core"
)

func TestClassifySingleIntent(t *testing.T) {
	c := New(nil)
	got := c.Classify("show me my latest prescription")
	if got[0] != core.IntentLatestPrescription {
		t.Errorf("expected prescription intent first, got %v", got)
	}
}

func TestClassifyOrdersByFirstOccurrence(t *testing.T) {
	c := New(nil)
	// "summary" appears before "history" in the query, so the summary
	// intent must rank first regardless of table order.
	got := c.Classify("give me a summary of my medical history")
	want := []core.Intent{core.IntentGenerateSummary, core.IntentMedicalHistory}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestClassifyDefaultsToGeneral(t *testing.T) {
	c := New(nil)
	got := c.Classify("hello there")
	if len(got) != 1 || got[0] != core.IntentGeneralQuery {
		t.Errorf("expected general intent, got %v", got)
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	c := New(nil)
	got := c.Classify("SEARCH for my blood tests")
	if got[0] != core.IntentSearchRecords {
		t.Errorf("expected search intent, got %v", got)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New(nil)
	query := "find details and a summary of my medication history"
	first := c.Classify(query)
	for i := 0; i < 50; i++ {
		if got := c.Classify(query); !reflect.DeepEqual(got, first) {
			t.Fatalf("classification is not deterministic: %v vs %v", first, got)
		}
	}
}

func TestClassifyCustomTable(t *testing.T) {
	c := New([]Category{
		{Intent: core.IntentQueryRecord, Phrases: []string{"bericht"}},
	})
	got := c.Classify("zeig mir den bericht")
	if got[0] != core.IntentQueryRecord {
		t.Errorf("expected custom table to drive classification, got %v", got)
	}
	if got := c.Classify("search something"); got[0] != core.IntentGeneralQuery {
		t.Errorf("expected custom table to replace defaults, got %v", got)
	}
}

func TestClassifyTieBreaksByTableOrder(t *testing.T) {
	c := New([]Category{
		{Intent: core.IntentMedicalHistory, Phrases: []string{"records"}},
		{Intent: core.IntentSearchRecords, Phrases: []string{"records"}},
	})
	got := c.Classify("records please")
	want := []core.Intent{core.IntentMedicalHistory, core.IntentSearchRecords}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected table order to break ties, got %v", got)
	}
}
