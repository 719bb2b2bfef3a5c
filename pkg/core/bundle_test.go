package core

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func item(kind ContextKind, body string, age time.Duration) ContextItem {
	return ContextItem{
		Kind:    kind,
		Source:  ToolSearchHealthRecords,
		Title:   "t",
		Body:    body,
		Recency: time.Now().Add(-age),
	}
}

func TestBundleStaysWithinBudget(t *testing.T) {
	b := NewContextBundle(100)
	for i := 0; i < 20; i++ {
		b.Append(item(KindFileSummary, strings.Repeat("x", 30), time.Duration(i)*time.Minute))
	}
	if b.Size() > 100 {
		t.Errorf("bundle size %d exceeds budget 100", b.Size())
	}
}

func TestBundleDropsFilesBeforeRecordSummaries(t *testing.T) {
	b := NewContextBundle(120)
	b.Append(item(KindRecordSummary, strings.Repeat("r", 50), time.Hour))
	b.Append(item(KindFileSummary, strings.Repeat("f", 50), time.Minute))
	// Pushes the bundle over budget; the file summary must go, not the
	// older record summary.
	b.Append(item(KindRecordSummary, strings.Repeat("s", 50), 0))

	for _, it := range b.Items {
		if it.Kind == KindFileSummary {
			t.Errorf("expected file summary to be evicted first")
		}
	}
	if b.Size() > 120 {
		t.Errorf("bundle size %d exceeds budget", b.Size())
	}
}

func TestBundleEvictsLeastRecentFileFirst(t *testing.T) {
	b := NewContextBundle(130)
	old := item(KindFileSummary, strings.Repeat("o", 50), 2*time.Hour)
	old.RefID = "old"
	fresh := item(KindFileSummary, strings.Repeat("n", 50), time.Minute)
	fresh.RefID = "fresh"
	b.Append(old)
	b.Append(fresh)
	b.Append(item(KindMedication, strings.Repeat("m", 40), 0))

	for _, it := range b.Items {
		if it.RefID == "old" {
			t.Errorf("expected the least recent file summary to be evicted")
		}
	}
}

func TestBundleClipsSingleOversizedItem(t *testing.T) {
	b := NewContextBundle(40)
	b.Append(item(KindRecordSummary, strings.Repeat("x", 500), 0))
	if b.Size() > 40 {
		t.Errorf("oversized single item not clipped, size=%d", b.Size())
	}
	if len(b.Items) != 1 {
		t.Errorf("expected the only item to be kept, got %d items", len(b.Items))
	}
}

func TestBundleClipKeepsValidUTF8(t *testing.T) {
	// Hindi text: every rune is 3 bytes, so a byte budget rarely lands
	// on a rune boundary.
	body := strings.Repeat("दवा", 100)
	b := NewContextBundle(50)
	b.Append(item(KindRecordSummary, body, 0))

	if b.Size() > 50 {
		t.Errorf("oversized single item not clipped, size=%d", b.Size())
	}
	got := b.Items[0].Body
	if !utf8.ValidString(got) {
		t.Errorf("clipping split a rune: %q", got)
	}
	if !strings.HasPrefix(body, got) {
		t.Errorf("clipped body is not a prefix of the original: %q", got)
	}
}

func TestBundleRenderCarriesProvenance(t *testing.T) {
	b := NewContextBundle(0)
	b.Append(ContextItem{Kind: KindMedication, Source: ToolLatestPrescription, Title: "Metformin", Body: "500mg twice daily"})
	out := b.Render()
	if !strings.Contains(out, string(ToolLatestPrescription)) {
		t.Errorf("expected provenance in rendered bundle, got %q", out)
	}
}

func TestUnboundedBundleKeepsEverything(t *testing.T) {
	b := NewContextBundle(0)
	for i := 0; i < 10; i++ {
		b.Append(item(KindFileSummary, strings.Repeat("x", 100), 0))
	}
	if len(b.Items) != 10 {
		t.Errorf("expected 10 items with no budget, got %d", len(b.Items))
	}
}
