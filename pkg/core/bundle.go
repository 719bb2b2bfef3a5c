package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// ContextKind types the items a tool contributes to the context bundle.
type ContextKind string

const (
	// KindRecordSummary is a structured health-record summary. Densest,
	// dropped last under budget pressure.
	KindRecordSummary ContextKind = "record_summary"
	// KindFileSummary is a summary of an uploaded medical file. Dropped
	// before record summaries when the bundle is over budget.
	KindFileSummary ContextKind = "file_summary"
	// KindMedication is a single medication entry.
	KindMedication ContextKind = "medication"
)

// ContextItem is one retrieved fact, tagged with provenance and recency.
type ContextItem struct {
	Kind    ContextKind
	Source  ToolName
	RefID   string
	Title   string
	Body    string
	Recency time.Time
}

// size is the item's contribution to the bundle budget, in bytes of
// rendered text.
func (it ContextItem) size() int {
	return len(it.Title) + len(it.Body)
}

// ContextBundle is the bounded, ordered set of retrieved facts passed to
// response composition.
type ContextBundle struct {
	Items  []ContextItem
	Budget int
}

// NewContextBundle creates an empty bundle with the given byte budget.
func NewContextBundle(budget int) *ContextBundle {
	return &ContextBundle{Budget: budget}
}

// Size returns the total rendered size of all items.
func (b *ContextBundle) Size() int {
	total := 0
	for _, it := range b.Items {
		total += it.size()
	}
	return total
}

// Empty reports whether the bundle holds no items.
func (b *ContextBundle) Empty() bool {
	return b == nil || len(b.Items) == 0
}

// Append adds an item and re-truncates if the budget is exceeded.
func (b *ContextBundle) Append(item ContextItem) {
	b.Items = append(b.Items, item)
	b.truncate()
}

// truncate drops items until the bundle fits its budget. File summaries go
// first, least recent first; structured summaries and medications only when
// no file summaries remain.
func (b *ContextBundle) truncate() {
	if b.Budget <= 0 {
		return
	}
	for b.Size() > b.Budget && len(b.Items) > 1 {
		idx := b.evictionIndex()
		b.Items = append(b.Items[:idx], b.Items[idx+1:]...)
	}
	// A single oversized item is clipped rather than dropped so the
	// bundle never exceeds the declared budget.
	if len(b.Items) == 1 && b.Size() > b.Budget {
		it := &b.Items[0]
		max := b.Budget - len(it.Title)
		if max < 0 {
			max = 0
			it.Title = clip(it.Title, b.Budget)
		}
		if len(it.Body) > max {
			it.Body = clip(it.Body, max)
		}
	}
}

// clip cuts s to at most n bytes without splitting a multi-byte rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (b *ContextBundle) evictionIndex() int {
	candidates := make([]int, 0, len(b.Items))
	for i, it := range b.Items {
		if it.Kind == KindFileSummary {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		for i := range b.Items {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return b.Items[candidates[i]].Recency.Before(b.Items[candidates[j]].Recency)
	})
	return candidates[0]
}

// Render produces the textual context block handed to the model.
func (b *ContextBundle) Render() string {
	if b.Empty() {
		return ""
	}
	var sb strings.Builder
	for _, it := range b.Items {
		fmt.Fprintf(&sb, "[%s via %s] %s\n%s\n\n", it.Kind, it.Source, it.Title, it.Body)
	}
	return sb.String()
}
