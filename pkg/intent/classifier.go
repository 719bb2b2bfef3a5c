// SPDX-License-Identifier: Apache-2.0

// Package intent classifies user queries into a closed set of intent labels
// using a data-driven trigger-phrase table. Classification is pure: the same
// query and table always yield the same labels.
package intent

import (
	"sort"
	"strings"

	"github.com/arogyalabs/medgraph/pkg/core"
)

// Category is one row of the trigger table: an intent label and the phrases
// that activate it.
type Category struct {
	Intent  core.Intent
	Phrases []string
}

// Classifier matches queries against a trigger table.
type Classifier struct {
	table []Category
}

// DefaultTable returns the built-in trigger table. Order matters only for
// ties; matches are ranked by where their phrase first occurs in the query.
func DefaultTable() []Category {
	return []Category{
		{Intent: core.IntentMedicalHistory, Phrases: []string{"history", "report", "complete", "all my records"}},
		{Intent: core.IntentLatestPrescription, Phrases: []string{"prescription", "medication", "medicine", "latest"}},
		{Intent: core.IntentSearchRecords, Phrases: []string{"search", "find", "look for"}},
		{Intent: core.IntentGenerateSummary, Phrases: []string{"summary", "summarize", "overview"}},
		{Intent: core.IntentQueryRecord, Phrases: []string{"query", "details", "information"}},
	}
}

// New creates a Classifier over the given table. A nil or empty table falls
// back to the default one.
func New(table []Category) *Classifier {
	if len(table) == 0 {
		table = DefaultTable()
	}
	return &Classifier{table: table}
}

// match pairs an intent with the position of its earliest phrase hit.
type match struct {
	intent   core.Intent
	position int
	tableIdx int
}

// Classify returns every intent whose trigger phrases occur in the query,
// ordered by first occurrence. A query matching nothing classifies as the
// general intent. Matching is case-insensitive on whole phrases.
func (c *Classifier) Classify(query string) []core.Intent {
	lower := strings.ToLower(query)

	var matches []match
	for i, cat := range c.table {
		best := -1
		for _, phrase := range cat.Phrases {
			if pos := strings.Index(lower, strings.ToLower(phrase)); pos >= 0 {
				if best == -1 || pos < best {
					best = pos
				}
			}
		}
		if best >= 0 {
			matches = append(matches, match{intent: cat.Intent, position: best, tableIdx: i})
		}
	}

	if len(matches) == 0 {
		return []core.Intent{core.IntentGeneralQuery}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].position != matches[j].position {
			return matches[i].position < matches[j].position
		}
		return matches[i].tableIdx < matches[j].tableIdx
	})

	out := make([]core.Intent, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.intent)
	}
	return out
}
