// SPDX-License-Identifier: Apache-2.0

// Package assembler converts settled tool results into a bounded context
// bundle. Extraction is per-tool and deterministic: the same results always
// produce the same bundle.
package assembler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/records"
	"github.com/arogyalabs/medgraph/pkg/tools"
)

// Assembler builds context bundles from tool results.
type Assembler struct {
	budget int
	role   core.Role
}

// New creates an Assembler. The role picks which stored summary variant
// (layman or clinical) record items carry.
func New(budget int, role core.Role) *Assembler {
	return &Assembler{budget: budget, role: role}
}

// Assemble folds results into a bundle in selection order. Failed and empty
// results contribute nothing; they are the orchestrator's concern.
func (a *Assembler) Assemble(selected []core.ToolName, results map[core.ToolName]core.ToolResult) *core.ContextBundle {
	bundle := core.NewContextBundle(a.budget)
	for _, name := range selected {
		res, ok := results[name]
		if !ok || !res.Success || res.Empty {
			continue
		}
		for _, item := range a.extract(res) {
			bundle.Append(item)
		}
	}
	return bundle
}

func (a *Assembler) extract(res core.ToolResult) []core.ContextItem {
	switch data := res.Data.(type) {
	case tools.HistoryReport:
		return a.fromHistory(res.Tool, data)
	case tools.PrescriptionResult:
		return a.fromPrescription(res.Tool, data)
	case tools.SearchResult:
		return a.fromRecords(res.Tool, data.Records)
	case tools.RecordQueryResult:
		return a.fromRows(res.Tool, data)
	case tools.SummaryResult:
		return a.fromSummary(res.Tool, data)
	default:
		return nil
	}
}

func (a *Assembler) fromHistory(tool core.ToolName, report tools.HistoryReport) []core.ContextItem {
	items := a.fromRecords(tool, report.Records)
	for _, f := range report.Files {
		body := f.LaymanSummary
		if a.role == core.RoleDoctor && f.DoctorSummary != "" {
			body = f.DoctorSummary
		}
		if body == "" {
			body = f.Category
		}
		items = append(items, core.ContextItem{
			Kind:    core.KindFileSummary,
			Source:  tool,
			RefID:   f.ID,
			Title:   f.Filename,
			Body:    body,
			Recency: parseTime(f.CreatedAt),
		})
	}
	return items
}

func (a *Assembler) fromRecords(tool core.ToolName, recs []records.RecordSummary) []core.ContextItem {
	items := make([]core.ContextItem, 0, len(recs))
	for _, r := range recs {
		body := r.MedicalSummary
		if a.role == core.RolePatient && r.LaymanSummary != "" {
			body = r.LaymanSummary
		}
		if body == "" {
			body = fmt.Sprintf("%s, status %s", r.Ailment, r.Status)
		}
		items = append(items, core.ContextItem{
			Kind:    core.KindRecordSummary,
			Source:  tool,
			RefID:   r.ID,
			Title:   r.Title,
			Body:    body,
			Recency: parseTime(r.UpdatedAt),
		})
	}
	return items
}

func (a *Assembler) fromPrescription(tool core.ToolName, pr tools.PrescriptionResult) []core.ContextItem {
	if pr.Latest == nil {
		return nil
	}
	m := pr.Latest
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s, %s.", m.Name, m.Dosage, m.Frequency)
	if m.Instructions != "" {
		fmt.Fprintf(&b, " Instructions: %s.", m.Instructions)
	}
	if m.SideEffects != "" {
		fmt.Fprintf(&b, " Side effects: %s.", m.SideEffects)
	}
	if pr.MedicineInfo != "" {
		fmt.Fprintf(&b, " About this medicine: %s", pr.MedicineInfo)
	}
	return []core.ContextItem{{
		Kind:    core.KindMedication,
		Source:  tool,
		RefID:   m.ID,
		Title:   m.Name,
		Body:    b.String(),
		Recency: parseTime(m.PrescribedAt),
	}}
}

func (a *Assembler) fromRows(tool core.ToolName, rq tools.RecordQueryResult) []core.ContextItem {
	items := make([]core.ContextItem, 0, len(rq.Rows))
	for i, row := range rq.Rows {
		body, err := json.Marshal(row)
		if err != nil {
			continue
		}
		items = append(items, core.ContextItem{
			Kind:   core.KindRecordSummary,
			Source: tool,
			RefID:  fmt.Sprintf("row-%d", i),
			Title:  fmt.Sprintf("query result %d", i+1),
			Body:   string(body),
		})
	}
	return items
}

func (a *Assembler) fromSummary(tool core.ToolName, sr tools.SummaryResult) []core.ContextItem {
	if sr.Summary == "" {
		return nil
	}
	item := core.ContextItem{
		Kind:   core.KindRecordSummary,
		Source: tool,
		Body:   sr.Summary,
		Title:  "health summary",
	}
	if sr.Record != nil {
		item.RefID = sr.Record.ID
		item.Title = sr.Record.Title
		item.Recency = parseTime(sr.Record.UpdatedAt)
	}
	return []core.ContextItem{item}
}

// parseTime accepts the timestamp formats the graph stores. Unparseable
// values sort as oldest, which makes them first eviction candidates.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
