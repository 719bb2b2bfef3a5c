// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/cypher"
	"github.com/arogyalabs/medgraph/pkg/errors"
	"github.com/arogyalabs/medgraph/pkg/graph"
	"github.com/arogyalabs/medgraph/pkg/llm"
	"github.com/arogyalabs/medgraph/pkg/memory"
	"github.com/arogyalabs/medgraph/pkg/records"
)

// SemanticIndex finds records by meaning rather than substring. The record
// index in pkg/memory satisfies it.
type SemanticIndex interface {
	Search(ctx context.Context, subjectID, question string, limit int) ([]memory.RecordHit, error)
}

// Deps are the injected dependencies shared by the built-in tools.
type Deps struct {
	Store     records.Store
	Graph     records.Querier
	Generator *cypher.Generator

	// Index optionally augments search with semantic matches. Index
	// failures are tolerated; substring search stands on its own.
	Index SemanticIndex

	// Summarizer produces health summaries. Nil degrades the summary tool
	// to a deterministic digest of stored summaries.
	Summarizer   llm.Provider
	SummaryModel string

	// Enricher optionally adds general medicine information to the latest
	// prescription. Enrichment failures are silent; the prescription data
	// stands on its own.
	Enricher      llm.Provider
	EnricherModel string

	Logger *slog.Logger
}

func builtinTools(deps Deps) []Tool {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return []Tool{
		&medicalHistoryTool{store: deps.Store},
		&latestPrescriptionTool{store: deps.Store, enricher: deps.Enricher, model: deps.EnricherModel, logger: logger},
		&searchTool{store: deps.Store, index: deps.Index, logger: logger},
		&queryRecordTool{graph: deps.Graph, generator: deps.Generator},
		&healthSummaryTool{store: deps.Store, summarizer: deps.Summarizer, model: deps.SummaryModel},
	}
}

// HistoryReport is the medical history tool's payload.
type HistoryReport struct {
	Records []records.RecordSummary
	Files   []records.FileSummary
}

// PrescriptionResult is the latest prescription tool's payload.
type PrescriptionResult struct {
	Latest       *records.Medication
	MedicineInfo string
	TotalCount   int
}

// SearchResult is the search tool's payload.
type SearchResult struct {
	Records []records.RecordSummary
	Term    string
}

// RecordQueryResult is the free-form query tool's payload.
type RecordQueryResult struct {
	Statement string
	Rows      []graph.Row
}

// SummaryResult is the health summary tool's payload.
type SummaryResult struct {
	Record     *records.RecordSummary
	FilesCount int
	Summary    string
}

// medicalHistoryTool assembles the subject's complete record and file history.
type medicalHistoryTool struct {
	store records.Store
}

func (t *medicalHistoryTool) Name() core.ToolName { return core.ToolMedicalHistoryReport }

func (t *medicalHistoryTool) Validate(p Params) error {
	if p.SubjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	return nil
}

func (t *medicalHistoryTool) Execute(ctx context.Context, p Params) (any, bool, []string, error) {
	recs, err := t.store.ListRecords(ctx, p.SubjectID)
	if err != nil {
		return nil, false, nil, err
	}
	files, err := t.store.ListFiles(ctx, p.SubjectID, "")
	if err != nil {
		return nil, false, nil, err
	}
	report := HistoryReport{Records: recs, Files: files}
	return report, len(recs) == 0 && len(files) == 0, nil, nil
}

// latestPrescriptionTool returns the most recently prescribed medication.
type latestPrescriptionTool struct {
	store    records.Store
	enricher llm.Provider
	model    string
	logger   *slog.Logger
}

func (t *latestPrescriptionTool) Name() core.ToolName { return core.ToolLatestPrescription }

func (t *latestPrescriptionTool) Validate(p Params) error {
	if p.SubjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	return nil
}

func (t *latestPrescriptionTool) Execute(ctx context.Context, p Params) (any, bool, []string, error) {
	meds, err := t.store.ListMedications(ctx, p.SubjectID)
	if err != nil {
		return nil, false, nil, err
	}
	if len(meds) == 0 {
		return PrescriptionResult{}, true, nil, nil
	}

	// Medications arrive most recent first.
	latest := meds[0]
	result := PrescriptionResult{Latest: &latest, TotalCount: len(meds)}
	result.MedicineInfo = t.enrich(ctx, latest.Name)
	return result, false, nil, nil
}

func (t *latestPrescriptionTool) enrich(ctx context.Context, medicineName string) string {
	if t.enricher == nil || medicineName == "" {
		return ""
	}
	resp, err := t.enricher.Chat(ctx, llm.ChatRequest{
		Model: t.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You provide short, factual summaries of medications for patients. Two sentences: what the medicine is for and one common precaution. No dosage advice."},
			{Role: llm.RoleUser, Content: medicineName},
		},
	})
	if err != nil {
		t.logger.WarnContext(ctx, "medicine enrichment failed",
			slog.String("medication", medicineName),
			slog.String("error", err.Error()))
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

// searchTool matches the query text against the subject's records,
// merging in semantic matches when an index is configured.
type searchTool struct {
	store  records.Store
	index  SemanticIndex
	logger *slog.Logger
}

func (t *searchTool) Name() core.ToolName { return core.ToolSearchHealthRecords }

func (t *searchTool) Validate(p Params) error {
	if p.SubjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("search term is required")
	}
	return nil
}

func (t *searchTool) Execute(ctx context.Context, p Params) (any, bool, []string, error) {
	recs, err := t.store.Search(ctx, p.SubjectID, p.Query, p.Actor.Role)
	if err != nil {
		return nil, false, nil, err
	}
	recs = t.mergeSemantic(ctx, p, recs)
	return SearchResult{Records: recs, Term: p.Query}, len(recs) == 0, nil, nil
}

// mergeSemantic appends index hits the substring search missed.
func (t *searchTool) mergeSemantic(ctx context.Context, p Params, recs []records.RecordSummary) []records.RecordSummary {
	if t.index == nil {
		return recs
	}
	hits, err := t.index.Search(ctx, p.SubjectID, p.Query, 5)
	if err != nil {
		t.logger.WarnContext(ctx, "semantic search failed",
			slog.String("error", err.Error()))
		return recs
	}
	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		seen[r.ID] = true
	}
	for _, hit := range hits {
		if hit.RecordID == "" || seen[hit.RecordID] {
			continue
		}
		seen[hit.RecordID] = true
		recs = append(recs, records.RecordSummary{
			ID:            hit.RecordID,
			Ailment:       hit.Ailment,
			LaymanSummary: hit.Summary,
		})
	}
	return recs
}

// queryRecordTool answers free-form questions through generated Cypher.
// When generation fails validation twice, it falls back to a fixed
// statement so the question still gets an answer from stored data.
type queryRecordTool struct {
	graph     records.Querier
	generator *cypher.Generator
}

const (
	fallbackSubjectStmt = `MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord)
RETURN hr.id AS id, hr.title AS title, hr.ailment AS ailment, hr.status AS status,
       hr.layman_summary AS layman_summary, hr.updated_at AS updated_at
ORDER BY hr.updated_at DESC`

	fallbackRecordStmt = `MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord {id: $recordId})
RETURN hr.id AS id, hr.title AS title, hr.ailment AS ailment, hr.status AS status,
       hr.layman_summary AS layman_summary, hr.updated_at AS updated_at`
)

func (t *queryRecordTool) Name() core.ToolName { return core.ToolQueryMedicalRecord }

func (t *queryRecordTool) Validate(p Params) error {
	if p.SubjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("question is required")
	}
	return nil
}

func (t *queryRecordTool) Execute(ctx context.Context, p Params) (any, bool, []string, error) {
	statement, params := t.fallbackQuery(p)
	plan, err := t.generator.Generate(ctx, p.Query, cypher.Hints{
		ActorID:   p.Actor.ID,
		ActorRole: string(p.Actor.Role),
		SubjectID: p.SubjectID,
		RecordID:  p.RecordID,
	})
	if err == nil {
		statement, params = plan.Statement, plan.Params
	}

	rows, err := t.graph.Query(ctx, statement, params)
	if err != nil {
		return nil, false, []string{statement}, err
	}
	result := RecordQueryResult{Statement: statement, Rows: rows}
	return result, len(rows) == 0, []string{statement}, nil
}

func (t *queryRecordTool) fallbackQuery(p Params) (string, map[string]any) {
	params := map[string]any{"userId": p.SubjectID}
	if p.RecordID != "" {
		params["recordId"] = p.RecordID
		return fallbackRecordStmt, params
	}
	return fallbackSubjectStmt, params
}

// healthSummaryTool produces a role-aware summary of one health record.
// Patients get plain-language output; doctors get clinical output.
type healthSummaryTool struct {
	store      records.Store
	summarizer llm.Provider
	model      string
}

func (t *healthSummaryTool) Name() core.ToolName { return core.ToolHealthSummary }

func (t *healthSummaryTool) Validate(p Params) error {
	if p.SubjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	return nil
}

func (t *healthSummaryTool) Execute(ctx context.Context, p Params) (any, bool, []string, error) {
	rec, err := t.resolveRecord(ctx, p)
	if err != nil {
		return nil, false, nil, err
	}
	if rec == nil {
		return SummaryResult{}, true, nil, nil
	}

	files, err := t.store.ListFiles(ctx, p.SubjectID, rec.ID)
	if err != nil {
		return nil, false, nil, err
	}

	summary, err := t.summarize(ctx, p.Actor.Role, rec, files)
	if err != nil {
		return nil, false, nil, err
	}

	return SummaryResult{Record: rec, FilesCount: len(files), Summary: summary}, false, nil, nil
}

// resolveRecord picks the requested record, or the most recently updated one
// when the request names none.
func (t *healthSummaryTool) resolveRecord(ctx context.Context, p Params) (*records.RecordSummary, error) {
	if p.RecordID != "" {
		rec, err := t.store.GetRecord(ctx, p.SubjectID, p.RecordID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, errors.New(errors.CodeNotFound,
				fmt.Sprintf("health record %q not found", p.RecordID), nil)
		}
		return rec, nil
	}

	recs, err := t.store.ListRecords(ctx, p.SubjectID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (t *healthSummaryTool) summarize(ctx context.Context, role core.Role, rec *records.RecordSummary, files []records.FileSummary) (string, error) {
	if t.summarizer == nil {
		return digest(role, rec, files), nil
	}

	system := "You are a clinical summarizer. Produce a precise summary for a healthcare professional: condition, status, findings from attached documents, and current treatment."
	if role == core.RolePatient {
		system = "You are a compassionate medical assistant summarizing for a patient. Use simple words, short sentences, and explain what the patient should know and do next."
	}

	payload, err := json.Marshal(map[string]any{
		"record": rec,
		"files":  files,
	})
	if err != nil {
		return "", errors.New(errors.CodeInternal, "failed to encode summary input", err)
	}

	resp, err := t.summarizer.Chat(ctx, llm.ChatRequest{
		Model: t.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return "", errors.New(errors.CodeLLMError, "summary generation failed", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// digest builds a summary from stored record fields when no model is wired.
func digest(role core.Role, rec *records.RecordSummary, files []records.FileSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s).", rec.Title, rec.Ailment, rec.Status)
	stored := rec.MedicalSummary
	if role == core.RolePatient && rec.LaymanSummary != "" {
		stored = rec.LaymanSummary
	}
	if stored != "" {
		b.WriteString(" ")
		b.WriteString(stored)
	}
	if len(files) > 0 {
		fmt.Fprintf(&b, " %d document(s) on file.", len(files))
	}
	return b.String()
}
