// SPDX-License-Identifier: Apache-2.0

package records

import (
	"context"

	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/graph"
)

const (
	listRecordsStmt = `MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord)
RETURN hr.id AS id, hr.title AS title, hr.ailment AS ailment, hr.status AS status,
       hr.layman_summary AS layman_summary, hr.medical_summary AS medical_summary,
       hr.overall_report AS overall_report, hr.updated_at AS updated_at
ORDER BY hr.updated_at DESC`

	getRecordStmt = `MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord {id: $recordId})
RETURN hr.id AS id, hr.title AS title, hr.ailment AS ailment, hr.status AS status,
       hr.layman_summary AS layman_summary, hr.medical_summary AS medical_summary,
       hr.overall_report AS overall_report, hr.updated_at AS updated_at`

	listFilesStmt = `MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord)-[:HAS_FILE]->(f:File)
RETURN f.id AS id, f.filename AS filename, f.category AS category,
       f.layman_summary AS layman_summary, f.doctor_summary AS doctor_summary,
       f.created_at AS created_at
ORDER BY f.created_at DESC`

	listRecordFilesStmt = `MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord {id: $recordId})-[:HAS_FILE]->(f:File)
RETURN f.id AS id, f.filename AS filename, f.category AS category,
       f.layman_summary AS layman_summary, f.doctor_summary AS doctor_summary,
       f.created_at AS created_at
ORDER BY f.created_at DESC`

	listMedicationsStmt = `MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord)-[:HAS_MEDICATION]->(m:Medication)
RETURN m.id AS id, m.medication_name AS medication_name, m.dosage AS dosage,
       m.frequency AS frequency, m.instructions AS instructions,
       m.side_effects AS side_effects, m.status AS status,
       m.start_date AS start_date, m.end_date AS end_date, m.created_at AS created_at
ORDER BY m.created_at DESC`

	searchOwnedStmt = `MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord)
WHERE toLower(hr.title) CONTAINS toLower($term)
   OR toLower(hr.ailment) CONTAINS toLower($term)
   OR toLower(coalesce(hr.layman_summary, '')) CONTAINS toLower($term)
   OR toLower(coalesce(hr.medical_summary, '')) CONTAINS toLower($term)
RETURN hr.id AS id, hr.title AS title, hr.ailment AS ailment, hr.status AS status,
       hr.layman_summary AS layman_summary, hr.medical_summary AS medical_summary,
       hr.overall_report AS overall_report, hr.updated_at AS updated_at
ORDER BY hr.updated_at DESC`

	searchManagedStmt = `MATCH (u:User {id: $userId})-[:OWNS|MANAGES]->(hr:HealthRecord)
WHERE toLower(hr.title) CONTAINS toLower($term)
   OR toLower(hr.ailment) CONTAINS toLower($term)
   OR toLower(coalesce(hr.layman_summary, '')) CONTAINS toLower($term)
   OR toLower(coalesce(hr.medical_summary, '')) CONTAINS toLower($term)
RETURN hr.id AS id, hr.title AS title, hr.ailment AS ailment, hr.status AS status,
       hr.layman_summary AS layman_summary, hr.medical_summary AS medical_summary,
       hr.overall_report AS overall_report, hr.updated_at AS updated_at
ORDER BY hr.updated_at DESC`
)

// GraphStore is the graph-backed Store.
type GraphStore struct {
	q Querier
}

// NewGraphStore creates a Store over the given graph querier.
func NewGraphStore(q Querier) *GraphStore {
	return &GraphStore{q: q}
}

func (s *GraphStore) ListRecords(ctx context.Context, subjectID string) ([]RecordSummary, error) {
	rows, err := s.q.Query(ctx, listRecordsStmt, map[string]any{"userId": subjectID})
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows), nil
}

func (s *GraphStore) GetRecord(ctx context.Context, subjectID, recordID string) (*RecordSummary, error) {
	rows, err := s.q.Query(ctx, getRecordStmt, map[string]any{
		"userId":   subjectID,
		"recordId": recordID,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := recordFromRow(rows[0])
	return &rec, nil
}

func (s *GraphStore) ListFiles(ctx context.Context, subjectID, recordID string) ([]FileSummary, error) {
	stmt := listFilesStmt
	params := map[string]any{"userId": subjectID}
	if recordID != "" {
		stmt = listRecordFilesStmt
		params["recordId"] = recordID
	}
	rows, err := s.q.Query(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	out := make([]FileSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, FileSummary{
			ID:            str(row, "id"),
			Filename:      str(row, "filename"),
			Category:      str(row, "category"),
			LaymanSummary: str(row, "layman_summary"),
			DoctorSummary: str(row, "doctor_summary"),
			CreatedAt:     str(row, "created_at"),
		})
	}
	return out, nil
}

func (s *GraphStore) ListMedications(ctx context.Context, subjectID string) ([]Medication, error) {
	rows, err := s.q.Query(ctx, listMedicationsStmt, map[string]any{"userId": subjectID})
	if err != nil {
		return nil, err
	}
	out := make([]Medication, 0, len(rows))
	for _, row := range rows {
		out = append(out, Medication{
			ID:           str(row, "id"),
			Name:         str(row, "medication_name"),
			Dosage:       str(row, "dosage"),
			Frequency:    str(row, "frequency"),
			Instructions: str(row, "instructions"),
			SideEffects:  str(row, "side_effects"),
			Status:       str(row, "status"),
			StartDate:    str(row, "start_date"),
			EndDate:      str(row, "end_date"),
			PrescribedAt: str(row, "created_at"),
		})
	}
	return out, nil
}

func (s *GraphStore) Search(ctx context.Context, subjectID, term string, role core.Role) ([]RecordSummary, error) {
	stmt := searchOwnedStmt
	if role == core.RoleDoctor {
		stmt = searchManagedStmt
	}
	rows, err := s.q.Query(ctx, stmt, map[string]any{
		"userId": subjectID,
		"term":   term,
	})
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows), nil
}

func recordsFromRows(rows []graph.Row) []RecordSummary {
	out := make([]RecordSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordFromRow(row))
	}
	return out
}

func recordFromRow(row graph.Row) RecordSummary {
	return RecordSummary{
		ID:             str(row, "id"),
		Title:          str(row, "title"),
		Ailment:        str(row, "ailment"),
		Status:         str(row, "status"),
		LaymanSummary:  str(row, "layman_summary"),
		MedicalSummary: str(row, "medical_summary"),
		OverallReport:  str(row, "overall_report"),
		UpdatedAt:      str(row, "updated_at"),
	}
}

func str(row graph.Row, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

var _ Store = (*GraphStore)(nil)
