// SPDX-License-Identifier: Apache-2.0

// Package records reads health records, files, and medications from the
// knowledge graph through fixed, parameterized Cypher statements.
package records

import (
	"context"

	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/graph"
)

// RecordSummary is the queryable surface of a health record.
type RecordSummary struct {
	ID             string
	Title          string
	Ailment        string
	Status         string
	LaymanSummary  string
	MedicalSummary string
	OverallReport  string
	UpdatedAt      string
}

// FileSummary is the queryable surface of an uploaded file.
type FileSummary struct {
	ID            string
	Filename      string
	Category      string
	LaymanSummary string
	DoctorSummary string
	CreatedAt     string
}

// Medication is one prescribed medication.
type Medication struct {
	ID           string
	Name         string
	Dosage       string
	Frequency    string
	Instructions string
	SideEffects  string
	Status       string
	StartDate    string
	EndDate      string
	PrescribedAt string
}

// Store reads a subject's health data. Implementations return empty slices
// for subjects with no matching data; zero results are not an error.
type Store interface {
	// ListRecords returns all health records the subject owns, most
	// recently updated first.
	ListRecords(ctx context.Context, subjectID string) ([]RecordSummary, error)

	// GetRecord returns one record by id, scoped to the subject's
	// ownership. Missing records return (nil, nil).
	GetRecord(ctx context.Context, subjectID, recordID string) (*RecordSummary, error)

	// ListFiles returns file summaries attached to the subject's records.
	// A non-empty recordID narrows the listing to that record.
	ListFiles(ctx context.Context, subjectID, recordID string) ([]FileSummary, error)

	// ListMedications returns the subject's medications, most recently
	// prescribed first.
	ListMedications(ctx context.Context, subjectID string) ([]Medication, error)

	// Search matches term against record titles, ailments, and summaries.
	// Patients search only records they own; doctors search records they
	// manage as well.
	Search(ctx context.Context, subjectID, term string, role core.Role) ([]RecordSummary, error)
}

// Querier is the graph dependency of the store. *graph.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, statement string, params map[string]any) ([]graph.Row, error)
}
