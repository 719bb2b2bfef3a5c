package assembler

import (
	"reflect"
	"strings"
	"testing"

	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/graph"
	"github.com/arogyalabs/medgraph/pkg/records"
	"github.com/arogyalabs/medgraph/pkg/tools"
)

func searchResult(titles ...string) core.ToolResult {
	var recs []records.RecordSummary
	for _, title := range titles {
		recs = append(recs, records.RecordSummary{
			ID: "id-" + title, Title: title, Ailment: "condition",
			Status: "active", LaymanSummary: "simple words about " + title,
			MedicalSummary: "clinical notes on " + title,
			UpdatedAt:      "2024-01-15T10:00:00Z",
		})
	}
	return core.ToolResult{
		Tool:    core.ToolSearchHealthRecords,
		Success: true,
		Data:    tools.SearchResult{Records: recs},
	}
}

func TestAssembleSkipsFailedAndEmptyResults(t *testing.T) {
	a := New(0, core.RolePatient)
	bundle := a.Assemble(
		[]core.ToolName{core.ToolSearchHealthRecords, core.ToolLatestPrescription, core.ToolHealthSummary},
		map[core.ToolName]core.ToolResult{
			core.ToolSearchHealthRecords: searchResult("Asthma"),
			core.ToolLatestPrescription:  {Tool: core.ToolLatestPrescription, Error: "provider down"},
			core.ToolHealthSummary:       {Tool: core.ToolHealthSummary, Success: true, Empty: true},
		})

	if len(bundle.Items) != 1 {
		t.Fatalf("expected only the successful result to contribute, got %d items", len(bundle.Items))
	}
	if bundle.Items[0].Source != core.ToolSearchHealthRecords {
		t.Errorf("unexpected source %s", bundle.Items[0].Source)
	}
}

func TestAssembleRoleSelectsSummaryVariant(t *testing.T) {
	selected := []core.ToolName{core.ToolSearchHealthRecords}
	results := map[core.ToolName]core.ToolResult{
		core.ToolSearchHealthRecords: searchResult("Diabetes"),
	}

	patient := New(0, core.RolePatient).Assemble(selected, results)
	if !strings.Contains(patient.Items[0].Body, "simple words") {
		t.Errorf("patient bundle should carry the layman summary, got %q", patient.Items[0].Body)
	}

	doctor := New(0, core.RoleDoctor).Assemble(selected, results)
	if !strings.Contains(doctor.Items[0].Body, "clinical notes") {
		t.Errorf("doctor bundle should carry the clinical summary, got %q", doctor.Items[0].Body)
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	selected := []core.ToolName{core.ToolSearchHealthRecords, core.ToolLatestPrescription}
	results := map[core.ToolName]core.ToolResult{
		core.ToolSearchHealthRecords: searchResult("Asthma", "Diabetes"),
		core.ToolLatestPrescription: {
			Tool: core.ToolLatestPrescription, Success: true,
			Data: tools.PrescriptionResult{
				Latest:     &records.Medication{ID: "m1", Name: "Metformin", Dosage: "500mg", Frequency: "twice daily"},
				TotalCount: 1,
			},
		},
	}

	a := New(0, core.RolePatient)
	first := a.Assemble(selected, results)
	for i := 0; i < 20; i++ {
		if got := a.Assemble(selected, results); !reflect.DeepEqual(got.Items, first.Items) {
			t.Fatal("assembly is not deterministic")
		}
	}
}

func TestAssembleHistoryCarriesFiles(t *testing.T) {
	results := map[core.ToolName]core.ToolResult{
		core.ToolMedicalHistoryReport: {
			Tool: core.ToolMedicalHistoryReport, Success: true,
			Data: tools.HistoryReport{
				Records: []records.RecordSummary{{ID: "r1", Title: "Asthma", MedicalSummary: "notes"}},
				Files:   []records.FileSummary{{ID: "f1", Filename: "inhaler-rx.pdf", LaymanSummary: "your inhaler prescription"}},
			},
		},
	}
	bundle := New(0, core.RolePatient).Assemble([]core.ToolName{core.ToolMedicalHistoryReport}, results)

	kinds := map[core.ContextKind]int{}
	for _, it := range bundle.Items {
		kinds[it.Kind]++
	}
	if kinds[core.KindRecordSummary] != 1 || kinds[core.KindFileSummary] != 1 {
		t.Errorf("expected one record and one file item, got %v", kinds)
	}
}

func TestAssemblePrescriptionBody(t *testing.T) {
	results := map[core.ToolName]core.ToolResult{
		core.ToolLatestPrescription: {
			Tool: core.ToolLatestPrescription, Success: true,
			Data: tools.PrescriptionResult{
				Latest: &records.Medication{
					ID: "m1", Name: "Metformin", Dosage: "500mg",
					Frequency: "twice daily", Instructions: "take with food",
				},
				MedicineInfo: "Metformin lowers blood sugar.",
			},
		},
	}
	bundle := New(0, core.RolePatient).Assemble([]core.ToolName{core.ToolLatestPrescription}, results)

	if len(bundle.Items) != 1 || bundle.Items[0].Kind != core.KindMedication {
		t.Fatalf("expected one medication item, got %v", bundle.Items)
	}
	body := bundle.Items[0].Body
	for _, want := range []string{"500mg", "take with food", "lowers blood sugar"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in medication body %q", want, body)
		}
	}
}

func TestAssembleQueryRowsBecomeItems(t *testing.T) {
	results := map[core.ToolName]core.ToolResult{
		core.ToolQueryMedicalRecord: {
			Tool: core.ToolQueryMedicalRecord, Success: true,
			Data: tools.RecordQueryResult{
				Statement: "MATCH (hr:HealthRecord) RETURN hr.title",
				Rows:      []graph.Row{{"hr.title": "Asthma"}, {"hr.title": "Diabetes"}},
			},
		},
	}
	bundle := New(0, core.RolePatient).Assemble([]core.ToolName{core.ToolQueryMedicalRecord}, results)
	if len(bundle.Items) != 2 {
		t.Fatalf("expected 2 items from 2 rows, got %d", len(bundle.Items))
	}
	if !strings.Contains(bundle.Items[0].Body, "Asthma") {
		t.Errorf("expected row payload in body, got %q", bundle.Items[0].Body)
	}
}

func TestAssembleRespectsBudget(t *testing.T) {
	bundle := New(200, core.RolePatient).Assemble(
		[]core.ToolName{core.ToolSearchHealthRecords},
		map[core.ToolName]core.ToolResult{
			core.ToolSearchHealthRecords: searchResult("A", "B", "C", "D", "E", "F", "G", "H"),
		})
	if bundle.Size() > 200 {
		t.Errorf("bundle size %d exceeds budget", bundle.Size())
	}
}
