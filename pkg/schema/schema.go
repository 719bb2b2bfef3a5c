// SPDX-License-Identifier: Apache-2.0

// Package schema describes the healthcare knowledge graph: its node labels,
// relationship types, and key properties. The Cypher generator binds model
// output to this schema and validation rejects anything outside it.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Version identifies the schema revision embedded in generation prompts.
// Bump it whenever labels, relationships, or key properties change.
const Version = "2024-03"

// Node is one node label with its queryable properties.
type Node struct {
	Label      string
	Purpose    string
	Properties []string
}

// Relationship is one typed edge between two node labels.
type Relationship struct {
	From    string
	Type    string
	To      string
	Meaning string
}

// Graph is a versioned description of the healthcare graph.
type Graph struct {
	Version       string
	Nodes         []Node
	Relationships []Relationship
}

// Healthcare returns the healthcare graph schema.
func Healthcare() *Graph {
	return &Graph{
		Version: Version,
		Nodes: []Node{
			{
				Label:   "User",
				Purpose: "Patients and healthcare providers, discriminated by user_type",
				Properties: []string{
					"id", "name", "email", "phone", "gender", "date_of_birth",
					"user_type", "specialization", "license_number", "created_at",
				},
			},
			{
				Label:   "HealthRecord",
				Purpose: "A patient's medical record or health episode",
				Properties: []string{
					"id", "title", "ailment", "status", "layman_summary",
					"medical_summary", "overall_report", "created_by",
					"created_at", "updated_at", "last_activity",
				},
			},
			{
				Label:   "Medication",
				Purpose: "A prescribed medication",
				Properties: []string{
					"id", "medication_name", "dosage", "frequency", "instructions",
					"side_effects", "prescribed_by", "start_date", "end_date",
					"duration_days", "status", "created_at",
				},
			},
			{
				Label:   "File",
				Purpose: "An uploaded medical document, image, or report",
				Properties: []string{
					"id", "filename", "file_type", "category", "description",
					"parsed_content", "layman_summary", "doctor_summary",
					"uploaded_by", "created_at",
				},
			},
			{
				Label:   "AuditLog",
				Purpose: "System activity tracking for compliance",
				Properties: []string{
					"id", "user_id", "user_name", "resource_type", "resource_id",
					"action", "timestamp", "details",
				},
			},
		},
		Relationships: []Relationship{
			{From: "User", Type: "OWNS", To: "HealthRecord", Meaning: "patient owns their health records"},
			{From: "User", Type: "MANAGES", To: "HealthRecord", Meaning: "doctor manages patient records"},
			{From: "User", Type: "PRESCRIBED", To: "Medication", Meaning: "doctor prescribed a medication"},
			{From: "User", Type: "TREATS", To: "User", Meaning: "doctor treats patient"},
			{From: "User", Type: "UPLOADED", To: "File", Meaning: "user uploaded a file"},
			{From: "HealthRecord", Type: "HAS_FILE", To: "File", Meaning: "health record contains files"},
			{From: "HealthRecord", Type: "HAS_MEDICATION", To: "Medication", Meaning: "health record includes medications"},
		},
	}
}

// Labels returns the set of node labels, sorted.
func (g *Graph) Labels() []string {
	out := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n.Label)
	}
	sort.Strings(out)
	return out
}

// RelationshipTypes returns the set of relationship types, sorted and deduplicated.
func (g *Graph) RelationshipTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range g.Relationships {
		if !seen[r.Type] {
			seen[r.Type] = true
			out = append(out, r.Type)
		}
	}
	sort.Strings(out)
	return out
}

// HasLabel reports whether label is declared in the schema.
func (g *Graph) HasLabel(label string) bool {
	for _, n := range g.Nodes {
		if n.Label == label {
			return true
		}
	}
	return false
}

// HasRelationship reports whether relType is declared in the schema.
func (g *Graph) HasRelationship(relType string) bool {
	for _, r := range g.Relationships {
		if r.Type == relType {
			return true
		}
	}
	return false
}

// Description renders the schema as prompt text for query generation.
// The output is deterministic for a given schema version.
func (g *Graph) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Healthcare knowledge graph schema (version %s).\n\n", g.Version)

	b.WriteString("Node labels and properties:\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "- %s: %s. Properties: %s\n", n.Label, n.Purpose, strings.Join(n.Properties, ", "))
	}

	b.WriteString("\nRelationships:\n")
	for _, r := range g.Relationships {
		fmt.Fprintf(&b, "- (%s)-[:%s]->(%s): %s\n", r.From, r.Type, r.To, r.Meaning)
	}

	b.WriteString("\nConventions:\n")
	b.WriteString("- Users carry user_type \"PATIENT\" or \"DOCTOR\".\n")
	b.WriteString("- Always anchor queries on a User id and follow ownership relationships.\n")
	b.WriteString("- Use parameterized queries with $parameter syntax.\n")
	b.WriteString("- Timestamps are ISO 8601; dates are YYYY-MM-DD.\n")
	return b.String()
}
