package cypher

import (
	"context"
	"strings"
	"testing"

	"github.com/arogyalabs/medgraph/pkg/errors"
	"github.com/arogyalabs/medgraph/pkg/llm"
	"github.com/arogyalabs/medgraph/pkg/schema"
)

func newGen(p llm.Provider) *Generator {
	return NewGenerator(p, "test-model", schema.Healthcare())
}

func TestGenerateValidStatement(t *testing.T) {
	mock := &llm.MockProvider{
		Response: "MATCH (u:User {id: $userId})-[:OWNS]->(hr:HealthRecord) RETURN hr.title, hr.status",
	}
	g := newGen(mock)

	plan, err := g.Generate(context.Background(), "show my health records", Hints{
		SubjectID: "patient-1", ActorRole: "PATIENT",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if plan.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", plan.Attempts)
	}
	if !strings.Contains(plan.Statement, "LIMIT") {
		t.Errorf("expected a LIMIT to be appended, got %q", plan.Statement)
	}
	if plan.Params["userId"] != "patient-1" {
		t.Errorf("expected userId param, got %v", plan.Params)
	}
}

func TestGenerateStripsCodeFences(t *testing.T) {
	mock := &llm.MockProvider{
		Response: "```cypher\nMATCH (u:User {id: $userId}) RETURN u LIMIT 5\n```",
	}
	g := newGen(mock)

	plan, err := g.Generate(context.Background(), "who am i", Hints{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if strings.Contains(plan.Statement, "```") {
		t.Errorf("expected fences stripped, got %q", plan.Statement)
	}
}

func TestGenerateCorrectiveRetry(t *testing.T) {
	// First response lacks a RETURN clause; second is valid.
	scripted := &llm.ScriptedProvider{Responses: []string{
		"MATCH (u:User {id: $userId})",
		"MATCH (u:User {id: $userId}) RETURN u LIMIT 5",
	}}
	g := newGen(scripted)

	plan, err := g.Generate(context.Background(), "who am i", Hints{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if plan.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", plan.Attempts)
	}
}

func TestGenerateFailsAfterSecondInvalid(t *testing.T) {
	scripted := &llm.ScriptedProvider{Responses: []string{
		"CREATE (n:User) RETURN n",
		"MATCH (n) DELETE n RETURN n",
	}}
	g := newGen(scripted)

	_, err := g.Generate(context.Background(), "anything", Hints{SubjectID: "u1"})
	if errors.CodeOf(err) != errors.CodeQueryInvalid {
		t.Fatalf("expected QUERY_INVALID after two bad statements, got %v", err)
	}
}

func TestGenerateProviderError(t *testing.T) {
	g := newGen(&llm.FailingMockProvider{})
	_, err := g.Generate(context.Background(), "anything", Hints{SubjectID: "u1"})
	if errors.CodeOf(err) != errors.CodeLLMError {
		t.Fatalf("expected LLM_ERROR, got %v", err)
	}
}

func TestValidateRejectsUndeclaredLabels(t *testing.T) {
	g := newGen(&llm.MockProvider{})
	cases := []string{
		"MATCH (i:Invoice) RETURN i",
		"MATCH (u:User)-[:BILLED]->(x:HealthRecord) RETURN x",
	}
	for _, stmt := range cases {
		if err := g.Validate(stmt); errors.CodeOf(err) != errors.CodeQueryInvalid {
			t.Errorf("statement %q: expected QUERY_INVALID, got %v", stmt, err)
		}
	}
}

func TestValidateRejectsUnbalanced(t *testing.T) {
	g := newGen(&llm.MockProvider{})
	cases := []string{
		"MATCH (u:User RETURN u",
		"MATCH (u:User) RETURN u.name]",
		"MATCH (u:User {name: 'unterminated}) RETURN u",
	}
	for _, stmt := range cases {
		if err := g.Validate(stmt); err == nil {
			t.Errorf("statement %q: expected validation error", stmt)
		}
	}
}

func TestValidateAllowsBracketsInsideStrings(t *testing.T) {
	g := newGen(&llm.MockProvider{})
	stmt := "MATCH (u:User {name: 'a(b'}) RETURN u"
	if err := g.Validate(stmt); err != nil {
		t.Errorf("expected quoted bracket to be ignored, got %v", err)
	}
}

func TestSystemPromptCarriesSchema(t *testing.T) {
	mock := &llm.MockProvider{Response: "MATCH (u:User) RETURN u LIMIT 1"}
	g := newGen(mock)
	if _, err := g.Generate(context.Background(), "q", Hints{SubjectID: "u1"}); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(mock.Requests) != 1 {
		t.Fatalf("expected one provider call")
	}
	system := mock.Requests[0].Messages[0].Content
	if !strings.Contains(system, "HealthRecord") || !strings.Contains(system, "HAS_MEDICATION") {
		t.Errorf("expected schema description in system prompt")
	}
}
