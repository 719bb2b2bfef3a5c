package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arogyalabs/medgraph/pkg/errors"
	"github.com/arogyalabs/medgraph/pkg/resilience"
)

func neo4jOK(columns []string, rows [][]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			data = append(data, map[string]any{"row": row})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"columns": columns, "data": data}},
			"errors":  []any{},
		})
	}
}

func TestQueryMapsRowsByColumn(t *testing.T) {
	srv := httptest.NewServer(neo4jOK(
		[]string{"title", "status"},
		[][]any{{"Blood Test", "active"}, {"X-Ray", "archived"}},
	))
	defer srv.Close()

	c := New(srv.URL, "neo4j")
	rows, err := c.Query(context.Background(), "MATCH (hr:HealthRecord) RETURN hr.title AS title, hr.status AS status", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["title"] != "Blood Test" || rows[1]["status"] != "archived" {
		t.Errorf("unexpected row mapping: %v", rows)
	}
}

func TestQueryEnforcesRowLimit(t *testing.T) {
	var manyRows [][]any
	for i := 0; i < 100; i++ {
		manyRows = append(manyRows, []any{i})
	}
	srv := httptest.NewServer(neo4jOK([]string{"n"}, manyRows))
	defer srv.Close()

	c := New(srv.URL, "neo4j", WithRowLimit(5))
	rows, err := c.Query(context.Background(), "MATCH (n) RETURN n", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 5 {
		t.Errorf("expected row limit 5, got %d rows", len(rows))
	}
}

func TestQueryRejectsMutations(t *testing.T) {
	c := New("http://localhost:1", "neo4j")
	for _, stmt := range []string{
		"CREATE (n:User {id: '1'})",
		"MATCH (n) DETACH DELETE n",
		"MATCH (n) SET n.x = 1",
		"merge (n:User) return n",
		"LOAD\tCSV FROM 'file:///x.csv' AS row RETURN row",
	} {
		_, err := c.Query(context.Background(), stmt, nil)
		if errors.CodeOf(err) != errors.CodeQueryInvalid {
			t.Errorf("statement %q: expected QUERY_INVALID, got %v", stmt, err)
		}
	}
}

func TestValidateReadOnlyAllowsKeywordLookalikes(t *testing.T) {
	for _, stmt := range []string{
		"MATCH (n) RETURN n.id AS offset",
		"MATCH (hr:HealthRecord) WHERE hr.category = 'asset' RETURN hr",
		"MATCH (n) RETURN n.createdAt, n.settings",
		"MATCH (p:Patient {id: $mergeKey}) RETURN p",
	} {
		if err := ValidateReadOnly(stmt); err != nil {
			t.Errorf("statement %q: expected read-only pass, got %v", stmt, err)
		}
	}
}

func TestQueryMapsServerErrors(t *testing.T) {
	cases := []struct {
		neoCode string
		want    errors.ErrorCode
	}{
		{"Neo.ClientError.Statement.SyntaxError", errors.CodeQueryInvalid},
		{"Neo.ClientError.Security.Unauthorized", errors.CodeUnauthorized},
		{"Neo.TransientError.General.DatabaseUnavailable", errors.CodeGraphError},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"results": []any{},
				"errors":  []map[string]any{{"code": tc.neoCode, "message": "boom"}},
			})
		}))
		c := New(srv.URL, "neo4j")
		_, err := c.Query(context.Background(), "MATCH (n) RETURN n", nil)
		if errors.CodeOf(err) != tc.want {
			t.Errorf("%s: expected %s, got %v", tc.neoCode, tc.want, err)
		}
		srv.Close()
	}
}

func TestQuerySendsBasicAuthAndDatabase(t *testing.T) {
	var gotPath, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		neo4jOK([]string{"n"}, nil)(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, "medical", WithBasicAuth("neo4j", "secret"))
	if _, err := c.Query(context.Background(), "MATCH (n) RETURN n", nil); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if gotPath != "/db/medical/tx/commit" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotUser != "neo4j" {
		t.Errorf("expected basic auth user neo4j, got %q", gotUser)
	}
}

func TestQueryUnreachableEndpoint(t *testing.T) {
	c := New("http://127.0.0.1:1", "neo4j")
	_, err := c.Query(context.Background(), "MATCH (n) RETURN n", nil)
	if errors.CodeOf(err) != errors.CodeGraphError {
		t.Errorf("expected GRAPH_ERROR for unreachable endpoint, got %v", err)
	}
}

func TestQueryCircuitBreakerFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2})
	c := New(srv.URL, "neo4j", WithCircuitBreaker(breaker))

	for i := 0; i < 2; i++ {
		if _, err := c.Query(context.Background(), "MATCH (n) RETURN n", nil); err == nil {
			t.Fatal("expected failure from the endpoint")
		}
	}
	if _, err := c.Query(context.Background(), "MATCH (n) RETURN n", nil); err == nil {
		t.Fatal("expected the open circuit to reject the query")
	}
	if calls != 2 {
		t.Errorf("open circuit must not touch the endpoint, got %d calls", calls)
	}
}
