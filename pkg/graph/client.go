// SPDX-License-Identifier: Apache-2.0

// Package graph provides a Neo4j client over the transactional HTTP endpoint.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/arogyalabs/medgraph/pkg/errors"
	"github.com/arogyalabs/medgraph/pkg/resilience"
)

const (
	// DefaultBaseURL is the default Neo4j HTTP endpoint.
	DefaultBaseURL = "http://localhost:7474"

	// DefaultRowLimit caps how many rows a single query may return.
	DefaultRowLimit = 50
)

// Row is one result row keyed by the RETURN column names.
type Row map[string]any

// Client executes Cypher statements against Neo4j's transactional
// commit endpoint. All statements run in auto-commit transactions.
type Client struct {
	baseURL  string
	database string
	username string
	password string
	rowLimit int
	client   *http.Client
	breaker  *resilience.CircuitBreaker
}

// Option configures the Client.
type Option func(*Client)

// WithBasicAuth sets the credentials sent with every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithRowLimit caps the number of rows returned per query.
func WithRowLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.rowLimit = n
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithCircuitBreaker guards the endpoint with a breaker. While the circuit
// is open, queries fail fast without touching the network.
func WithCircuitBreaker(breaker *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

// New creates a Client for the named database.
func New(baseURL, database string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if database == "" {
		database = "neo4j"
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		database: database,
		rowLimit: DefaultRowLimit,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type txRequest struct {
	Statements []txStatement `json:"statements"`
}

type txStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type txResponse struct {
	Results []txResult `json:"results"`
	Errors  []txError  `json:"errors"`
}

type txResult struct {
	Columns []string `json:"columns"`
	Data    []struct {
		Row []any `json:"row"`
	} `json:"data"`
}

type txError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mutationClause matches Cypher clauses that modify the graph, on word
// boundaries so identifiers like "offset" or "asset" pass. The pipeline
// only ever reads, so any statement containing one is rejected before it
// reaches the database.
var mutationClause = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|LOAD\s+CSV)\b`)

// ValidateReadOnly returns an error if the statement contains a mutating clause.
func ValidateReadOnly(statement string) error {
	if m := mutationClause.FindString(statement); m != "" {
		return errors.New(errors.CodeQueryInvalid,
			fmt.Sprintf("statement contains mutating clause %q", strings.ToUpper(m)), nil)
	}
	return nil
}

// Query runs a single read-only Cypher statement and returns its rows.
// Rows beyond the configured limit are discarded.
func (c *Client) Query(ctx context.Context, statement string, params map[string]any) ([]Row, error) {
	if err := ValidateReadOnly(statement); err != nil {
		return nil, err
	}
	if c.breaker == nil {
		return c.commit(ctx, statement, params)
	}
	var rows []Row
	err := c.breaker.Call(ctx, func() error {
		var callErr error
		rows, callErr = c.commit(ctx, statement, params)
		return callErr
	})
	return rows, err
}

func (c *Client) commit(ctx context.Context, statement string, params map[string]any) ([]Row, error) {
	body, err := json.Marshal(txRequest{
		Statements: []txStatement{{Statement: statement, Parameters: params}},
	})
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to marshal graph request", err)
	}

	url := fmt.Sprintf("%s/db/%s/tx/commit", c.baseURL, c.database)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to create graph request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.username != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.New(errors.CodeTimeout, "graph query canceled", ctx.Err())
		}
		return nil, errors.New(errors.CodeGraphError, "graph endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.New(errors.CodeUnauthorized,
			fmt.Sprintf("graph endpoint rejected credentials: status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.New(errors.CodeGraphError,
			fmt.Sprintf("graph endpoint returned status %d", resp.StatusCode), nil)
	}

	var txResp txResponse
	if err := json.NewDecoder(resp.Body).Decode(&txResp); err != nil {
		return nil, errors.New(errors.CodeGraphError, "failed to decode graph response", err)
	}

	if len(txResp.Errors) > 0 {
		return nil, mapServerError(txResp.Errors[0])
	}
	if len(txResp.Results) == 0 {
		return []Row{}, nil
	}

	result := txResp.Results[0]
	rows := make([]Row, 0, len(result.Data))
	for _, d := range result.Data {
		if len(rows) >= c.rowLimit {
			break
		}
		row := make(Row, len(result.Columns))
		for i, col := range result.Columns {
			if i < len(d.Row) {
				row[col] = d.Row[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// mapServerError translates a Neo4j status code into a typed error.
// Status codes look like "Neo.ClientError.Statement.SyntaxError".
func mapServerError(e txError) error {
	switch {
	case strings.Contains(e.Code, "Security"):
		return errors.New(errors.CodeUnauthorized, e.Message, nil)
	case strings.Contains(e.Code, "Statement") || strings.Contains(e.Code, "Schema"):
		return errors.New(errors.CodeQueryInvalid, e.Message, nil).
			WithContext("neo4j_code", e.Code)
	default:
		return errors.New(errors.CodeGraphError, e.Message, nil).
			WithContext("neo4j_code", e.Code)
	}
}
