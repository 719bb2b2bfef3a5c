// SPDX-License-Identifier: Apache-2.0

// Package cypher turns natural-language questions into validated read-only
// Cypher statements using a model provider bound to the graph schema.
package cypher

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/arogyalabs/medgraph/pkg/errors"
	"github.com/arogyalabs/medgraph/pkg/graph"
	"github.com/arogyalabs/medgraph/pkg/llm"
	"github.com/arogyalabs/medgraph/pkg/schema"
)

// Hints scope a generated query to the requesting actor and subject.
type Hints struct {
	ActorID   string
	ActorRole string
	SubjectID string
	RecordID  string
}

// Plan is a validated generation result.
type Plan struct {
	// Question is the natural-language input.
	Question string
	// Statement is the validated Cypher. Parameters referenced in it are
	// provided in Params.
	Statement string
	Params    map[string]any
	// Attempts counts generation rounds, including the corrective retry.
	Attempts int
}

// Generator produces schema-bound Cypher statements.
type Generator struct {
	provider    llm.Provider
	model       string
	graph       *schema.Graph
	temperature float64
	rowLimit    int
}

// Option configures the Generator.
type Option func(*Generator)

// WithTemperature sets the sampling temperature for generation.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithRowLimit sets the LIMIT appended to statements lacking one.
func WithRowLimit(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.rowLimit = n
		}
	}
}

// NewGenerator creates a Generator bound to the given schema.
func NewGenerator(provider llm.Provider, model string, sg *schema.Graph, opts ...Option) *Generator {
	g := &Generator{
		provider:    provider,
		model:       model,
		graph:       sg,
		temperature: 0.0,
		rowLimit:    graph.DefaultRowLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a validated statement for the question. A statement that
// fails validation gets one corrective retry carrying the validation error;
// a second failure returns a QUERY_INVALID error and no plan.
func (g *Generator) Generate(ctx context.Context, question string, hints Hints) (*Plan, error) {
	system := g.systemPrompt(hints)

	statement, err := g.ask(ctx, system, question)
	attempts := 1
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "query generation failed", err)
	}

	verr := g.Validate(statement)
	if verr != nil {
		corrective := fmt.Sprintf(
			"The previous statement was rejected: %v\n\nRejected statement:\n%s\n\nProduce a corrected Cypher statement for the original question: %s",
			verr, statement, question)
		statement, err = g.ask(ctx, system, corrective)
		attempts = 2
		if err != nil {
			return nil, errors.New(errors.CodeLLMError, "query regeneration failed", err)
		}
		if verr = g.Validate(statement); verr != nil {
			return nil, errors.New(errors.CodeQueryInvalid, "generated statement failed validation twice", verr).
				WithContext("attempts", attempts)
		}
	}

	statement = g.ensureLimit(statement)

	params := map[string]any{"userId": hints.SubjectID}
	if hints.RecordID != "" {
		params["recordId"] = hints.RecordID
	}
	return &Plan{
		Question:  question,
		Statement: statement,
		Params:    params,
		Attempts:  attempts,
	}, nil
}

func (g *Generator) ask(ctx context.Context, system, user string) (string, error) {
	resp, err := g.provider.Chat(ctx, llm.ChatRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	return ExtractStatement(resp.Content), nil
}

func (g *Generator) systemPrompt(hints Hints) string {
	var b strings.Builder
	b.WriteString("You generate Cypher queries for a Neo4j healthcare knowledge graph.\n\n")
	b.WriteString(g.graph.Description())
	b.WriteString("\nRules:\n")
	b.WriteString("- Generate exactly one read-only Cypher statement with a RETURN clause.\n")
	b.WriteString("- Never use CREATE, MERGE, DELETE, SET, REMOVE, or DROP.\n")
	b.WriteString("- Use only labels and relationship types declared above.\n")
	fmt.Fprintf(&b, "- Anchor the query on the user parameter $userId (user id %q, role %s).\n", hints.SubjectID, hints.ActorRole)
	if hints.RecordID != "" {
		b.WriteString("- Restrict results to the health record $recordId.\n")
	}
	b.WriteString("- Return only the Cypher statement, no explanation and no code fences.\n")
	return b.String()
}

func (g *Generator) ensureLimit(statement string) string {
	if strings.Contains(strings.ToUpper(statement), "LIMIT") {
		return statement
	}
	return fmt.Sprintf("%s LIMIT %d", strings.TrimRight(statement, " ;\n"), g.rowLimit)
}

var (
	fenceRe     = regexp.MustCompile("(?s)```(?:cypher)?\\s*(.*?)```")
	nodeLabelRe = regexp.MustCompile(`\(\s*\w*\s*:\s*(\w+)`)
	relTypeRe   = regexp.MustCompile(`\[\s*\w*\s*:\s*(\w+)`)
)

// ExtractStatement pulls the Cypher statement out of a model response,
// stripping code fences and surrounding prose.
func ExtractStatement(content string) string {
	if m := fenceRe.FindStringSubmatch(content); m != nil {
		content = m[1]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(content), ";"))
}

// Validate checks a statement against structural rules and the schema.
func (g *Generator) Validate(statement string) error {
	if strings.TrimSpace(statement) == "" {
		return errors.New(errors.CodeQueryInvalid, "empty statement", nil)
	}
	if err := graph.ValidateReadOnly(statement); err != nil {
		return err
	}
	if !strings.Contains(strings.ToUpper(statement), "RETURN") {
		return errors.New(errors.CodeQueryInvalid, "statement has no RETURN clause", nil)
	}
	if err := checkBalanced(statement); err != nil {
		return err
	}
	for _, m := range nodeLabelRe.FindAllStringSubmatch(statement, -1) {
		if !g.graph.HasLabel(m[1]) {
			return errors.New(errors.CodeQueryInvalid,
				fmt.Sprintf("undeclared node label %q", m[1]), nil)
		}
	}
	for _, m := range relTypeRe.FindAllStringSubmatch(statement, -1) {
		if !g.graph.HasRelationship(m[1]) {
			return errors.New(errors.CodeQueryInvalid,
				fmt.Sprintf("undeclared relationship type %q", m[1]), nil)
		}
	}
	return nil
}

// checkBalanced verifies brackets and quotes pair up. Quoted regions are
// opaque so bracket characters inside string literals do not count.
func checkBalanced(statement string) error {
	var stack []rune
	var quote rune
	for _, r := range statement {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 {
				return errors.New(errors.CodeQueryInvalid, "unbalanced delimiters", nil)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (r == ')' && open != '(') || (r == ']' && open != '[') || (r == '}' && open != '{') {
				return errors.New(errors.CodeQueryInvalid, "mismatched delimiters", nil)
			}
		}
	}
	if quote != 0 {
		return errors.New(errors.CodeQueryInvalid, "unterminated string literal", nil)
	}
	if len(stack) != 0 {
		return errors.New(errors.CodeQueryInvalid, "unbalanced delimiters", nil)
	}
	return nil
}
