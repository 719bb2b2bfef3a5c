package core

import "time"

// Intent is a classification label describing what category of operation a
// user's query requests.
type Intent string

const (
	IntentMedicalHistory     Intent = "get_medical_history"
	IntentLatestPrescription Intent = "get_latest_prescription"
	IntentSearchRecords      Intent = "search_records"
	IntentGenerateSummary    Intent = "generate_summary"
	IntentQueryRecord        Intent = "query_record"
	IntentGeneralQuery       Intent = "general_query"
)

// ToolName identifies one of the closed set of retrieval tools.
type ToolName string

const (
	ToolMedicalHistoryReport ToolName = "get_medical_history_report"
	ToolLatestPrescription   ToolName = "get_latest_prescription"
	ToolSearchHealthRecords  ToolName = "search_health_records"
	ToolQueryMedicalRecord   ToolName = "query_medical_record"
	ToolHealthSummary        ToolName = "generate_health_summary"
)

// AllTools lists every registered tool name in a stable order.
func AllTools() []ToolName {
	return []ToolName{
		ToolMedicalHistoryReport,
		ToolLatestPrescription,
		ToolSearchHealthRecords,
		ToolQueryMedicalRecord,
		ToolHealthSummary,
	}
}

// Stage is a pipeline state of the orchestrator's per-request state machine.
// Transitions are strictly forward; FAILED is terminal and reachable from
// any stage.
type Stage string

const (
	StageReceived      Stage = "RECEIVED"
	StageClassified    Stage = "CLASSIFIED"
	StageToolsSelected Stage = "TOOLS_SELECTED"
	StageExecuting     Stage = "EXECUTING"
	StageContextReady  Stage = "CONTEXT_READY"
	StageComposing     Stage = "COMPOSING"
	StageDone          Stage = "DONE"
	StageFailed        Stage = "FAILED"
)

// ToolResult is the settled outcome of one tool execution. Tool executions
// never raise to the orchestrator; they always resolve to a ToolResult.
type ToolResult struct {
	Tool    ToolName
	Success bool
	Data    any
	Error   string
	// Empty reports a successful execution that matched nothing. Zero
	// results are success with an empty payload, not an error.
	Empty bool
	// Queries lists any generated graph queries this tool executed.
	Queries []string
}

// Request is the single operation this core exposes to its caller.
type Request struct {
	Query     string
	Actor     Actor
	SubjectID string
	// RecordID optionally narrows the request to one health record.
	RecordID string
	// SessionID keys conversation memory; empty disables it.
	SessionID string
	// PreferredLanguage is a BCP-47-ish code for downstream translation.
	// Empty or "en-IN" leaves the response untranslated.
	PreferredLanguage string
}

// Response is the envelope returned for every request that is not an
// authorization failure. Internal failures degrade the confidence instead
// of surfacing.
type Response struct {
	Text             string
	Confidence       float64
	Sources          []ToolName
	SuggestedActions []string
	ExecutedQueries  []string
	// Tier records which fallback tier produced the text (1-based).
	Tier int
}

// AgentState is the unit of work for one user request. It is created at
// request entry, mutated only by the orchestrator, and discarded at exit.
type AgentState struct {
	RequestID string
	Query     string
	Actor     Actor
	SubjectID string
	RecordID  string

	Stage         Stage
	Intents       []Intent
	SelectedTools []ToolName
	ToolResults   map[ToolName]ToolResult
	Bundle        *ContextBundle
	Response      *Response

	StartedAt time.Time
}

// NewAgentState initializes state for a request.
func NewAgentState(requestID string, req Request) *AgentState {
	return &AgentState{
		RequestID:   requestID,
		Query:       req.Query,
		Actor:       req.Actor,
		SubjectID:   req.SubjectID,
		RecordID:    req.RecordID,
		Stage:       StageReceived,
		ToolResults: make(map[ToolName]ToolResult),
		StartedAt:   time.Now().UTC(),
	}
}

// DominantIntent returns the first classified intent, or the general intent
// when classification produced nothing.
func (s *AgentState) DominantIntent() Intent {
	if len(s.Intents) == 0 {
		return IntentGeneralQuery
	}
	return s.Intents[0]
}

// SucceededTools returns the selected tools whose results succeeded,
// preserving selection order.
func (s *AgentState) SucceededTools() []ToolName {
	var out []ToolName
	for _, name := range s.SelectedTools {
		if res, ok := s.ToolResults[name]; ok && res.Success {
			out = append(out, name)
		}
	}
	return out
}
