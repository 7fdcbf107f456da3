package dify

// Workflow execution statuses accepted by the logs-listing endpoint.
const (
	StatusSucceeded        = "succeeded"
	StatusFailed           = "failed"
	StatusStopped          = "stopped"
	StatusPartialSucceeded = "partial-succeeded"
)

// Node types with special handling in report derivation.
const (
	NodeTypeKnowledgeRetrieval = "knowledge-retrieval"
	NodeTypeLLM                = "llm"
)

// ValidStatus reports whether s is a status the API accepts as a filter.
func ValidStatus(s string) bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusStopped, StatusPartialSucceeded:
		return true
	}
	return false
}

// Account identifies a console account that triggered a workflow run.
type Account struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// EndUser identifies an anonymous end user by session.
type EndUser struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type,omitempty"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// WorkflowRunSummary is the run information embedded in a log record.
type WorkflowRunSummary struct {
	ID          string  `json:"id,omitempty"`
	Version     string  `json:"version,omitempty"`
	Status      string  `json:"status,omitempty"`
	Error       string  `json:"error,omitempty"`
	ElapsedTime float64 `json:"elapsed_time,omitempty"`
	TotalTokens int     `json:"total_tokens,omitempty"`
	TotalSteps  int     `json:"total_steps,omitempty"`
	CreatedAt   float64 `json:"created_at,omitempty"`
	FinishedAt  float64 `json:"finished_at,omitempty"`
}

// LogRecord is one workflow execution log entry from the listing endpoint.
// CreatedByAccount and CreatedByEndUser are mutually exclusive; at most one
// is populated.
type LogRecord struct {
	ID               string             `json:"id"`
	AppID            string             `json:"app_id,omitempty"`
	WorkflowRun      WorkflowRunSummary `json:"workflow_run"`
	CreatedFrom      string             `json:"created_from,omitempty"`
	CreatedByRole    string             `json:"created_by_role,omitempty"`
	CreatedAt        float64            `json:"created_at"`
	CreatedByAccount *Account           `json:"created_by_account,omitempty"`
	CreatedByEndUser *EndUser           `json:"created_by_end_user,omitempty"`
}

// LogPage is one page of the logs listing.
type LogPage struct {
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"has_more"`
	Data    []LogRecord `json:"data"`
}

// LogFilter holds the optional query parameters of the logs listing.
// Zero values are omitted from the request.
type LogFilter struct {
	Keyword          string
	Status           string
	CreatedAtBefore  string // ISO 8601
	CreatedAtAfter   string // ISO 8601
	EndUserSessionID string
	AccountEmail     string
}

// WorkflowRunDetail is the extended run information fetched by run id.
// Inputs and Outputs may arrive as structured objects or as JSON-encoded
// strings; see Payload.
type WorkflowRunDetail struct {
	ID              string  `json:"id,omitempty"`
	AppID           string  `json:"app_id,omitempty"`
	WorkflowID      string  `json:"workflow_id,omitempty"`
	Status          string  `json:"status,omitempty"`
	Error           string  `json:"error,omitempty"`
	ElapsedTime     float64 `json:"elapsed_time,omitempty"`
	TotalTokens     int     `json:"total_tokens,omitempty"`
	TotalSteps      int     `json:"total_steps,omitempty"`
	ExceptionsCount int     `json:"exceptions_count,omitempty"`
	CreatedAt       float64 `json:"created_at,omitempty"`
	FinishedAt      float64 `json:"finished_at,omitempty"`
	Inputs          Payload `json:"inputs,omitempty"`
	Outputs         Payload `json:"outputs,omitempty"`
}

// NodeExecution is one step inside a workflow run. For knowledge-retrieval
// nodes Outputs carries the retrieved passages; for llm nodes ProcessData
// carries token usage and price.
type NodeExecution struct {
	ID                string  `json:"id,omitempty"`
	NodeID            string  `json:"node_id,omitempty"`
	NodeType          string  `json:"node_type,omitempty"`
	Title             string  `json:"title,omitempty"`
	Index             int     `json:"index,omitempty"`
	PredecessorNodeID string  `json:"predecessor_node_id,omitempty"`
	Status            string  `json:"status,omitempty"`
	Error             string  `json:"error,omitempty"`
	ElapsedTime       float64 `json:"elapsed_time,omitempty"`
	CreatedAt         float64 `json:"created_at,omitempty"`
	FinishedAt        float64 `json:"finished_at,omitempty"`
	Inputs            Payload `json:"inputs,omitempty"`
	Outputs           Payload `json:"outputs,omitempty"`
	ProcessData       Payload `json:"process_data,omitempty"`
}
