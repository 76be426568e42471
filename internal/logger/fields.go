package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through ctx.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the queue job ID
	FieldJobID = "job_id"

	// FieldRunID is the fetch or query run ID
	FieldRunID = "run_id"

	// FieldSourceID is the news source ID
	FieldSourceID = "source_id"

	// FieldQueryID is the query definition ID
	FieldQueryID = "query_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldAdapter is the source adapter type
	FieldAdapter = "adapter"
)

// Metric fields, set per entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldStatus     = "status"
	FieldAction     = "action"
)

// ComponentAudit tags audit records.
const ComponentAudit = "audit"
