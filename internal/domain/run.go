package domain

import "time"

// RunStatus represents the lifecycle of a fetch or query run.
// Values include RunStatusQueued, RunStatusRunning, RunStatusSucceeded, RunStatusFailed, and RunStatusSkipped.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusSkipped   RunStatus = "SKIPPED"
)

// InFlightStatuses are the statuses that block a new run for the same entity.
var InFlightStatuses = []RunStatus{RunStatusQueued, RunStatusRunning}

// IsTerminal reports whether no further transition is expected.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusSkipped
}

// RunTrigger records what created a run.
type RunTrigger string

const (
	TriggerScheduled RunTrigger = "SCHEDULED"
	TriggerManual    RunTrigger = "MANUAL"
)

// SourceFetchRun represents one fetch attempt of a source.
type SourceFetchRun struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	OrgID        string     `gorm:"type:text;not null;index" json:"org_id"`
	SourceID     string     `gorm:"type:text;not null;index:idx_fetch_runs_source_status" json:"source_id"`
	Status       RunStatus  `gorm:"type:text;default:QUEUED;index:idx_fetch_runs_source_status" json:"status"`
	Trigger      RunTrigger `gorm:"type:text;default:SCHEDULED" json:"trigger"`
	ItemsFetched int        `gorm:"default:0" json:"items_fetched"`
	NewItems     int        `gorm:"default:0" json:"new_items"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	QueuedAt     time.Time  `json:"queued_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SourceFetchRun.
func (SourceFetchRun) TableName() string {
	return "source_fetch_runs"
}

// QueryRun represents one execution of the query run pipeline and its progress metadata.
type QueryRun struct {
	ID                 string     `gorm:"type:text;primaryKey" json:"id"`
	OrgID              string     `gorm:"type:text;not null;index" json:"org_id"`
	QueryDefinitionID  string     `gorm:"type:text;not null;index:idx_query_runs_def_status" json:"query_definition_id"`
	Status             RunStatus  `gorm:"type:text;default:QUEUED;index:idx_query_runs_def_status" json:"status"`
	Trigger            RunTrigger `gorm:"type:text;default:SCHEDULED" json:"trigger"`
	Progress           int        `gorm:"default:0" json:"progress"`
	ProgressMessage    string     `gorm:"type:text" json:"progress_message,omitempty"`
	VideosFetched      int        `gorm:"default:0" json:"videos_fetched"`
	TranscriptsFetched int        `gorm:"default:0" json:"transcripts_fetched"`
	VideosProcessed    int        `gorm:"default:0" json:"videos_processed"`
	CandidatesProduced int        `gorm:"default:0" json:"candidates_produced"`
	FailedItems        int        `gorm:"default:0" json:"failed_items"`
	ErrorMessage       string     `gorm:"type:text" json:"error_message,omitempty"`
	QueuedAt           time.Time  `json:"queued_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for QueryRun.
func (QueryRun) TableName() string {
	return "query_runs"
}
