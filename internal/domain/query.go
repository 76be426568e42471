package domain

import "time"

// QueryDefinition is a saved search intent that drives the query run pipeline.
type QueryDefinition struct {
	ID                  string      `gorm:"type:text;primaryKey" json:"id"`
	OrgID               string      `gorm:"type:text;not null;index" json:"org_id"`
	Name                string      `gorm:"type:text;not null" json:"name"`
	Sport               string      `gorm:"type:text;not null;index" json:"sport"`
	Keywords            StringArray `gorm:"type:text" json:"keywords"`
	ChannelIDs          StringArray `gorm:"type:text" json:"channel_ids"`
	RecencyDays         int         `gorm:"default:7" json:"recency_days"`
	MaxResults          int         `gorm:"default:50" json:"max_results"`
	TopN                int         `gorm:"default:100" json:"top_n"`
	UseEmbeddings       bool        `gorm:"default:false" json:"use_embeddings"`
	UseAI               bool        `gorm:"default:false" json:"use_ai"`
	Schedule            `gorm:"embedded"`
	NextRunAt           *time.Time  `gorm:"index" json:"next_run_at,omitempty"`
	LastRunAt           *time.Time  `json:"last_run_at,omitempty"`
	LastManualTriggerAt *time.Time  `json:"last_manual_trigger_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// TableName returns the database table name for QueryDefinition.
func (QueryDefinition) TableName() string {
	return "query_definitions"
}
