package domain

import "time"

// SourceType is the tag of the adapter that serves a source.
type SourceType string

const (
	SourceTypeRSSFeed         SourceType = "RSS_FEED"
	SourceTypeWebsiteScrape   SourceType = "WEBSITE_SCRAPE"
	SourceTypeESPNAPI         SourceType = "ESPN_API"
	SourceTypeDraftKingsAPI   SourceType = "DRAFTKINGS_API"
	SourceTypeSportsGridAPI   SourceType = "SPORTSGRID_API"
	SourceTypeHeadlessBrowser SourceType = "HEADLESS_BROWSER"
)

// SourceTypes lists every known adapter kind in display order.
var SourceTypes = []SourceType{
	SourceTypeRSSFeed,
	SourceTypeWebsiteScrape,
	SourceTypeESPNAPI,
	SourceTypeDraftKingsAPI,
	SourceTypeSportsGridAPI,
	SourceTypeHeadlessBrowser,
}

// SourceStatus represents the health of a source.
// Values include SourceStatusActive, SourceStatusPaused, SourceStatusError, and SourceStatusRateLimited.
type SourceStatus string

const (
	SourceStatusActive      SourceStatus = "ACTIVE"
	SourceStatusPaused      SourceStatus = "PAUSED"
	SourceStatusError       SourceStatus = "ERROR"
	SourceStatusRateLimited SourceStatus = "RATE_LIMITED"
)

// ScheduleType selects how the next run timestamp is computed.
type ScheduleType string

const (
	ScheduleManual   ScheduleType = "MANUAL"
	ScheduleHourly   ScheduleType = "HOURLY"
	ScheduleDaily    ScheduleType = "DAILY"
	ScheduleWeekdays ScheduleType = "WEEKDAYS"
	ScheduleWeekly   ScheduleType = "WEEKLY"
	ScheduleCustom   ScheduleType = "CUSTOM"
)

// Schedule holds the schedule columns shared by sources and query definitions.
type Schedule struct {
	IsScheduled            bool         `gorm:"default:false;index" json:"is_scheduled"`
	IsActive               bool         `gorm:"not null;index" json:"is_active"`
	ScheduleType           ScheduleType `gorm:"type:text;default:MANUAL" json:"schedule_type"`
	CronExpression         string       `gorm:"type:text" json:"cron_expression,omitempty"`
	Timezone               string       `gorm:"type:text;default:UTC" json:"timezone"`
	RefreshIntervalMinutes int          `gorm:"default:60" json:"refresh_interval_minutes"`
}

// Source is a configured external content provider.
type Source struct {
	ID                  string       `gorm:"type:text;primaryKey" json:"id"`
	OrgID               string       `gorm:"type:text;not null;index" json:"org_id"`
	Name                string       `gorm:"type:text;not null" json:"name"`
	Type                SourceType   `gorm:"type:text;not null" json:"type"`
	Sport               string       `gorm:"type:text;index" json:"sport"`
	Config              JSONMap      `gorm:"type:text" json:"config"`
	Schedule            `gorm:"embedded"`
	NextFetchAt         *time.Time   `gorm:"index" json:"next_fetch_at,omitempty"`
	LastFetchAt         *time.Time   `json:"last_fetch_at,omitempty"`
	LastManualTriggerAt *time.Time   `json:"last_manual_trigger_at,omitempty"`
	Status              SourceStatus `gorm:"type:text;default:ACTIVE" json:"status"`
	FetchCount          int          `gorm:"default:0" json:"fetch_count"`
	ErrorCount          int          `gorm:"default:0" json:"error_count"`
	ConsecutiveErrors   int          `gorm:"default:0" json:"consecutive_errors"`
	LastErrorMessage    string       `gorm:"type:text" json:"last_error_message,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Source.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Source) TableName() string {
	return "sources"
}
