package domain

import "time"

// NewsType is the heuristic category of a news item.
type NewsType string

const (
	NewsTypeTrade       NewsType = "trade"
	NewsTypeInjury      NewsType = "injury"
	NewsTypeBreaking    NewsType = "breaking"
	NewsTypeBettingLine NewsType = "betting_line"
	NewsTypeGameResult  NewsType = "game_result"
	NewsTypeRumor       NewsType = "rumor"
	NewsTypeSchedule    NewsType = "schedule"
	NewsTypeAnalysis    NewsType = "analysis"
)

// NewsItem is a normalized, deduplicated news entry fetched from a source.
type NewsItem struct {
	ID              string      `gorm:"type:text;primaryKey" json:"id"`
	OrgID           string      `gorm:"type:text;not null;uniqueIndex:idx_news_items_external" json:"org_id"`
	SourceID        string      `gorm:"type:text;not null;uniqueIndex:idx_news_items_external" json:"source_id"`
	ExternalID      string      `gorm:"type:text;not null;uniqueIndex:idx_news_items_external" json:"external_id"`
	Type            NewsType    `gorm:"type:text;index" json:"type"`
	Sport           string      `gorm:"type:text;index" json:"sport"`
	Headline        string      `gorm:"type:text;not null" json:"headline"`
	Content         string      `gorm:"type:text" json:"content,omitempty"`
	URL             string      `gorm:"type:text" json:"url,omitempty"`
	Author          string      `gorm:"type:text" json:"author,omitempty"`
	ImageURL        string      `gorm:"type:text" json:"image_url,omitempty"`
	PublishedAt     time.Time   `gorm:"index" json:"published_at"`
	Teams           StringArray `gorm:"type:text" json:"teams"`
	Players         StringArray `gorm:"type:text" json:"players"`
	Topics          StringArray `gorm:"type:text" json:"topics"`
	ImportanceScore *float64    `json:"importance_score,omitempty"`
	IsPaired        bool        `gorm:"default:false;index" json:"is_paired"`
	PairedAt        *time.Time  `json:"paired_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName returns the database table name for NewsItem.
func (NewsItem) TableName() string {
	return "news_items"
}

// OddsSnapshot is a captured betting market for an event.
type OddsSnapshot struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	OrgID      string    `gorm:"type:text;not null;uniqueIndex:idx_odds_external" json:"org_id"`
	SourceID   string    `gorm:"type:text;not null;uniqueIndex:idx_odds_external" json:"source_id"`
	ExternalID string    `gorm:"type:text;not null;uniqueIndex:idx_odds_external" json:"external_id"`
	Sport      string    `gorm:"type:text;index" json:"sport"`
	EventName  string    `gorm:"type:text" json:"event_name"`
	HomeTeam   string    `gorm:"type:text" json:"home_team"`
	AwayTeam   string    `gorm:"type:text" json:"away_team"`
	Market     string    `gorm:"type:text" json:"market"`
	Lines      JSONMap   `gorm:"type:text" json:"lines"`
	StartsAt   time.Time `json:"starts_at"`
	CapturedAt time.Time `json:"captured_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for OddsSnapshot.
func (OddsSnapshot) TableName() string {
	return "odds_snapshots"
}

// GameResult is a final or in-progress score reported by a source.
type GameResult struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	OrgID      string    `gorm:"type:text;not null;uniqueIndex:idx_results_external" json:"org_id"`
	SourceID   string    `gorm:"type:text;not null;uniqueIndex:idx_results_external" json:"source_id"`
	ExternalID string    `gorm:"type:text;not null;uniqueIndex:idx_results_external" json:"external_id"`
	Sport      string    `gorm:"type:text;index" json:"sport"`
	League     string    `gorm:"type:text" json:"league,omitempty"`
	HomeTeam   string    `gorm:"type:text" json:"home_team"`
	AwayTeam   string    `gorm:"type:text" json:"away_team"`
	HomeScore  int       `json:"home_score"`
	AwayScore  int       `json:"away_score"`
	Status     string    `gorm:"type:text" json:"status"`
	PlayedAt   time.Time `json:"played_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for GameResult.
func (GameResult) TableName() string {
	return "game_results"
}
