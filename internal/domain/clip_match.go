package domain

import "time"

// ClipMatchStatus is the review state of a pairing.
type ClipMatchStatus string

const (
	ClipMatchPending   ClipMatchStatus = "PENDING"
	ClipMatchMatched   ClipMatchStatus = "MATCHED"
	ClipMatchDismissed ClipMatchStatus = "DISMISSED"
)

// ClipMatch is a scored association between a news item and a candidate clip.
type ClipMatch struct {
	ID           string          `gorm:"type:text;primaryKey" json:"id"`
	OrgID        string          `gorm:"type:text;not null;index" json:"org_id"`
	NewsItemID   string          `gorm:"type:text;not null;uniqueIndex:idx_clip_matches_pair" json:"news_item_id"`
	CandidateID  string          `gorm:"type:text;not null;uniqueIndex:idx_clip_matches_pair" json:"candidate_id"`
	MatchScore   float64         `json:"match_score"`
	MatchReasons StringArray     `gorm:"type:text" json:"match_reasons"`
	Status       ClipMatchStatus `gorm:"type:text;default:PENDING" json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TableName returns the database table name for ClipMatch.
func (ClipMatch) TableName() string {
	return "clip_matches"
}
