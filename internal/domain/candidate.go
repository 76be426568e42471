package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is wrapped by ValidateTransition.
var ErrInvalidTransition = errors.New("invalid candidate transition")

// Video is the upserted metadata of a discovered video.
type Video struct {
	ID              string    `gorm:"type:text;primaryKey" json:"id"`
	YouTubeID       string    `gorm:"type:text;not null;uniqueIndex" json:"youtube_id"`
	Title           string    `gorm:"type:text" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	ChannelID       string    `gorm:"type:text;index" json:"channel_id"`
	ChannelTitle    string    `gorm:"type:text" json:"channel_title"`
	PublishedAt     time.Time `gorm:"index" json:"published_at"`
	DurationSeconds int       `json:"duration_seconds"`
	ViewCount       int64     `json:"view_count"`
	LikeCount       int64     `json:"like_count"`
	CommentCount    int64     `json:"comment_count"`
	ThumbnailURL    string    `gorm:"type:text" json:"thumbnail_url,omitempty"`
	HasTranscript   bool      `gorm:"default:false" json:"has_transcript"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for Video.
func (Video) TableName() string {
	return "videos"
}

// CandidateStatus is the review lifecycle of a candidate.
type CandidateStatus string

const (
	CandidateStatusNew         CandidateStatus = "NEW"
	CandidateStatusShortlisted CandidateStatus = "SHORTLISTED"
	CandidateStatusDismissed   CandidateStatus = "DISMISSED"
	CandidateStatusExported    CandidateStatus = "EXPORTED"
)

var candidateTransitions = map[CandidateStatus][]CandidateStatus{
	CandidateStatusNew:         {CandidateStatusShortlisted, CandidateStatusDismissed, CandidateStatusExported},
	CandidateStatusShortlisted: {CandidateStatusDismissed, CandidateStatusExported},
}

// CanTransition reports whether a candidate in status s may move to next.
func (s CandidateStatus) CanTransition(next CandidateStatus) bool {
	for _, allowed := range candidateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing an illegal status change.
func (s CandidateStatus) ValidateTransition(next CandidateStatus) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("%w %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// Candidate is a scored video produced by one query run.
type Candidate struct {
	ID             string          `gorm:"type:text;primaryKey" json:"id"`
	OrgID          string          `gorm:"type:text;not null;index" json:"org_id"`
	VideoID        string          `gorm:"type:text;not null;uniqueIndex:idx_candidates_video_run" json:"video_id"`
	QueryRunID     string          `gorm:"type:text;not null;uniqueIndex:idx_candidates_video_run" json:"query_run_id"`
	Sport          string          `gorm:"type:text;index" json:"sport"`
	RelevanceScore float64         `gorm:"index" json:"relevance_score"`
	ScoreBreakdown JSONMap         `gorm:"type:text" json:"score_breakdown"`
	AISummary      string          `gorm:"type:text" json:"ai_summary,omitempty"`
	Status         CandidateStatus `gorm:"type:text;default:NEW;index" json:"status"`
	Video          *Video          `gorm:"foreignKey:VideoID" json:"video,omitempty"`
	Moments        []Moment        `gorm:"foreignKey:CandidateID;constraint:OnDelete:CASCADE" json:"moments,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Candidate.
func (Candidate) TableName() string {
	return "candidates"
}

// Moment is a scored, time-bounded highlight segment within a candidate video.
type Moment struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	CandidateID  string    `gorm:"type:text;not null;index" json:"candidate_id"`
	StartSeconds float64   `json:"start_seconds"`
	EndSeconds   float64   `json:"end_seconds"`
	Confidence   float64   `json:"confidence"`
	Label        string    `gorm:"type:text" json:"label"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for Moment.
func (Moment) TableName() string {
	return "moments"
}
