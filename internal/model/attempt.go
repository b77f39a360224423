package model

import "time"

type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptCompleted AttemptStatus = "completed"
	AttemptFailed    AttemptStatus = "failed"
)

// AnalysisAttempt keys one analyze request so that retries of the same
// request do not produce a second article.
type AnalysisAttempt struct {
	ID        string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string        `gorm:"index" json:"user_id"`
	Content   string        `gorm:"type:text" json:"content"`
	URL       string        `json:"url,omitempty"`
	Status    AttemptStatus `gorm:"index;type:varchar(16)" json:"status"`
	ArticleID string        `gorm:"type:varchar(36)" json:"article_id,omitempty"`
	Attempts  int           `json:"attempts"`
	LastError string        `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (AnalysisAttempt) TableName() string {
	return "analysis_attempts"
}
