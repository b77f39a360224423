package model

import "time"

// AnalysisHistory records that a user analysed an article. Title and
// ImpactCount are copied at write time.
type AnalysisHistory struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string    `gorm:"index;not null" json:"userId"`
	ArticleID   string    `gorm:"index;type:varchar(36);not null" json:"articleId"`
	Title       string    `json:"title"`
	ImpactCount int       `json:"impactCount"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (AnalysisHistory) TableName() string {
	return "analysis_history"
}
