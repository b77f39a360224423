package model

import "time"

type Evidence struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ImpactID    string    `gorm:"index;type:varchar(36)" json:"impact_id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	SourceURL   string    `json:"source_url"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Evidence) TableName() string {
	return "evidence"
}
