package model

import "time"

// Article is a submitted piece of text together with the entity the analysis
// found to be driving its impacts.
type Article struct {
	ID              string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title           string `gorm:"not null" json:"title"`
	Content         string `gorm:"type:text;not null" json:"content"`
	URL             string `json:"url,omitempty"`
	ImpactingEntity string `json:"impacting_entity"`
	UserID          string `gorm:"index" json:"userId"`
	// Compression names the codec Content is stored with.
	Compression string    `gorm:"type:varchar(16)" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Article) TableName() string {
	return "articles"
}
