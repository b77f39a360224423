package model

import (
	"time"

	"gorm.io/datatypes"
)

// Impact is one effect the impacting entity has on an impacted entity.
type Impact struct {
	ID             string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ArticleID      string   `gorm:"index;type:varchar(36);not null" json:"article_id"`
	ImpactedEntity string   `gorm:"not null" json:"impacted_entity"`
	Impact         string   `gorm:"type:text;not null" json:"impact"`
	Score          float64  `json:"score"`
	Confidence     *float64 `json:"confidence"`
	Source         string   `json:"source"`
	UserVotesUp    int64    `gorm:"not null;default:0" json:"user_votes_up"`
	UserVotesDown  int64    `gorm:"not null;default:0" json:"user_votes_down"`
	// SupportingEvidenceIDs references evidence rows. NULL marks impacts
	// written before evidence moved into its own table.
	SupportingEvidenceIDs []string `gorm:"column:supporting_evidence_ids;type:text;serializer:json" json:"supporting_evidence_ids"`
	// SupportingEvidence is the legacy embedded evidence list.
	SupportingEvidence datatypes.JSON `gorm:"column:supporting_evidence;type:text;not null;default:'[]'" json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (Impact) TableName() string {
	return "impacts"
}

// LegacyEvidence is an element of Impact.SupportingEvidence.
type LegacyEvidence struct {
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
	Source      string `json:"source"`
}
