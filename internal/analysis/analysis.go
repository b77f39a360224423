package analysis

import "errors"

// ErrMalformedResponse is returned when an extraction response cannot be
// read as AnalysisData.
var ErrMalformedResponse = errors.New("malformed analysis response")

const (
	SourceSystem = "system"
	SourceUser   = "user"

	DefaultConfidence = 0.8
)

// AnalysisData is the structured result of analysing one article.
type AnalysisData struct {
	ArticleTitle    string       `json:"article_title"`
	ArticleURL      string       `json:"article_url,omitempty"`
	ImpactingEntity string       `json:"impacting_entity"`
	Impacts         []ImpactData `json:"impacts"`
}

type ImpactData struct {
	ImpactedEntity     string         `json:"impacted_entity"`
	Impact             string         `json:"impact"`
	Score              float64        `json:"score"`
	Confidence         *float64       `json:"confidence"`
	Source             string         `json:"source"`
	SupportingEvidence []EvidenceData `json:"supporting_evidence"`
	UserFeedback       UserFeedback   `json:"user_feedback"`
}

type EvidenceData struct {
	Description string `json:"description"`
	SourceURL   string `json:"source_url,omitempty"`
	Source      string `json:"source"`
}

type UserFeedback struct {
	ThumbsUp   int64 `json:"thumbs_up"`
	ThumbsDown int64 `json:"thumbs_down"`
}
