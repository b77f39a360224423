package queue

import (
	"context"
	"time"
)

const (
	EventAnalysisCompleted = "analysis.completed"
	EventArticleDeleted    = "article.deleted"
	EventImpactVoted       = "impact.voted"
	EventImpactAdded       = "impact.added"
	EventEvidenceAdded     = "evidence.added"
)

// Event is a change notification about an article and its impacts.
type Event struct {
	Type      string            `json:"type"`
	ArticleID string            `json:"article_id,omitempty"`
	ImpactID  string            `json:"impact_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	At        time.Time         `json:"at"`
}

// Publisher delivers events to downstream consumers. Delivery is best
// effort and callers only log failures.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}

func (NopPublisher) Close() {}
