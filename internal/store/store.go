package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/impact/internal/model"
)

// ErrNotFound is returned when a looked up row does not exist.
var ErrNotFound = errors.New("record not found")

type Store interface {
	ArticleStore
	ImpactStore
	EvidenceStore
	HistoryStore
	AttemptStore
	SweepStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
	Ping(ctx context.Context) error
}

type ArticleStore interface {
	// CreateArticle stores a new article, encoding its content.
	CreateArticle(ctx context.Context, article *model.Article) error
	// GetArticle retrieves an article by ID with decoded content.
	GetArticle(ctx context.Context, id string) (*model.Article, error)
	// ListArticles retrieves articles ordered by creation time, newest first.
	ListArticles(ctx context.Context, limit int) ([]*model.Article, error)
	// DeleteArticle deletes the article row only.
	DeleteArticle(ctx context.Context, id string) error
}

type ImpactStore interface {
	// CreateImpact stores a new impact.
	CreateImpact(ctx context.Context, impact *model.Impact) error
	// GetImpact retrieves an impact by ID.
	GetImpact(ctx context.Context, id string) (*model.Impact, error)
	// ListImpactsByArticle retrieves every impact of an article.
	ListImpactsByArticle(ctx context.Context, articleID string) ([]*model.Impact, error)
	// CountImpactsByArticle counts the impacts of an article.
	CountImpactsByArticle(ctx context.Context, articleID string) (int64, error)
	// IncrementVote adds one to the named vote counter in place.
	IncrementVote(ctx context.Context, id string, column VoteColumn) error
	// SetEvidenceIDs replaces the evidence ID list and clears the legacy evidence.
	SetEvidenceIDs(ctx context.Context, id string, ids []string) error
	// DeleteImpactsByArticle deletes every impact of an article.
	DeleteImpactsByArticle(ctx context.Context, articleID string) (int64, error)
	// ListLegacyImpacts retrieves impacts that have no evidence ID list yet.
	ListLegacyImpacts(ctx context.Context) ([]*model.Impact, error)
}

type EvidenceStore interface {
	CreateEvidence(ctx context.Context, evidence *model.Evidence) error
	GetEvidence(ctx context.Context, id string) (*model.Evidence, error)
	ListEvidenceByImpact(ctx context.Context, impactID string) ([]*model.Evidence, error)
	// DeleteEvidenceByImpacts deletes the evidence of every listed impact.
	DeleteEvidenceByImpacts(ctx context.Context, impactIDs []string) (int64, error)
}

type HistoryStore interface {
	CreateHistory(ctx context.Context, entry *model.AnalysisHistory) error
	GetHistory(ctx context.Context, id string) (*model.AnalysisHistory, error)
	// ListHistoryByUser retrieves a user's entries, newest first.
	ListHistoryByUser(ctx context.Context, userID string) ([]*model.AnalysisHistory, error)
	DeleteHistory(ctx context.Context, id string) error
	DeleteHistoryByArticle(ctx context.Context, articleID string) (int64, error)
}

type AttemptStore interface {
	GetAttempt(ctx context.Context, id string) (*model.AnalysisAttempt, error)
	// CreateAttempt inserts a new attempt. It reports false, without error,
	// when an attempt with the same ID already exists.
	CreateAttempt(ctx context.Context, attempt *model.AnalysisAttempt) (bool, error)
	// ClaimAttempt marks an attempt pending and counts a run, unless it is
	// already pending and was updated after staleBefore. It reports whether
	// the claim was taken.
	ClaimAttempt(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	// SaveAttempt inserts or updates an attempt.
	SaveAttempt(ctx context.Context, attempt *model.AnalysisAttempt) error
	// ListRetryableAttempts retrieves failed attempts below maxAttempts.
	ListRetryableAttempts(ctx context.Context, maxAttempts, limit int) ([]*model.AnalysisAttempt, error)
}

// SweepStore removes rows left behind by partial writes and wipes data.
// The orphan queries only take rows created before the given time; a zero
// time takes every orphan.
type SweepStore interface {
	DeleteOrphanImpacts(ctx context.Context, before time.Time) (int64, error)
	DeleteOrphanEvidence(ctx context.Context, before time.Time) (int64, error)
	DeleteOrphanHistory(ctx context.Context, before time.Time) (int64, error)
	// DeleteAll removes every row: evidence, impacts, articles, history and attempts.
	DeleteAll(ctx context.Context) error
}

type VoteColumn string

const (
	VotesUp   VoteColumn = "user_votes_up"
	VotesDown VoteColumn = "user_votes_down"
)
