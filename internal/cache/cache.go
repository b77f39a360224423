package cache

import (
	"context"

	"github.com/emrgen/impact/internal/model"
)

// ArticleEntry is the cached form of an article and its impacts.
type ArticleEntry struct {
	Article *model.Article  `json:"article"`
	Impacts []*model.Impact `json:"impacts"`
}

// ArticleCache holds assembled article views. A miss returns nil, nil.
type ArticleCache interface {
	GetArticle(ctx context.Context, id string) (*ArticleEntry, error)
	SetArticle(ctx context.Context, id string, entry *ArticleEntry) error
	DeleteArticle(ctx context.Context, id string) error
	// Flush removes every cached article.
	Flush(ctx context.Context) error
}

var _ ArticleCache = NopArticleCache{}

type NopArticleCache struct{}

func (NopArticleCache) GetArticle(ctx context.Context, id string) (*ArticleEntry, error) {
	return nil, nil
}

func (NopArticleCache) SetArticle(ctx context.Context, id string, entry *ArticleEntry) error {
	return nil
}

func (NopArticleCache) DeleteArticle(ctx context.Context, id string) error {
	return nil
}

func (NopArticleCache) Flush(ctx context.Context) error {
	return nil
}
