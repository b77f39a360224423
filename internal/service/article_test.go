package service

import (
	"context"
	"strings"
	"testing"

	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetArticle(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 2, 1)
	ctx := context.Background()

	assert.Equal(t, "Line one of the story Line two...", view.Article.Summary)

	plain, err := f.articles.GetArticle(ctx, view.Article.ID, false)
	require.NoError(t, err)
	require.Len(t, plain.Impacts, 2)
	for _, impact := range plain.Impacts {
		assert.Nil(t, impact.SupportingEvidence)
		assert.Len(t, impact.SupportingEvidenceIDs, 1)
	}

	_, err = f.articles.GetArticle(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetArticle_MissingEvidenceIsSkipped(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 1, 3)
	ctx := context.Background()

	gone := view.Impacts[0].SupportingEvidence[1]
	require.NoError(t, f.db.Delete(&model.Evidence{}, "id = ?", gone.ID).Error)

	got, err := f.articles.GetArticle(ctx, view.Article.ID, true)
	require.NoError(t, err)
	evidence := got.Impacts[0].SupportingEvidence
	require.Len(t, evidence, 2)
	for _, item := range evidence {
		assert.NotEqual(t, gone.ID, item.ID)
	}
	assert.Len(t, got.Impacts[0].SupportingEvidenceIDs, 3)
}

func TestGetArticle_Cached(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 1, 0)
	ctx := context.Background()

	require.Contains(t, f.cache.entries, view.Article.ID)
	require.NoError(t, f.db.Delete(&model.Impact{}, "article_id = ?", view.Article.ID).Error)

	cached, err := f.articles.GetArticle(ctx, view.Article.ID, false)
	require.NoError(t, err)
	assert.Len(t, cached.Impacts, 1)

	f.articles.invalidate(ctx, view.Article.ID)
	fresh, err := f.articles.GetArticle(ctx, view.Article.ID, false)
	require.NoError(t, err)
	assert.Empty(t, fresh.Impacts)
}

func TestDeleteArticle(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 3, 2)
	other := f.seed(t, "u1", 1, 1)
	ctx := context.Background()

	err := f.articles.DeleteArticle(ctx, "u2", view.Article.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(2), f.count(t, &model.Article{}))
	assert.Equal(t, int64(4), f.count(t, &model.Impact{}))

	require.NoError(t, f.articles.DeleteArticle(ctx, "u1", view.Article.ID))

	assert.Equal(t, int64(1), f.count(t, &model.Article{}))
	assert.Equal(t, int64(1), f.count(t, &model.Impact{}))
	assert.Equal(t, int64(1), f.count(t, &model.Evidence{}))
	assert.Equal(t, int64(1), f.count(t, &model.AnalysisHistory{}))
	assert.Contains(t, f.cache.deleted, view.Article.ID)
	assert.Contains(t, f.publisher.types(), queue.EventArticleDeleted)

	_, err = f.articles.GetArticle(ctx, view.Article.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.articles.GetArticle(ctx, other.Article.ID, true)
	assert.NoError(t, err)

	err = f.articles.DeleteArticle(ctx, "u1", view.Article.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetEvidence(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 1, 1)
	ctx := context.Background()

	want := view.Impacts[0].SupportingEvidence[0]
	got, err := f.articles.GetEvidence(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Description, got.Description)

	_, err = f.articles.GetEvidence(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"single line", "Short story", "Short story..."},
		{"two lines", "Headline\nBody", "Headline Body..."},
		{"third line dropped", "a\nb\nc", "a b..."},
		{"long", strings.Repeat("x", 150), strings.Repeat("x", 100) + "..."},
		{"runes", strings.Repeat("é", 120), strings.Repeat("é", 100) + "..."},
		{"empty", "", "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.content))
		})
	}
}
