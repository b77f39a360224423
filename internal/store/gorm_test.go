package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/emrgen/impact/internal/compress"
	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/store"
	"github.com/emrgen/impact/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedArticle(t *testing.T, s store.Store) *model.Article {
	t.Helper()
	article := &model.Article{
		ID:              uuid.New().String(),
		Title:           "Steel tariffs",
		Content:         "Tariffs were announced.\nAutomakers respond.",
		ImpactingEntity: "US Government",
		UserID:          "user-1",
	}
	require.NoError(t, s.CreateArticle(context.Background(), article))
	return article
}

func seedImpact(t *testing.T, s store.Store, articleID string) *model.Impact {
	t.Helper()
	impact := &model.Impact{
		ID:                    uuid.New().String(),
		ArticleID:             articleID,
		ImpactedEntity:        "Automakers",
		Impact:                "Higher input costs",
		Score:                 -0.6,
		Source:                "system",
		SupportingEvidenceIDs: []string{},
	}
	require.NoError(t, s.CreateImpact(context.Background(), impact))
	return impact
}

func TestArticle_ContentIsCompressed(t *testing.T) {
	db := tester.TestDB(t)
	s := store.NewGormStore(db, compress.NewGZip())
	article := seedArticle(t, s)

	var raw model.Article
	require.NoError(t, db.Where("id = ?", article.ID).First(&raw).Error)
	assert.Equal(t, "gzip", raw.Compression)
	assert.NotEqual(t, article.Content, raw.Content)

	got, err := s.GetArticle(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Content, got.Content)
	assert.Equal(t, "Steel tariffs", got.Title)
}

func TestArticle_ReadsOtherCodecs(t *testing.T) {
	db := tester.TestDB(t)
	article := seedArticle(t, store.NewGormStore(db, compress.NewLZ4()))

	got, err := store.NewGormStore(db, compress.NewNop()).GetArticle(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Content, got.Content)
}

func TestNotFound(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()

	_, err := s.GetArticle(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = s.GetImpact(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetEvidence(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetHistory(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteArticle(ctx, "missing"), store.ErrNotFound)
	assert.ErrorIs(t, s.IncrementVote(ctx, "missing", store.VotesUp), store.ErrNotFound)
}

func TestIncrementVote_Concurrent(t *testing.T) {
	s := tester.TestStore(t)
	article := seedArticle(t, s)
	impact := seedImpact(t, s, article.ID)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementVote(context.Background(), impact.ID, store.VotesUp))
		}()
	}
	wg.Wait()

	got, err := s.GetImpact(context.Background(), impact.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.UserVotesUp)
	assert.Equal(t, int64(0), got.UserVotesDown)
}

func TestIncrementVote_UnknownColumn(t *testing.T) {
	s := tester.TestStore(t)
	assert.Error(t, s.IncrementVote(context.Background(), "x", store.VoteColumn("score")))
}

func TestLegacyImpacts(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()
	article := seedArticle(t, s)
	migrated := seedImpact(t, s, article.ID)

	legacy := &model.Impact{
		ID:                 uuid.New().String(),
		ArticleID:          article.ID,
		ImpactedEntity:     "Consumers",
		Impact:             "Higher prices",
		SupportingEvidence: datatypes.JSON(`[{"description":"Price index rose","source_url":"","source":"system"}]`),
	}
	require.NoError(t, s.CreateImpact(ctx, legacy))

	impacts, err := s.ListLegacyImpacts(ctx)
	require.NoError(t, err)
	require.Len(t, impacts, 1)
	assert.Equal(t, legacy.ID, impacts[0].ID)
	assert.Nil(t, impacts[0].SupportingEvidenceIDs)
	assert.JSONEq(t, string(legacy.SupportingEvidence), string(impacts[0].SupportingEvidence))

	require.NoError(t, s.SetEvidenceIDs(ctx, legacy.ID, []string{"e1", "e2"}))
	impacts, err = s.ListLegacyImpacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, impacts)

	got, err := s.GetImpact(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, got.SupportingEvidenceIDs)
	assert.JSONEq(t, `[]`, string(got.SupportingEvidence))

	got, err = s.GetImpact(ctx, migrated.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.SupportingEvidenceIDs)
	assert.Empty(t, got.SupportingEvidenceIDs)
}

func TestHistory_NewestFirst(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateHistory(ctx, &model.AnalysisHistory{
			ID:        uuid.New().String(),
			UserID:    "user-1",
			ArticleID: uuid.New().String(),
			Title:     title,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.CreateHistory(ctx, &model.AnalysisHistory{
		ID: uuid.New().String(), UserID: "user-2", ArticleID: "a", Title: "other",
	}))

	entries, err := s.ListHistoryByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Title)
	assert.Equal(t, "first", entries[2].Title)
}

func TestOrphanSweep(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()

	kept := seedArticle(t, s)
	keptImpact := seedImpact(t, s, kept.ID)
	require.NoError(t, s.CreateEvidence(ctx, &model.Evidence{ID: uuid.New().String(), ImpactID: keptImpact.ID, Description: "kept"}))

	orphanImpact := seedImpact(t, s, "gone-article")
	require.NoError(t, s.CreateEvidence(ctx, &model.Evidence{ID: uuid.New().String(), ImpactID: orphanImpact.ID, Description: "orphan"}))
	require.NoError(t, s.CreateHistory(ctx, &model.AnalysisHistory{ID: uuid.New().String(), UserID: "u", ArticleID: "gone-article"}))

	n, err := s.DeleteOrphanImpacts(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteOrphanEvidence(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteOrphanHistory(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	evidence, err := s.ListEvidenceByImpact(ctx, keptImpact.ID)
	require.NoError(t, err)
	assert.Len(t, evidence, 1)
}

func TestOrphanSweep_SkipsRecentRows(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()

	old := &model.Evidence{ID: uuid.New().String(), ImpactID: "gone-impact", Description: "old", CreatedAt: time.Now().Add(-2 * time.Hour)}
	require.NoError(t, s.CreateEvidence(ctx, old))
	// evidence of an analysis still writing its impact
	fresh := &model.Evidence{ID: uuid.New().String(), ImpactID: "pending-impact", Description: "fresh"}
	require.NoError(t, s.CreateEvidence(ctx, fresh))

	n, err := s.DeleteOrphanEvidence(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetEvidence(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetEvidence(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestTransaction_Rollback(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()
	article := seedArticle(t, s)

	err := s.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.DeleteImpactsByArticle(ctx, article.ID); err != nil {
			return err
		}
		if err := tx.DeleteArticle(ctx, article.ID); err != nil {
			return err
		}
		return tx.DeleteArticle(ctx, article.ID)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetArticle(ctx, article.ID)
	assert.NoError(t, err)
}

func TestDeleteAll(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()
	article := seedArticle(t, s)
	impact := seedImpact(t, s, article.ID)
	require.NoError(t, s.CreateEvidence(ctx, &model.Evidence{ID: uuid.New().String(), ImpactID: impact.ID, Description: "d"}))
	require.NoError(t, s.SaveAttempt(ctx, &model.AnalysisAttempt{ID: "k", Status: model.AttemptFailed}))

	require.NoError(t, s.DeleteAll(ctx))

	articles, err := s.ListArticles(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, articles)
	_, err = s.GetAttempt(ctx, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRetryableAttempts(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAttempt(ctx, &model.AnalysisAttempt{ID: "a", Status: model.AttemptFailed, Attempts: 1}))
	require.NoError(t, s.SaveAttempt(ctx, &model.AnalysisAttempt{ID: "b", Status: model.AttemptFailed, Attempts: 3}))
	require.NoError(t, s.SaveAttempt(ctx, &model.AnalysisAttempt{ID: "c", Status: model.AttemptCompleted, Attempts: 1}))

	attempts, err := s.ListRetryableAttempts(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "a", attempts[0].ID)
}

func TestPostgres(t *testing.T) {
	db := tester.Postgres(t)
	s := store.NewGormStore(db, compress.NewBrotli())
	ctx := context.Background()

	article := seedArticle(t, s)
	impact := seedImpact(t, s, article.ID)
	require.NoError(t, s.IncrementVote(ctx, impact.ID, store.VotesDown))

	got, err := s.GetImpact(ctx, impact.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserVotesDown)

	a, err := s.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Content, a.Content)
}

func TestClaimAttempt(t *testing.T) {
	s := tester.TestStore(t)
	ctx := context.Background()
	staleBefore := time.Now().Add(-time.Hour)

	created, err := s.CreateAttempt(ctx, &model.AnalysisAttempt{ID: "k", Status: model.AttemptPending, Attempts: 1})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateAttempt(ctx, &model.AnalysisAttempt{ID: "k", Status: model.AttemptPending, Attempts: 1})
	require.NoError(t, err)
	assert.False(t, created)

	claimed, err := s.ClaimAttempt(ctx, "k", staleBefore)
	require.NoError(t, err)
	assert.False(t, claimed, "a live pending attempt cannot be claimed")

	attempt, err := s.GetAttempt(ctx, "k")
	require.NoError(t, err)
	attempt.Status = model.AttemptFailed
	attempt.ArticleID = "a1"
	require.NoError(t, s.SaveAttempt(ctx, attempt))

	claimed, err = s.ClaimAttempt(ctx, "k", staleBefore)
	require.NoError(t, err)
	assert.True(t, claimed)

	attempt, err = s.GetAttempt(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptPending, attempt.Status)
	assert.Equal(t, 2, attempt.Attempts)
	assert.Empty(t, attempt.ArticleID)

	// an abandoned pending attempt is taken over once its lease ran out
	claimed, err = s.ClaimAttempt(ctx, "k", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, claimed)

	_, err = s.ClaimAttempt(ctx, "missing", staleBefore)
	require.NoError(t, err)
}
