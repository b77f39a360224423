package service

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/impact/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackfillEvidenceIDs(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 1, 1)
	ctx := context.Background()

	withEvidence := f.legacyImpact(t, view.Article.ID,
		`[{"description":"Price index rose","source_url":"https://bls.gov/cpi","source":"user"},{"description":"  ","source":"system"}]`)
	empty := f.legacyImpact(t, view.Article.ID, `[]`)

	report, err := f.maintenance.BackfillEvidenceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, &BackfillReport{Scanned: 2, Migrated: 2, EvidenceCreated: 1}, report)

	impact, err := f.store.GetImpact(ctx, withEvidence.ID)
	require.NoError(t, err)
	require.Len(t, impact.SupportingEvidenceIDs, 1)
	evidence, err := f.store.GetEvidence(ctx, impact.SupportingEvidenceIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "Price index rose", evidence.Description)
	assert.Equal(t, "https://bls.gov/cpi", evidence.SourceURL)
	assert.Equal(t, "user", evidence.Source)
	assert.Equal(t, withEvidence.ID, evidence.ImpactID)

	impact, err = f.store.GetImpact(ctx, empty.ID)
	require.NoError(t, err)
	assert.NotNil(t, impact.SupportingEvidenceIDs)
	assert.Empty(t, impact.SupportingEvidenceIDs)

	report, err = f.maintenance.BackfillEvidenceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, &BackfillReport{}, report)
	assert.Equal(t, int64(2), f.count(t, &model.Evidence{}))
}

func TestSweepOrphans(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 2, 2)
	ctx := context.Background()

	require.NoError(t, f.db.Delete(&model.Article{}, "id = ?", view.Article.ID).Error)
	require.NoError(t, f.store.CreateEvidence(ctx, &model.Evidence{
		ID:          uuid.New().String(),
		ImpactID:    uuid.New().String(),
		Description: "stray",
		Source:      "system",
	}))
	kept := f.seed(t, "u1", 1, 1)

	report, err := f.maintenance.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Impacts)
	assert.Equal(t, int64(5), report.Evidence)
	assert.Equal(t, int64(1), report.History)
	assert.Equal(t, int64(8), report.Total())

	assert.Equal(t, int64(1), f.count(t, &model.Impact{}))
	assert.Equal(t, int64(1), f.count(t, &model.Evidence{}))
	_, err = f.articles.GetArticle(ctx, kept.Article.ID, true)
	assert.NoError(t, err)

	report, err = f.maintenance.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total())
}

func TestSweepOrphans_GraceKeepsRecentRows(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 2, 2)
	ctx := context.Background()
	sweeper := NewMaintenanceService(f.store, f.cache, time.Hour)

	require.NoError(t, f.db.Delete(&model.Article{}, "id = ?", view.Article.ID).Error)

	report, err := sweeper.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total())

	old := time.Now().Add(-2 * time.Hour)
	for _, table := range []interface{}{&model.Impact{}, &model.Evidence{}, &model.AnalysisHistory{}} {
		require.NoError(t, f.db.Model(table).Where("1 = 1").UpdateColumn("created_at", old).Error)
	}

	report, err = sweeper.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Impacts)
	assert.Equal(t, int64(4), report.Evidence)
	assert.Equal(t, int64(1), report.History)
}

func TestSweepOrphans_DuringAnalysis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sweeper := NewMaintenanceService(f.store, f.cache, time.Hour)
	s := &sweepingStore{Store: f.store, sweep: func(ctx context.Context) {
		_, err := sweeper.SweepOrphans(ctx)
		assert.NoError(t, err)
	}}
	svc := f.analysisService(t, staticExtractor(makeAnalysis(1, 1)), s)

	result, err := svc.Analyze(ctx, AnalyzeRequest{UserID: "u1", Content: "The central bank raised rates."})
	require.NoError(t, err)

	view, err := f.articles.GetArticle(ctx, result.ArticleID, true)
	require.NoError(t, err)
	require.Len(t, view.Impacts, 1)
	require.Len(t, view.Impacts[0].SupportingEvidenceIDs, 1)
	assert.Len(t, view.Impacts[0].SupportingEvidence, 1)
	assert.Equal(t, int64(1), f.count(t, &model.Evidence{}))
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	view := f.seed(t, "u1", 2, 2)
	_, err := f.articles.GetArticle(context.Background(), view.Article.ID, false)
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.size())

	require.NoError(t, f.maintenance.Cleanup(context.Background()))
	assert.Zero(t, f.cache.size())
	assert.Zero(t, f.count(t, &model.Article{}))
	assert.Zero(t, f.count(t, &model.Impact{}))
	assert.Zero(t, f.count(t, &model.Evidence{}))
	assert.Zero(t, f.count(t, &model.AnalysisHistory{}))
}
