package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/emrgen/impact/internal/analysis"
	"github.com/emrgen/impact/internal/cache"
	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/queue"
	"github.com/emrgen/impact/internal/store"
	"github.com/emrgen/impact/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type extractorFunc func(ctx context.Context, content string) (*analysis.AnalysisData, error)

func (f extractorFunc) Extract(ctx context.Context, content string) (*analysis.AnalysisData, error) {
	return f(ctx, content)
}

func staticExtractor(data *analysis.AnalysisData) Extractor {
	return extractorFunc(func(ctx context.Context, content string) (*analysis.AnalysisData, error) {
		return data, nil
	})
}

// faultyStore rejects selected writes.
type faultyStore struct {
	store.Store
	failEvidence string
	failDelete   bool
}

func (f *faultyStore) CreateEvidence(ctx context.Context, evidence *model.Evidence) error {
	if f.failEvidence != "" && evidence.Description == f.failEvidence {
		return errors.New("evidence write rejected")
	}
	return f.Store.CreateEvidence(ctx, evidence)
}

func (f *faultyStore) DeleteArticle(ctx context.Context, id string) error {
	if f.failDelete {
		return errors.New("delete rejected")
	}
	return f.Store.DeleteArticle(ctx, id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// memoryCache is an ArticleCache that records invalidations.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*cache.ArticleEntry
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*cache.ArticleEntry)}
}

func (c *memoryCache) GetArticle(ctx context.Context, id string) (*cache.ArticleEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id], nil
}

func (c *memoryCache) SetArticle(ctx context.Context, id string, entry *cache.ArticleEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry
	return nil
}

func (c *memoryCache) DeleteArticle(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.deleted = append(c.deleted, id)
	return nil
}

func (c *memoryCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cache.ArticleEntry)
	return nil
}

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepingStore runs a sweep right after every evidence write, before the
// impact listing that evidence exists.
type sweepingStore struct {
	store.Store
	sweep func(ctx context.Context)
}

func (s *sweepingStore) CreateEvidence(ctx context.Context, evidence *model.Evidence) error {
	if err := s.Store.CreateEvidence(ctx, evidence); err != nil {
		return err
	}
	s.sweep(ctx)
	return nil
}

type fixture struct {
	db          *gorm.DB
	store       store.Store
	cache       *memoryCache
	publisher   *recordingPublisher
	articles    *ArticleService
	impacts     *ImpactService
	history     *HistoryService
	maintenance *MaintenanceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := tester.TestDB(t)
	s := store.NewGormStore(db, nil)
	c := newMemoryCache()
	p := &recordingPublisher{}
	articles := NewArticleService(s, c, p)

	return &fixture{
		db:          db,
		store:       s,
		cache:       c,
		publisher:   p,
		articles:    articles,
		impacts:     NewImpactService(s, articles, p),
		history:     NewHistoryService(s),
		maintenance: NewMaintenanceService(s, c, 0),
	}
}

func (f *fixture) analysisService(t *testing.T, extractor Extractor, s store.Store) *AnalysisService {
	t.Helper()

	classifier, err := analysis.NewClassifier()
	require.NoError(t, err)
	if s == nil {
		s = f.store
	}

	return NewAnalysisService(AnalysisDeps{
		Store:      s,
		Classifier: classifier,
		Extractor:  extractor,
		Publisher:  f.publisher,
		Articles:   f.articles,
	})
}

func (f *fixture) count(t *testing.T, table interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(table).Count(&n).Error)
	return n
}

func confidence(v float64) *float64 {
	return &v
}

// makeAnalysis builds n impacts with m evidence items each.
func makeAnalysis(n, m int) *analysis.AnalysisData {
	data := &analysis.AnalysisData{
		ArticleTitle:    "Rate decision",
		ImpactingEntity: "Central Bank",
		Impacts:         make([]analysis.ImpactData, 0, n),
	}
	for i := 0; i < n; i++ {
		impact := analysis.ImpactData{
			ImpactedEntity:     fmt.Sprintf("Entity %d", i+1),
			Impact:             fmt.Sprintf("Impact %d", i+1),
			Score:              0.5 - float64(i)*0.4,
			Confidence:         confidence(0.8),
			Source:             analysis.SourceSystem,
			SupportingEvidence: make([]analysis.EvidenceData, 0, m),
		}
		for j := 0; j < m; j++ {
			impact.SupportingEvidence = append(impact.SupportingEvidence, analysis.EvidenceData{
				Description: fmt.Sprintf("evidence %d.%d", i+1, j+1),
				SourceURL:   "https://example.com/placeholder",
				Source:      analysis.SourceSystem,
			})
		}
		data.Impacts = append(data.Impacts, impact)
	}
	return data
}

// seed analyzes a generated article for userID and returns its view.
func (f *fixture) seed(t *testing.T, userID string, n, m int) *ArticleWithImpacts {
	t.Helper()

	svc := f.analysisService(t, staticExtractor(makeAnalysis(n, m)), nil)
	result, err := svc.Analyze(context.Background(), AnalyzeRequest{UserID: userID, Content: "Line one of the story\nLine two\nLine three"})
	require.NoError(t, err)

	view, err := f.articles.GetArticle(context.Background(), result.ArticleID, true)
	require.NoError(t, err)
	return view
}

func (f *fixture) legacyImpact(t *testing.T, articleID, evidence string) *model.Impact {
	t.Helper()

	impact := &model.Impact{
		ID:                 uuid.New().String(),
		ArticleID:          articleID,
		ImpactedEntity:     "Consumers",
		Impact:             "Higher prices",
		Score:              -0.4,
		Source:             analysis.SourceSystem,
		SupportingEvidence: datatypes.JSON(evidence),
	}
	require.NoError(t, f.store.CreateImpact(context.Background(), impact))
	return impact
}
