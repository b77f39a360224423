package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/impact/internal/analysis"
	"github.com/emrgen/impact/internal/archive"
	"github.com/emrgen/impact/internal/fetch"
	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/queue"
	"github.com/emrgen/impact/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Extractor produces AnalysisData for article text.
type Extractor interface {
	Extract(ctx context.Context, content string) (*analysis.AnalysisData, error)
}

// Fetcher downloads the readable text of an article URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

type AnalyzeRequest struct {
	// AttemptID keys the request; retries with the same ID never create a
	// second article. While one request holds the ID, others get ErrConflict.
	// Generated when empty.
	AttemptID string
	UserID    string
	Content   string
	URL       string
}

type AnalyzeResult struct {
	AttemptID string                 `json:"attemptId"`
	ArticleID string                 `json:"articleId"`
	Analysis  *analysis.AnalysisData `json:"analysis"`
}

// AnalysisDeps are the collaborators of AnalysisService. Optional ones
// default to no-ops.
type AnalysisDeps struct {
	Store      store.Store
	Classifier *analysis.Classifier
	Extractor  Extractor
	Fetcher    Fetcher
	Publisher  queue.Publisher
	Archiver   archive.Archiver
	Articles   *ArticleService
	// Lease is how long a pending attempt holds its ID. Defaults to
	// defaultAttemptLease.
	Lease time.Duration
}

const defaultAttemptLease = 10 * time.Minute

// AnalysisService runs the analyze pipeline: classify or extract, write the
// article with its impacts, evidence and history, compensate on failure.
type AnalysisService struct {
	store      store.Store
	classifier *analysis.Classifier
	extractor  Extractor
	fetcher    Fetcher
	publisher  queue.Publisher
	archiver   archive.Archiver
	articles   *ArticleService
	lease      time.Duration
}

func NewAnalysisService(deps AnalysisDeps) *AnalysisService {
	s := &AnalysisService{
		store:      deps.Store,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		fetcher:    deps.Fetcher,
		publisher:  deps.Publisher,
		archiver:   deps.Archiver,
		articles:   deps.Articles,
		lease:      deps.Lease,
	}
	if s.lease <= 0 {
		s.lease = defaultAttemptLease
	}
	if s.publisher == nil {
		s.publisher = queue.NopPublisher{}
	}
	if s.archiver == nil {
		s.archiver = archive.Nop{}
	}
	if s.articles == nil {
		s.articles = NewArticleService(deps.Store, nil, s.publisher)
	}

	return s
}

func (a *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	req.Content = strings.TrimSpace(req.Content)
	req.URL = strings.TrimSpace(req.URL)
	if req.Content == "" && req.URL == "" {
		return nil, invalid("article content is required")
	}

	attempt, err := a.beginAttempt(ctx, req)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptCompleted {
		logrus.Infof("analysis attempt %s already completed, returning article %s", attempt.ID, attempt.ArticleID)
		return a.replay(ctx, attempt)
	}

	result, err := a.run(ctx, attempt)
	if err != nil {
		attempt.Status = model.AttemptFailed
		attempt.LastError = err.Error()
		if serr := a.store.SaveAttempt(context.WithoutCancel(ctx), attempt); serr != nil {
			logrus.Errorf("failed to record failed analysis attempt %s: %v", attempt.ID, serr)
		}
		return nil, err
	}

	return result, nil
}

// beginAttempt claims the attempt for req. Only one request at a time runs
// an attempt; a pending one is taken over only after its lease ran out.
func (a *AnalysisService) beginAttempt(ctx context.Context, req AnalyzeRequest) (*model.AnalysisAttempt, error) {
	if req.AttemptID == "" {
		req.AttemptID = uuid.New().String()
	}

	attempt, err := a.store.GetAttempt(ctx, req.AttemptID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		attempt = &model.AnalysisAttempt{
			ID:       req.AttemptID,
			UserID:   req.UserID,
			Content:  req.Content,
			URL:      req.URL,
			Status:   model.AttemptPending,
			Attempts: 1,
		}
		created, err := a.store.CreateAttempt(ctx, attempt)
		if err != nil {
			return nil, storageErr(err, "create analysis attempt")
		}
		if !created {
			return nil, fmt.Errorf("%w: analysis %s is already running", ErrConflict, req.AttemptID)
		}
		return attempt, nil
	case err != nil:
		return nil, storageErr(err, "get analysis attempt")
	}

	if attempt.UserID != req.UserID || attempt.Content != req.Content || attempt.URL != req.URL {
		return nil, invalid("idempotency key %s was used for a different request", req.AttemptID)
	}
	if attempt.Status == model.AttemptCompleted {
		return attempt, nil
	}

	claimed, err := a.store.ClaimAttempt(ctx, attempt.ID, time.Now().Add(-a.lease))
	if err != nil {
		return nil, storageErr(err, "claim analysis attempt")
	}
	if !claimed {
		return nil, fmt.Errorf("%w: analysis %s is already running", ErrConflict, req.AttemptID)
	}

	attempt.Status = model.AttemptPending
	attempt.Attempts++
	attempt.ArticleID = ""

	return attempt, nil
}

func (a *AnalysisService) run(ctx context.Context, attempt *model.AnalysisAttempt) (*AnalyzeResult, error) {
	content := attempt.Content
	if content == "" {
		page, err := a.fetch(ctx, attempt.URL)
		if err != nil {
			return nil, err
		}
		content = page.Text
	}

	data, err := a.analyze(ctx, content)
	if err != nil {
		return nil, err
	}
	if data.ArticleURL == "" && attempt.URL != "" {
		data.ArticleURL = attempt.URL
	}

	article := &model.Article{
		ID:              uuid.New().String(),
		Title:           data.ArticleTitle,
		Content:         content,
		URL:             data.ArticleURL,
		ImpactingEntity: data.ImpactingEntity,
		UserID:          attempt.UserID,
	}
	if err := a.store.CreateArticle(ctx, article); err != nil {
		return nil, storageErr(err, "create article")
	}

	if err := a.persist(ctx, attempt.UserID, article, data); err != nil {
		a.compensate(ctx, article.ID, err)
		return nil, err
	}

	attempt.Status = model.AttemptCompleted
	attempt.ArticleID = article.ID
	attempt.LastError = ""
	if err := a.store.SaveAttempt(ctx, attempt); err != nil {
		// the analysis is stored, a retry will find the article missing
		// from the attempt and create another one
		logrus.Errorf("failed to complete analysis attempt %s: %v", attempt.ID, err)
	}

	a.announce(ctx, attempt, article, data)

	return &AnalyzeResult{AttemptID: attempt.ID, ArticleID: article.ID, Analysis: data}, nil
}

func (a *AnalysisService) fetch(ctx context.Context, url string) (*fetch.Page, error) {
	if a.fetcher == nil {
		return nil, invalid("article content is required")
	}

	page, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}

	return page, nil
}

// analyze returns the fixture for known topics, otherwise asks the extractor.
func (a *AnalysisService) analyze(ctx context.Context, content string) (*analysis.AnalysisData, error) {
	if a.classifier != nil {
		if data, ok := a.classifier.Classify(content); ok {
			logrus.Infof("content matched fixture %q", data.ArticleTitle)
			return data, nil
		}
	}

	if a.extractor == nil {
		return nil, fmt.Errorf("%w: no extractor configured", ErrUpstreamFailure)
	}

	data, err := a.extractor.Extract(ctx, content)
	if err != nil {
		logrus.Errorf("impact extraction failed: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}

	return data, nil
}

// compensate deletes the article of a failed analysis. Children written
// before the failure are left for the orphan sweep.
func (a *AnalysisService) compensate(ctx context.Context, articleID string, cause error) {
	logrus.Warnf("analysis of article %s failed, deleting it: %v", articleID, cause)

	ctx = context.WithoutCancel(ctx)
	if err := a.store.DeleteArticle(ctx, articleID); err != nil {
		logrus.Errorf("failed to delete article %s after failed analysis: %v", articleID, err)
		return
	}
	a.articles.invalidate(ctx, articleID)
}

func (a *AnalysisService) announce(ctx context.Context, attempt *model.AnalysisAttempt, article *model.Article, data *analysis.AnalysisData) {
	record := &archive.Record{
		ArticleID:  article.ID,
		UserID:     article.UserID,
		Content:    article.Content,
		URL:        article.URL,
		Analysis:   data,
		ArchivedAt: time.Now(),
	}
	if err := a.archiver.Put(ctx, record); err != nil {
		logrus.Warnf("failed to archive article %s: %v", article.ID, err)
	}

	err := a.publisher.Publish(ctx, queue.Event{
		Type:      queue.EventAnalysisCompleted,
		ArticleID: article.ID,
		UserID:    article.UserID,
		Attrs: map[string]string{
			"attempt_id":   attempt.ID,
			"impact_count": fmt.Sprint(len(data.Impacts)),
		},
	})
	if err != nil {
		logrus.Warnf("failed to publish analysis event for %s: %v", article.ID, err)
	}
}

// replay rebuilds the result of a completed attempt from stored rows.
func (a *AnalysisService) replay(ctx context.Context, attempt *model.AnalysisAttempt) (*AnalyzeResult, error) {
	view, err := a.articles.GetArticle(ctx, attempt.ArticleID, true)
	if err != nil {
		return nil, err
	}

	data := &analysis.AnalysisData{
		ArticleTitle:    view.Article.Title,
		ArticleURL:      view.Article.URL,
		ImpactingEntity: view.Article.ImpactingEntity,
		Impacts:         make([]analysis.ImpactData, 0, len(view.Impacts)),
	}
	for _, impact := range view.Impacts {
		item := analysis.ImpactData{
			ImpactedEntity:     impact.ImpactedEntity,
			Impact:             impact.Impact.Impact,
			Score:              impact.Score,
			Confidence:         impact.Confidence,
			Source:             impact.Source,
			SupportingEvidence: make([]analysis.EvidenceData, 0, len(impact.SupportingEvidence)),
		}
		for _, evidence := range impact.SupportingEvidence {
			item.SupportingEvidence = append(item.SupportingEvidence, analysis.EvidenceData{
				Description: evidence.Description,
				SourceURL:   evidence.SourceURL,
				Source:      evidence.Source,
			})
		}
		data.Impacts = append(data.Impacts, item)
	}

	return &AnalyzeResult{AttemptID: attempt.ID, ArticleID: attempt.ArticleID, Analysis: data}, nil
}

// RetryFailed re-runs failed attempts that have not used up maxAttempts.
func (a *AnalysisService) RetryFailed(ctx context.Context, maxAttempts, limit int) (int, error) {
	attempts, err := a.store.ListRetryableAttempts(ctx, maxAttempts, limit)
	if err != nil {
		return 0, storageErr(err, "list failed attempts")
	}

	completed := 0
	for _, attempt := range attempts {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}

		_, err := a.Analyze(ctx, AnalyzeRequest{
			AttemptID: attempt.ID,
			UserID:    attempt.UserID,
			Content:   attempt.Content,
			URL:       attempt.URL,
		})
		if err != nil {
			logrus.Warnf("retry %d of analysis attempt %s failed: %v", attempt.Attempts+1, attempt.ID, err)
			continue
		}
		completed++
	}

	return completed, nil
}
