package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/emrgen/impact/internal/cache"
	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/queue"
	"github.com/emrgen/impact/internal/store"
	"github.com/sirupsen/logrus"
)

const summaryLength = 100

type ArticleView struct {
	*model.Article
	Summary string `json:"summary"`
}

type ImpactView struct {
	*model.Impact
	// SupportingEvidence is resolved from SupportingEvidenceIDs on request.
	SupportingEvidence []*model.Evidence `json:"supporting_evidence,omitempty"`
}

type ArticleWithImpacts struct {
	Article *ArticleView  `json:"article"`
	Impacts []*ImpactView `json:"impacts"`
}

type ArticleService struct {
	store     store.Store
	cache     cache.ArticleCache
	publisher queue.Publisher
}

func NewArticleService(store store.Store, articleCache cache.ArticleCache, publisher queue.Publisher) *ArticleService {
	if articleCache == nil {
		articleCache = cache.NopArticleCache{}
	}
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}

	return &ArticleService{store: store, cache: articleCache, publisher: publisher}
}

// GetArticle returns the article with its impacts. With withEvidence each
// impact's evidence is looked up by ID; evidence that cannot be read is left out.
func (s *ArticleService) GetArticle(ctx context.Context, id string, withEvidence bool) (*ArticleWithImpacts, error) {
	entry, err := s.cache.GetArticle(ctx, id)
	if err != nil {
		logrus.Warnf("article cache read failed for %s: %v", id, err)
		entry = nil
	}

	if entry == nil {
		article, err := s.store.GetArticle(ctx, id)
		if err != nil {
			return nil, storageErr(err, "article %s", id)
		}

		impacts, err := s.store.ListImpactsByArticle(ctx, id)
		if err != nil {
			return nil, storageErr(err, "impacts of article %s", id)
		}

		entry = &cache.ArticleEntry{Article: article, Impacts: impacts}
		if err := s.cache.SetArticle(ctx, id, entry); err != nil {
			logrus.Warnf("article cache write failed for %s: %v", id, err)
		}
	}

	view := &ArticleWithImpacts{
		Article: &ArticleView{Article: entry.Article, Summary: Summary(entry.Article.Content)},
		Impacts: make([]*ImpactView, 0, len(entry.Impacts)),
	}
	for _, impact := range entry.Impacts {
		item := &ImpactView{Impact: impact}
		if withEvidence {
			item.SupportingEvidence = s.resolveEvidence(ctx, impact)
		}
		view.Impacts = append(view.Impacts, item)
	}

	return view, nil
}

func (s *ArticleService) resolveEvidence(ctx context.Context, impact *model.Impact) []*model.Evidence {
	evidence := make([]*model.Evidence, 0, len(impact.SupportingEvidenceIDs))
	for _, id := range impact.SupportingEvidenceIDs {
		item, err := s.store.GetEvidence(ctx, id)
		if err != nil {
			logrus.Warnf("skipping evidence %s of impact %s: %v", id, impact.ID, err)
			continue
		}
		evidence = append(evidence, item)
	}

	return evidence
}

// DeleteArticle removes an owned article with its impacts, their evidence
// and its history entries in one transaction.
func (s *ArticleService) DeleteArticle(ctx context.Context, userID, id string) error {
	article, err := s.store.GetArticle(ctx, id)
	if err != nil {
		return storageErr(err, "article %s", id)
	}
	if article.UserID != "" && article.UserID != userID {
		return fmt.Errorf("%w: article %s", ErrNotFound, id)
	}

	var removed int64
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		impacts, err := tx.ListImpactsByArticle(ctx, id)
		if err != nil {
			return err
		}

		impactIDs := make([]string, 0, len(impacts))
		for _, impact := range impacts {
			impactIDs = append(impactIDs, impact.ID)
		}

		if _, err := tx.DeleteEvidenceByImpacts(ctx, impactIDs); err != nil {
			return err
		}
		if removed, err = tx.DeleteImpactsByArticle(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DeleteHistoryByArticle(ctx, id); err != nil {
			return err
		}

		return tx.DeleteArticle(ctx, id)
	})
	if err != nil {
		return storageErr(err, "delete article %s", id)
	}
	logrus.Infof("deleted article %s with %d impacts", id, removed)

	s.invalidate(ctx, id)
	if err := s.publisher.Publish(ctx, queue.Event{Type: queue.EventArticleDeleted, ArticleID: id, UserID: userID}); err != nil {
		logrus.Warnf("failed to publish delete event for %s: %v", id, err)
	}

	return nil
}

func (s *ArticleService) GetEvidence(ctx context.Context, id string) (*model.Evidence, error) {
	evidence, err := s.store.GetEvidence(ctx, id)
	if err != nil {
		return nil, storageErr(err, "evidence %s", id)
	}

	return evidence, nil
}

func (s *ArticleService) invalidate(ctx context.Context, articleID string) {
	if err := s.cache.DeleteArticle(ctx, articleID); err != nil {
		logrus.Warnf("article cache invalidation failed for %s: %v", articleID, err)
	}
}

// Summary is the first two lines of content joined and cut to 100 characters.
func Summary(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) > 2 {
		lines = lines[:2]
	}

	summary := []rune(strings.Join(lines, " "))
	if len(summary) > summaryLength {
		summary = summary[:summaryLength]
	}

	return string(summary) + "..."
}
