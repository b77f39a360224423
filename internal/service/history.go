package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/store"
	"github.com/sirupsen/logrus"
)

type HistoryArticle struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	URL             string    `json:"url,omitempty"`
	ImpactingEntity string    `json:"impacting_entity"`
	ImpactCount     int64     `json:"cnt_of_impacts"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type HistoryView struct {
	*model.AnalysisHistory
	Article *HistoryArticle `json:"article"`
}

type HistoryService struct {
	store store.Store
}

func NewHistoryService(store store.Store) *HistoryService {
	return &HistoryService{store: store}
}

// ListHistory returns the user's analyses newest first with live impact
// counts. Entries whose article is gone are skipped.
func (s *HistoryService) ListHistory(ctx context.Context, userID string) ([]*HistoryView, error) {
	views := make([]*HistoryView, 0)
	if userID == "" {
		return views, nil
	}

	entries, err := s.store.ListHistoryByUser(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "list history of %s", userID)
	}

	for _, entry := range entries {
		article, err := s.store.GetArticle(ctx, entry.ArticleID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logrus.Warnf("article %s of history entry %s not found, skipping", entry.ArticleID, entry.ID)
			} else {
				logrus.Warnf("failed to read article %s of history entry %s: %v", entry.ArticleID, entry.ID, err)
			}
			continue
		}

		count, err := s.store.CountImpactsByArticle(ctx, entry.ArticleID)
		if err != nil {
			logrus.Warnf("failed to count impacts of article %s, using stored count: %v", entry.ArticleID, err)
			count = int64(entry.ImpactCount)
		}
		entry.ImpactCount = int(count)

		views = append(views, &HistoryView{
			AnalysisHistory: entry,
			Article: &HistoryArticle{
				ID:              article.ID,
				Title:           article.Title,
				Summary:         Summary(article.Content),
				URL:             article.URL,
				ImpactingEntity: article.ImpactingEntity,
				ImpactCount:     count,
				CreatedAt:       article.CreatedAt,
				UpdatedAt:       article.UpdatedAt,
			},
		})
	}

	return views, nil
}

// DeleteHistory removes one of the user's history entries.
func (s *HistoryService) DeleteHistory(ctx context.Context, userID, id string) error {
	entry, err := s.store.GetHistory(ctx, id)
	if err != nil {
		return storageErr(err, "history entry %s", id)
	}
	if entry.UserID != userID {
		return fmt.Errorf("%w: history entry %s", ErrNotFound, id)
	}

	if err := s.store.DeleteHistory(ctx, id); err != nil {
		return storageErr(err, "delete history entry %s", id)
	}

	return nil
}
