package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/emrgen/impact/internal/analysis"
	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/queue"
	"github.com/emrgen/impact/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	VoteUp   = "up"
	VoteDown = "down"
)

type CreateImpactRequest struct {
	ArticleID      string   `json:"articleId"`
	ImpactedEntity string   `json:"impactedEntity"`
	Impact         string   `json:"impact"`
	Score          *float64 `json:"score"`
	Confidence     *float64 `json:"confidence"`
	Source         string   `json:"source"`
}

type AddEvidenceRequest struct {
	ImpactID    string `json:"impactId"`
	Description string `json:"description"`
	SourceURL   string `json:"sourceUrl"`
}

// ImpactService handles user added impacts, evidence and votes.
type ImpactService struct {
	store     store.Store
	articles  *ArticleService
	publisher queue.Publisher
}

func NewImpactService(store store.Store, articles *ArticleService, publisher queue.Publisher) *ImpactService {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	return &ImpactService{store: store, articles: articles, publisher: publisher}
}

func (s *ImpactService) CreateImpact(ctx context.Context, userID string, req CreateImpactRequest) (*model.Impact, error) {
	req.ArticleID = strings.TrimSpace(req.ArticleID)
	req.ImpactedEntity = strings.TrimSpace(req.ImpactedEntity)
	req.Impact = strings.TrimSpace(req.Impact)
	if req.ArticleID == "" || req.ImpactedEntity == "" || req.Impact == "" || req.Score == nil {
		return nil, invalid("articleId, impactedEntity, impact and a numeric score are required")
	}
	if *req.Score < -1 || *req.Score > 1 {
		return nil, invalid("score must be between -1 and 1")
	}
	if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
		return nil, invalid("confidence must be between 0 and 1")
	}

	switch req.Source {
	case "":
		req.Source = analysis.SourceUser
	case analysis.SourceUser, analysis.SourceSystem:
	default:
		return nil, invalid("source must be %q or %q", analysis.SourceSystem, analysis.SourceUser)
	}

	if _, err := s.store.GetArticle(ctx, req.ArticleID); err != nil {
		return nil, storageErr(err, "article %s", req.ArticleID)
	}

	impact := &model.Impact{
		ID:                    uuid.New().String(),
		ArticleID:             req.ArticleID,
		ImpactedEntity:        req.ImpactedEntity,
		Impact:                req.Impact,
		Score:                 *req.Score,
		Confidence:            req.Confidence,
		Source:                req.Source,
		SupportingEvidenceIDs: []string{},
	}
	if err := s.store.CreateImpact(ctx, impact); err != nil {
		return nil, storageErr(err, "create impact")
	}

	s.articles.invalidate(ctx, impact.ArticleID)
	s.publish(ctx, queue.Event{Type: queue.EventImpactAdded, ArticleID: impact.ArticleID, ImpactID: impact.ID, UserID: userID})

	return impact, nil
}

func voteColumn(voteType string) (store.VoteColumn, error) {
	switch voteType {
	case VoteUp:
		return store.VotesUp, nil
	case VoteDown:
		return store.VotesDown, nil
	default:
		return "", invalid("voteType must be %q or %q", VoteUp, VoteDown)
	}
}

// Vote increments one vote counter of an impact and returns the updated impact.
func (s *ImpactService) Vote(ctx context.Context, userID, impactID, voteType string) (*model.Impact, error) {
	column, err := voteColumn(voteType)
	if err != nil {
		return nil, err
	}

	var updated *model.Impact
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetImpact(ctx, impactID); err != nil {
			return err
		}
		if err := tx.IncrementVote(ctx, impactID, column); err != nil {
			return err
		}

		var err error
		updated, err = tx.GetImpact(ctx, impactID)
		return err
	})
	if err != nil {
		return nil, storageErr(err, "vote on impact %s", impactID)
	}

	s.articles.invalidate(ctx, updated.ArticleID)
	s.publish(ctx, queue.Event{
		Type:      queue.EventImpactVoted,
		ArticleID: updated.ArticleID,
		ImpactID:  impactID,
		UserID:    userID,
		Attrs:     map[string]string{"vote": voteType},
	})

	return updated, nil
}

// VoteScoped votes on an impact only if it belongs to articleID.
func (s *ImpactService) VoteScoped(ctx context.Context, userID, articleID, impactID, voteType string) (*model.Impact, error) {
	if _, err := voteColumn(voteType); err != nil {
		return nil, err
	}

	if _, err := s.store.GetArticle(ctx, articleID); err != nil {
		return nil, storageErr(err, "article %s", articleID)
	}

	impact, err := s.store.GetImpact(ctx, impactID)
	if err != nil {
		return nil, storageErr(err, "impact %s", impactID)
	}
	if impact.ArticleID != articleID {
		return nil, fmt.Errorf("%w: impact %s not found in article %s", ErrNotFound, impactID, articleID)
	}

	return s.Vote(ctx, userID, impactID, voteType)
}

// AddEvidence creates user evidence and appends it to the impact's list in
// one transaction.
func (s *ImpactService) AddEvidence(ctx context.Context, userID string, req AddEvidenceRequest) (*model.Evidence, error) {
	req.ImpactID = strings.TrimSpace(req.ImpactID)
	req.Description = strings.TrimSpace(req.Description)
	if req.ImpactID == "" || req.Description == "" {
		return nil, invalid("impactId and description are required")
	}

	evidence := &model.Evidence{
		ID:          uuid.New().String(),
		ImpactID:    req.ImpactID,
		Description: req.Description,
		SourceURL:   strings.TrimSpace(req.SourceURL),
		Source:      analysis.SourceUser,
	}

	var articleID string
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		impact, err := tx.GetImpact(ctx, req.ImpactID)
		if err != nil {
			return err
		}
		articleID = impact.ArticleID

		ids := impact.SupportingEvidenceIDs
		if ids == nil {
			// move legacy embedded evidence first so it is not lost
			if ids, _, err = migrateLegacyEvidence(ctx, tx, impact); err != nil {
				return err
			}
		}

		if err := tx.CreateEvidence(ctx, evidence); err != nil {
			return err
		}

		return tx.SetEvidenceIDs(ctx, impact.ID, append(ids, evidence.ID))
	})
	if err != nil {
		return nil, storageErr(err, "add evidence to impact %s", req.ImpactID)
	}

	s.articles.invalidate(ctx, articleID)
	s.publish(ctx, queue.Event{Type: queue.EventEvidenceAdded, ArticleID: articleID, ImpactID: req.ImpactID, UserID: userID})

	return evidence, nil
}

func (s *ImpactService) publish(ctx context.Context, event queue.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.Warnf("failed to publish %s event: %v", event.Type, err)
	}
}
