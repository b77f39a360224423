package service

import (
	"context"

	"github.com/emrgen/impact/internal/analysis"
	"github.com/emrgen/impact/internal/model"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// persist writes the impacts of article with their evidence, then the
// history entry. Impacts are written concurrently. Within one impact the
// evidence rows exist before the impact that lists them.
func (a *AnalysisService) persist(ctx context.Context, userID string, article *model.Article, data *analysis.AnalysisData) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range data.Impacts {
		g.Go(func() error {
			return a.writeImpact(gctx, article.ID, i, &data.Impacts[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	entry := &model.AnalysisHistory{
		ID:          uuid.New().String(),
		UserID:      userID,
		ArticleID:   article.ID,
		Title:       article.Title,
		ImpactCount: len(data.Impacts),
	}
	if err := a.store.CreateHistory(ctx, entry); err != nil {
		return storageErr(err, "create history entry")
	}

	return nil
}

func (a *AnalysisService) writeImpact(ctx context.Context, articleID string, index int, data *analysis.ImpactData) error {
	impactID := uuid.New().String()

	ids := make([]string, 0, len(data.SupportingEvidence))
	for j, item := range data.SupportingEvidence {
		sourceURL := item.SourceURL
		if analysis.IsPlaceholderURL(sourceURL) {
			sourceURL = ""
		}
		source := item.Source
		if source == "" {
			source = analysis.SourceSystem
		}

		evidence := &model.Evidence{
			ID:          uuid.New().String(),
			ImpactID:    impactID,
			Description: item.Description,
			SourceURL:   sourceURL,
			Source:      source,
		}
		if err := a.store.CreateEvidence(ctx, evidence); err != nil {
			return storageErr(err, "create evidence %d of impact %d", j+1, index+1)
		}
		ids = append(ids, evidence.ID)
	}

	impact := &model.Impact{
		ID:                    impactID,
		ArticleID:             articleID,
		ImpactedEntity:        data.ImpactedEntity,
		Impact:                data.Impact,
		Score:                 data.Score,
		Confidence:            data.Confidence,
		Source:                data.Source,
		SupportingEvidenceIDs: ids,
	}
	if err := a.store.CreateImpact(ctx, impact); err != nil {
		return storageErr(err, "create impact %d", index+1)
	}

	return nil
}
