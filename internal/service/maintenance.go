package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/emrgen/impact/internal/analysis"
	"github.com/emrgen/impact/internal/cache"
	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type BackfillReport struct {
	Scanned         int `json:"scanned"`
	Migrated        int `json:"migrated"`
	EvidenceCreated int `json:"evidence_created"`
	Failed          int `json:"failed"`
}

type SweepReport struct {
	Impacts  int64 `json:"impacts"`
	Evidence int64 `json:"evidence"`
	History  int64 `json:"history"`
}

func (r SweepReport) Total() int64 {
	return r.Impacts + r.Evidence + r.History
}

// MaintenanceService holds operator tasks run from the CLI and jobs.
type MaintenanceService struct {
	store store.Store
	cache cache.ArticleCache
	// grace keeps rows younger than this out of the orphan sweep; a running
	// analysis writes evidence before the impact that lists it.
	grace time.Duration
}

func NewMaintenanceService(store store.Store, articleCache cache.ArticleCache, grace time.Duration) *MaintenanceService {
	if articleCache == nil {
		articleCache = cache.NopArticleCache{}
	}

	return &MaintenanceService{store: store, cache: articleCache, grace: grace}
}

// BackfillEvidenceIDs moves embedded evidence of impacts without an evidence
// ID list into evidence rows. Impacts that already have a list are not
// touched, so running it again is a no-op.
func (m *MaintenanceService) BackfillEvidenceIDs(ctx context.Context) (*BackfillReport, error) {
	impacts, err := m.store.ListLegacyImpacts(ctx)
	if err != nil {
		return nil, storageErr(err, "list legacy impacts")
	}

	report := &BackfillReport{Scanned: len(impacts)}
	for _, impact := range impacts {
		var created int
		err := m.store.Transaction(ctx, func(tx store.Store) error {
			// re-read inside the transaction, a concurrent run may have won
			current, err := tx.GetImpact(ctx, impact.ID)
			if err != nil {
				return err
			}
			if current.SupportingEvidenceIDs != nil {
				return nil
			}

			ids, n, err := migrateLegacyEvidence(ctx, tx, current)
			if err != nil {
				return err
			}
			created = n

			return tx.SetEvidenceIDs(ctx, current.ID, ids)
		})
		if err != nil {
			report.Failed++
			logrus.Errorf("failed to migrate evidence of impact %s: %v", impact.ID, err)
			continue
		}

		report.Migrated++
		report.EvidenceCreated += created
	}

	logrus.Infof("evidence backfill: scanned %d, migrated %d, created %d evidence, failed %d",
		report.Scanned, report.Migrated, report.EvidenceCreated, report.Failed)

	return report, nil
}

// migrateLegacyEvidence creates evidence rows for the embedded evidence of
// impact and returns their IDs. It does not update the impact.
func migrateLegacyEvidence(ctx context.Context, tx store.Store, impact *model.Impact) ([]string, int, error) {
	var legacy []model.LegacyEvidence
	if raw := strings.TrimSpace(string(impact.SupportingEvidence)); raw != "" && raw != "null" {
		if err := json.Unmarshal(impact.SupportingEvidence, &legacy); err != nil {
			return nil, 0, fmt.Errorf("impact %s has unreadable embedded evidence: %w", impact.ID, err)
		}
	}

	ids := make([]string, 0, len(legacy))
	for _, item := range legacy {
		if strings.TrimSpace(item.Description) == "" {
			continue
		}

		source := item.Source
		if source != analysis.SourceUser {
			source = analysis.SourceSystem
		}
		sourceURL := item.SourceURL
		if analysis.IsPlaceholderURL(sourceURL) {
			sourceURL = ""
		}

		evidence := &model.Evidence{
			ID:          uuid.New().String(),
			ImpactID:    impact.ID,
			Description: item.Description,
			SourceURL:   sourceURL,
			Source:      source,
		}
		if err := tx.CreateEvidence(ctx, evidence); err != nil {
			return nil, 0, err
		}
		ids = append(ids, evidence.ID)
	}

	return ids, len(ids), nil
}

// SweepOrphans deletes impacts whose article is gone, then evidence whose
// impact is gone, then history whose article is gone. Only rows older than
// the grace period are considered. Cached article views are not touched:
// every swept row belongs to an article that no longer exists.
func (m *MaintenanceService) SweepOrphans(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	var before time.Time
	if m.grace > 0 {
		before = time.Now().Add(-m.grace)
	}

	var err error
	if report.Impacts, err = m.store.DeleteOrphanImpacts(ctx, before); err != nil {
		return report, storageErr(err, "sweep orphan impacts")
	}
	if report.Evidence, err = m.store.DeleteOrphanEvidence(ctx, before); err != nil {
		return report, storageErr(err, "sweep orphan evidence")
	}
	if report.History, err = m.store.DeleteOrphanHistory(ctx, before); err != nil {
		return report, storageErr(err, "sweep orphan history")
	}

	if report.Total() > 0 {
		logrus.Infof("orphan sweep removed %d impacts, %d evidence, %d history entries",
			report.Impacts, report.Evidence, report.History)
	}

	return report, nil
}

// Cleanup deletes every stored row and empties the article cache.
func (m *MaintenanceService) Cleanup(ctx context.Context) error {
	if err := m.store.DeleteAll(ctx); err != nil {
		return storageErr(err, "cleanup")
	}
	logrus.Warn("all articles, impacts, evidence and history were deleted")

	if err := m.cache.Flush(ctx); err != nil {
		return fmt.Errorf("%w: flush article cache: %w", ErrStorageFailure, err)
	}

	return nil
}
