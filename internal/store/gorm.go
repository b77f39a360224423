package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/impact/internal/compress"
	"github.com/emrgen/impact/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewGormStore(db *gorm.DB, compressor compress.Compress) *GormStore {
	if compressor == nil {
		compressor = compress.NewNop()
	}

	return &GormStore{
		db:         db,
		compressor: compressor,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db         *gorm.DB
	compressor compress.Compress
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func (g *GormStore) CreateArticle(ctx context.Context, article *model.Article) error {
	encoded, err := compress.EncodeString(g.compressor, article.Content)
	if err != nil {
		return err
	}

	row := *article
	row.Content = encoded
	row.Compression = g.compressor.Name()
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	article.Compression = row.Compression
	article.CreatedAt = row.CreatedAt
	article.UpdatedAt = row.UpdatedAt

	return nil
}

func (g *GormStore) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	var article model.Article
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&article).Error; err != nil {
		return nil, notFound(err)
	}

	content, err := compress.DecodeString(article.Compression, article.Content)
	if err != nil {
		return nil, fmt.Errorf("article %s content is corrupted: %w", id, err)
	}
	article.Content = content

	return &article, nil
}

func (g *GormStore) ListArticles(ctx context.Context, limit int) ([]*model.Article, error) {
	var articles []*model.Article
	query := g.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&articles).Error; err != nil {
		return nil, err
	}

	for _, article := range articles {
		content, err := compress.DecodeString(article.Compression, article.Content)
		if err != nil {
			return nil, fmt.Errorf("article %s content is corrupted: %w", article.ID, err)
		}
		article.Content = content
	}

	return articles, nil
}

func (g *GormStore) DeleteArticle(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Article{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: article %s", ErrNotFound, id)
	}

	return nil
}

func (g *GormStore) CreateImpact(ctx context.Context, impact *model.Impact) error {
	if len(impact.SupportingEvidence) == 0 {
		impact.SupportingEvidence = datatypes.JSON("[]")
	}
	return g.db.WithContext(ctx).Create(impact).Error
}

func (g *GormStore) GetImpact(ctx context.Context, id string) (*model.Impact, error) {
	var impact model.Impact
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&impact).Error; err != nil {
		return nil, notFound(err)
	}

	return &impact, nil
}

func (g *GormStore) ListImpactsByArticle(ctx context.Context, articleID string) ([]*model.Impact, error) {
	var impacts []*model.Impact
	err := g.db.WithContext(ctx).Where("article_id = ?", articleID).Order("created_at asc").Find(&impacts).Error
	return impacts, err
}

func (g *GormStore) CountImpactsByArticle(ctx context.Context, articleID string) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.Impact{}).Where("article_id = ?", articleID).Count(&count).Error
	return count, err
}

func (g *GormStore) IncrementVote(ctx context.Context, id string, column VoteColumn) error {
	if column != VotesUp && column != VotesDown {
		return fmt.Errorf("unknown vote column: %s", column)
	}

	res := g.db.WithContext(ctx).Model(&model.Impact{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		string(column): gorm.Expr(string(column)+" + ?", 1),
		"updated_at":   time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: impact %s", ErrNotFound, id)
	}

	return nil
}

func (g *GormStore) SetEvidenceIDs(ctx context.Context, id string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}

	res := g.db.WithContext(ctx).Model(&model.Impact{ID: id}).
		Select("supporting_evidence_ids", "supporting_evidence", "updated_at").
		Updates(&model.Impact{
			SupportingEvidenceIDs: ids,
			SupportingEvidence:    datatypes.JSON("[]"),
			UpdatedAt:             time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: impact %s", ErrNotFound, id)
	}

	return nil
}

func (g *GormStore) DeleteImpactsByArticle(ctx context.Context, articleID string) (int64, error) {
	res := g.db.WithContext(ctx).Where("article_id = ?", articleID).Delete(&model.Impact{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) ListLegacyImpacts(ctx context.Context) ([]*model.Impact, error) {
	var impacts []*model.Impact
	err := g.db.WithContext(ctx).
		Where("supporting_evidence_ids IS NULL OR supporting_evidence_ids = ?", "null").
		Find(&impacts).Error
	return impacts, err
}

func (g *GormStore) CreateEvidence(ctx context.Context, evidence *model.Evidence) error {
	return g.db.WithContext(ctx).Create(evidence).Error
}

func (g *GormStore) GetEvidence(ctx context.Context, id string) (*model.Evidence, error) {
	var evidence model.Evidence
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&evidence).Error; err != nil {
		return nil, notFound(err)
	}

	return &evidence, nil
}

func (g *GormStore) ListEvidenceByImpact(ctx context.Context, impactID string) ([]*model.Evidence, error) {
	var evidence []*model.Evidence
	err := g.db.WithContext(ctx).Where("impact_id = ?", impactID).Order("created_at asc").Find(&evidence).Error
	return evidence, err
}

func (g *GormStore) DeleteEvidenceByImpacts(ctx context.Context, impactIDs []string) (int64, error) {
	if len(impactIDs) == 0 {
		return 0, nil
	}

	res := g.db.WithContext(ctx).Where("impact_id IN ?", impactIDs).Delete(&model.Evidence{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) CreateHistory(ctx context.Context, entry *model.AnalysisHistory) error {
	return g.db.WithContext(ctx).Create(entry).Error
}

func (g *GormStore) GetHistory(ctx context.Context, id string) (*model.AnalysisHistory, error) {
	var entry model.AnalysisHistory
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, notFound(err)
	}

	return &entry, nil
}

func (g *GormStore) ListHistoryByUser(ctx context.Context, userID string) ([]*model.AnalysisHistory, error) {
	var entries []*model.AnalysisHistory
	err := g.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&entries).Error
	return entries, err
}

func (g *GormStore) DeleteHistory(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.AnalysisHistory{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: history %s", ErrNotFound, id)
	}

	return nil
}

func (g *GormStore) DeleteHistoryByArticle(ctx context.Context, articleID string) (int64, error) {
	res := g.db.WithContext(ctx).Where("article_id = ?", articleID).Delete(&model.AnalysisHistory{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) GetAttempt(ctx context.Context, id string) (*model.AnalysisAttempt, error) {
	var attempt model.AnalysisAttempt
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		return nil, notFound(err)
	}

	return &attempt, nil
}

func (g *GormStore) CreateAttempt(ctx context.Context, attempt *model.AnalysisAttempt) (bool, error) {
	res := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(attempt)
	return res.RowsAffected == 1, res.Error
}

func (g *GormStore) ClaimAttempt(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	res := g.db.WithContext(ctx).
		Model(&model.AnalysisAttempt{}).
		Where("id = ? AND (status <> ? OR updated_at < ?)", id, model.AttemptPending, staleBefore).
		Updates(map[string]interface{}{
			"status":     model.AttemptPending,
			"attempts":   gorm.Expr("attempts + 1"),
			"article_id": "",
			"updated_at": time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

func (g *GormStore) SaveAttempt(ctx context.Context, attempt *model.AnalysisAttempt) error {
	return g.db.WithContext(ctx).Save(attempt).Error
}

func (g *GormStore) ListRetryableAttempts(ctx context.Context, maxAttempts, limit int) ([]*model.AnalysisAttempt, error) {
	var attempts []*model.AnalysisAttempt
	query := g.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", model.AttemptFailed, maxAttempts).
		Order("updated_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&attempts).Error
	return attempts, err
}

func createdBefore(db *gorm.DB, before time.Time) *gorm.DB {
	if before.IsZero() {
		return db
	}
	return db.Where("created_at < ?", before)
}

func (g *GormStore) DeleteOrphanImpacts(ctx context.Context, before time.Time) (int64, error) {
	db := g.db.WithContext(ctx)
	res := createdBefore(db, before).
		Where("article_id NOT IN (?)", db.Model(&model.Article{}).Select("id")).
		Delete(&model.Impact{})
	return res.RowsAffected, res.Error
}

// DeleteOrphanEvidence removes evidence whose impact is missing. Evidence is
// written before its impact, so before must leave running analyses alone.
func (g *GormStore) DeleteOrphanEvidence(ctx context.Context, before time.Time) (int64, error) {
	db := g.db.WithContext(ctx)
	res := createdBefore(db, before).
		Where("impact_id NOT IN (?)", db.Model(&model.Impact{}).Select("id")).
		Delete(&model.Evidence{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) DeleteOrphanHistory(ctx context.Context, before time.Time) (int64, error) {
	db := g.db.WithContext(ctx)
	res := createdBefore(db, before).
		Where("article_id NOT IN (?)", db.Model(&model.Article{}).Select("id")).
		Delete(&model.AnalysisHistory{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) DeleteAll(ctx context.Context) error {
	return g.Transaction(ctx, func(tx Store) error {
		db := tx.(*GormStore).db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, table := range []interface{}{
			&model.Evidence{},
			&model.Impact{},
			&model.Article{},
			&model.AnalysisHistory{},
			&model.AnalysisAttempt{},
		} {
			if err := db.Delete(table).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Transaction runs f against a store bound to a single database transaction.
// f must only use tx for database access.
func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx, compressor: g.compressor})
	})
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
