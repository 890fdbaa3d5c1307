package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/hopgate/models"
	"github.com/amirphl/hopgate/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PartnerApplicationRepositoryImpl implements PartnerApplicationRepository
type PartnerApplicationRepositoryImpl struct {
	*BaseRepository[models.PartnerApplication]
}

func NewPartnerApplicationRepository(db *gorm.DB) PartnerApplicationRepository {
	return &PartnerApplicationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PartnerApplication](db),
	}
}

func (r *PartnerApplicationRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.PartnerApplication, error) {
	rows, err := r.ByFilter(ctx, models.PartnerApplicationFilter{UUID: &id}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateStatus moves an application between pending, approved and rejected
func (r *PartnerApplicationRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status string) error {
	switch status {
	case models.PartnerStatusPending, models.PartnerStatusApproved, models.PartnerStatusRejected:
	default:
		return fmt.Errorf("invalid partner application status %q", status)
	}

	db := r.getDB(ctx)
	res := db.Model(&models.PartnerApplication{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": utils.UTCNow()})
	if res.Error != nil {
		return fmt.Errorf("failed to update partner application status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PartnerApplicationRepositoryImpl) applyFilter(db *gorm.DB, f models.PartnerApplicationFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *PartnerApplicationRepositoryImpl) ByFilter(ctx context.Context, filter models.PartnerApplicationFilter, orderBy string, limit, offset int) ([]*models.PartnerApplication, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PartnerApplication{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PartnerApplication
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PartnerApplicationRepositoryImpl) Count(ctx context.Context, filter models.PartnerApplicationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PartnerApplication{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PartnerApplicationRepositoryImpl) Exists(ctx context.Context, filter models.PartnerApplicationFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
