package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/amirphl/hopgate/models"
	"gorm.io/gorm"
)

// RoutingRepositoryImpl implements RoutingRepository
type RoutingRepositoryImpl struct {
	db *gorm.DB
}

func NewRoutingRepository(db *gorm.DB) RoutingRepository {
	return &RoutingRepositoryImpl{db: db}
}

// LoadRoutingTables reads domains, partners, offers and rules inside one read-only
// repeatable-read transaction so the four tables describe the same point in time.
// Only active domains are returned; partner eligibility, offer activity and paused rules
// are left to the matcher.
func (r *RoutingRepositoryImpl) LoadRoutingTables(ctx context.Context) (*models.RoutingTables, error) {
	tables := &models.RoutingTables{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("is_active = ?", true).Order("id ASC").Find(&tables.Domains).Error; err != nil {
			return fmt.Errorf("load tracking domains: %w", err)
		}
		if err := tx.Order("id ASC").Find(&tables.Partners).Error; err != nil {
			return fmt.Errorf("load partners: %w", err)
		}
		if err := tx.Order("id ASC").Find(&tables.Offers).Error; err != nil {
			return fmt.Errorf("load offers: %w", err)
		}
		if err := tx.Order("domain_id ASC, id ASC").Find(&tables.Rules).Error; err != nil {
			return fmt.Errorf("load redirect rules: %w", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	return tables, nil
}
