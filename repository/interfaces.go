// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/hopgate/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// RoutingRepository reads the routing tables the redirect engine is built from
type RoutingRepository interface {
	LoadRoutingTables(ctx context.Context) (*models.RoutingTables, error)
}

// ClickLogRepository appends click logs. Reporting reads the table elsewhere.
type ClickLogRepository interface {
	Save(ctx context.Context, click *models.ClickLog) error
}

// ImpressionRepository appends impressions
type ImpressionRepository interface {
	Save(ctx context.Context, impression *models.Impression) error
}

// PartnerApplicationRepository is the record interface used by the onboarding workflow
type PartnerApplicationRepository interface {
	Repository[models.PartnerApplication, models.PartnerApplicationFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.PartnerApplication, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
}
