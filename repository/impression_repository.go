package repository

import (
	"github.com/amirphl/hopgate/models"
	"gorm.io/gorm"
)

// ImpressionRepositoryImpl implements ImpressionRepository
type ImpressionRepositoryImpl struct {
	*BaseRepository[models.Impression]
}

func NewImpressionRepository(db *gorm.DB) ImpressionRepository {
	return &ImpressionRepositoryImpl{BaseRepository: NewBaseRepository[models.Impression](db)}
}
