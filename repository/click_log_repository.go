package repository

import (
	"github.com/amirphl/hopgate/models"
	"gorm.io/gorm"
)

// ClickLogRepositoryImpl implements ClickLogRepository
type ClickLogRepositoryImpl struct {
	*BaseRepository[models.ClickLog]
}

func NewClickLogRepository(db *gorm.DB) ClickLogRepository {
	return &ClickLogRepositoryImpl{BaseRepository: NewBaseRepository[models.ClickLog](db)}
}
