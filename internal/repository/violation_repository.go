package repository

import (
	"github.com/lshigami/Margays/internal/model"
	"gorm.io/gorm"
)

type ViolationRepository interface {
	Create(log *model.ViolationLog) error
	FindByAttemptID(attemptID uint) ([]model.ViolationLog, error)
}

type violationRepository struct {
	db *gorm.DB
}

func NewViolationRepository(db *gorm.DB) ViolationRepository {
	return &violationRepository{db: db}
}

func (r *violationRepository) Create(log *model.ViolationLog) error {
	return r.db.Create(log).Error
}

func (r *violationRepository) FindByAttemptID(attemptID uint) ([]model.ViolationLog, error) {
	var logs []model.ViolationLog
	err := r.db.Where("attempt_id = ?", attemptID).Order("occurred_at ASC").Find(&logs).Error
	return logs, err
}
