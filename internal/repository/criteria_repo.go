package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/models"
)

// CriteriaSetRepository defines data operations for stored rubrics.
type CriteriaSetRepository interface {
	List(ctx context.Context) ([]models.CriteriaSet, error)
	GetByID(ctx context.Context, id uint) (models.CriteriaSet, error)
	GetByName(ctx context.Context, name string) (models.CriteriaSet, error)
	GetDefault(ctx context.Context) (models.CriteriaSet, error)
	Create(ctx context.Context, set *models.CriteriaSet) error
	Update(ctx context.Context, set *models.CriteriaSet) error
	Delete(ctx context.Context, id uint) error
}

type criteriaSetRepository struct {
	db *gorm.DB
}

// NewCriteriaSetRepository instantiates the repository.
func NewCriteriaSetRepository(db *gorm.DB) CriteriaSetRepository {
	return &criteriaSetRepository{db: db}
}

func (r *criteriaSetRepository) List(ctx context.Context) ([]models.CriteriaSet, error) {
	var sets []models.CriteriaSet
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&sets).Error; err != nil {
		return nil, err
	}

	return sets, nil
}

func (r *criteriaSetRepository) GetByID(ctx context.Context, id uint) (models.CriteriaSet, error) {
	var set models.CriteriaSet
	if err := r.db.WithContext(ctx).First(&set, id).Error; err != nil {
		return models.CriteriaSet{}, err
	}

	return set, nil
}

func (r *criteriaSetRepository) GetByName(ctx context.Context, name string) (models.CriteriaSet, error) {
	var set models.CriteriaSet
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&set).Error; err != nil {
		return models.CriteriaSet{}, err
	}

	return set, nil
}

func (r *criteriaSetRepository) GetDefault(ctx context.Context) (models.CriteriaSet, error) {
	var set models.CriteriaSet
	if err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&set).Error; err != nil {
		return models.CriteriaSet{}, err
	}

	return set, nil
}

func (r *criteriaSetRepository) Create(ctx context.Context, set *models.CriteriaSet) error {
	return r.db.WithContext(ctx).Create(set).Error
}

func (r *criteriaSetRepository) Update(ctx context.Context, set *models.CriteriaSet) error {
	return r.db.WithContext(ctx).Save(set).Error
}

func (r *criteriaSetRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.CriteriaSet{}, id).Error
}
