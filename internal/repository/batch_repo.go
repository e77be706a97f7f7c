package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/models"
)

// BatchFilter narrows batch listing queries.
type BatchFilter struct {
	Page     int
	PageSize int
	Status   string
}

// BatchRepository defines data operations for grading batches.
type BatchRepository interface {
	List(ctx context.Context, filter BatchFilter) ([]models.GradingBatch, int64, error)
	GetByID(ctx context.Context, id uint) (models.GradingBatch, error)
	GetByChecksum(ctx context.Context, checksum string) (models.GradingBatch, error)
	Create(ctx context.Context, batch *models.GradingBatch) error
	Update(ctx context.Context, batch *models.GradingBatch) error
}

type batchRepository struct {
	db *gorm.DB
}

// NewBatchRepository instantiates the repository.
func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.GradingBatch{}).Preload("CriteriaSet")
}

func (r *batchRepository) List(ctx context.Context, filter BatchFilter) ([]models.GradingBatch, int64, error) {
	query := r.baseQuery(ctx)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var batches []models.GradingBatch
	if err := query.Order("created_at DESC").Find(&batches).Error; err != nil {
		return nil, 0, err
	}

	return batches, total, nil
}

func (r *batchRepository) GetByID(ctx context.Context, id uint) (models.GradingBatch, error) {
	var batch models.GradingBatch
	if err := r.baseQuery(ctx).First(&batch, id).Error; err != nil {
		return models.GradingBatch{}, err
	}

	return batch, nil
}

func (r *batchRepository) GetByChecksum(ctx context.Context, checksum string) (models.GradingBatch, error) {
	var batch models.GradingBatch
	if err := r.baseQuery(ctx).Where("checksum = ?", checksum).First(&batch).Error; err != nil {
		return models.GradingBatch{}, err
	}

	return batch, nil
}

func (r *batchRepository) Create(ctx context.Context, batch *models.GradingBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *batchRepository) Update(ctx context.Context, batch *models.GradingBatch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}
