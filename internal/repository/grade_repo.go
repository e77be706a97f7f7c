package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/nilai-go-api/internal/models"
)

// GradeRepository persists grading outcomes and their override audit trail.
type GradeRepository interface {
	GetBySubmissionID(ctx context.Context, submissionID uint) (models.GradeRecord, error)
	Upsert(ctx context.Context, record *models.GradeRecord) error
	Update(ctx context.Context, record *models.GradeRecord) error
	CreateAdjustment(ctx context.Context, adjustment *models.GradeAdjustment) error
	ListAdjustments(ctx context.Context, gradeRecordID uint) ([]models.GradeAdjustment, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates the repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) GetBySubmissionID(ctx context.Context, submissionID uint) (models.GradeRecord, error) {
	var record models.GradeRecord
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&record).Error; err != nil {
		return models.GradeRecord{}, err
	}

	return record, nil
}

// Upsert writes the record, replacing an earlier grading outcome for the
// same submission so reruns stay idempotent.
func (r *gradeRepository) Upsert(ctx context.Context, record *models.GradeRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_points", "max_possible", "percentage", "letter_grade",
			"scores", "feedback", "strengths", "improvements", "overridden",
			"graded_at", "updated_at",
		}),
	}).Create(record).Error
}

func (r *gradeRepository) Update(ctx context.Context, record *models.GradeRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *gradeRepository) CreateAdjustment(ctx context.Context, adjustment *models.GradeAdjustment) error {
	return r.db.WithContext(ctx).Create(adjustment).Error
}

func (r *gradeRepository) ListAdjustments(ctx context.Context, gradeRecordID uint) ([]models.GradeAdjustment, error) {
	var adjustments []models.GradeAdjustment
	err := r.db.WithContext(ctx).
		Where("grade_record_id = ?", gradeRecordID).
		Order("created_at DESC").
		Find(&adjustments).Error
	if err != nil {
		return nil, err
	}

	return adjustments, nil
}
