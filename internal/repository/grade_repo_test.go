package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/nilai-go-api/internal/models"
)

func TestGradeRepositoryUpsertReplacesExistingRecord(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewGradeRepository(db)

	batch := models.GradingBatch{Title: "Rerun Batch", ArchiveName: "rerun.zip", Status: models.BatchStatusRunning}
	require.NoError(t, db.Create(&batch).Error)

	submission := models.Submission{
		BatchID:     batch.ID,
		StudentName: "Diana Putri",
		FileName:    "diana_putri_hw3.ipynb",
		Status:      models.SubmissionStatusGraded,
	}
	require.NoError(t, db.Create(&submission).Error)

	first := models.GradeRecord{
		SubmissionID: submission.ID,
		TotalPoints:  52,
		MaxPossible:  100,
		Percentage:   52,
		LetterGrade:  "F",
		Scores:       datatypes.JSON(`[{"name":"Code Correctness","points":12,"max_points":40}]`),
		Feedback:     "Your submission earned 52.0% (F).",
		GradedAt:     time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(context.Background(), &first))
	require.NotZero(t, first.ID)

	second := models.GradeRecord{
		SubmissionID: submission.ID,
		TotalPoints:  86,
		MaxPossible:  100,
		Percentage:   86,
		LetterGrade:  "B",
		Scores:       datatypes.JSON(`[{"name":"Code Correctness","points":36,"max_points":40}]`),
		Feedback:     "Your submission earned 86.0% (B).",
		GradedAt:     time.Date(2025, 4, 3, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(context.Background(), &second))

	var count int64
	require.NoError(t, db.Model(&models.GradeRecord{}).Where("submission_id = ?", submission.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	stored, err := repo.GetBySubmissionID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)
	require.InDelta(t, 86, stored.TotalPoints, 0.001)
	require.Equal(t, "B", stored.LetterGrade)
	require.Contains(t, stored.Feedback, "86.0%")
}

func TestGradeRepositoryOverrideAuditTrail(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewGradeRepository(db)

	batch := models.GradingBatch{Title: "Override Batch", ArchiveName: "override.zip", Status: models.BatchStatusCompleted}
	require.NoError(t, db.Create(&batch).Error)

	submission := models.Submission{
		BatchID:     batch.ID,
		StudentName: "Citra Lestari",
		FileName:    "citra_lestari_hw3.ipynb",
		Status:      models.SubmissionStatusGraded,
	}
	require.NoError(t, db.Create(&submission).Error)

	record := models.GradeRecord{
		SubmissionID: submission.ID,
		TotalPoints:  70,
		MaxPossible:  100,
		Percentage:   70,
		LetterGrade:  "C-",
		Scores:       datatypes.JSON(`[]`),
		GradedAt:     time.Date(2025, 4, 4, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(context.Background(), &record))

	base := time.Date(2025, 4, 5, 8, 0, 0, 0, time.UTC)
	older := models.GradeAdjustment{
		GradeRecordID:  record.ID,
		CriterionName:  "Code Quality",
		PreviousPoints: 10,
		NewPoints:      14,
		Reason:         "Manual review found clean refactoring",
		AdjustedBy:     3,
		CreatedAt:      base,
	}
	newer := models.GradeAdjustment{
		GradeRecordID:  record.ID,
		CriterionName:  "Completeness",
		PreviousPoints: 8,
		NewPoints:      12,
		Reason:         "Final exercise solved in an attached cell",
		AdjustedBy:     3,
		CreatedAt:      base.Add(time.Hour),
	}
	require.NoError(t, repo.CreateAdjustment(context.Background(), &older))
	require.NoError(t, repo.CreateAdjustment(context.Background(), &newer))

	adjustments, err := repo.ListAdjustments(context.Background(), record.ID)
	require.NoError(t, err)
	require.Len(t, adjustments, 2)
	require.Equal(t, "Completeness", adjustments[0].CriterionName)
	require.Equal(t, "Code Quality", adjustments[1].CriterionName)
	require.InDelta(t, 10, adjustments[1].PreviousPoints, 0.001)
	require.InDelta(t, 14, adjustments[1].NewPoints, 0.001)

	record.Overridden = true
	record.TotalPoints = 78
	require.NoError(t, repo.Update(context.Background(), &record))

	stored, err := repo.GetBySubmissionID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.True(t, stored.Overridden)
	require.InDelta(t, 78, stored.TotalPoints, 0.001)
}
