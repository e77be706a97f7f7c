package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/models"
)

func TestBatchRepositoryCreateAndFetch(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewBatchRepository(db)

	set := models.CriteriaSet{
		Name:     "midterm rubric",
		Criteria: datatypes.JSON(`[{"name":"Code Correctness","max_points":40}]`),
	}
	require.NoError(t, db.Create(&set).Error)

	batch := models.GradingBatch{
		Title:         "Week 3 Homework",
		ArchiveName:   "week3.zip",
		Checksum:      "sha256:abc123",
		Status:        models.BatchStatusPending,
		CriteriaSetID: &set.ID,
	}
	require.NoError(t, repo.Create(context.Background(), &batch))
	require.NotZero(t, batch.ID)

	stored, err := repo.GetByID(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Equal(t, "Week 3 Homework", stored.Title)
	require.NotNil(t, stored.CriteriaSet)
	require.Equal(t, "midterm rubric", stored.CriteriaSet.Name)

	byChecksum, err := repo.GetByChecksum(context.Background(), "sha256:abc123")
	require.NoError(t, err)
	require.Equal(t, batch.ID, byChecksum.ID)

	_, err = repo.GetByChecksum(context.Background(), "sha256:missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestBatchRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewBatchRepository(db)

	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	statuses := []string{
		models.BatchStatusCompleted,
		models.BatchStatusCompleted,
		models.BatchStatusCompleted,
		models.BatchStatusPending,
		models.BatchStatusFailed,
	}
	for i, status := range statuses {
		batch := models.GradingBatch{
			Title:       fmt.Sprintf("Batch %d", i+1),
			ArchiveName: fmt.Sprintf("batch-%d.zip", i+1),
			Status:      status,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&batch).Error)
	}

	completed, total, err := repo.List(context.Background(), BatchFilter{Status: models.BatchStatusCompleted})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, completed, 3)

	firstPage, total, err := repo.List(context.Background(), BatchFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, firstPage, 2)
	require.Equal(t, "Batch 5", firstPage[0].Title)

	secondPage, _, err := repo.List(context.Background(), BatchFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, secondPage, 2)
	require.Equal(t, "Batch 3", secondPage[0].Title)
}

func TestBatchRepositoryUpdate(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewBatchRepository(db)

	batch := models.GradingBatch{Title: "Rerun Target", ArchiveName: "rerun.zip", Status: models.BatchStatusPending}
	require.NoError(t, repo.Create(context.Background(), &batch))

	avg := 82.5
	batch.Status = models.BatchStatusCompleted
	batch.SubmissionCount = 12
	batch.GradedCount = 11
	batch.FailedCount = 1
	batch.AverageScore = &avg
	require.NoError(t, repo.Update(context.Background(), &batch))

	stored, err := repo.GetByID(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusCompleted, stored.Status)
	require.Equal(t, 12, stored.SubmissionCount)
	require.Equal(t, 11, stored.GradedCount)
	require.NotNil(t, stored.AverageScore)
	require.InDelta(t, 82.5, *stored.AverageScore, 0.001)
	require.True(t, stored.IsFinished())
}

// setupRepoTestDB opens a named in-memory database per test so state never
// leaks between tests sharing this package.
func setupRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.CriteriaSet{},
		&models.GradingBatch{},
		&models.Submission{},
		&models.GradeRecord{},
		&models.GradeAdjustment{},
		&models.ActivityLog{},
	))

	return db
}
