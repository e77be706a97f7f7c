package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/notebook"
	"github.com/noah-isme/nilai-go-api/internal/repository"
	"github.com/noah-isme/nilai-go-api/internal/service"
)

func setupSubmissionService(t *testing.T) (service.SubmissionService, *gorm.DB, *activityProbe) {
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

	validate := validator.New(validator.WithRequiredStructEnabled())
	probe := &activityProbe{}
	criteriaSvc := service.NewCriteriaService(repository.NewCriteriaSetRepository(db), validate, probe, zerolog.Nop())
	_, err = criteriaSvc.EnsureDefault(context.Background())
	require.NoError(t, err)

	svc := service.NewSubmissionService(
		repository.NewSubmissionRepository(db),
		repository.NewGradeRepository(db),
		criteriaSvc,
		grading.NewEngine(grading.DefaultHeuristics()),
		validate,
		probe,
		zerolog.Nop(),
	)

	return svc, db, probe
}

func seedGradedSubmission(t *testing.T, db *gorm.DB) (models.Submission, models.GradeRecord) {
	t.Helper()

	batch := models.GradingBatch{
		Title:           "Week 1 Homework",
		ArchiveName:     "week1.zip",
		Status:          models.BatchStatusCompleted,
		SubmissionCount: 1,
	}
	require.NoError(t, db.Create(&batch).Error)

	submission := models.Submission{
		BatchID:     batch.ID,
		StudentName: "Ana Silva",
		FileName:    "ana_silva_hw.ipynb",
		RawSource:   []byte("compressed"),
		Status:      models.SubmissionStatusGraded,
		CellCount:   3,
	}
	require.NoError(t, db.Create(&submission).Error)

	scores := []grading.CriterionScore{
		{Criterion: grading.Criterion{Name: "Code Correctness", MaxPoints: 60}, PointsAwarded: 45, Comment: "mostly correct"},
		{Criterion: grading.Criterion{Name: "Documentation & Comments", MaxPoints: 40}, PointsAwarded: 30, Comment: "light on markdown"},
	}
	encoded, err := json.Marshal(scores)
	require.NoError(t, err)

	record := models.GradeRecord{
		SubmissionID: submission.ID,
		TotalPoints:  75,
		MaxPossible:  100,
		Percentage:   75,
		LetterGrade:  "C",
		Scores:       datatypes.JSON(encoded),
		Feedback:     "Overall Score: 75.0% (C)",
		GradedAt:     time.Now(),
	}
	require.NoError(t, db.Create(&record).Error)

	return submission, record
}

func TestSubmissionService_Get(t *testing.T) {
	svc, db, _ := setupSubmissionService(t)
	submission, _ := seedGradedSubmission(t, db)

	resp, err := svc.Get(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana Silva", resp.StudentName)
	require.NotNil(t, resp.Grade)
	require.InDelta(t, 75, resp.Grade.Percentage, 0.001)

	_, err = svc.Get(context.Background(), 9999)
	require.ErrorIs(t, err, service.ErrSubmissionNotFound)
}

func TestSubmissionService_ListRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := setupSubmissionService(t)

	bogus := "archived"
	_, err := svc.List(context.Background(), dto.SubmissionFilter{Status: &bogus})
	require.Error(t, err)

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestSubmissionService_OverrideScore(t *testing.T) {
	svc, db, probe := setupSubmissionService(t)
	submission, record := seedGradedSubmission(t, db)

	points := 55.0
	resp, err := svc.OverrideScore(context.Background(), submission.ID, dto.ScoreOverrideRequest{
		CriterionName: "Code Correctness",
		Points:        &points,
		Reason:        "manual review found the edge cases handled",
	}, service.ActivityActor{ID: 4, Role: "instructor"})
	require.NoError(t, err)
	require.NotNil(t, resp.Grade)
	require.InDelta(t, 85, resp.Grade.TotalPoints, 0.001)
	require.InDelta(t, 85, resp.Grade.Percentage, 0.001)
	require.Equal(t, "B", resp.Grade.LetterGrade)
	require.True(t, resp.Grade.Overridden)

	adjustments, err := repository.NewGradeRepository(db).ListAdjustments(context.Background(), record.ID)
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	require.Equal(t, "Code Correctness", adjustments[0].CriterionName)
	require.InDelta(t, 45, adjustments[0].PreviousPoints, 0.001)
	require.InDelta(t, 55, adjustments[0].NewPoints, 0.001)
	require.Equal(t, uint(4), adjustments[0].AdjustedBy)

	var actions []string
	for _, entry := range probe.entries {
		actions = append(actions, entry.Action)
	}
	require.Contains(t, actions, models.ActionScoreOverridden)
}

func TestSubmissionService_OverrideScoreIdempotent(t *testing.T) {
	svc, db, _ := setupSubmissionService(t)
	submission, record := seedGradedSubmission(t, db)

	points := 45.0
	resp, err := svc.OverrideScore(context.Background(), submission.ID, dto.ScoreOverrideRequest{
		CriterionName: "code correctness",
		Points:        &points,
		Reason:        "no change intended",
	}, service.ActivityActor{ID: 4, Role: "instructor"})
	require.NoError(t, err)
	require.False(t, resp.Grade.Overridden)

	adjustments, err := repository.NewGradeRepository(db).ListAdjustments(context.Background(), record.ID)
	require.NoError(t, err)
	require.Empty(t, adjustments)
}

func TestSubmissionService_OverrideScoreBounds(t *testing.T) {
	svc, db, _ := setupSubmissionService(t)
	submission, _ := seedGradedSubmission(t, db)

	tooMany := 61.0
	_, err := svc.OverrideScore(context.Background(), submission.ID, dto.ScoreOverrideRequest{
		CriterionName: "Code Correctness",
		Points:        &tooMany,
		Reason:        "testing the ceiling",
	}, service.ActivityActor{ID: 4, Role: "instructor"})
	require.ErrorIs(t, err, service.ErrScoreExceedsMax)

	points := 10.0
	_, err = svc.OverrideScore(context.Background(), submission.ID, dto.ScoreOverrideRequest{
		CriterionName: "Creativity",
		Points:        &points,
		Reason:        "criterion does not exist",
	}, service.ActivityActor{ID: 4, Role: "instructor"})
	require.ErrorIs(t, err, service.ErrCriterionNotFound)
}

func TestSubmissionService_OverrideScoreRequiresGrade(t *testing.T) {
	svc, db, _ := setupSubmissionService(t)

	batch := models.GradingBatch{Title: "Week 2", ArchiveName: "week2.zip", Status: models.BatchStatusPending, SubmissionCount: 1}
	require.NoError(t, db.Create(&batch).Error)
	submission := models.Submission{BatchID: batch.ID, StudentName: "Budi", FileName: "budi_hw.ipynb", RawSource: []byte("x"), Status: models.SubmissionStatusReceived}
	require.NoError(t, db.Create(&submission).Error)

	points := 10.0
	_, err := svc.OverrideScore(context.Background(), submission.ID, dto.ScoreOverrideRequest{
		CriterionName: "Code Correctness",
		Points:        &points,
		Reason:        "graded too early",
	}, service.ActivityActor{ID: 4, Role: "instructor"})
	require.ErrorIs(t, err, service.ErrSubmissionNotGraded)

	_, err = svc.OverrideScore(context.Background(), 9999, dto.ScoreOverrideRequest{
		CriterionName: "Code Correctness",
		Points:        &points,
		Reason:        "missing submission",
	}, service.ActivityActor{ID: 4, Role: "instructor"})
	require.ErrorIs(t, err, service.ErrSubmissionNotFound)
}

func TestSubmissionService_GradeNotebook(t *testing.T) {
	svc, _, _ := setupSubmissionService(t)

	file := fileHeaderFromBytes(t, "maria_lopez_hw.ipynb", notebookBytes("maria"))
	resp, err := svc.GradeNotebook(context.Background(), dto.GradeUploadRequest{}, file)
	require.NoError(t, err)
	require.Equal(t, "Maria Lopez", resp.StudentName)
	require.Equal(t, "maria_lopez_hw.ipynb", resp.FileName)
	require.InDelta(t, 100, resp.MaxPossible, 0.001)
	require.Len(t, resp.Scores, 5)
	require.NotEmpty(t, resp.LetterGrade)
	require.GreaterOrEqual(t, resp.Percentage, 0.0)
	require.LessOrEqual(t, resp.Percentage, 100.0)
}

func TestSubmissionService_GradeNotebookRejectsOtherFiles(t *testing.T) {
	svc, _, _ := setupSubmissionService(t)

	file := fileHeaderFromBytes(t, "notes.txt", []byte("plain text"))
	_, err := svc.GradeNotebook(context.Background(), dto.GradeUploadRequest{}, file)
	require.ErrorIs(t, err, service.ErrNotNotebookFile)

	_, err = svc.GradeNotebook(context.Background(), dto.GradeUploadRequest{}, nil)
	require.ErrorIs(t, err, service.ErrNotebookFileRequired)
}

func TestSubmissionService_GradeNotebookParseFailure(t *testing.T) {
	svc, _, _ := setupSubmissionService(t)

	file := fileHeaderFromBytes(t, "broken_hw.ipynb", []byte("not a notebook"))
	_, err := svc.GradeNotebook(context.Background(), dto.GradeUploadRequest{}, file)
	require.ErrorIs(t, err, notebook.ErrNotJSON)
}

func TestSubmissionService_GradeNotebookMissingCriteriaSet(t *testing.T) {
	svc, _, _ := setupSubmissionService(t)

	missing := uint(999)
	file := fileHeaderFromBytes(t, "maria_lopez_hw.ipynb", notebookBytes("maria"))
	_, err := svc.GradeNotebook(context.Background(), dto.GradeUploadRequest{CriteriaSetID: &missing}, file)
	require.ErrorIs(t, err, service.ErrCriteriaSetNotFound)
}
