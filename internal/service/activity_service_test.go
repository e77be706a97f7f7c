package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	matched := make([]models.ActivityLog, 0, len(m.entries))
	for _, entry := range m.entries {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.BatchID != nil && (entry.BatchID == nil || *entry.BatchID != *filter.BatchID) {
			continue
		}
		matched = append(matched, entry)
	}
	return matched, int64(len(matched)), nil
}

func TestActivityServiceRecordNormalizesAndMasks(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	batchID := uint(3)
	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Teacher",
		Action:     "Batch_Uploaded",
		EntityType: "Grading_Batch",
		EntityID:   ptrUint(3),
		BatchID:    &batchID,
		Metadata: map[string]interface{}{
			"email":        "teacher@example.com",
			"archive_name": "week3.zip",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "instructor", entry.ActorRole)
	require.Equal(t, "batch_uploaded", entry.Action)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "week3.zip", entry.Metadata["archive_name"])
	require.NotNil(t, entry.BatchID)
	require.Equal(t, uint(3), *entry.BatchID)
}

func TestActivityServiceRecordRequiresAction(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: models.EntityBatch})
	require.Error(t, err)
	require.Contains(t, err.Error(), "action is required")
}

func TestActivityServiceListFiltersByBatch(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	batchID := uint(9)
	_, err := svc.Record(context.Background(), ActivityEntry{
		ActorID: 1, ActorRole: "instructor",
		Action: models.ActionRunStarted, EntityType: models.EntityBatch, BatchID: &batchID,
	})
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), ActivityEntry{
		ActorID: 1, ActorRole: "instructor",
		Action: models.ActionRunCompleted, EntityType: models.EntityBatch, BatchID: &batchID,
	})
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), ActivityEntry{
		ActorID: 2, ActorRole: "admin",
		Action: models.ActionCriteriaCreated, EntityType: models.EntityCriteriaSet,
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), dto.ActivityListRequest{BatchID: &batchID, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	require.EqualValues(t, 2, resp.Pagination.TotalItems)
	require.Equal(t, 1, resp.Pagination.TotalPages)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func ptrUint(v uint) *uint {
	return &v
}
