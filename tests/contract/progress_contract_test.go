package contract_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/service"
)

// TestProgressEventContract validates the realtime payload shape on the
// receiving side of the fan-out hub, the same channel SSE and websocket
// clients consume.
func TestProgressEventContract(t *testing.T) {
	schema := compileSchema(t, "progress_event.schema.json")

	progress := service.NewProgressService(nil, nil, zerolog.Nop())
	stream, cleanup := progress.Subscribe(7)
	defer cleanup()

	percentage := 86.5
	events := []dto.ProgressEvent{
		{BatchID: 7, Stage: dto.ProgressStageStarted, TotalCount: 2},
		{
			BatchID:      7,
			Stage:        dto.ProgressStageGraded,
			SubmissionID: 11,
			StudentName:  "Ana Silva",
			FileName:     "ana_silva_hw.ipynb",
			Percentage:   &percentage,
			LetterGrade:  "B",
			GradedCount:  1,
			TotalCount:   2,
		},
		{
			BatchID:      7,
			Stage:        dto.ProgressStageUngradable,
			SubmissionID: 12,
			FileName:     "broken.ipynb",
			GradedCount:  1,
			FailedCount:  1,
			TotalCount:   2,
		},
		{
			BatchID:      7,
			Stage:        dto.ProgressStageCompleted,
			GradedCount:  1,
			FailedCount:  1,
			TotalCount:   2,
			AverageScore: &percentage,
		},
	}

	for _, event := range events {
		progress.Publish(context.Background(), event)
	}

	for range events {
		select {
		case received := <-stream:
			require.False(t, received.SentAt.IsZero())

			payload, err := json.Marshal(received)
			require.NoError(t, err)

			var decoded interface{}
			require.NoError(t, json.Unmarshal(payload, &decoded))
			require.NoError(t, schema.Validate(decoded))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for progress event")
		}
	}
}
