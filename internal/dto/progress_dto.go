package dto

import "time"

// Progress stages emitted while a batch grades.
const (
	ProgressStageStarted    = "batch_started"
	ProgressStageGraded     = "submission_graded"
	ProgressStageUngradable = "submission_ungradable"
	ProgressStageCompleted  = "batch_completed"
	ProgressStageFailed     = "batch_failed"
)

// ProgressEvent is one realtime update from a grading run, fanned out to
// websocket clients, SSE streams, and the broker subjects.
type ProgressEvent struct {
	BatchID      uint      `json:"batch_id"`
	Stage        string    `json:"stage"`
	SubmissionID uint      `json:"submission_id,omitempty"`
	StudentName  string    `json:"student_name,omitempty"`
	FileName     string    `json:"file_name,omitempty"`
	Percentage   *float64  `json:"percentage,omitempty"`
	LetterGrade  string    `json:"letter_grade,omitempty"`
	GradedCount  int       `json:"graded_count"`
	FailedCount  int       `json:"failed_count"`
	TotalCount   int       `json:"total_count"`
	AverageScore *float64  `json:"average_score,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}
