package models

import "encoding/json"

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job types dispatched by the Initiative API.
const (
	JobTypeQuestionGeneration = "question_generation"
	JobTypeMRDGeneration      = "mrd_generation"
	JobTypeScoreCalculation   = "score_calculation"
)

// Job tracks an async AI job on the backend. The API returns a job on POST
// to a generate/calculate endpoint; the client polls GET /api/jobs/{jobID}
// until status is completed or failed. Status values outside the constants
// above are treated as non-terminal, so new backend states degrade safely.
type Job struct {
	ID              string          `json:"id"`
	Type            string          `json:"type,omitempty"`
	Status          string          `json:"status"`
	ProgressPercent *int            `json:"progress_percent,omitempty"`
	ProgressMessage *string         `json:"progress_message,omitempty"`
	ResultData      json.RawMessage `json:"result_data,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
}

// Terminal reports whether no further status transitions will occur.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
