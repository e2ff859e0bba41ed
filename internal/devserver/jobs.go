package devserver

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/initiativehq/initiativectl/pkg/models"
)

// progression is the scripted status sequence every simulated job walks
// through before its finish func runs.
var progression = map[string][]progressStep{
	models.JobTypeQuestionGeneration: {
		{20, "analyzing initiative description"},
		{55, "drafting discovery questions"},
		{85, "grouping questions by category"},
	},
	models.JobTypeMRDGeneration: {
		{15, "collecting answered questions"},
		{50, "drafting document sections"},
		{85, "formatting markdown"},
	},
	models.JobTypeScoreCalculation: {
		{30, "estimating reach and impact"},
		{70, "computing RICE and FDV totals"},
	},
}

type progressStep struct {
	percent int
	message string
}

// startJob registers a pending job and advances it in a background
// goroutine. finish runs after the scripted progression; its result (or
// error) becomes the job's terminal payload.
func (s *Server) startJob(jobType string, finish func() (json.RawMessage, error)) models.Job {
	job := &models.Job{
		ID:     uuid.NewString(),
		Type:   jobType,
		Status: models.JobStatusPending,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.advanceJob(job.ID, jobType, finish)
	return *job
}

func (s *Server) advanceJob(jobID, jobType string, finish func() (json.RawMessage, error)) {
	for _, step := range progression[jobType] {
		time.Sleep(s.jobStep)
		percent, message := step.percent, step.message

		s.mu.Lock()
		job := s.jobs[jobID]
		job.Status = models.JobStatusRunning
		job.ProgressPercent = &percent
		job.ProgressMessage = &message
		s.mu.Unlock()
	}

	time.Sleep(s.jobStep)
	result, err := finish()

	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[jobID]
	if err != nil {
		msg := err.Error()
		job.Status = models.JobStatusFailed
		job.ErrorMessage = &msg
		return
	}
	done := 100
	job.Status = models.JobStatusCompleted
	job.ProgressPercent = &done
	job.ProgressMessage = nil
	job.ResultData = result
}

// jobSnapshot returns a copy so handlers never expose a struct that the
// advance goroutine is still mutating.
func (s *Server) jobSnapshot(jobID string) (models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}
