package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/initiativehq/initiativectl/internal/poller"
	"github.com/initiativehq/initiativectl/pkg/models"
)

// Mirrors the backend's own job retention window.
const jobStatusCacheTTL = 30 * time.Minute

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Watch a backend job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watchJob(cmd, args[0])
		},
	}
}

// watchJob polls one job to its terminal state, rendering progress as it
// goes. Interrupting the command cancels the watch without touching the
// backend job.
func (a *app) watchJob(cmd *cobra.Command, jobID string) error {
	ctx := cmd.Context()

	if a.cache != nil {
		if status, found, err := a.cache.GetJobStatus(ctx, jobID); err == nil && found &&
			(status == models.JobStatusCompleted || status == models.JobStatusFailed) {
			cmd.Printf("job %s already %s\n", jobID, status)
			return nil
		}
	}

	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)

	s := a.jobs.Watch(jobID, poller.Config{
		Interval:    a.cfg.Poll.Interval,
		MaxDuration: a.cfg.Poll.MaxDuration,
		MaxRetries:  a.cfg.Poll.MaxRetries,
		OnComplete:  func(result json.RawMessage) { resultCh <- result },
		OnError:     func(err error) { errCh <- err },
	})

	cmd.Printf("watching job %s\n", jobID)

	ticker := time.NewTicker(a.cfg.Poll.Interval)
	defer ticker.Stop()

	var lastMessage string
	for {
		select {
		case <-ctx.Done():
			s.Cancel()
			cmd.Println("watch cancelled")
			return ctx.Err()

		case <-ticker.C:
			if msg := s.ProgressMessage(); msg != "" && msg != lastMessage {
				lastMessage = msg
				cmd.Printf("  %3d%%  %s\n", s.ProgressPercent(), msg)
			}

		case result := <-resultCh:
			a.recordJobStatus(cmd, jobID, models.JobStatusCompleted)
			if len(result) > 0 {
				cmd.Printf("job completed: %s\n", result)
			} else {
				cmd.Println("job completed")
			}
			return nil

		case err := <-errCh:
			switch {
			case errors.Is(err, poller.ErrWatchTimeout):
				return fmt.Errorf("gave up waiting for job %s: %w", jobID, err)
			case errors.Is(err, poller.ErrRetriesExhausted):
				return fmt.Errorf("lost contact with the backend: %w", err)
			default:
				a.recordJobStatus(cmd, jobID, models.JobStatusFailed)
				return err
			}
		}
	}
}

// recordJobStatus caches a terminal status reported by the backend, so a
// re-watch of the same job can answer without polling.
func (a *app) recordJobStatus(cmd *cobra.Command, jobID, status string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SetJobStatus(cmd.Context(), jobID, status, jobStatusCacheTTL); err != nil {
		cmd.PrintErrf("warning: caching job status: %v\n", err)
	}
}
