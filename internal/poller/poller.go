// Package poller watches async backend jobs until they reach a terminal
// state. A watch issues an immediate status query, then repeats on a fixed
// interval, bounded by a consecutive-failure budget and a wall-clock
// timeout. Exactly one of the two terminal callbacks fires per session.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/initiativehq/initiativectl/pkg/models"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxDuration = 10 * time.Minute
	DefaultMaxRetries  = 5
)

// Sentinel errors delivered through OnError. Callers distinguish failure
// classes with errors.Is.
var (
	ErrJobFailed        = errors.New("job failed")
	ErrRetriesExhausted = errors.New("poll retries exhausted")
	ErrWatchTimeout     = errors.New("job watch timed out")
)

// StatusFunc queries the current state of a job. The CLI passes the API
// client's GetJob.
type StatusFunc func(ctx context.Context, jobID string) (*models.Job, error)

// Config tunes one watch. Zero values fall back to the package defaults.
type Config struct {
	Interval    time.Duration
	MaxDuration time.Duration
	MaxRetries  int

	// OnComplete receives result_data when the job completes. OnError
	// receives exactly one of ErrJobFailed, ErrRetriesExhausted or
	// ErrWatchTimeout. The two are mutually exclusive and each fires at
	// most once per session.
	OnComplete func(result json.RawMessage)
	OnError    func(err error)
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

type state int

const (
	stateIdle state = iota
	statePolling
	stateCompleted
	stateFailed
	stateTimedOut
	stateCancelled
)

// Poller creates watch sessions. It holds at most one active session:
// watching a new job id cancels the previous session first, so timers
// never leak, and re-watching the currently active job id is a no-op that
// returns the existing session.
type Poller struct {
	fetch StatusFunc

	mu     sync.Mutex
	active *Session
}

// New creates a Poller that queries job status through fetch.
func New(fetch StatusFunc) *Poller {
	return &Poller{fetch: fetch}
}

// Watch starts observing jobID. An empty jobID returns an inert session
// that never polls and never fires a callback.
func (p *Poller) Watch(jobID string, cfg Config) *Session {
	if jobID == "" {
		return inertSession()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil && p.active.jobID == jobID && p.active.IsPolling() {
		return p.active
	}
	if p.active != nil {
		p.active.Cancel()
	}

	cfg = cfg.withDefaults()
	s := newSession(jobID, cfg)
	p.active = s
	go s.run(p.fetch, cfg)
	return s
}

// Session is one in-progress watch. All methods are safe for concurrent use.
type Session struct {
	jobID string

	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}

	mu              sync.Mutex
	st              state
	attempts        int // consecutive failed polls, reset on success
	progressPercent int
	progressMessage string
	onComplete      func(json.RawMessage)
	onError         func(error)
}

func newSession(jobID string, cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		jobID:      jobID,
		ctx:        ctx,
		ctxCancel:  cancel,
		done:       make(chan struct{}),
		st:         statePolling,
		onComplete: cfg.OnComplete,
		onError:    cfg.OnError,
	}
}

func inertSession() *Session {
	done := make(chan struct{})
	close(done)
	return &Session{st: stateIdle, done: done, ctxCancel: func() {}}
}

// JobID returns the job under observation, empty for an inert session.
func (s *Session) JobID() string { return s.jobID }

// IsPolling reports whether the session is still observing the job.
func (s *Session) IsPolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st == statePolling
}

// ProgressPercent returns the last advisory progress value, 0 if the
// backend never reported one.
func (s *Session) ProgressPercent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressPercent
}

// ProgressMessage returns the last advisory progress message.
func (s *Session) ProgressMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressMessage
}

// Done is closed once the session reaches any terminal state, including
// cancellation.
func (s *Session) Done() <-chan struct{} { return s.done }

// Rebind swaps the terminal callbacks without tearing down the session.
// The references held at the moment the terminal event fires are the ones
// invoked.
func (s *Session) Rebind(onComplete func(json.RawMessage), onError func(error)) {
	s.mu.Lock()
	s.onComplete = onComplete
	s.onError = onError
	s.mu.Unlock()
}

// Cancel stops the session. No callback fires after Cancel returns, even
// if a status query was in flight when it was called.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.st != statePolling {
		s.mu.Unlock()
		return
	}
	s.st = stateCancelled
	s.mu.Unlock()

	s.ctxCancel()
	close(s.done)
}

// run drives the poll loop. Polls are issued sequentially from this one
// goroutine, so a slow query can never be overtaken by a later one.
func (s *Session) run(fetch StatusFunc, cfg Config) {
	// First query goes out immediately; the interval only spaces the
	// queries after it.
	if s.pollOnce(fetch, cfg.MaxRetries) {
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	timeout := time.NewTimer(cfg.MaxDuration)
	defer timeout.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timeout.C:
			s.finish(stateTimedOut, nil,
				fmt.Errorf("%w: no terminal status within %s", ErrWatchTimeout, cfg.MaxDuration))
			return
		case <-ticker.C:
			if s.pollOnce(fetch, cfg.MaxRetries) {
				return
			}
		}
	}
}

// pollOnce issues a single status query and applies the result. It reports
// whether the session reached a terminal state.
func (s *Session) pollOnce(fetch StatusFunc, maxRetries int) bool {
	job, err := fetch(s.ctx, s.jobID)
	if err != nil {
		s.mu.Lock()
		if s.st != statePolling {
			s.mu.Unlock()
			return true
		}
		s.attempts++
		attempts := s.attempts
		s.mu.Unlock()

		if attempts >= maxRetries {
			return s.finish(stateFailed, nil,
				fmt.Errorf("%w: %d consecutive failures: %v", ErrRetriesExhausted, attempts, err))
		}
		slog.Debug("job poll failed, will retry",
			"job_id", s.jobID, "attempt", attempts, "max_retries", maxRetries, "error", err)
		return false
	}

	switch job.Status {
	case models.JobStatusCompleted:
		return s.finish(stateCompleted, job.ResultData, nil)
	case models.JobStatusFailed:
		msg := "no error message provided"
		if job.ErrorMessage != nil {
			msg = *job.ErrorMessage
		}
		return s.finish(stateFailed, nil, fmt.Errorf("%w: %s", ErrJobFailed, msg))
	default:
		// Non-terminal, including statuses this client does not know.
		s.mu.Lock()
		if s.st != statePolling {
			s.mu.Unlock()
			return true
		}
		s.attempts = 0
		if job.ProgressPercent != nil {
			s.progressPercent = *job.ProgressPercent
		}
		if job.ProgressMessage != nil {
			s.progressMessage = *job.ProgressMessage
		}
		s.mu.Unlock()
		return false
	}
}

// finish performs the single terminal transition. Whichever caller gets
// here first wins; later callers (a racing timeout, a stale poll result, a
// cancel that lost the race) see a non-polling state and do nothing.
func (s *Session) finish(st state, result json.RawMessage, err error) bool {
	s.mu.Lock()
	if s.st != statePolling {
		s.mu.Unlock()
		return true
	}
	s.st = st
	onComplete := s.onComplete
	onError := s.onError
	s.mu.Unlock()

	s.ctxCancel()

	// Done closes only after the callback returns, so waiters observe the
	// callback's effects.
	defer close(s.done)

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return true
	}
	if onComplete != nil {
		onComplete(result)
	}
	return true
}
