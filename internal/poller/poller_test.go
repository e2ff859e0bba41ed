package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/initiativehq/initiativectl/pkg/models"
)

// scripted returns a StatusFunc whose nth call (1-based) is answered by fn,
// plus the call counter.
func scripted(fn func(call int) (*models.Job, error)) (StatusFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(_ context.Context, _ string) (*models.Job, error) {
		return fn(int(calls.Add(1)))
	}, &calls
}

func running(progress int, msg string) *models.Job {
	return &models.Job{
		ID:              "job-1",
		Status:          models.JobStatusRunning,
		ProgressPercent: &progress,
		ProgressMessage: &msg,
	}
}

func completed(result string) *models.Job {
	return &models.Job{
		ID:         "job-1",
		Status:     models.JobStatusCompleted,
		ResultData: json.RawMessage(result),
	}
}

func failed(msg string) *models.Job {
	return &models.Job{ID: "job-1", Status: models.JobStatusFailed, ErrorMessage: &msg}
}

// recorder captures terminal callbacks and counts how often each fired.
type recorder struct {
	completes atomic.Int32
	errs      atomic.Int32
	result    atomic.Value // json.RawMessage
	err       atomic.Value // error
}

func (r *recorder) config(interval, maxDuration time.Duration, maxRetries int) Config {
	return Config{
		Interval:    interval,
		MaxDuration: maxDuration,
		MaxRetries:  maxRetries,
		OnComplete: func(result json.RawMessage) {
			r.result.Store(result)
			r.completes.Add(1)
		},
		OnError: func(err error) {
			r.err.Store(err)
			r.errs.Add(1)
		},
	}
}

func (r *recorder) terminalError() error {
	v := r.err.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}

func TestWatch_NonTerminalPollsKeepPolling(t *testing.T) {
	fetch, calls := scripted(func(int) (*models.Job, error) {
		return running(10, "working"), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))
	defer s.Cancel()

	require.Eventually(t, func() bool { return calls.Load() >= 4 },
		time.Second, 5*time.Millisecond)

	assert.True(t, s.IsPolling())
	assert.Zero(t, rec.completes.Load())
	assert.Zero(t, rec.errs.Load())
}

func TestWatch_CompletedFiresOnCompleteOnce(t *testing.T) {
	fetch, calls := scripted(func(int) (*models.Job, error) {
		return completed(`{"x":1}`), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not finish")
	}

	assert.False(t, s.IsPolling())
	assert.Equal(t, int32(1), rec.completes.Load())
	assert.Zero(t, rec.errs.Load())
	assert.JSONEq(t, `{"x":1}`, string(rec.result.Load().(json.RawMessage)))

	// No polls after the terminal transition.
	final := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, final, calls.Load())
}

func TestWatch_FailedFiresOnErrorWithBackendMessage(t *testing.T) {
	fetch, calls := scripted(func(int) (*models.Job, error) {
		return failed("model overloaded"), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))
	<-s.Done()

	require.Equal(t, int32(1), rec.errs.Load())
	assert.Zero(t, rec.completes.Load())
	err := rec.terminalError()
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "model overloaded")

	final := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, final, calls.Load())
}

func TestWatch_RetryBudgetExhausted(t *testing.T) {
	fetch, calls := scripted(func(int) (*models.Job, error) {
		return nil, errors.New("connection refused")
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 3))
	<-s.Done()

	require.Equal(t, int32(1), rec.errs.Load())
	assert.ErrorIs(t, rec.terminalError(), ErrRetriesExhausted)
	assert.Contains(t, rec.terminalError().Error(), "3 consecutive failures")

	// The fourth poll never happens.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWatch_TransientFailuresThenSuccess(t *testing.T) {
	fetch, calls := scripted(func(call int) (*models.Job, error) {
		if call <= 2 {
			return nil, errors.New("connection refused")
		}
		return completed(`{"x":1}`), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 3))
	<-s.Done()

	assert.Equal(t, int32(1), rec.completes.Load())
	assert.Zero(t, rec.errs.Load())
	assert.JSONEq(t, `{"x":1}`, string(rec.result.Load().(json.RawMessage)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWatch_FailureCounterResetsOnSuccess(t *testing.T) {
	// Failures interleaved with successful non-terminal polls never
	// accumulate to the budget.
	fetch, _ := scripted(func(call int) (*models.Job, error) {
		switch {
		case call >= 7:
			return completed(`"done"`), nil
		case call%2 == 1:
			return nil, errors.New("flaky network")
		default:
			return running(50, "halfway"), nil
		}
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 2))
	<-s.Done()

	assert.Equal(t, int32(1), rec.completes.Load())
	assert.Zero(t, rec.errs.Load())
}

func TestWatch_TimeoutFiresOnce(t *testing.T) {
	fetch, calls := scripted(func(int) (*models.Job, error) {
		return running(5, "still going"), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-2", rec.config(20*time.Millisecond, 100*time.Millisecond, 5))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not time out")
	}

	require.Equal(t, int32(1), rec.errs.Load())
	assert.Zero(t, rec.completes.Load())
	assert.ErrorIs(t, rec.terminalError(), ErrWatchTimeout)
	assert.Contains(t, rec.terminalError().Error(), "100ms")

	// Periodic timer is cleared: no polls after the timeout.
	final := calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, final, calls.Load())
}

func TestWatch_CancelSuppressesCallbacks(t *testing.T) {
	release := make(chan struct{})
	fetch, _ := scripted(func(call int) (*models.Job, error) {
		if call == 1 {
			return running(0, ""), nil
		}
		// Second poll blocks until the test releases it, after Cancel.
		<-release
		return completed(`{"x":1}`), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))
	time.Sleep(25 * time.Millisecond) // let the second poll get in flight
	s.Cancel()
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, s.IsPolling())
	assert.Zero(t, rec.completes.Load())
	assert.Zero(t, rec.errs.Load())
}

func TestWatch_CancelIsIdempotent(t *testing.T) {
	fetch, _ := scripted(func(int) (*models.Job, error) {
		return running(0, ""), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))
	s.Cancel()
	s.Cancel()

	assert.False(t, s.IsPolling())
	assert.Zero(t, rec.errs.Load())
}

func TestWatch_EmptyJobIDIsNoOp(t *testing.T) {
	fetch, calls := scripted(func(int) (*models.Job, error) {
		return running(0, ""), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("", rec.config(10*time.Millisecond, time.Minute, 5))

	time.Sleep(40 * time.Millisecond)
	assert.False(t, s.IsPolling())
	assert.Zero(t, calls.Load())
	assert.Zero(t, rec.completes.Load())
	assert.Zero(t, rec.errs.Load())

	// Done is already closed so callers can select on it safely.
	select {
	case <-s.Done():
	default:
		t.Fatal("inert session Done() should be closed")
	}
}

func TestWatch_SameJobTwiceReusesSession(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	fetch, calls := scripted(func(call int) (*models.Job, error) {
		if call > 1 {
			<-block
		}
		return running(0, ""), nil
	})
	rec := &recorder{}
	p := New(fetch)

	s1 := p.Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))
	s2 := p.Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))

	assert.Same(t, s1, s2)

	// A single poll loop: with the second call blocked, the counter can
	// only ever reach 2 (first immediate poll + one in-flight tick).
	time.Sleep(60 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(2))
	s1.Cancel()
}

func TestWatch_NewJobCancelsPreviousSession(t *testing.T) {
	fetch, _ := scripted(func(int) (*models.Job, error) {
		return running(0, ""), nil
	})
	rec := &recorder{}
	p := New(fetch)

	s1 := p.Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))
	s2 := p.Watch("job-2", rec.config(10*time.Millisecond, time.Minute, 5))
	defer s2.Cancel()

	assert.False(t, s1.IsPolling())
	assert.True(t, s2.IsPolling())
	assert.Zero(t, rec.errs.Load(), "cancelling the old session must not fire its callbacks")
}

func TestWatch_ProgressUpdates(t *testing.T) {
	fetch, _ := scripted(func(call int) (*models.Job, error) {
		switch call {
		case 1:
			return running(25, "drafting sections"), nil
		case 2:
			// Progress fields are optional; their absence keeps the
			// previous values.
			return &models.Job{ID: "job-1", Status: models.JobStatusRunning}, nil
		default:
			return running(80, "formatting"), nil
		}
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))
	defer s.Cancel()

	require.Eventually(t, func() bool { return s.ProgressPercent() == 25 },
		time.Second, 2*time.Millisecond)
	assert.Equal(t, "drafting sections", s.ProgressMessage())

	require.Eventually(t, func() bool { return s.ProgressPercent() == 80 },
		time.Second, 2*time.Millisecond)
	assert.Equal(t, "formatting", s.ProgressMessage())
}

func TestWatch_RebindUsesLatestCallbacks(t *testing.T) {
	proceed := make(chan struct{})
	fetch, _ := scripted(func(call int) (*models.Job, error) {
		if call == 1 {
			return running(0, ""), nil
		}
		<-proceed
		return completed(`"ok"`), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))

	var rebound atomic.Int32
	s.Rebind(func(json.RawMessage) { rebound.Add(1) }, nil)
	close(proceed)
	<-s.Done()

	assert.Equal(t, int32(1), rebound.Load(), "rebound callback fires")
	assert.Zero(t, rec.completes.Load(), "original callback does not")
}

func TestWatch_UnknownStatusTreatedAsNonTerminal(t *testing.T) {
	fetch, _ := scripted(func(call int) (*models.Job, error) {
		if call < 3 {
			return &models.Job{ID: "job-1", Status: "queued"}, nil
		}
		return completed(`"ok"`), nil
	})
	rec := &recorder{}

	s := New(fetch).Watch("job-1", rec.config(10*time.Millisecond, time.Minute, 5))
	<-s.Done()

	assert.Equal(t, int32(1), rec.completes.Load())
	assert.Zero(t, rec.errs.Load())
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, DefaultMaxDuration, cfg.MaxDuration)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)

	custom := Config{Interval: time.Second, MaxDuration: time.Minute, MaxRetries: 2}.withDefaults()
	assert.Equal(t, time.Second, custom.Interval)
	assert.Equal(t, time.Minute, custom.MaxDuration)
	assert.Equal(t, 2, custom.MaxRetries)
}
