package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Schedule triggers Job every Interval.
type Schedule struct {
	Job        Job
	Interval   time.Duration
	Payload    json.RawMessage
	RunOnStart bool
}

// Stats tracks the runs of one scheduled job.
type Stats struct {
	Runs           int64      `json:"runs"`
	Failures       int64      `json:"failures"`
	Running        bool       `json:"running"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastDurationMS int64      `json:"last_duration_ms"`
}

// Scheduler runs each schedule on its own ticker. A job never overlaps
// itself: ticks that arrive while the previous run is still going are
// dropped.
type Scheduler struct {
	invoker   *Invoker
	schedules []Schedule
	logger    *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   map[string]*Stats
	busy    map[string]bool
}

// NewScheduler creates a scheduler. Schedules with a non-positive
// interval are ignored.
func NewScheduler(invoker *Invoker, logger *slog.Logger, schedules ...Schedule) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if invoker == nil {
		invoker = NewInvoker(logger, nil)
	}
	s := &Scheduler{
		invoker:  invoker,
		logger:   logger,
		stopChan: make(chan struct{}),
		stats:    make(map[string]*Stats),
		busy:     make(map[string]bool),
	}
	for _, sc := range schedules {
		if sc.Job == nil || sc.Interval <= 0 {
			continue
		}
		s.schedules = append(s.schedules, sc)
		s.stats[sc.Job.Name()] = &Stats{}
	}
	return s
}

// Start begins one loop per schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	for _, sc := range s.schedules {
		s.wg.Add(1)
		go s.run(ctx, sc)
		s.logger.Info("job scheduled", "job", sc.Job.Name(), "interval", sc.Interval, "run_on_start", sc.RunOnStart)
	}
	return nil
}

// Stop stops the loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow triggers a scheduled job outside its ticker. It fails when the
// job is unknown or already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) (Outcome, error) {
	for _, sc := range s.schedules {
		if sc.Job.Name() != name {
			continue
		}
		out, ok := s.trigger(ctx, sc)
		if !ok {
			return Outcome{}, fmt.Errorf("job %s is already running", name)
		}
		return out, nil
	}
	return Outcome{}, fmt.Errorf("job %s is not scheduled", name)
}

// GetStats returns a copy of the per-job statistics.
func (s *Scheduler) GetStats() map[string]Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	out := make(map[string]Stats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, sc Schedule) {
	defer s.wg.Done()

	if sc.RunOnStart {
		s.trigger(ctx, sc)
	}

	ticker := time.NewTicker(sc.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, ok := s.trigger(ctx, sc); !ok {
				s.logger.Warn("skipping job run, previous run still in progress", "job", sc.Job.Name())
			}
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, sc Schedule) (Outcome, bool) {
	name := sc.Job.Name()
	if !s.markBusy(name) {
		return Outcome{}, false
	}
	defer s.markIdle(name)

	out := s.invoker.Invoke(ctx, sc.Job, sc.Payload)
	s.record(out)
	if !out.Success {
		s.logger.Error("scheduled job failed", "job", name, "correlation_id", out.CorrelationID, "error", out.Error)
	}
	return out, true
}

func (s *Scheduler) markBusy(name string) bool {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if s.busy[name] {
		return false
	}
	s.busy[name] = true
	if st, ok := s.stats[name]; ok {
		st.Running = true
	}
	return true
}

func (s *Scheduler) markIdle(name string) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.busy[name] = false
	if st, ok := s.stats[name]; ok {
		st.Running = false
	}
}

func (s *Scheduler) record(out Outcome) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	st, ok := s.stats[out.Job]
	if !ok {
		return
	}
	started := out.StartedAt
	st.Runs++
	st.LastRunAt = &started
	st.LastDurationMS = out.DurationMS
	if out.Success {
		st.LastSuccessAt = &started
		st.LastError = ""
		return
	}
	st.Failures++
	st.LastError = out.Error
}
