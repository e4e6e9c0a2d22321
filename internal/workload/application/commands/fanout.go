package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

const (
	// DefaultAggregationConcurrency bounds per-member work.
	DefaultAggregationConcurrency = 5
	// memberLockTTL outlives any realistic per-member computation.
	memberLockTTL = 5 * time.Minute
	// runLockTTL covers a whole run: read, compute, write and alert.
	runLockTTL = 15 * time.Minute
)

// UserFailure is a member whose work failed during a run.
type UserFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// RunStats is the per-member accounting shared by the aggregation jobs.
type RunStats struct {
	UsersProcessed int           `json:"users_processed"`
	UsersFailed    int           `json:"users_failed"`
	UsersSkipped   int           `json:"users_skipped"`
	Skipped        []string      `json:"skipped,omitempty"`
	Failures       []UserFailure `json:"failures,omitempty"`
}

// Err returns the member failures as a domain.PartialBatchFailure, or nil.
func (s RunStats) Err() error {
	var p domain.PartialBatchFailure
	for _, f := range s.Failures {
		p.Add(f.UserID, errors.New(f.Error))
	}
	return p.ErrOrNil()
}

type memberOutcome struct {
	userID  string
	skipped bool
	err     error
}

// memberFanOut runs fn for every member with bounded concurrency. Each
// call holds the lock "{job}:{user_id}"; members whose lock is held
// elsewhere are skipped. Failures are isolated per member.
type memberFanOut struct {
	job         string
	concurrency int
	locker      lock.Locker
	logger      *slog.Logger
}

func (f memberFanOut) run(ctx context.Context, members []domain.Member, fn func(ctx context.Context, m domain.Member) error) RunStats {
	concurrency := f.concurrency
	if concurrency <= 0 {
		concurrency = DefaultAggregationConcurrency
	}

	outcomes := make([]memberOutcome, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, m := range members {
		g.Go(func() error {
			outcomes[i] = f.runOne(gctx, m, fn)
			return nil
		})
	}
	_ = g.Wait()

	var stats RunStats
	for _, o := range outcomes {
		switch {
		case o.skipped:
			stats.UsersSkipped++
			stats.Skipped = append(stats.Skipped, o.userID)
		case o.err != nil:
			stats.UsersFailed++
			stats.Failures = append(stats.Failures, UserFailure{UserID: o.userID, Error: o.err.Error()})
		default:
			stats.UsersProcessed++
		}
	}
	return stats
}

// acquireRun takes the job-wide lock "run:{job}". ok is false when another
// run holds it. Without a locker the run always proceeds.
func (f memberFanOut) acquireRun(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error) {
	if f.locker == nil {
		return func() {}, true, nil
	}
	unlock, ok, err := f.locker.TryAcquire(ctx, "run:"+f.job, ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			f.logger.WarnContext(ctx, "run lock release failed", "job", f.job, "error", err)
		}
	}, true, nil
}

func (f memberFanOut) runOne(ctx context.Context, m domain.Member, fn func(ctx context.Context, m domain.Member) error) memberOutcome {
	out := memberOutcome{userID: m.UserID}

	if f.locker != nil {
		release, ok, err := f.locker.TryAcquire(ctx, f.job+":"+m.UserID, memberLockTTL)
		if err != nil {
			out.err = err
			f.logger.ErrorContext(ctx, "member lock failed", "user_id", m.UserID, "error", err)
			return out
		}
		if !ok {
			out.skipped = true
			f.logger.InfoContext(ctx, "member locked by another run, skipping", "user_id", m.UserID)
			return out
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				f.logger.WarnContext(ctx, "member lock release failed", "user_id", m.UserID, "error", err)
			}
		}()
	}

	if err := fn(ctx, m); err != nil {
		out.err = err
		f.logger.ErrorContext(ctx, "member failed", "user_id", m.UserID, "error", err)
	}
	return out
}

// filterMembers keeps members whose ID is in ids; empty ids keeps all.
func filterMembers(members []domain.Member, ids []string) []domain.Member {
	if len(ids) == 0 {
		return members
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]domain.Member, 0, len(ids))
	for _, m := range members {
		if _, ok := want[m.UserID]; ok {
			out = append(out, m)
		}
	}
	return out
}
