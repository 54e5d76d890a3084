package labeller

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/praekelt/helpdesk/pkg/logger"
)

const (
	DefaultCron    = "* * * * *"
	DefaultLockTTL = 5 * time.Minute

	maxConsecutiveRenewFails = 3
)

type SchedulerOptions struct {
	Cron    string
	LockTTL time.Duration
	LockDir string
}

// Start runs the task on the cron schedule until ctx is done. The returned
// cancel func stops the scheduler.
func Start(ctx context.Context, r *Runner, opts SchedulerOptions) (context.CancelFunc, error) {
	if opts.Cron == "" {
		opts.Cron = DefaultCron
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if !gronx.IsValid(opts.Cron) {
		return nil, fmt.Errorf("invalid labeller cron expression: %s", opts.Cron)
	}
	if err := os.MkdirAll(opts.LockDir, 0o700); err != nil {
		logger.Error("labeller_lock_dir_failed", "path", opts.LockDir, "error", err)
		return nil, err
	}

	ctx2, cancel := context.WithCancel(ctx)
	go schedule(ctx2, r, opts)
	logger.Info("labeller_scheduler_started", "cron", opts.Cron, "lock_dir", opts.LockDir)
	return cancel, nil
}

func schedule(ctx context.Context, r *Runner, opts SchedulerOptions) {
	for {
		next, err := gronx.NextTickAfter(opts.Cron, time.Now().UTC(), false)
		if err != nil {
			logger.Error("labeller_nexttick_failed", "cron", opts.Cron, "error", err)
			next = time.Now().Add(30 * time.Second)
		}
		select {
		case <-ctx.Done():
			logger.Info("labeller_scheduler_stopping")
			return
		case <-time.After(time.Until(next)):
			if err := RunLeased(ctx, r, NewFileLease(opts.LockDir), opts.LockTTL); err != nil {
				logger.Error("labeller_run_error", "error", err)
			}
		}
	}
}

// RunLeased runs the task for all orgs while holding the lease, renewing it
// in the background. It returns nil without running if another process holds
// the lease.
func RunLeased(ctx context.Context, r *Runner, lease *FileLease, ttl time.Duration) error {
	owner := uuid.NewString()
	ok, err := lease.Acquire(owner, ttl)
	if err != nil {
		return fmt.Errorf("lease acquire failed: %w", err)
	}
	if !ok {
		logger.Info("labeller_lease_not_acquired")
		return nil
	}
	defer func() {
		if err := lease.Release(owner); err != nil {
			logger.Error("labeller_lease_release_error", "error", err)
		}
	}()

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		t := time.NewTicker(ttl / 3)
		defer t.Stop()
		fails := 0
		for {
			select {
			case <-runCtx.Done():
				return
			case <-t.C:
				if err := lease.Renew(owner, ttl); err != nil {
					fails++
					logger.Error("labeller_lease_renew_failed", "error", err, "count", fails)
					if fails >= maxConsecutiveRenewFails {
						runCancel()
						return
					}
					continue
				}
				fails = 0
			}
		}
	}()

	_, err = r.RunAll(runCtx)
	return err
}
