// Package scheduler runs the periodic calendar refresh inside the server
// process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher re-propagates unsynced calendar events.
type Refresher interface {
	RefreshAll(ctx context.Context, limit int) (int, error)
}

// Scheduler wraps cron-based jobs.
type Scheduler struct {
	cron *cron.Cron
}

func New(loc *time.Location) *Scheduler {
	logger := cron.PrintfLogger(zap.NewStdLog(zap.L()))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// ScheduleRefresh registers the refresh job. spec is a standard five-field
// cron expression or a descriptor such as "@every 5m".
func (s *Scheduler) ScheduleRefresh(spec string, r Refresher, batch int) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, RefreshJob(r, batch))
	if err != nil {
		return 0, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return id, nil
}

// RefreshJob is one run of the refresh: a single batch of at most batch
// events.
func RefreshJob(r Refresher, batch int) func() {
	return func() {
		n, err := r.RefreshAll(context.Background(), batch)
		if err != nil {
			zap.L().Error("Calendar refresh failed", zap.Error(err))
			return
		}
		if n > 0 {
			zap.L().Info("Calendar refresh finished", zap.Int("events", n))
		}
	}
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
