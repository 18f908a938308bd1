package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"offline_worker/internal/logger"
	"offline_worker/internal/worker"
)

// Workers hands out the active worker for the duration of one run.
type Workers interface {
	Acquire() (*worker.Worker, bool)
	Release(*worker.Worker)
}

// SyncScheduler fires the background-sync tag on a cron schedule, the way a
// browser would after connectivity returns.
type SyncScheduler struct {
	cron    *cron.Cron
	workers Workers
	tag     string
	entry   cron.EntryID
	log     *logrus.Entry
}

func NewSyncScheduler(schedule string, tag string, workers Workers) (*SyncScheduler, error) {
	if workers == nil {
		return nil, errors.New("sync scheduler needs workers")
	}
	s := &SyncScheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		workers: workers,
		tag:     tag,
		log:     logger.WithComponent("scheduler").WithField("tag", tag),
	}
	entry, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return nil, fmt.Errorf("sync schedule %q: %w", schedule, err)
	}
	s.entry = entry
	return s, nil
}

func (s *SyncScheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.log.WithField("next", s.cron.Entry(s.entry).Next).Info("sync scheduler started")
}

// Stop waits for a running sync unless ctx ends first.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger dispatches one sync to the active worker and returns its report.
func (s *SyncScheduler) Trigger(ctx context.Context) (worker.SyncReport, error) {
	if s == nil {
		return worker.SyncReport{}, worker.ErrNoActive
	}
	active, ok := s.workers.Acquire()
	if !ok {
		return worker.SyncReport{Tag: s.tag}, worker.ErrNoActive
	}
	defer s.workers.Release(active)

	var report worker.SyncReport
	done := active.WaitUntil(func(workerCtx context.Context) error {
		var err error
		report, err = active.Sync(workerCtx, s.tag)
		return err
	})
	select {
	case err := <-done:
		return report, err
	case <-ctx.Done():
		return worker.SyncReport{Tag: s.tag}, ctx.Err()
	}
}

func (s *SyncScheduler) run() {
	report, err := s.Trigger(context.Background())
	if err != nil {
		if errors.Is(err, worker.ErrNoActive) {
			s.log.Debug("no active worker, skipping scheduled sync")
			return
		}
		s.log.WithError(err).Warn("scheduled sync failed")
		return
	}
	s.log.WithFields(logrus.Fields{"refreshed": report.Refreshed, "failed": report.Failed}).Debug("scheduled sync done")
}
