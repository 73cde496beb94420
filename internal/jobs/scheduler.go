package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"devicegalaxy/internal/config"
	"devicegalaxy/internal/queue"
)

// Scheduler enqueues the periodic maintenance tasks run by the worker.
type Scheduler struct {
	cron  *cron.Cron
	queue queue.Enqueuer
	cfg   config.JobsConfig
	log   zerolog.Logger
}

func NewScheduler(q queue.Enqueuer, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: q,
		cfg:   cfg,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.OrphanSweep, s.enqueue(queue.TaskOrphanSweep)); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.SessionCleanup, s.enqueue(queue.TaskSessionCleanup)); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		<-s.cron.Stop().Done()
		cancel()
	}()
	return func() {
		<-ctx.Done()
	}
}

func (s *Scheduler) enqueue(taskType string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.queue.Enqueue(ctx, taskType, nil); err != nil {
			s.log.Error().Err(err).Str("task", taskType).Msg("enqueue failed")
			return
		}
		s.log.Debug().Str("task", taskType).Msg("task enqueued")
	}
}
