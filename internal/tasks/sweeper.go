package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// OverdueExpirer marks active claims on expired tasks as expired.
type OverdueExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically expires claims whose task expiry has passed, so stale
// claims do not stay active forever. Expiry never touches the ledger: an
// unfinished claim earned nothing.
type Sweeper struct {
	cron   *cron.Cron
	claims OverdueExpirer
	logger *slog.Logger
}

func NewSweeper(claims OverdueExpirer, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		claims: claims,
		logger: logger,
	}
}

// Start schedules the sweep with the given cron spec and runs one sweep
// immediately to catch up after downtime.
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return err
	}
	go s.sweep()
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.claims.ExpireOverdue(ctx, time.Now())
	if err != nil {
		s.logger.Error("claim expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired overdue claims", "count", n)
	}
}
