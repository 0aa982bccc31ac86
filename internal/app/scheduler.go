package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"stockdesk/internal/view"
)

// Scheduler periodically refreshes the market dashboard while the app
// surface is shown.
type Scheduler struct {
	cron   *cron.Cron
	app    *App
	ctx    context.Context
	log    *slog.Logger
	onTick func(error)
}

// NewScheduler registers a market refresh on spec, a robfig/cron schedule
// such as "@every 1m" or "*/5 * * * *". onTick, if non-nil, receives each
// refresh result.
func NewScheduler(ctx context.Context, a *App, spec string, onTick func(error)) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		app:    a,
		ctx:    ctx,
		log:    a.Log,
		onTick: onTick,
	}
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return nil, fmt.Errorf("register market refresh %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("refresh scheduler started")
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("refresh scheduler stopped")
}

// RunNow refreshes the market for the selected region, unless the login
// surface is showing. The user's chart selection is kept when still listed.
func (s *Scheduler) RunNow() {
	if !s.app.Views.Visible(view.AppSurface) {
		return
	}
	err := ignoreStale(s.app.Market.RefreshKeepSelection(s.ctx, s.app.Region()))
	if err != nil {
		s.log.Warn("scheduled market refresh", "error", err)
	}
	if s.onTick != nil {
		s.onTick(err)
	}
}
