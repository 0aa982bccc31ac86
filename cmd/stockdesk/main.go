package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"stockdesk/internal/app"
	"stockdesk/internal/backend"
	"stockdesk/internal/chart"
	"stockdesk/internal/chat"
	"stockdesk/internal/config"
	"stockdesk/internal/market"
	"stockdesk/internal/session"
	"stockdesk/internal/store"
	"stockdesk/internal/util"
	"stockdesk/internal/view"
	"stockdesk/internal/watchlist"
)

func main() {
	cfgPath := "config/stockdesk.yaml"
	if p := os.Getenv("STOCKDESK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a rotating file.
	logger, logCloser, err := util.NewFileLogger(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	util.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := store.NewSQLiteStore(ctx, cfg.Storage.SessionDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening session store: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	sess, err := session.New(ctx, kv, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading session: %v\n", err)
		os.Exit(1)
	}

	views := view.NewRegistry()
	api := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, sess, logger)
	charts := chart.NewManager(api, chart.NewTextRenderer(views, cfg.Chart.Height, cfg.Chart.Width), views, cfg.Chart.Period, logger)
	panel := market.NewPanel(api, charts, views, cfg.Market.Regions, logger)
	panel.InitRegions(cfg.Market.DefaultRegion)
	wl := watchlist.New(api, views, logger)
	chats := chat.New(api, views, logger)

	a := app.New(app.Deps{
		Session:       sess,
		Views:         views,
		Auth:          api,
		Market:        panel,
		Watchlist:     wl,
		Chart:         charts,
		Chat:          chats,
		DefaultRegion: cfg.Market.DefaultRegion,
		Log:           logger,
	})
	logger.Info("stockdesk starting", "backend", cfg.Backend.BaseURL, "region", cfg.Market.DefaultRegion)

	if cfg.Market.RefreshCron != "" {
		sched, err := app.NewScheduler(ctx, a, cfg.Market.RefreshCron, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scheduling refresh: %v\n", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	subID, events := views.Subscribe(64)
	defer views.Unsubscribe(subID)

	p := tea.NewProgram(
		initialModel(ctx, components{
			app:       a,
			views:     views,
			session:   sess,
			market:    panel,
			charts:    charts,
			watchlist: wl,
			chat:      chats,
			exportDir: cfg.Storage.ExportDir,
		}, events, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
