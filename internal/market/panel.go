// Package market drives the index dashboard: it fetches snapshots for a
// region, renders summary cards and the chart-symbol selector, and triggers
// the initial chart load.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"stockdesk/internal/domain"
	"stockdesk/internal/view"
)

// loadFailedText is the status shown when snapshots cannot be fetched.
const loadFailedText = "Failed to load market data"

// SnapshotFetcher loads index snapshots for a region.
type SnapshotFetcher interface {
	Indexes(ctx context.Context, region string) ([]domain.IndexSnapshot, error)
}

// ChartLoader loads a symbol into the chart.
type ChartLoader interface {
	Load(ctx context.Context, symbol string) error
}

// Panel is the market dashboard controller. It is safe for concurrent use;
// only the most recent Refresh is applied.
type Panel struct {
	fetch   SnapshotFetcher
	charts  ChartLoader
	views   *view.Registry
	regions []string
	log     *slog.Logger

	mu  sync.Mutex
	gen uint64
}

// NewPanel creates a Panel offering the given region codes.
func NewPanel(fetch SnapshotFetcher, charts ChartLoader, views *view.Registry, regions []string, log *slog.Logger) *Panel {
	return &Panel{
		fetch:   fetch,
		charts:  charts,
		views:   views,
		regions: regions,
		log:     log,
	}
}

// Regions returns the supported region codes.
func (p *Panel) Regions() []string {
	return append([]string(nil), p.regions...)
}

// InitRegions fills the region selector and selects def.
func (p *Panel) InitRegions(def string) {
	p.views.Clear(view.RegionSelector)
	for _, r := range p.regions {
		p.views.Append(view.RegionSelector, view.Element{ID: r, Value: r, Text: r})
	}
	p.views.SetValue(view.RegionSelector, def)
}

// Refresh fetches snapshots for region and rebuilds the index grid and the
// chart-symbol selector in response order, then loads the first symbol into
// the chart. A Refresh overtaken by a newer one returns domain.ErrStale
// without touching the view.
func (p *Panel) Refresh(ctx context.Context, region string) error {
	return p.refresh(ctx, region, false)
}

// RefreshKeepSelection rebuilds the grid and selector like Refresh, but when
// the selected symbol is still listed it stays selected and the chart is left
// alone. Only a vanished selection falls back to loading the first symbol.
func (p *Panel) RefreshKeepSelection(ctx context.Context, region string) error {
	return p.refresh(ctx, region, true)
}

func (p *Panel) refresh(ctx context.Context, region string, keep bool) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	snaps, err := p.fetch.Indexes(ctx, region)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		p.log.Debug("discarding stale market refresh", "region", region)
		return domain.ErrStale
	}

	selected := p.views.Value(view.ChartSymbol)
	p.views.Clear(view.IndexGrid)
	p.views.Clear(view.ChartSymbol)
	p.views.SetValue(view.ChartSymbol, "")

	if err != nil {
		p.mu.Unlock()
		p.log.Warn("refreshing market", "region", region, "error", err)
		p.views.SetValue(view.Status, loadFailedText)
		return err
	}

	p.views.ClearValueIf(view.Status, loadFailedText)
	var listed bool
	for _, s := range snaps {
		if s.Symbol == selected {
			listed = true
		}
		p.views.Append(view.IndexGrid, view.Element{
			ID:    s.Symbol,
			Class: "card index-card " + Direction(s),
			Text:  s.Name + "\n" + FormatPrice(s.Price) + "\n" + FormatChange(s),
		})
		p.views.Append(view.ChartSymbol, view.Element{
			ID:    s.Symbol,
			Value: s.Symbol,
			Text:  s.Name,
		})
	}

	var first string
	kept := keep && selected != "" && listed
	switch {
	case kept:
		p.views.SetValue(view.ChartSymbol, selected)
	case len(snaps) > 0:
		first = snaps[0].Symbol
		p.views.SetValue(view.ChartSymbol, first)
	}
	p.mu.Unlock()

	p.log.Info("market refreshed", "region", region, "indexes", len(snaps), "kept_selection", kept)

	if first == "" {
		return nil
	}
	if err := p.charts.Load(ctx, first); err != nil && !errors.Is(err, domain.ErrStale) {
		return fmt.Errorf("loading chart for %s: %w", first, err)
	}
	return nil
}

// SelectRegion switches the region selector to region and refreshes.
func (p *Panel) SelectRegion(ctx context.Context, region string) error {
	p.views.SetValue(view.RegionSelector, region)
	return p.Refresh(ctx, region)
}

// SelectSymbol switches the chart-symbol selector to symbol and loads it.
func (p *Panel) SelectSymbol(ctx context.Context, symbol string) error {
	p.views.SetValue(view.ChartSymbol, symbol)
	return p.charts.Load(ctx, symbol)
}

// Reset discards in-flight refreshes and clears the grid and selector.
func (p *Panel) Reset() {
	p.mu.Lock()
	p.gen++
	p.mu.Unlock()
	p.views.Clear(view.IndexGrid)
	p.views.Clear(view.ChartSymbol)
	p.views.SetValue(view.ChartSymbol, "")
}
