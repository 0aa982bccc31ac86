// Package chart manages the single live price chart: it fetches a symbol's
// price history and replaces the chart object, never letting two exist.
package chart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"stockdesk/internal/domain"
	"stockdesk/internal/view"
)

// Spec describes a line chart to construct.
type Spec struct {
	Label          string
	Labels         []string
	Prices         []float64
	ShowDomainAxis bool
}

// Object is a live chart instance bound to the chart canvas.
type Object interface {
	Destroy()
}

// Renderer constructs chart objects.
type Renderer interface {
	Render(spec Spec) (Object, error)
}

// SeriesFetcher loads price history.
type SeriesFetcher interface {
	Chart(ctx context.Context, symbol, period string) (domain.Series, error)
}

// failedPrefix starts the status text of a failed load.
const failedPrefix = "Failed to load chart for "

// Manager owns the chart object. Loads are serialized around the
// destroy-then-construct step and stale completions are dropped, so at most
// one object is alive at any time.
type Manager struct {
	fetch  SeriesFetcher
	render Renderer
	views  *view.Registry
	period string
	log    *slog.Logger

	mu      sync.Mutex
	gen     uint64
	current Object
	symbol  string
	series  domain.Series
}

// NewManager creates a Manager fetching series over period.
func NewManager(fetch SeriesFetcher, render Renderer, views *view.Registry, period string, log *slog.Logger) *Manager {
	return &Manager{
		fetch:  fetch,
		render: render,
		views:  views,
		period: period,
		log:    log,
	}
}

// Load fetches symbol's history and replaces the current chart with it. An
// empty symbol is a no-op. If a newer Load or Reset started while this one
// was fetching, the result is discarded and domain.ErrStale returned.
func (m *Manager) Load(ctx context.Context, symbol string) error {
	if symbol == "" {
		return nil
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	series, fetchErr := m.fetch.Chart(ctx, symbol, m.period)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		m.log.Debug("discarding stale chart load", "symbol", symbol)
		return domain.ErrStale
	}

	// The old chart goes even on failure so it never stands in for symbol.
	m.destroyLocked()

	if fetchErr != nil {
		m.log.Warn("loading chart", "symbol", symbol, "error", fetchErr)
		m.views.SetValue(view.Status, failedPrefix+symbol)
		return fetchErr
	}

	obj, err := m.render.Render(Spec{
		Label:  symbol,
		Labels: series.Labels(),
		Prices: series.Prices(),
	})
	if err != nil {
		m.log.Error("rendering chart", "symbol", symbol, "error", err)
		m.views.SetValue(view.Status, failedPrefix+symbol)
		return fmt.Errorf("rendering chart for %s: %w", symbol, err)
	}
	m.current = obj
	m.symbol = symbol
	m.series = series
	m.views.ClearValueIf(view.Status, failedPrefix)
	m.log.Info("chart loaded", "symbol", symbol, "points", len(series))
	return nil
}

// Current returns the symbol of the live chart, or "".
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbol
}

// Series returns the symbol and data of the live chart.
func (m *Manager) Series() (string, domain.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbol, append(domain.Series(nil), m.series...)
}

// Reset destroys the live chart and discards any in-flight load.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.destroyLocked()
}

// destroyLocked releases the current object. Must be called with mu held.
func (m *Manager) destroyLocked() {
	if m.current != nil {
		m.current.Destroy()
		m.current = nil
	}
	m.symbol = ""
	m.series = nil
}
