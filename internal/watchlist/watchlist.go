// Package watchlist keeps the user's saved symbols in sync with the backend.
package watchlist

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"stockdesk/internal/domain"
	"stockdesk/internal/view"
)

// Backend is the slice of the advisor API the watchlist needs.
type Backend interface {
	Watchlist(ctx context.Context) ([]string, error)
	AddToWatchlist(ctx context.Context, symbol string) error
}

// Status texts set on failure.
const (
	loadFailedText = "Failed to load watchlist"
	addFailedText  = "Could not add "
)

// Controller renders the watchlist and handles additions.
type Controller struct {
	api   Backend
	views *view.Registry
	log   *slog.Logger

	mu  sync.Mutex
	gen uint64
}

// New creates a Controller.
func New(api Backend, views *view.Registry, log *slog.Logger) *Controller {
	return &Controller{api: api, views: views, log: log}
}

// NormalizeSymbol trims whitespace and upper-cases s.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Refresh replaces the rendered list with the backend's current watchlist.
// A refresh overtaken by a newer one returns domain.ErrStale.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	symbols, err := c.api.Watchlist(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return domain.ErrStale
	}

	c.views.Clear(view.WatchlistList)
	if err != nil {
		c.log.Warn("refreshing watchlist", "error", err)
		c.views.SetValue(view.Status, loadFailedText)
		return err
	}
	c.views.ClearValueIf(view.Status, loadFailedText)
	for _, s := range symbols {
		c.views.Append(view.WatchlistList, view.Element{ID: s, Class: "watchlist-item", Text: s})
	}
	c.log.Debug("watchlist refreshed", "symbols", len(symbols))
	return nil
}

// Add reads the watchlist input, normalizes it and adds the symbol. The input
// is cleared before the request is sent. An empty input is a no-op. The list
// is refreshed afterwards whether or not the add succeeded.
func (c *Controller) Add(ctx context.Context) error {
	symbol := NormalizeSymbol(c.views.Value(view.WatchlistInput))
	if symbol == "" {
		return nil
	}
	c.views.SetValue(view.WatchlistInput, "")

	addErr := c.api.AddToWatchlist(ctx, symbol)
	if addErr != nil {
		c.log.Warn("adding to watchlist", "symbol", symbol, "error", addErr)
		c.views.SetValue(view.Status, addFailedText+symbol)
	} else {
		c.log.Info("added to watchlist", "symbol", symbol)
		c.views.ClearValueIf(view.Status, addFailedText)
	}

	if err := c.Refresh(ctx); err != nil && addErr == nil {
		return err
	}
	return addErr
}

// Reset discards in-flight refreshes and clears the list and input.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
	c.views.Clear(view.WatchlistList)
	c.views.SetValue(view.WatchlistInput, "")
}
