package chart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"stockdesk/internal/domain"
	"stockdesk/internal/view"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingRenderer tracks live objects and the highest count ever observed.
type countingRenderer struct {
	mu      sync.Mutex
	alive   int
	maxSeen int
	built   []Spec
}

type countedObject struct {
	r    *countingRenderer
	dead bool
}

func (r *countingRenderer) Render(spec Spec) (Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alive++
	if r.alive > r.maxSeen {
		r.maxSeen = r.alive
	}
	r.built = append(r.built, spec)
	return &countedObject{r: r}, nil
}

func (o *countedObject) Destroy() {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	if !o.dead {
		o.dead = true
		o.r.alive--
	}
}

func (r *countingRenderer) stats() (alive, maxSeen, built int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive, r.maxSeen, len(r.built)
}

// gatedFetcher returns series per symbol; symbols with a gate block until
// the gate is closed.
type gatedFetcher struct {
	mu      sync.Mutex
	series  map[string]domain.Series
	gates   map[string]chan struct{}
	started chan string
	periods []string
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		series:  make(map[string]domain.Series),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (f *gatedFetcher) Chart(ctx context.Context, symbol, period string) (domain.Series, error) {
	f.mu.Lock()
	gate := f.gates[symbol]
	s, ok := f.series[symbol]
	f.periods = append(f.periods, period)
	f.mu.Unlock()
	f.started <- symbol
	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, errors.New("symbol not found")
	}
	return s, nil
}

func sampleSeries() domain.Series {
	return domain.Series{{Date: "2024-06-03", Price: 100}, {Date: "2024-06-04", Price: 101.5}}
}

func TestLoadEmptySymbolIsNoop(t *testing.T) {
	f := newGatedFetcher()
	f.series["AAPL"] = sampleSeries()
	r := &countingRenderer{}
	m := NewManager(f, r, view.NewRegistry(), "1mo", discardLogger())
	ctx := context.Background()

	if err := m.Load(ctx, "AAPL"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Load(ctx, ""); err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	alive, _, built := r.stats()
	if alive != 1 || built != 1 {
		t.Errorf("alive=%d built=%d after empty load, want 1 and 1", alive, built)
	}
	if m.Current() != "AAPL" {
		t.Errorf("Current() = %q, want %q", m.Current(), "AAPL")
	}
	if sym, series := m.Series(); sym != "AAPL" || len(series) != 2 {
		t.Errorf("Series() = %q %v", sym, series)
	}
	if len(f.periods) != 1 || f.periods[0] != "1mo" {
		t.Errorf("fetch periods = %v, want [1mo]", f.periods)
	}
}

func TestReloadSameSymbolRebuilds(t *testing.T) {
	f := newGatedFetcher()
	f.series["AAPL"] = sampleSeries()
	r := &countingRenderer{}
	m := NewManager(f, r, view.NewRegistry(), "", discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := m.Load(ctx, "AAPL"); err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
	}
	alive, maxSeen, built := r.stats()
	if built != 3 {
		t.Errorf("built = %d, want 3 (rebuild on every load)", built)
	}
	if alive != 1 || maxSeen != 1 {
		t.Errorf("alive=%d maxSeen=%d, want 1 and 1", alive, maxSeen)
	}
	spec := r.built[2]
	if spec.Label != "AAPL" || spec.ShowDomainAxis {
		t.Errorf("spec = %+v, want label AAPL with hidden domain axis", spec)
	}
	if len(spec.Labels) != 2 || spec.Labels[0] != "2024-06-03" || spec.Prices[1] != 101.5 {
		t.Errorf("spec data = %v %v", spec.Labels, spec.Prices)
	}
}

func TestOverlappingLoadsKeepNewest(t *testing.T) {
	f := newGatedFetcher()
	f.series["SLOW"] = sampleSeries()
	f.series["FAST"] = sampleSeries()
	f.gates["SLOW"] = make(chan struct{})
	r := &countingRenderer{}
	m := NewManager(f, r, view.NewRegistry(), "", discardLogger())
	ctx := context.Background()

	slowErr := make(chan error, 1)
	go func() { slowErr <- m.Load(ctx, "SLOW") }()
	<-f.started // SLOW is in flight

	if err := m.Load(ctx, "FAST"); err != nil {
		t.Fatalf("Load(FAST): %v", err)
	}
	<-f.started

	close(f.gates["SLOW"])
	if err := <-slowErr; !errors.Is(err, domain.ErrStale) {
		t.Errorf("Load(SLOW) err = %v, want ErrStale", err)
	}

	alive, maxSeen, built := r.stats()
	if alive != 1 || maxSeen != 1 || built != 1 {
		t.Errorf("alive=%d maxSeen=%d built=%d, want 1/1/1", alive, maxSeen, built)
	}
	if m.Current() != "FAST" {
		t.Errorf("Current() = %q, want %q", m.Current(), "FAST")
	}
}

func TestConcurrentLoadsNeverDoubleConstruct(t *testing.T) {
	f := newGatedFetcher()
	symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	for _, s := range symbols {
		f.series[s] = sampleSeries()
	}
	f.started = make(chan string, 1024)
	r := &countingRenderer{}
	m := NewManager(f, r, view.NewRegistry(), "", discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			m.Load(context.Background(), sym)
		}(symbols[i%len(symbols)])
	}
	wg.Wait()

	alive, maxSeen, _ := r.stats()
	if alive != 1 || maxSeen != 1 {
		t.Errorf("alive=%d maxSeen=%d, want 1 and 1", alive, maxSeen)
	}
}

func TestFailedLoadDestroysStaleChart(t *testing.T) {
	f := newGatedFetcher()
	f.series["AAPL"] = sampleSeries()
	r := &countingRenderer{}
	views := view.NewRegistry()
	m := NewManager(f, r, views, "", discardLogger())
	ctx := context.Background()

	if err := m.Load(ctx, "AAPL"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Load(ctx, "MISSING"); err == nil {
		t.Fatal("Load(MISSING) should fail")
	}
	alive, _, _ := r.stats()
	if alive != 0 {
		t.Errorf("alive = %d after failed load, want 0", alive)
	}
	if m.Current() != "" {
		t.Errorf("Current() = %q, want empty", m.Current())
	}
	if _, series := m.Series(); len(series) != 0 {
		t.Errorf("Series() after failed load = %v, want empty", series)
	}
	if got := views.Value(view.Status); !strings.Contains(got, "MISSING") {
		t.Errorf("status = %q, want a failure mentioning MISSING", got)
	}
}

func TestSuccessfulLoadClearsFailureStatus(t *testing.T) {
	f := newGatedFetcher()
	f.series["^DJI"] = sampleSeries()
	views := view.NewRegistry()
	m := NewManager(f, &countingRenderer{}, views, "", discardLogger())
	ctx := context.Background()

	if err := m.Load(ctx, "NOPE"); err == nil {
		t.Fatal("Load(NOPE) should fail")
	}
	if err := m.Load(ctx, "^DJI"); err != nil {
		t.Fatalf("Load(^DJI): %v", err)
	}
	if got := views.Value(view.Status); got != "" {
		t.Errorf("status = %q after a successful load, want cleared", got)
	}

	views.SetValue(view.Status, "Could not add NVDA")
	if err := m.Load(ctx, "^DJI"); err != nil {
		t.Fatalf("Load(^DJI): %v", err)
	}
	if got := views.Value(view.Status); got != "Could not add NVDA" {
		t.Errorf("status = %q, want unrelated message kept", got)
	}
}

func TestResetDestroysAndDiscardsInFlight(t *testing.T) {
	f := newGatedFetcher()
	f.series["AAPL"] = sampleSeries()
	f.series["MSFT"] = sampleSeries()
	f.gates["MSFT"] = make(chan struct{})
	r := &countingRenderer{}
	m := NewManager(f, r, view.NewRegistry(), "", discardLogger())
	ctx := context.Background()

	m.Load(ctx, "AAPL")
	<-f.started

	done := make(chan error, 1)
	go func() { done <- m.Load(ctx, "MSFT") }()
	<-f.started

	m.Reset()
	close(f.gates["MSFT"])
	if err := <-done; !errors.Is(err, domain.ErrStale) {
		t.Errorf("in-flight load after Reset: err = %v, want ErrStale", err)
	}
	alive, _, _ := r.stats()
	if alive != 0 {
		t.Errorf("alive = %d after Reset, want 0", alive)
	}
}

func TestTextRenderer(t *testing.T) {
	views := view.NewRegistry()
	r := NewTextRenderer(views, 5, 30)

	obj, err := r.Render(Spec{Label: "^GSPC", Labels: []string{"d1", "d2", "d3"}, Prices: []float64{1, 3, 2}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	canvas := views.Value(view.ChartCanvas)
	if !strings.Contains(canvas, "^GSPC") {
		t.Errorf("canvas missing caption:\n%s", canvas)
	}
	if strings.Contains(canvas, "d1") {
		t.Errorf("domain axis should be hidden:\n%s", canvas)
	}

	obj.Destroy()
	if views.Value(view.ChartCanvas) != "" {
		t.Error("Destroy should clear the canvas")
	}
	obj.Destroy()

	if _, err := r.Render(Spec{Label: "EMPTY"}); err != nil {
		t.Fatalf("Render empty: %v", err)
	}
	if got := views.Value(view.ChartCanvas); got != "EMPTY: no data" {
		t.Errorf("empty canvas = %q", got)
	}
}
