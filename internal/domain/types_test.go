package domain

import (
	"testing"
)

func TestIndexSnapshotUp(t *testing.T) {
	tests := []struct {
		change float64
		want   bool
	}{
		{20.1, true},
		{0, true},
		{-0.01, false},
		{-57.94, false},
	}
	for _, tt := range tests {
		s := IndexSnapshot{Symbol: "^GSPC", Change: tt.change}
		if got := s.Up(); got != tt.want {
			t.Errorf("Up() with change %v = %v, want %v", tt.change, got, tt.want)
		}
	}
}

func TestMessageStateString(t *testing.T) {
	tests := []struct {
		state MessageState
		want  string
	}{
		{StatePending, "pending"},
		{StateResolved, "resolved"},
		{StateFailed, "failed"},
		{MessageState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("MessageState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestSeriesLabelsPrices(t *testing.T) {
	s := Series{
		{Date: "2024-06-03", Price: 5283.4},
		{Date: "2024-06-04", Price: 5291.34},
		{Date: "2024-06-05", Price: 5354.03},
	}

	labels := s.Labels()
	prices := s.Prices()
	if len(labels) != 3 || len(prices) != 3 {
		t.Fatalf("len(labels)=%d len(prices)=%d, want 3 and 3", len(labels), len(prices))
	}
	if labels[0] != "2024-06-03" || labels[2] != "2024-06-05" {
		t.Errorf("labels = %v, want backend order", labels)
	}
	if prices[1] != 5291.34 {
		t.Errorf("prices[1] = %f, want %f", prices[1], 5291.34)
	}

	var empty Series
	if len(empty.Labels()) != 0 || len(empty.Prices()) != 0 {
		t.Error("empty series should yield empty labels and prices")
	}
}
