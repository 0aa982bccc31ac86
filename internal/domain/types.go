// Package domain defines the core data types shared by the stockdesk client:
// index snapshots, chart series, and chat messages.
package domain

// IndexSnapshot is a point-in-time market index summary as returned by the
// backend. Snapshots are never cached; callers keep the response order.
type IndexSnapshot struct {
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Change  float64 `json:"change"`
	Percent float64 `json:"percent"`
}

// Up reports whether the snapshot moved up (or stayed flat).
func (s IndexSnapshot) Up() bool {
	return s.Change >= 0
}

// ChartPoint is one date/price sample of a price history series.
type ChartPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Series is an ordered price history, date ascending as returned by the
// backend.
type Series []ChartPoint

// Labels returns the date labels of the series in order.
func (s Series) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// Prices returns the prices of the series in order.
func (s Series) Prices() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is a single entry of the chat transcript.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Markup  bool   `json:"markup"` // content carries <br> line breaks
}

// MessageState is the lifecycle state of a bot-side chat message.
type MessageState int

const (
	StatePending MessageState = iota
	StateResolved
	StateFailed
)

// String returns the lower-case name of the state.
func (s MessageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
