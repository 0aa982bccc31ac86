// Package view holds the named UI regions (mount points) that the core
// components read from and write into. The registry has no domain logic; the
// terminal front end draws whatever the regions contain.
package view

import (
	"strings"
	"sync"
)

// Mount names a UI region.
type Mount string

const (
	LoginSurface   Mount = "login-surface"
	AppSurface     Mount = "app-surface"
	UsernameInput  Mount = "username"
	PasswordInput  Mount = "password"
	RegionSelector Mount = "region-selector"
	IndexGrid      Mount = "index-grid"
	ChartSymbol    Mount = "chart-symbol"
	ChartCanvas    Mount = "chart-canvas"
	WatchlistInput Mount = "watchlist-input"
	WatchlistList  Mount = "watchlist-list"
	ChatInput      Mount = "chat-input"
	ChatTranscript Mount = "chat-transcript"
	AuthError      Mount = "auth-error"
	Status         Mount = "status"
)

// Element is one child of a region: a card, an option, a list line or a
// chat message.
type Element struct {
	ID     string
	Class  string
	Text   string
	Value  string
	Markup bool // Text contains <br> line breaks
}

// Region is a snapshot of a mount point's state.
type Region struct {
	Visible     bool
	Value       string
	Elements    []Element
	ScrollToEnd bool
}

// Event is sent to subscribers whenever a region changes.
type Event struct {
	Mount Mount
}

// Registry stores region state by mount name. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	regions map[Mount]*Region

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewRegistry creates an empty registry. All regions start hidden and empty.
func NewRegistry() *Registry {
	return &Registry{
		regions: make(map[Mount]*Region),
		subs:    make(map[int]chan Event),
	}
}

// region returns the region for m, creating it. Must be called with mu held.
func (r *Registry) region(m Mount) *Region {
	reg, ok := r.regions[m]
	if !ok {
		reg = &Region{}
		r.regions[m] = reg
	}
	return reg
}

func (r *Registry) mutate(m Mount, fn func(*Region) bool) bool {
	r.mu.Lock()
	changed := fn(r.region(m))
	r.mu.Unlock()
	if changed {
		r.broadcast(Event{Mount: m})
	}
	return changed
}

// Show makes m visible.
func (r *Registry) Show(m Mount) {
	r.mutate(m, func(reg *Region) bool {
		reg.Visible = true
		return true
	})
}

// Hide makes m invisible.
func (r *Registry) Hide(m Mount) {
	r.mutate(m, func(reg *Region) bool {
		reg.Visible = false
		return true
	})
}

// Visible reports whether m is shown.
func (r *Registry) Visible(m Mount) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regions[m]
	return ok && reg.Visible
}

// Value returns the value of an input or selector region.
func (r *Registry) Value(m Mount) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.regions[m]; ok {
		return reg.Value
	}
	return ""
}

// SetValue sets the value of an input, selector or text region.
func (r *Registry) SetValue(m Mount, v string) {
	r.mutate(m, func(reg *Region) bool {
		reg.Value = v
		return true
	})
}

// ClearValueIf empties the value of m if it starts with prefix. It reports
// whether the value was cleared.
func (r *Registry) ClearValueIf(m Mount, prefix string) bool {
	return r.mutate(m, func(reg *Region) bool {
		if reg.Value == "" || !strings.HasPrefix(reg.Value, prefix) {
			return false
		}
		reg.Value = ""
		return true
	})
}

// Clear removes all elements of m. The value is left untouched.
func (r *Registry) Clear(m Mount) {
	r.mutate(m, func(reg *Region) bool {
		reg.Elements = nil
		reg.ScrollToEnd = false
		return true
	})
}

// Append adds el as the last element of m.
func (r *Registry) Append(m Mount, el Element) {
	r.mutate(m, func(reg *Region) bool {
		reg.Elements = append(reg.Elements, el)
		return true
	})
}

// Remove deletes the element with id from m. It reports whether the element
// existed.
func (r *Registry) Remove(m Mount, id string) bool {
	return r.mutate(m, func(reg *Region) bool {
		for i, el := range reg.Elements {
			if el.ID == id {
				reg.Elements = append(reg.Elements[:i:i], reg.Elements[i+1:]...)
				return true
			}
		}
		return false
	})
}

// SetText replaces the text of the element with id, in place, as plain text.
// It reports whether the element existed.
func (r *Registry) SetText(m Mount, id, text string) bool {
	return r.mutate(m, func(reg *Region) bool {
		for i := range reg.Elements {
			if reg.Elements[i].ID == id {
				reg.Elements[i].Text = text
				reg.Elements[i].Markup = false
				return true
			}
		}
		return false
	})
}

// ScrollToEnd asks the front end to scroll m to its last element.
func (r *Registry) ScrollToEnd(m Mount) {
	r.mutate(m, func(reg *Region) bool {
		reg.ScrollToEnd = true
		return true
	})
}

// Elements returns a copy of the elements of m.
func (r *Registry) Elements(m Mount) []Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regions[m]
	if !ok {
		return nil
	}
	out := make([]Element, len(reg.Elements))
	copy(out, reg.Elements)
	return out
}

// Region returns a snapshot of m.
func (r *Registry) Region(m Mount) Region {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regions[m]
	if !ok {
		return Region{}
	}
	out := *reg
	out.Elements = make([]Element, len(reg.Elements))
	copy(out.Elements, reg.Elements)
	return out
}

// Subscribe returns a channel that receives change events. bufSize controls
// the channel buffer; slow consumers will have events dropped.
func (r *Registry) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	r.subsMu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = ch
	r.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *Registry) Unsubscribe(id int) {
	r.subsMu.Lock()
	if ch, ok := r.subs[id]; ok {
		delete(r.subs, id)
		close(ch)
	}
	r.subsMu.Unlock()
}

// broadcast sends an event to all subscribers non-blocking (drop on full).
func (r *Registry) broadcast(e Event) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- e:
		default:
			// Slow consumer, drop.
		}
	}
}
