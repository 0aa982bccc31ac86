// Package chat runs the conversational exchange with the advisor agent and
// maintains the transcript.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"stockdesk/internal/domain"
	"stockdesk/internal/view"
)

// Placeholder and failure texts shown for a bot reply.
const (
	PendingText = "Thinking..."
	FailedText  = "Error contacting agent."
)

// Agent sends one message to the advisor and returns its reply.
type Agent interface {
	Chat(ctx context.Context, message string) (string, error)
}

var markdownReplacer = strings.NewReplacer("**", "", "##", "", "\n", "<br>")

// Normalize strips bold and heading markers and converts newlines to <br>.
func Normalize(s string) string {
	return markdownReplacer.Replace(s)
}

// Controller owns the transcript. Several exchanges may be in flight; each
// resolves its own placeholder.
type Controller struct {
	agent Agent
	views *view.Registry
	log   *slog.Logger

	mu       sync.Mutex
	epoch    uint64
	messages []domain.Message
	states   map[string]domain.MessageState
}

// New creates a Controller.
func New(agent Agent, views *view.Registry, log *slog.Logger) *Controller {
	return &Controller{
		agent:  agent,
		views:  views,
		log:    log,
		states: make(map[string]domain.MessageState),
	}
}

// HandleKey submits the chat input on Enter and ignores other keys.
func (c *Controller) HandleKey(ctx context.Context, key string) error {
	if key != "enter" {
		return nil
	}
	return c.Send(ctx)
}

// Send submits the chat input. It returns once the bot reply has resolved
// or failed; the transcript shows a placeholder meanwhile.
func (c *Controller) Send(ctx context.Context) error {
	text := c.views.Value(view.ChatInput)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	c.views.SetValue(view.ChatInput, "")

	c.mu.Lock()
	epoch := c.epoch
	c.appendLocked(domain.Message{ID: uuid.NewString(), Role: domain.RoleUser, Content: text})
	placeholder := uuid.NewString()
	c.appendLocked(domain.Message{ID: placeholder, Role: domain.RoleBot, Content: PendingText})
	c.states[placeholder] = domain.StatePending
	c.mu.Unlock()

	reply, err := c.agent.Chat(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		c.log.Debug("dropping chat reply after reset")
		return domain.ErrStale
	}

	if err != nil {
		c.log.Warn("contacting agent", "error", err)
		for i := range c.messages {
			if c.messages[i].ID == placeholder {
				c.messages[i].Content = FailedText
			}
		}
		c.states[placeholder] = domain.StateFailed
		c.views.SetText(view.ChatTranscript, placeholder, FailedText)
		return err
	}

	c.removeLocked(placeholder)
	id := uuid.NewString()
	c.appendLocked(domain.Message{ID: id, Role: domain.RoleBot, Content: Normalize(reply), Markup: true})
	c.states[id] = domain.StateResolved
	return nil
}

func (c *Controller) appendLocked(m domain.Message) {
	c.messages = append(c.messages, m)
	c.views.Append(view.ChatTranscript, view.Element{
		ID:     m.ID,
		Class:  "message " + string(m.Role),
		Text:   m.Content,
		Markup: m.Markup,
	})
	c.views.ScrollToEnd(view.ChatTranscript)
}

func (c *Controller) removeLocked(id string) {
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i:i], c.messages[i+1:]...)
			break
		}
	}
	delete(c.states, id)
	c.views.Remove(view.ChatTranscript, id)
}

// Transcript returns a copy of the messages in display order.
func (c *Controller) Transcript() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.messages...)
}

// State reports the exchange state of a bot message.
func (c *Controller) State(id string) (domain.MessageState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[id]
	return st, ok
}

// Reset clears the transcript. Replies still in flight are dropped.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.epoch++
	c.messages = nil
	c.states = make(map[string]domain.MessageState)
	c.mu.Unlock()
	c.views.Clear(view.ChatTranscript)
	c.views.SetValue(view.ChatInput, "")
}
