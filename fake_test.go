package telerelay

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	To  Peer
	Out Outgoing
}

type sentText struct {
	To   Peer
	Text string
}

// fakeClient is an in-memory Client. Handlers run synchronously in emit.
type fakeClient struct {
	handlers handlerSet

	connectErr error
	sendErr    func(to Peer) error

	mu          sync.Mutex
	connected   bool
	disconnects int
	attempts    []Peer
	sent        []sentMessage
	texts       []sentText
}

var _ Client = (*fakeClient)(nil)

func (c *fakeClient) Connect(context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Disconnect() error {
	c.mu.Lock()
	c.connected = false
	c.disconnects++
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Subscribe(filter Filter, fn HandlerFunc) *Subscription {
	return c.handlers.add(filter, fn)
}

func (c *fakeClient) Send(_ context.Context, to Peer, out *Outgoing) error {
	c.mu.Lock()
	c.attempts = append(c.attempts, to)
	c.mu.Unlock()

	if c.sendErr != nil {
		if err := c.sendErr(to); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.sent = append(c.sent, sentMessage{To: to, Out: *out})
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) SendText(_ context.Context, to Peer, text string) error {
	c.mu.Lock()
	c.texts = append(c.texts, sentText{To: to, Text: text})
	c.mu.Unlock()
	return nil
}

// emit delivers msg to every matching subscription.
func (c *fakeClient) emit(msg *Message) {
	for _, fn := range c.handlers.match(msg) {
		_ = fn(context.Background(), msg)
	}
}

func (c *fakeClient) sentMessages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func (c *fakeClient) sendAttempts() []Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Peer(nil), c.attempts...)
}

func (c *fakeClient) sentTexts() []sentText {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentText(nil), c.texts...)
}

func (c *fakeClient) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func chatMessage(chatID int64, text string) *Message {
	return &Message{ChatID: chatID, Body: text, Raw: text}
}
