package telerelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// State is an Account lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ConfigLoader reads the current configuration from disk.
type ConfigLoader func() (*Config, error)

// AccountConfig holds what an Account needs besides its client.
type AccountConfig struct {
	// Name is the session identifier.
	Name string

	// Mappings are turned into this account's routes.
	Mappings []Mapping

	// Load re-reads the configuration before each message is evaluated.
	// Nil disables per-message refresh.
	Load ConfigLoader

	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics may be nil.
	Metrics *Metrics
}

// Account owns one connected client and the routes registered against it.
type Account struct {
	name    string
	client  Client
	load    ConfigLoader
	logger  *slog.Logger
	metrics *Metrics

	routes   []*Route
	bySource map[int64][]*Route

	state atomic.Int32

	mu   sync.Mutex
	subs []*Subscription
}

// NewAccount builds an Account and its routes. It does not connect.
func NewAccount(client Client, cfg AccountConfig) *Account {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", cfg.Name)

	a := &Account{
		name:     cfg.Name,
		client:   client,
		load:     cfg.Load,
		logger:   logger,
		metrics:  cfg.Metrics,
		bySource: make(map[int64][]*Route),
	}

	for _, m := range cfg.Mappings {
		r := NewRoute(m, logger)
		a.routes = append(a.routes, r)
		for _, id := range sourceIDs(m.Source) {
			a.bySource[id] = append(a.bySource[id], r)
		}
	}

	return a
}

// sourceIDs returns the chat ids a configured source matches: the value as
// written and, for strings, its supergroup normalization.
func sourceIDs(ref ChatRef) []int64 {
	var ids []int64
	if id, err := ref.Int64(); err == nil {
		ids = append(ids, id)
	}
	if id, err := NormalizeChatID(ref); err == nil && (len(ids) == 0 || ids[0] != id) {
		ids = append(ids, id)
	}
	return ids
}

// Name returns the session identifier.
func (a *Account) Name() string { return a.name }

// Client returns the account's client.
func (a *Account) Client() Client { return a.client }

// Routes returns the account's routes.
func (a *Account) Routes() []*Route { return a.routes }

// State returns the current lifecycle state.
func (a *Account) State() State { return State(a.state.Load()) }

// Start connects the client and subscribes once per distinct source chat.
func (a *Account) Start(ctx context.Context) error {
	if !a.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyRunning
	}

	if err := a.client.Connect(ctx); err != nil {
		a.state.Store(int32(StateStopped))
		return &ConnectionError{Session: a.name, Err: err}
	}

	for chatID := range a.bySource {
		a.Subscribe(Filter{Chats: []int64{chatID}}, a.handleEvent)
	}

	a.state.Store(int32(StateRunning))
	a.logger.Info("started account", "routes", len(a.routes), "sources", len(a.bySource))
	return nil
}

// Subscribe registers an additional handler that is cancelled by Stop.
func (a *Account) Subscribe(filter Filter, fn HandlerFunc) {
	sub := a.client.Subscribe(filter, fn)

	a.mu.Lock()
	a.subs = append(a.subs, sub)
	a.mu.Unlock()
}

// Stop cancels all subscriptions and disconnects the client.
func (a *Account) Stop() error {
	if !a.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil
	}
	defer a.state.Store(int32(StateStopped))

	a.mu.Lock()
	subs := a.subs
	a.subs = nil
	a.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}

	if err := a.client.Disconnect(); err != nil {
		a.logger.Warn("disconnect failed", "error", err)
		return err
	}
	a.logger.Info("stopped account")
	return nil
}

// handleEvent runs every route bound to the message's chat. Failures are
// contained here and never reach the client.
func (a *Account) handleEvent(ctx context.Context, msg *Message) error {
	switch a.State() {
	case StateStopping, StateStopped:
		return nil
	}

	a.logger.Info("received message", "sender_id", msg.SenderID, "chat_id", msg.ChatID)

	for _, r := range a.bySource[msg.ChatID] {
		if err := a.processSafe(ctx, r, msg); err != nil {
			a.logger.Error("error handling message",
				"source", r.Source.String(),
				"destination", r.Destination.String(),
				"error", err)
		}
	}
	return nil
}

func (a *Account) processSafe(ctx context.Context, r *Route, msg *Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return a.process(ctx, r, msg)
}

func (a *Account) process(ctx context.Context, r *Route, msg *Message) error {
	a.refresh(r)

	s := r.Settings()
	if !s.Enabled {
		a.metrics.drop(a.name, dropDisabled)
		return nil
	}

	if !s.Filter.ShouldForward(msg) {
		a.logger.Info("message filtered out", "destination", r.Destination.String(), "text", truncate(msg.Text(), 100))
		a.metrics.drop(a.name, dropFiltered)
		return nil
	}

	dest, err := NormalizeChatID(r.Destination)
	if err != nil {
		a.metrics.drop(a.name, dropInvalid)
		return err
	}

	out := &Outgoing{
		Message:  msg,
		Text:     s.Transformer.Modify(msg.Raw),
		Shift:    utf16Len(s.Transformer.leading()),
		Modified: s.Transformer.Active(),
	}

	if err := a.deliver(ctx, dest, out); err != nil {
		a.metrics.drop(a.name, dropFailed)
		return err
	}

	a.metrics.forward(a.name)
	a.logger.Info("message forwarded", "destination", dest, "text", truncate(msg.Text(), 100))
	return nil
}

// refresh reloads r's settings from disk, keeping the current snapshot when
// the configuration cannot be read or r's mapping in it is invalid.
func (a *Account) refresh(r *Route) {
	if a.load == nil {
		return
	}
	cfg, err := a.load()
	if err != nil {
		a.metrics.refreshFailed(a.name)
		a.logger.Error("error reloading config, keeping previous route settings", "error", err)
		return
	}
	if _, err := r.Refresh(cfg); err != nil {
		a.metrics.refreshFailed(a.name)
		a.logger.Error("invalid mapping in config, keeping previous route settings",
			"destination", r.Destination.String(),
			"error", err)
	}
}

// deliver sends out to dest, retrying once with channel peer addressing.
func (a *Account) deliver(ctx context.Context, dest int64, out *Outgoing) error {
	err := a.client.Send(ctx, Peer{ID: dest}, out)
	if err == nil {
		a.logger.Debug("forwarded on first attempt", "destination", dest)
		return nil
	}
	a.logger.Warn("error in first delivery attempt", "destination", dest, "error", err)

	a.metrics.retry(a.name)
	alt := Peer{ID: ChannelPeerID(dest), Channel: true}
	if err2 := a.client.Send(ctx, alt, out); err2 != nil {
		return &DeliveryError{
			Destination: fmt.Sprint(dest),
			Err:         errors.Join(err, err2),
		}
	}

	a.logger.Info("forwarded via channel peer", "destination", dest, "channel_id", alt.ID)
	return nil
}
