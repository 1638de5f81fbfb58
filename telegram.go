package telerelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/updates"
	updhook "github.com/gotd/td/telegram/updates/hook"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ClientConfig holds the configuration for a Telegram user client.
type ClientConfig struct {
	// APIID is the Telegram API ID from https://my.telegram.org
	APIID int

	// APIHash is the Telegram API hash from https://my.telegram.org
	APIHash string

	// SessionPath is the session file created by `telerelay session create`.
	SessionPath string

	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Name labels the client's metrics. Usually the session name.
	Name string

	// Metrics may be nil.
	Metrics *Metrics

	// DeviceModel is the device model to report to Telegram.
	// Defaults to "telerelay" if empty.
	DeviceModel string

	// SystemVersion is the system version to report to Telegram.
	// Defaults to "1.0" if empty.
	SystemVersion string

	// AppVersion is the app version to report to Telegram.
	// Defaults to "1.0.0" if empty.
	AppVersion string

	// LangCode is the language code to report to Telegram.
	// Defaults to "en" if empty.
	LangCode string

	// Verbose enables debug logging for the MTProto client.
	Verbose bool
}

func (c *ClientConfig) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.DeviceModel == "" {
		c.DeviceModel = "telerelay"
	}
	if c.SystemVersion == "" {
		c.SystemVersion = "1.0"
	}
	if c.AppVersion == "" {
		c.AppVersion = "1.0.0"
	}
	if c.LangCode == "" {
		c.LangCode = "en"
	}
}

func (c *ClientConfig) validate() error {
	if c.APIID == 0 {
		return ErrMissingAPIID
	}
	if c.APIHash == "" {
		return ErrMissingAPIHash
	}
	if c.SessionPath == "" {
		return ErrInvalidSessionName
	}
	return nil
}

// zapLogger creates a zap logger matching the Verbose setting.
func (c *ClientConfig) zapLogger() *zap.Logger {
	var level zapcore.Level
	if c.Verbose {
		level = zapcore.DebugLevel
	} else {
		level = zapcore.WarnLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newTelegram builds a gotd client for cfg, wiring updates to handler.
func newTelegram(cfg ClientConfig, handler telegram.UpdateHandler, middlewares ...telegram.Middleware) *telegram.Client {
	return telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		Logger:        cfg.zapLogger(),
		UpdateHandler: handler,
		Middlewares:   middlewares,
		Device: telegram.DeviceConfig{
			DeviceModel:    cfg.DeviceModel,
			SystemVersion:  cfg.SystemVersion,
			AppVersion:     cfg.AppVersion,
			LangCode:       cfg.LangCode,
			SystemLangCode: cfg.LangCode,
		},
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
	})
}

// TelegramClient is a Client backed by an MTProto user session.
type TelegramClient struct {
	config     ClientConfig
	logger     *slog.Logger
	client     *telegram.Client
	dispatcher tg.UpdateDispatcher
	gaps       *updates.Manager
	handlers   handlerSet
	peers      *peerCache

	mu     sync.Mutex
	api    *tg.Client
	selfID int64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	runErr error
}

var _ Client = (*TelegramClient)(nil)

// NewTelegramClient creates a client for an existing session file.
func NewTelegramClient(cfg ClientConfig) (*TelegramClient, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.SessionPath); err != nil {
		return nil, fmt.Errorf("session file %s: %w", filepath.Base(cfg.SessionPath), err)
	}

	c := &TelegramClient{
		config:     cfg,
		logger:     cfg.Logger,
		dispatcher: tg.NewUpdateDispatcher(),
		peers:      newPeerCache(),
	}

	c.gaps = updates.New(updates.Config{
		Handler: &c.dispatcher,
		Logger:  cfg.zapLogger().Named("gaps"),
	})
	c.client = newTelegram(cfg, c.gaps,
		updhook.UpdateHook(c.gaps.Handle),
		floodWaitMiddleware{session: cfg.Name, logger: cfg.Logger, metrics: cfg.Metrics},
	)
	c.registerDispatcherHandlers()

	return c, nil
}

// Connect starts the client in the background and returns once updates are
// flowing, or with the error that stopped it.
func (c *TelegramClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.ctx, c.cancel, c.done = runCtx, cancel, done
	c.mu.Unlock()

	ready := make(chan struct{})
	var readyOnce sync.Once

	go func() {
		defer close(done)
		err := c.client.Run(runCtx, func(ctx context.Context) error {
			return c.run(ctx, func() { readyOnce.Do(func() { close(ready) }) })
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		c.mu.Lock()
		c.runErr = err
		c.mu.Unlock()
		if err != nil {
			c.logger.Error("client stopped", "error", err)
		}
	}()

	select {
	case <-ready:
		return nil
	case <-done:
		c.mu.Lock()
		err := c.runErr
		c.mu.Unlock()
		if err == nil {
			err = ErrNotConnected
		}
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (c *TelegramClient) run(ctx context.Context, ready func()) error {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return err
	}
	if !status.Authorized {
		return ErrNotAuthorized
	}

	self, err := c.client.Self(ctx)
	if err != nil {
		return err
	}

	api := c.client.API()
	c.mu.Lock()
	c.api = api
	c.selfID = self.ID
	c.mu.Unlock()

	if err := c.peers.warm(ctx, api); err != nil {
		c.logger.Warn("failed to load dialogs", "error", err)
	}

	c.logger.Info("started client", "id", self.ID, "username", self.Username)

	return c.gaps.Run(ctx, api, self.ID, updates.AuthOptions{
		OnStart: func(ctx context.Context) {
			c.logger.Info("listening for updates")
			ready()
		},
	})
}

// Disconnect stops the client and waits for it to exit.
func (c *TelegramClient) Disconnect() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	c.api = nil
	return c.runErr
}

// Subscribe registers fn for new messages accepted by filter.
func (c *TelegramClient) Subscribe(filter Filter, fn HandlerFunc) *Subscription {
	return c.handlers.add(filter, fn)
}

// SelfID returns the account's user ID.
func (c *TelegramClient) SelfID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

func (c *TelegramClient) registerDispatcherHandlers() {
	c.dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		msg, ok := u.Message.(*tg.Message)
		if !ok {
			return nil
		}
		return c.handleMessage(msg, e)
	})

	c.dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		msg, ok := u.Message.(*tg.Message)
		if !ok {
			return nil
		}
		return c.handleMessage(msg, e)
	})
}

// handleMessage hands msg to every matching subscription, each in its own
// goroutine so a slow delivery never holds up the update loop.
func (c *TelegramClient) handleMessage(raw *tg.Message, entities tg.Entities) error {
	c.peers.learn(entities)

	msg := newMessage(raw)
	msg.peer = c.peers.inputPeer(raw.PeerID)

	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	for _, fn := range c.handlers.match(msg) {
		go func() {
			if err := fn(ctx, msg); err != nil {
				c.logger.Error("message handler error", "error", err)
			}
		}()
	}
	return nil
}

func (c *TelegramClient) apiClient() (*tg.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api == nil {
		return nil, ErrNotConnected
	}
	return c.api, nil
}

// Send delivers a copy of out.Message to the destination. Unmodified
// messages are forwarded without the author header; modified ones are sent
// again with the new text and the original media.
func (c *TelegramClient) Send(ctx context.Context, to Peer, out *Outgoing) error {
	api, err := c.apiClient()
	if err != nil {
		return err
	}

	peer, err := c.peers.resolve(ctx, api, to)
	if err != nil {
		return err
	}

	msg := out.Message
	if !out.Modified && msg.peer != nil {
		_, err := api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
			FromPeer:   msg.peer,
			ID:         []int{msg.ID},
			RandomID:   []int64{rand.Int64()},
			ToPeer:     peer,
			DropAuthor: true,
		})
		return err
	}

	entities := shiftEntities(msg.Entities, out.Shift)

	if media, ok := inputMedia(msg.Media); ok {
		_, err := api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
			Peer:     peer,
			Media:    media,
			Message:  out.Text,
			Entities: entities,
			RandomID: rand.Int64(),
		})
		return err
	}

	if msg.Media != nil {
		c.logger.Warn("media cannot be re-sent, delivering text only", "media", fmt.Sprintf("%T", msg.Media))
	}
	_, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  out.Text,
		Entities: entities,
		RandomID: rand.Int64(),
	})
	return err
}

// SendText sends a plain text message.
func (c *TelegramClient) SendText(ctx context.Context, to Peer, text string) error {
	api, err := c.apiClient()
	if err != nil {
		return err
	}
	peer, err := c.peers.resolve(ctx, api, to)
	if err != nil {
		return err
	}
	_, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: rand.Int64(),
	})
	return err
}

// inputMedia converts received media back into a reference that can be sent.
func inputMedia(media tg.MessageMediaClass) (tg.InputMediaClass, bool) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil, false
		}
		return &tg.InputMediaPhoto{
			ID: &tg.InputPhoto{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
			},
		}, true
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil, false
		}
		return &tg.InputMediaDocument{
			ID: &tg.InputDocument{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		}, true
	}
	return nil, false
}

// shiftEntities moves formatting entities by delta UTF-16 units. Entities
// that cannot be sent back as-is are dropped.
func shiftEntities(in []tg.MessageEntityClass, delta int) []tg.MessageEntityClass {
	if len(in) == 0 {
		return nil
	}
	out := make([]tg.MessageEntityClass, 0, len(in))
	for _, e := range in {
		switch v := e.(type) {
		case *tg.MessageEntityBold:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntityItalic:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntityUnderline:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntityStrike:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntitySpoiler:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntityCode:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntityPre:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntityTextURL:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntityBlockquote:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		case *tg.MessageEntityCustomEmoji:
			c := *v
			c.Offset += delta
			out = append(out, &c)
		}
	}
	return out
}
