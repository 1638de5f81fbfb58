package telerelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
)

// ReloadCommand is the admin command that triggers a full fleet reload.
const ReloadCommand = "/reload"

var reloadPattern = regexp.MustCompile(`^` + regexp.QuoteMeta(ReloadCommand))

// ClientFactory creates the client for one session.
type ClientFactory func(session string, cfg *Config) (Client, error)

// FleetConfig holds the configuration for the fleet.
type FleetConfig struct {
	// ConfigPath is the configuration file, read at startup, on reload and
	// before every message. Defaults to "config.json" if empty.
	ConfigPath string

	// NewClient creates session clients. Defaults to Telegram clients built
	// with NewTelegramClient.
	NewClient ClientFactory

	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics may be nil.
	Metrics *Metrics

	// Verbose enables debug logging for the MTProto clients.
	Verbose bool
}

func (c *FleetConfig) setDefaults() {
	if c.ConfigPath == "" {
		c.ConfigPath = "config.json"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewClient == nil {
		logger, metrics, verbose := c.Logger, c.Metrics, c.Verbose
		c.NewClient = func(session string, cfg *Config) (Client, error) {
			return NewTelegramClient(ClientConfig{
				APIID:       cfg.APIID,
				APIHash:     cfg.APIHash,
				SessionPath: cfg.SessionPath(session),
				Logger:      logger.With("session", session),
				Name:        session,
				Metrics:     metrics,
				Verbose:     verbose,
			})
		}
	}
}

// Fleet owns every Account, loads and reloads the configuration and serves
// the admin reload command.
type Fleet struct {
	cfg     FleetConfig
	logger  *slog.Logger
	metrics *Metrics

	// mu serializes Start, Reload and Stop and guards the fields below.
	mu       sync.Mutex
	config   *Config
	accounts map[string]*Account
	order    []string
	ctx      context.Context
	stopped  bool
}

// NewFleet loads the configuration. A configuration that cannot be loaded is
// fatal here, and only here.
func NewFleet(cfg FleetConfig) (*Fleet, error) {
	cfg.setDefaults()

	config, err := LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.SessionDir, 0700); err != nil {
		return nil, &ConfigError{Path: cfg.ConfigPath, Err: err}
	}

	return &Fleet{
		cfg:      cfg,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		config:   config,
		accounts: make(map[string]*Account),
	}, nil
}

// Config returns the configuration the fleet is running.
func (f *Fleet) Config() *Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// Account returns the running account for a session.
func (f *Fleet) Account(session string) (*Account, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[session]
	return a, ok
}

// Run starts the fleet and blocks until ctx is cancelled, then stops it.
func (f *Fleet) Run(ctx context.Context) error {
	if err := f.Start(ctx); err != nil {
		return err
	}
	f.logger.Info("forwarder is now running")

	<-ctx.Done()

	f.logger.Info("stopping forwarder")
	f.Stop()
	f.logger.Info("forwarder stopped")
	return nil
}

// Start builds and starts an account for every configured session. Accounts
// that fail to connect are logged and skipped. Starting a running fleet
// replaces its accounts; a stopped fleet cannot be started again.
func (f *Fleet) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return ErrFleetStopped
	}
	f.stopLocked()

	f.ctx = context.WithoutCancel(ctx)
	if err := f.startLocked(ctx, f.config); err != nil {
		f.logger.Error("fleet started without accounts", "error", err)
	}
	return nil
}

// Reload stops every account, reloads the configuration from disk and starts
// a new fleet. If that fails, the previous configuration is started again.
// Reloading a stopped fleet returns ErrFleetStopped.
func (f *Fleet) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return ErrFleetStopped
	}

	f.logger.Info("reloading configuration")
	prev := f.config

	f.stopLocked()

	config, err := LoadConfig(f.cfg.ConfigPath)
	if err == nil {
		err = f.startLocked(ctx, config)
	}
	if err == nil {
		f.config = config
		f.metrics.reload("success")
		f.logger.Info("configuration reloaded successfully")
		return nil
	}

	f.metrics.reload("failed")
	f.logger.Error("error reloading configuration, reverting to previous configuration", "error", err)

	f.stopLocked()
	if ferr := f.startLocked(ctx, prev); ferr != nil {
		f.logger.Error("fallback to previous configuration failed", "error", ferr)
		return &ReloadError{Err: errors.Join(err, ferr)}
	}
	f.logger.Info("reverted to previous configuration")
	return &ReloadError{Fallback: true, Err: err}
}

// Stop disconnects every account. It is final: later Start and Reload calls
// return ErrFleetStopped.
func (f *Fleet) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.stopLocked()
}

// startLocked builds accounts for config and starts them. It fails when
// sessions are configured but none of them started.
func (f *Fleet) startLocked(ctx context.Context, config *Config) error {
	f.accounts = make(map[string]*Account, len(config.Sessions))
	f.order = nil

	var errs []error
	for _, name := range config.Sessions {
		client, err := f.cfg.NewClient(name, config)
		if err != nil {
			f.logger.Error("error creating client", "session", name, "error", err)
			errs = append(errs, &ConnectionError{Session: name, Err: err})
			continue
		}

		account := NewAccount(client, AccountConfig{
			Name:     name,
			Mappings: config.Mappings,
			Load:     f.loadConfig,
			Logger:   f.logger,
			Metrics:  f.metrics,
		})

		if err := account.Start(ctx); err != nil {
			f.logger.Error("error starting account", "session", name, "error", err)
			errs = append(errs, err)
			continue
		}

		account.Subscribe(Filter{Pattern: reloadPattern}, func(_ context.Context, msg *Message) error {
			f.handleAdmin(name, account, msg)
			return nil
		})

		f.accounts[name] = account
		f.order = append(f.order, name)
	}

	if len(config.Sessions) > 0 && len(f.accounts) == 0 {
		return fmt.Errorf("%w: %w", ErrNoSessionsStarted, errors.Join(errs...))
	}
	return nil
}

func (f *Fleet) stopLocked() {
	for _, name := range f.order {
		if err := f.accounts[name].Stop(); err != nil {
			f.logger.Error("error stopping account", "session", name, "error", err)
		}
	}
	f.accounts = make(map[string]*Account)
	f.order = nil
}

func (f *Fleet) loadConfig() (*Config, error) {
	return ReadConfig(f.cfg.ConfigPath)
}

// handleAdmin runs the reload command received by account and answers on the
// same chat. The answer goes through the session's rebuilt account, since the
// reload disconnects the one that received the command.
func (f *Fleet) handleAdmin(session string, from *Account, msg *Message) {
	if msg.Raw != ReloadCommand {
		return
	}

	f.mu.Lock()
	ctx := f.ctx
	f.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	reply := "Configuration reloaded successfully!"
	if err := f.Reload(ctx); errors.Is(err, ErrFleetStopped) {
		f.logger.Warn("ignoring admin command, forwarder is stopping", "session", session)
		return
	} else if err != nil {
		f.logger.Error("error handling admin command", "session", session, "error", err)
		reply = "Error: " + err.Error()
	}

	client := from.Client()
	if a, ok := f.Account(session); ok {
		client = a.Client()
	}
	if err := client.SendText(ctx, Peer{ID: msg.ChatID}, reply); err != nil {
		f.logger.Error("error answering admin command", "session", session, "chat_id", msg.ChatID, "error", err)
	}
}
