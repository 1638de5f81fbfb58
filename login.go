package telerelay

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

var errSignUpUnsupported = errors.New("telerelay: phone number is not registered, sign up with an official client first")

// Prompter asks the operator for a login detail.
type Prompter interface {
	Prompt(ctx context.Context, title string, secret bool) (string, error)
}

// PromptAuthenticator implements auth.UserAuthenticator by prompting.
// PhoneNumber, if set, is used instead of asking.
type PromptAuthenticator struct {
	Prompter    Prompter
	PhoneNumber string
}

var _ auth.UserAuthenticator = PromptAuthenticator{}

func (a PromptAuthenticator) Phone(ctx context.Context) (string, error) {
	if a.PhoneNumber != "" {
		return a.PhoneNumber, nil
	}
	phone, err := a.Prompter.Prompt(ctx, "Phone number (international format)", false)
	return strings.TrimSpace(phone), err
}

func (a PromptAuthenticator) Password(ctx context.Context) (string, error) {
	return a.Prompter.Prompt(ctx, "Two-step verification password", true)
}

func (a PromptAuthenticator) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	code, err := a.Prompter.Prompt(ctx, "Login code", false)
	return strings.TrimSpace(code), err
}

func (a PromptAuthenticator) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return errSignUpUnsupported
}

func (a PromptAuthenticator) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errSignUpUnsupported
}

// Login authenticates the named session interactively and persists it to
// <session_dir>/<name>.session. An already authorized session is kept.
func Login(ctx context.Context, cfg *Config, name string, ua auth.UserAuthenticator, logger *slog.Logger) (*tg.User, error) {
	if err := validateSessionName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.SessionDir, 0700); err != nil {
		return nil, err
	}

	ccfg := ClientConfig{
		APIID:       cfg.APIID,
		APIHash:     cfg.APIHash,
		SessionPath: cfg.SessionPath(name),
		Logger:      logger,
		Name:        name,
	}
	ccfg.setDefaults()
	if err := ccfg.validate(); err != nil {
		return nil, err
	}

	client := newTelegram(ccfg, nil, floodWaitMiddleware{session: name, logger: ccfg.Logger})

	var self *tg.User
	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(ua, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return err
		}

		user, err := client.Self(ctx)
		if err != nil {
			return err
		}
		self = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	ccfg.Logger.Info("session created", "session", name, "path", ccfg.SessionPath, "user_id", self.ID)
	return self, nil
}
