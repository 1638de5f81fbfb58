package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/en9inerd/telerelay"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func sessionCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session management",
	}
	cmd.AddCommand(sessionCreateCmd(v), sessionListCmd(v))
	return cmd
}

func sessionCreateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <session_name>",
		Short: "Log in interactively and store a session file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := telerelay.LoadConfig(v.GetString("config"))
			if err != nil {
				return err
			}

			logger, closer := telerelay.NewLogger(telerelay.LogConfig{
				Console: cmd.ErrOrStderr(),
				Verbose: v.GetBool("verbose"),
			})
			defer closer.Close()

			ua := telerelay.PromptAuthenticator{
				Prompter:    huhPrompter{},
				PhoneNumber: v.GetString("phone"),
			}
			if _, err := telerelay.Login(cmd.Context(), cfg, args[0], ua, logger); err != nil {
				return fmt.Errorf("creating session: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Session file created successfully: %s\n", cfg.SessionPath(args[0]))
			return nil
		},
	}
	cmd.Flags().String("phone", "", "Phone number to log in with (prompted if empty)")
	return cmd
}

func sessionListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored session files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := telerelay.LoadConfig(v.GetString("config"))
			if err != nil {
				return err
			}

			names, err := telerelay.ListSessions(cfg.SessionDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintf(out, "No sessions in %s\n", cfg.SessionDir)
				return nil
			}
			for _, name := range names {
				marker := " "
				if slices.Contains(cfg.Sessions, name) {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

// huhPrompter asks for login details on the terminal.
type huhPrompter struct{}

func (huhPrompter) Prompt(ctx context.Context, title string, secret bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var value string
	input := huh.NewInput().Title(title).Value(&value)
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if err := input.Run(); err != nil {
		return "", err
	}
	return value, nil
}
