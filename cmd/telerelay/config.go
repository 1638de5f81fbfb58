package main

import (
	"fmt"

	"github.com/en9inerd/telerelay"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func configCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("config")
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := telerelay.LoadConfig(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d sessions, %d mappings)\n", len(cfg.Sessions), len(cfg.Mappings))
			for _, name := range cfg.Sessions {
				status := "ok"
				if !telerelay.SessionExists(cfg.SessionDir, name) {
					status = "missing session file"
				}
				fmt.Fprintf(out, "  session %s: %s\n", name, status)
			}
			for _, m := range cfg.Mappings {
				state := "enabled"
				if !m.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "  %s -> %s (%s)\n", m.Source, m.Destination, state)
			}
			return nil
		},
	})
	return cmd
}
