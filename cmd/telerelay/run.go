package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/en9inerd/telerelay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func runCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start forwarding for every configured session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, closer := telerelay.NewLogger(telerelay.LogConfig{
				File:    v.GetString("log-file"),
				Console: cmd.ErrOrStderr(),
				Verbose: v.GetBool("verbose"),
			})
			defer closer.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			logger.Info("starting telegram message forwarder", "version", version)

			fleet, err := telerelay.NewFleet(telerelay.FleetConfig{
				ConfigPath: v.GetString("config"),
				Logger:     logger,
				Metrics:    telerelay.NewMetrics(reg),
				Verbose:    v.GetBool("verbose"),
			})
			if err != nil {
				logger.Error("failed to initialize forwarder", "error", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return fleet.Run(gctx)
			})

			g.Go(func() error {
				hup := make(chan os.Signal, 1)
				signal.Notify(hup, syscall.SIGHUP)
				defer signal.Stop(hup)

				for {
					select {
					case <-gctx.Done():
						return nil
					case <-hup:
						if err := fleet.Reload(gctx); err != nil {
							logger.Error("reload on SIGHUP failed", "error", err)
						}
					}
				}
			})

			if addr := v.GetString("metrics-addr"); addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

				g.Go(func() error {
					logger.Info("serving metrics", "addr", addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			return g.Wait()
		},
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}
