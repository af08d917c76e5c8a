package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HaPhanBaoMinh/vmanager/internal/exporter"
)

func newMetricsCmd(s *session) *cobra.Command {
	var (
		listen   string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve fleet metrics for Prometheus",
		Long: `Scrape the node on an interval and serve the result on /metrics.
A failed scrape keeps the previous values and bumps
vmanager_scrape_errors_total.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = s.cfg.Metrics.Listen
			}
			if interval <= 0 {
				interval = s.cfg.Metrics.Interval.Duration()
			}
			repo, _, err := s.backend()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			poller := &exporter.Poller{
				Repo:     repo,
				Node:     s.cfg.Server.Node,
				Interval: interval,
				Exporter: exporter.NewFleetExporter(reg),
				Scrape:   exporter.NewScrapeMetrics(reg),
				Logger:   s.logger,
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", exporter.Handler(reg))
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok\n"))
			})
			srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				s.logger.Info("serving metrics", "listen", listen, "node", s.cfg.Server.Node, "interval", interval)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics listener: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				return poller.Run(ctx)
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from metrics.listen)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "scrape interval (default from metrics.interval)")
	return cmd
}
