// Command meowith-fakenode serves an in-memory Meowith node for local
// development and integration tests.
//
// Usage:
//
//	meowith-fakenode -token secret -addr :4000 -seed ./fixtures
//
// Each flag falls back to a MEOWITH_* environment variable. The node's
// ids are printed at startup so a connector can be pointed at it.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/meowith/connector-go/internal/web/server"
	"github.com/meowith/connector-go/nodetest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "meowith-fakenode:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) error {
	cfg, err := loadConfig(args, getenv)
	if err != nil {
		return err
	}

	log := newLogger(stderr, cfg)

	node := nodetest.NewNode(
		nodetest.WithToken(cfg.Token),
		nodetest.WithAppID(cfg.AppID),
		nodetest.WithBucketID(cfg.BucketID),
		nodetest.WithBucketName(cfg.BucketName),
		nodetest.WithQuota(cfg.Quota),
		nodetest.WithSessionValidity(cfg.SessionValidity),
		nodetest.WithLogger(log),
	)

	if cfg.SeedDir != "" {
		n, err := seed(node, cfg.SeedDir, log)
		if err != nil {
			return err
		}
		log.Info("seed loaded", "dir", cfg.SeedDir, "files", n)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	log.Info("node ready", "app_id", cfg.AppID, "bucket_id", cfg.BucketID, "bucket", cfg.BucketName, "quota", cfg.Quota)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv := server.New(instrument(reg, node.Handler()),
			server.WithHost(cfg.Addr),
			server.WithLogger(log.With("server", "node")),
		)
		return srv.Run(ctx)
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

			srv := server.New(mux,
				server.WithHost(cfg.MetricsAddr),
				server.WithLogger(log.With("server", "metrics")),
			)
			return srv.Run(ctx)
		})
	}

	return g.Wait()
}

// instrument counts node requests by status code and method and observes
// their latency.
func instrument(reg prometheus.Registerer, next http.Handler) http.Handler {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meowith_fakenode_requests_total",
		Help: "Requests served by the fake node.",
	}, []string{"code", "method"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meowith_fakenode_request_duration_seconds",
		Help:    "Latency of requests served by the fake node.",
		Buckets: prometheus.DefBuckets,
	}, []string{"code", "method"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meowith_fakenode_requests_in_flight",
		Help: "Requests currently being served by the fake node.",
	})

	reg.MustRegister(requests, duration, inFlight)

	return promhttp.InstrumentHandlerInFlight(inFlight,
		promhttp.InstrumentHandlerDuration(duration,
			promhttp.InstrumentHandlerCounter(requests, next),
		),
	)
}
