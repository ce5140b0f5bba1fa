package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/monitoring"
	"github.com/sells-group/homescore/internal/pipeline"
	"github.com/sells-group/homescore/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for amenity lookups and listing scoring",
	Long: `Serves GET /health, GET /amenities?lat=&lon=, POST /score, GET /status and
GET /metrics. The amenity cache is saved every server.checkpoint_secs and
once more on shutdown.`,
	Args: exactArgs(0),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return eris.Wrap(err, "register metrics")
	}

	env, err := initAmenities(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer env.Close()

	// POST /score ranks every submitted listing; no batch filter.
	opts, err := pipelineOptions(cfg, nil, "", false)
	if err != nil {
		return err
	}
	p, err := pipeline.New(env.Aggregator, opts, metrics)
	if err != nil {
		return err
	}

	collector := monitoring.NewCollector(env.Cache, env.Fetcher.Breaker())
	if cfg.Server.CheckpointSecs > 0 {
		checker := monitoring.NewChecker(collector, env.Cache.Save, time.Duration(cfg.Server.CheckpointSecs)*time.Second)
		go checker.Run(ctx)
	}

	srv := server.New(env.Aggregator, p,
		server.WithCollector(collector),
		server.WithGatherer(reg),
	)

	port := servePort
	if port == 0 {
		port = cfg.Server.Port
	}

	serveErr := srv.ListenAndServe(ctx, port)
	if err := saveCache(env.Cache); err != nil {
		zap.L().Error("failed to save amenity cache on shutdown", zap.Error(err))
		if serveErr == nil {
			return err
		}
	}
	return serveErr
}
