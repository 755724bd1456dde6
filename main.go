package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nimdanitro/hub-sensors-go/pkg/api"
	"github.com/nimdanitro/hub-sensors-go/pkg/awair"
	"github.com/nimdanitro/hub-sensors-go/pkg/config"
	"github.com/nimdanitro/hub-sensors-go/pkg/entity"
	"github.com/nimdanitro/hub-sensors-go/pkg/hub"
	"github.com/nimdanitro/hub-sensors-go/pkg/metrics"
	"github.com/nimdanitro/hub-sensors-go/pkg/nest"
	"github.com/nimdanitro/hub-sensors-go/pkg/throttle"
)

const scope = "github.com/nimdanitro/hub-sensors-go"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Parse command line flags
	configPath := pflag.StringP("config", "c", os.Getenv("HUB_CONFIG"), "Path to a YAML config file (env: HUB_CONFIG)")
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatalf("invalid environment: %v", err)
	}
	if err := cfg.ApplyFlags(pflag.CommandLine); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		pflag.Usage()
		os.Exit(2)
	}

	// Setup Otel
	shutdown, err := setupOTelSDK(ctx)
	defer shutdown(context.Background())
	if err != nil {
		panic(err)
	}

	// Initialize logger
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %q", cfg.LogLevel)
	}
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(os.Stdout), level),
		otelzap.NewCore(scope, otelzap.WithLoggerProvider(global.GetLoggerProvider())),
	)
	logger := zap.New(core)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("starting up", zap.String("version", version), zap.String("commit", commit), zap.String("buildDate", date))

	// Initialize metrics
	meter := otel.Meter(scope, metric.WithInstrumentationAttributes(semconv.OTelScopeName(scope)))
	stateGauge, err := meter.Float64Gauge("sensor.state",
		metric.WithDescription("Current numeric state of each sensor entity"),
	)
	if err != nil {
		logger.Fatal("cannot create state gauge", zap.Error(err))
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(promReg)

	registry := entity.NewRegistry()
	opts := []hub.Option{
		hub.WithLogger(logger),
		hub.WithMetrics(collector),
		hub.WithStateGauge(stateGauge),
	}

	if cfg.Nest.Enabled() {
		client, err := nest.NewClient(
			nest.WithCredentials(cfg.Nest.Username, cfg.Nest.Password),
			nest.WithBaseURL(cfg.Nest.BaseURL),
			nest.WithThrottle(throttle.New(cfg.Nest.Throttle)),
			nest.WithLogger(logger.Named("nest")),
			nest.WithMetrics(collector),
		)
		if err != nil {
			logger.Fatal("cannot create nest client", zap.Error(err))
		}
		opts = append(opts, hub.WithNest(client))
	}

	if cfg.Awair.Enabled() {
		client, err := awair.NewClient(
			awair.WithAccessToken(cfg.Awair.AccessToken),
			awair.WithBaseURL(cfg.Awair.BaseURL),
			awair.WithLogger(logger.Named("awair")),
			awair.WithMetrics(collector),
		)
		if err != nil {
			logger.Fatal("cannot create awair client", zap.Error(err))
		}
		opts = append(opts, hub.WithAwair(client))
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(registry, promReg, logger.Named("api")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("serving state api", zap.String("addr", cfg.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("state api exited", zap.Error(err))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	hub.New(registry, opts...).Run(ctx, cfg.PollInterval)
	logger.Info("shutting down")
}
