package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	app "github.com/sraza-onshape/OnshapeExperiments"
	"github.com/sraza-onshape/OnshapeExperiments/internal/config"
	"github.com/sraza-onshape/OnshapeExperiments/internal/export"
	"github.com/sraza-onshape/OnshapeExperiments/internal/ledger"
	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/relay"
	"github.com/sraza-onshape/OnshapeExperiments/internal/server"
	"github.com/sraza-onshape/OnshapeExperiments/internal/translate"
	"github.com/sraza-onshape/OnshapeExperiments/internal/webhook"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

type exporter struct {
	cfg        *config.Config
	stores     *ledger.Stores
	httpClient *platform.HTTPClient
	platform   platform.Client
	bucket     *blob.Bucket
	queue      *export.Queue
	relay      *relay.Correlator
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

const dotEnvFile = ".env"

var (
	ErrOpenLedger = errors.New("failed to open ledger")
	ErrOpenBucket = errors.New("failed to open export bucket")
)

func main() {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		slog.Error("Invalid env file", log.Error(err))
		os.Exit(1)
	}

	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &exporter{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *exporter) run() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	if err := s.initializeStores(); err != nil {
		return err
	}

	if err := s.initializeRelay(); err != nil {
		s.closeStores()
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *exporter) setupLogging() {
	level, ok := log.ParseLevel(s.cfg.LogLevel)

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	if !ok {
		slog.Warn("Unknown log level, using info",
			slog.String("log_level", s.cfg.LogLevel))
	}

	slog.Info("Release export relay starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort),
		slog.String("callback_url", s.cfg.CallbackURL()),
		slog.String("platform_mode", s.cfg.Platform.Mode),
		slog.String("trigger_mode", s.cfg.Trigger.Mode),
		slog.String("clear_policy", s.cfg.Export.ClearPolicy),
		slog.Bool("bucket_export", s.cfg.Export.BucketURL != ""))
}

func (s *exporter) initializeStores() error {
	stores, err := ledger.Open(s.cfg.LedgerDSN)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenLedger, err)
	}
	s.stores = stores
	slog.Info("Ledger opened",
		slog.String("backend", stores.Backend))
	return nil
}

func (s *exporter) initializeRelay() error {
	s.httpClient = platform.NewHTTPClient(s.cfg.Platform.Timeout)
	s.platform = s.newPlatformClient()
	registrar := webhook.NewRegistrar(s.platform)

	sinks := []export.Sink{
		export.NewFlowSink(s.httpClient, s.cfg.Export.FlowURL),
	}
	if s.cfg.Export.BucketURL != "" {
		sink, err := s.openBucketSink()
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}
	dispatcher := export.NewDispatcher(sinks...)

	s.queue = export.NewQueue(dispatcher.Dispatch, s.cfg.Platform.Timeout)
	s.queue.Start()

	r, err := relay.New(s.cfg, relay.Dependencies{
		Stores:    s.stores,
		Platform:  s.platform,
		Registrar: registrar,
		Trigger:   s.newTrigger(registrar),
		Exporter:  dispatcher,
		Queue:     s.queue,
	})
	if err != nil {
		s.queue.Flush()
		return err
	}
	s.relay = r
	return nil
}

func (s *exporter) newPlatformClient() platform.Client {
	p := s.cfg.Platform
	if p.Mode == config.ModeDirect {
		return platform.NewDirect(s.httpClient, p.APIURL, p.AccessKey, p.SecretKey)
	}
	return platform.NewFlowProxy(s.httpClient, p.ProxyFlowURL)
}

func (s *exporter) newTrigger(registrar *webhook.Registrar) translate.Trigger {
	if s.cfg.Trigger.Mode == config.ModeDirect {
		return translate.NewDirect(s.platform, registrar)
	}
	return translate.NewFlow(s.httpClient, s.cfg.Trigger.FlowURL)
}

func (s *exporter) openBucketSink() (export.Sink, error) {
	bucket, err := blob.OpenBucket(context.Background(), s.cfg.Export.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenBucket, err)
	}
	s.bucket = bucket
	sink, err := export.NewBucketSink(bucket, s.cfg.Export.Prefix)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *exporter) startServer() {
	s.apiServer = server.NewServer(s.relay, s.platform)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *exporter) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	s.queue.Flush()
	s.relay.Feed().Close()
	s.closeStores()

	slog.Info("Server exited")
}

func (s *exporter) closeStores() {
	if s.bucket != nil {
		if err := s.bucket.Close(); err != nil {
			slog.Error("Bucket close failed", log.Error(err))
		}
	}
	if err := s.stores.Close(); err != nil {
		slog.Error("Ledger close failed", log.Error(err))
	}
}
