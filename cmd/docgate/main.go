// Command docgate serves the document-analysis API.
//
// Configuration is read from the file named by CONFIG_PATH, or from the
// environment when it is unset. JWT_SECRET is required.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/MrEthical07/docgate"
	"github.com/MrEthical07/docgate/analysis"
	"github.com/MrEthical07/docgate/geo"
	"github.com/MrEthical07/docgate/internal/config"
	"github.com/MrEthical07/docgate/internal/httpapi"
	"github.com/MrEthical07/docgate/internal/logging"
	"github.com/MrEthical07/docgate/internal/store/postgres"
	"github.com/MrEthical07/docgate/mail"
	otelexport "github.com/MrEthical07/docgate/metrics/export/otel"
	"github.com/MrEthical07/docgate/metrics/export/prometheus"
)

func main() {
	cfg := config.MustLoad()

	log, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("docgate stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// -------- STORAGE --------
	store, err := postgres.New(ctx, cfg.DB.URL)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	// -------- COLLABORATORS --------
	builder := docgate.New().
		WithConfig(cfg.Engine()).
		WithRedis(rdb).
		WithStore(store).
		WithLogger(log)

	if cfg.GeoIPPath != "" {
		resolver, err := geo.Open(cfg.GeoIPPath)
		if err != nil {
			return err
		}
		defer resolver.Close()
		log.Info("geoip database loaded", zap.String("type", resolver.DatabaseType()))
		builder = builder.WithGeoResolver(resolver)
	}

	if cfg.SMTP.Host != "" {
		builder = builder.WithMailer(mail.NewSMTP(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}))
	} else {
		log.Warn("SMTP_HOST not set, account emails are only logged")
		builder = builder.WithMailer(mail.NewLog(log))
	}

	if cfg.OpenAI.APIKey != "" {
		acfg := analysis.DefaultConfig()
		acfg.Timeout = cfg.OpenAI.Timeout
		analyzer, err := analysis.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, acfg)
		if err != nil {
			return err
		}
		builder = builder.WithAnalyzer(analyzer)
	} else {
		log.Warn("OPENAI_API_KEY not set, document scans are unavailable")
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	// -------- METRICS --------
	if cfg.Metrics.OTelLogInterval > 0 {
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(otelexport.NewLogExporter(log), sdkmetric.WithInterval(cfg.Metrics.OTelLogInterval)),
		))
		defer func() { _ = provider.Shutdown(context.Background()) }()

		exp, err := otelexport.New(provider.Meter("github.com/MrEthical07/docgate"), engine)
		if err != nil {
			return err
		}
		defer exp.Close()
	}

	// -------- HTTP --------
	api := httpapi.NewServer(engine, httpapi.Options{
		Metrics: prometheus.New(engine).Handler(),
		Log:     log,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTPServer.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPServer.WriteTimeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
