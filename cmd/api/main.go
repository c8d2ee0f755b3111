package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clearwell-health/patient-portal/internal/api/router"
	"github.com/clearwell-health/patient-portal/internal/appointments"
	appconfig "github.com/clearwell-health/patient-portal/internal/config"
	"github.com/clearwell-health/patient-portal/internal/notify"
	"github.com/clearwell-health/patient-portal/internal/observability/metrics"
	"github.com/clearwell-health/patient-portal/internal/providers"
	"github.com/clearwell-health/patient-portal/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patient-portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWSEndpointOverride != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointOverride)
		}
	})

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	appointmentMetrics := metrics.NewAppointmentMetrics(registry)

	legacyStore := appointments.NewPostgresLegacyStore(pool)
	globalStore := appointments.NewDynamoGlobalStore(dynamoClient, cfg.GlobalAppointmentsTable)
	feed := appointments.NewChangeFeed(redisClient, logger)

	migration := appointments.NewMigrationSync(legacyStore, globalStore, logger).
		WithMetrics(appointmentMetrics)

	service := appointments.NewService(legacyStore, globalStore, logger).
		WithMetrics(appointmentMetrics).
		WithChangeFeed(feed).
		WithMigration(migration).
		WithDebounce(cfg.RefreshDebounce).
		WithNotifier(buildNotifier(cfg, awsCfg, appointmentMetrics, logger))

	appointmentsHandler := appointments.NewHandler(service, logger)
	providersHandler := providers.NewHandler(providers.NewPostgresRepository(pool), logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointmentsHandler,
		ProvidersHandler:    providersHandler,
		PortalJWTSecret:     cfg.PortalJWTSecret,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// buildNotifier wires the provider webhook and the clinic inbox email, either
// of which may be disabled by configuration.
func buildNotifier(cfg *appconfig.Config, awsCfg aws.Config, am *metrics.AppointmentMetrics, logger *logging.Logger) appointments.Notifier {
	var webhook *notify.WebhookNotifier
	if n := notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookToken, logger); n != nil {
		webhook = n.WithMetrics(am)
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			sender = s
		}
	case "ses":
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
		}, logger); s != nil {
			sender = s
		}
	}

	return notify.Multi(webhook, notify.NewEmailNotifier(sender, cfg.NotifyEmailTo, logger))
}
