package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/analytics"
	"github.com/MouadFiali/gke-cloud-project/codec"
	"github.com/MouadFiali/gke-cloud-project/config"
	"github.com/MouadFiali/gke-cloud-project/consumer"
	"github.com/MouadFiali/gke-cloud-project/controllers"
	"github.com/MouadFiali/gke-cloud-project/database"
	"github.com/MouadFiali/gke-cloud-project/grpcserver"
	"github.com/MouadFiali/gke-cloud-project/kafka"
	"github.com/MouadFiali/gke-cloud-project/logger"
	"github.com/MouadFiali/gke-cloud-project/middleware"
	aws_pkg "github.com/MouadFiali/gke-cloud-project/pkg/aws"
	"github.com/MouadFiali/gke-cloud-project/repository"
	"github.com/MouadFiali/gke-cloud-project/routes"
	"github.com/MouadFiali/gke-cloud-project/services"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// AWS is optional; every AWS-backed component is skipped without it.
	var awsCfg *sdkaws.Config
	if cfg.NeedsAWS() {
		loaded, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Printf("AWS config unavailable, AWS integrations disabled: %v", err)
		} else {
			awsCfg = &loaded
		}
	}

	var logSinks []io.Writer
	if awsCfg != nil && cfg.CloudWatchEnabled {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, *awsCfg, cfg.ServiceName)
		if err != nil {
			log.Printf("CloudWatch Logs disabled: %v", err)
		} else if cwLogs.IsEnabled() {
			logSinks = append(logSinks, cwLogs)
		}
	}

	zapLogger, err := logger.New(cfg.Env, logSinks...)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	if cfg.UseAWSSecrets && awsCfg != nil {
		if err := cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(*awsCfg)); err != nil {
			zapLogger.Warn("Failed to load store credentials from Secrets Manager", zap.Error(err))
		}
	}
	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Storage
	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	store, err := database.Open(openCtx, cfg, zapLogger)
	cancelOpen()
	if err != nil {
		zapLogger.Fatal("Failed to open cart store", zap.Error(err))
	}

	cartCodec, err := codec.New(cfg.CartCodec)
	if err != nil {
		zapLogger.Fatal("Invalid cart codec", zap.Error(err))
	}

	// Report sinks
	sinks := analytics.MultiSink{analytics.NewLogSink(zapLogger)}
	var metricsClient *aws_pkg.MetricsClient
	if awsCfg != nil {
		metricsClient = aws_pkg.NewMetricsClient(*awsCfg)
		if metricsClient.IsEnabled() {
			sinks = append(sinks, analytics.NewMetricsSink(metricsClient, cfg.ServiceName))
		}
		if cfg.BusinessEventsSNSTopic != "" {
			sinks = append(sinks, analytics.NewSNSSink(aws_pkg.NewSNSClient(*awsCfg), cfg.BusinessEventsSNSTopic))
		}
		if cfg.ReportArchiveBucket != "" {
			archiver := aws_pkg.NewReportArchiver(*awsCfg, cfg.ReportArchiveBucket, "cart-reports")
			sinks = append(sinks, analytics.NewArchiveSink(archiver))
		}
	}
	var producer *kafka.EventProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic, zapLogger)
		sinks = append(sinks, producer)
	}

	// Core
	throttle := analytics.NewThrottle(nil)
	aggOpts := analytics.DefaultOptions()
	aggOpts.FlushInterval = cfg.StatsFlushInterval
	aggOpts.LargeCartThreshold = cfg.LargeCartThreshold
	aggOpts.LargeQuantityThreshold = cfg.LargeQuantityThreshold
	aggOpts.TopProducts = cfg.TopProducts
	// A PerMinute bucket refills within 30s, so a minute idle is a full bucket.
	limiter := middleware.PerMinute(cfg.RateLimitPerMinute)
	aggOpts.Sweepers = []analytics.Sweeper{throttle, limiter}
	aggOpts.SweepMaxAge = max(cfg.CartAccessLogInterval, cfg.HealthLogInterval, time.Minute)
	aggregator := analytics.NewAggregator(sinks, zapLogger, aggOpts)

	appCtx, stopApp := context.WithCancel(ctx)
	defer stopApp()
	aggregator.Start(appCtx)

	mode := repository.UpdateAtomic
	if !cfg.AtomicUpdates {
		mode = repository.UpdateUnguarded
	}
	repo := repository.NewCartRepository(store, cartCodec, throttle, zapLogger, repository.Options{
		Mode:              mode,
		AccessLogInterval: cfg.CartAccessLogInterval,
	})
	probe := services.NewHealthProbe(repo, throttle, cfg.HealthLogInterval, zapLogger)
	cartService := services.NewCartService(repo, aggregator, probe, zapLogger)

	// HTTP
	routerCfg := routes.RouterConfig{
		ServiceName:    cfg.ServiceName,
		JWTSecret:      []byte(cfg.JWTSecret),
		RateLimiter:    limiter,
		Logger:         zapLogger,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if metricsClient != nil {
		routerCfg.Metrics = metricsClient
	}
	controller := controllers.NewCartController(cartService, aggregator, zapLogger)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routes.NewRouter(controller, routerCfg),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// gRPC health
	grpcSrv := grpcserver.NewServer(cartService, zapLogger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		zapLogger.Fatal("Failed to listen for gRPC", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			zapLogger.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	// Order events
	consumerDone := make(chan struct{})
	if awsCfg != nil && cfg.OrderEventsQueueURL != "" {
		sqsConsumer := aws_pkg.NewSQSConsumer(*awsCfg, cfg.OrderEventsQueueURL, zapLogger)
		orderConsumer := consumer.NewOrderConsumer(sqsConsumer, cartService, zapLogger)
		go func() {
			defer close(consumerDone)
			orderConsumer.Start(appCtx)
		}()
	} else {
		close(consumerDone)
	}

	zapLogger.Info("Cart service started",
		zap.String("port", cfg.Port),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("store", cfg.StoreBackend),
		zap.String("codec", cartCodec.Name()),
		zap.Bool("atomic_updates", cfg.AtomicUpdates),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down cart service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()

	stopApp()
	<-consumerDone

	if err := aggregator.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Final statistics flush failed", zap.Error(err))
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			zapLogger.Warn("Failed to close Kafka producer", zap.Error(err))
		}
	}
	if err := store.Close(); err != nil {
		zapLogger.Warn("Failed to close cart store", zap.Error(err))
	}
	zapLogger.Info("Server exited cleanly")
}
