package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/archive"
	"github.com/AriHenrique/dyrasql/internal/config"
	"github.com/AriHenrique/dyrasql/internal/history"
	"github.com/AriHenrique/dyrasql/internal/proxy"
	"github.com/AriHenrique/dyrasql/internal/tracing"
	"github.com/AriHenrique/dyrasql/internal/tracker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := buildLogger()
	defer logger.Sync()
	sugar := logger.Sugar()

	store := buildHistoryStore(ctx, cfg, sugar)
	trk := tracker.New(cfg.TrackerMaxEntries, cfg.TrackerTTL)
	defer trk.Stop()

	arch := archive.New(cfg.ExplainsDir, cfg.SaveExplains, sugar)

	tracer := tracing.NewNoopProvider()

	server := proxy.NewServer(cfg, sugar, store, trk, arch, tracer)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.DataTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: proxy.MetricsHandler(),
	}

	go func() {
		sugar.Infow("starting dyrasql gateway", "addr", httpSrv.Addr, "bypass_mode", cfg.BypassMode)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("gateway server failed", "error", err)
		}
	}()

	go func() {
		sugar.Infow("starting metrics server", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Errorw("metrics server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	sugar.Info("shutting down dyrasql gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("gateway shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("metrics server shutdown error", "error", err)
	}

	sugar.Info("dyrasql gateway stopped")
}

func buildLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}

// buildHistoryStore prefers a real DynamoDB-backed store; if the AWS SDK
// fails to load its default config, it falls back to an in-memory store
// rather than refusing to start — routing history
// is an optimization, not a correctness requirement.
func buildHistoryStore(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) history.Store {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Warnw("failed to load AWS config, falling back to in-memory history store", "error", err)
		return history.NewMemoryStore()
	}
	client := dynamodb.NewFromConfig(awsCfg)
	return history.NewDynamoStore(client, cfg.DynamoDBTable, log)
}
