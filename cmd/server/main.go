package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/sendgrid-analytics/internal/analytics"
	"github.com/ignite/sendgrid-analytics/internal/api"
	"github.com/ignite/sendgrid-analytics/internal/config"
	"github.com/ignite/sendgrid-analytics/internal/datanorm"
	"github.com/ignite/sendgrid-analytics/internal/pkg/logger"
	"github.com/ignite/sendgrid-analytics/internal/report"
	"github.com/ignite/sendgrid-analytics/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactsPII())

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", cfg.Server.Port)

	opts, err := cfg.PipelineOptions()
	if err != nil {
		log.Fatalf("Invalid pipeline config: %v", err)
	}
	benchmarks, err := cfg.DomainBenchmarks()
	if err != nil {
		log.Fatalf("Invalid benchmarks: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := storage.NewSessionStore(cfg.Sessions.TTL())
	go sessions.Run(ctx, cfg.Sessions.SweepInterval())

	deps := api.Deps{
		Sessions: sessions,
		Importer: datanorm.NewImporter(opts),
		Engine:   analytics.NewEngine(benchmarks),
		Reports:  report.NewBuilder(cfg.EventLabels()),
	}

	// Result cache: Redis when configured so instances share results,
	// in-process otherwise.
	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		rc, err := storage.NewRedisCacheFromURL(cfg.Cache.RedisURL, cfg.Cache.TTL())
		if err != nil {
			log.Printf("Warning: Redis connection failed: %v, falling back to in-memory result cache", err)
			deps.Cache = storage.NewMemoryCache(cfg.Cache.TTL())
		} else {
			redisClient = rc.Client()
			deps.Cache = rc
			log.Printf("Redis result cache enabled (ttl: %s)", cfg.Cache.TTL())
		}
	} else {
		deps.Cache = storage.NewMemoryCache(cfg.Cache.TTL())
	}
	deps.Redis = redisClient

	if cfg.Export.Archive && cfg.Storage.S3Bucket != "" {
		archive, err := storage.NewReportArchiveFromConfig(ctx, cfg.Storage)
		if err != nil {
			log.Printf("Warning: Failed to initialize report archive: %v", err)
		} else {
			deps.Archive = archive
			log.Printf("Report archive enabled: s3://%s/%s", cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		}
	}

	server := api.NewServer(cfg, deps)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Server stopped")
}
