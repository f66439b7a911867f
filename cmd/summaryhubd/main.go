// Command summaryhubd runs the SummaryHub service: an HTTP API over the
// batch summarization orchestrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kart-io/summaryhub/observability"
	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/orchestrator"
	"github.com/kart-io/summaryhub/pkg/partial"
	"github.com/kart-io/summaryhub/pkg/recovery"
	"github.com/kart-io/summaryhub/pkg/segmenter"
	"github.com/kart-io/summaryhub/pkg/summarizer"
	transport "github.com/kart-io/summaryhub/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "summaryhubd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr        = flag.String("addr", envOr("SUMMARYHUB_ADDR", ":8080"), "HTTP listen address")
		endpoint    = flag.String("llm-endpoint", envOr("SUMMARYHUB_LLM_ENDPOINT", ""), "LLM chat-completions endpoint")
		model       = flag.String("llm-model", envOr("SUMMARYHUB_LLM_MODEL", "gpt-4o-mini"), "LLM model name")
		redisAddr   = flag.String("redis-addr", envOr("SUMMARYHUB_REDIS_ADDR", ""), "Redis address for partial-result storage (empty keeps results in memory)")
		logLevel    = flag.String("log-level", envOr("SUMMARYHUB_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
		otlp        = flag.String("otlp-endpoint", envOr("SUMMARYHUB_OTLP_ENDPOINT", ""), "OTLP endpoint for traces and metrics (empty disables telemetry)")
		enableCORS  = flag.Bool("enable-cors", envBool("SUMMARYHUB_ENABLE_CORS", false), "enable permissive CORS headers")
		cleanupTick = flag.Duration("cleanup-interval", time.Hour, "interval between expired partial-result sweeps")
		retention   = flag.Duration("terminal-retention", time.Hour, "how long finished batches stay queryable before eviction")
	)
	flag.Parse()

	apiKey := os.Getenv("SUMMARYHUB_LLM_API_KEY")

	opts := []config.Option{
		config.WithSummarizer(*endpoint, apiKey, *model),
		config.WithLogLevel(*logLevel),
	}
	if *otlp != "" {
		opts = append(opts, config.WithTelemetry("summaryhub", *otlp))
	}
	cfg, err := config.New(opts...)
	if err != nil {
		return err
	}
	log := cfg.GetLogger()

	client, err := summarizer.NewHTTPClient(cfg.Summarizer, log)
	if err != nil {
		return err
	}

	var telemetry *observability.TelemetryProvider
	if cfg.Telemetry.Enabled {
		telemetry, err = observability.NewTelemetryProvider(&cfg.Telemetry)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = telemetry.Shutdown(ctx)
		}()
	}

	var repo partial.Repository = partial.NewMemoryRepository()
	if *redisAddr != "" {
		redisCfg := partial.DefaultRedisConfig()
		redisCfg.Addr = *redisAddr
		redisCfg.Password = os.Getenv("SUMMARYHUB_REDIS_PASSWORD")
		redisRepo, err := partial.NewRedisRepository(redisCfg)
		if err != nil {
			return err
		}
		defer redisRepo.Close()
		repo = redisRepo
		log.Info("Partial results stored in Redis", "addr", *redisAddr)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Config:     cfg,
		Client:     client,
		Repository: repo,
		Telemetry:  telemetry,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	seg := segmenter.New(cfg.Segmentation, client, log)
	pinger, _ := repo.(recovery.RepositoryPinger)
	rec := recovery.NewService(orch, orch.Cancellations(), repo, pinger, orch.Sink(), nil, log)

	serverCfg := transport.DefaultConfig()
	serverCfg.Addr = *addr
	serverCfg.EnableCORS = *enableCORS
	server := transport.NewServer(serverCfg, orch, seg, rec, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweep(ctx, orch, rec, *cleanupTick, *retention, log)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown failed", "error", err)
	}
	return orch.Close(shutdownCtx)
}

// sweep periodically expires partial results whose decision window
// lapsed and evicts finished batches past the retention window
func sweep(ctx context.Context, orch *orchestrator.Orchestrator, rec *recovery.Service, interval, retention time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := orch.PartialResults().CleanupExpired(ctx)
			if err != nil {
				log.Warn("Expired partial-result sweep failed", "error", err)
			} else if expired > 0 {
				log.Info("Expired partial results", "count", expired)
			}
			rec.SweepTerminal(retention)
		}
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
