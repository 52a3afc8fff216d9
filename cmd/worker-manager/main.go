// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lead-routing-workers/internal/agents"
	"lead-routing-workers/internal/assignments"
	"lead-routing-workers/internal/common/camunda"
	"lead-routing-workers/internal/common/config"
	"lead-routing-workers/internal/common/database"
	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/common/observability"
	"lead-routing-workers/internal/routing"
	"lead-routing-workers/internal/store/redisstore"
	"lead-routing-workers/pkg/registry"

	// Data Access Workers (1)
	fap "lead-routing-workers/internal/workers/data-access/fetch-agent-pool"

	// Routing Workers (3)
	ra "lead-routing-workers/internal/workers/routing/rank-agents"
	rl "lead-routing-workers/internal/workers/routing/route-lead"
	vl "lead-routing-workers/internal/workers/routing/validate-lead"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Deploy Routing Process (optional) ---
	if cfg.Camunda.ProcessPath != "" {
		_, err = zeebeClient.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
			return zeebeClient.GetClient().NewDeployResourceCommand().
				AddResourceFile(cfg.Camunda.ProcessPath).
				Send(ctx)
		}, "deploy routing process")
		if err != nil {
			zapLog.Fatal("failed to deploy routing process", zap.Error(err))
		}
		zapLog.Info("Routing process deployed", zap.String("resource", cfg.Camunda.ProcessPath))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	if exists, err := esClient.IndexExists(ctx, cfg.Routing.AgentIndex); err != nil {
		zapLog.Warn("agent index check failed", zap.Error(err))
	} else if !exists {
		zapLog.Warn("agent index does not exist yet; fetch-agent-pool jobs will fail until it is created",
			zap.String("agentIndex", cfg.Routing.AgentIndex))
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Build Routing Engine ---
	scorer, err := routing.NewScorer(routing.Weights{
		Specialization: cfg.Routing.Weights.Specialization,
		Geo:            cfg.Routing.Weights.Geo,
		Availability:   cfg.Routing.Weights.Availability,
		Rating:         cfg.Routing.Weights.Rating,
		ResponseTime:   cfg.Routing.Weights.ResponseTime,
		Conversion:     cfg.Routing.Weights.Conversion,
	})
	if err != nil {
		zapLog.Fatal("invalid scoring weights", zap.Error(err))
	}

	store := redisstore.New(redis.Client, cfg.Routing.KeyPrefix)
	repo := assignments.NewRepository(pg.DB, log)
	directory := agents.NewDirectory(esClient.Client, cfg.Routing.AgentIndex, log)
	coordinator := routing.NewCoordinator(scorer, store, repo, log)

	zapLog.Info("Routing engine initialized",
		zap.String("agentIndex", cfg.Routing.AgentIndex),
		zap.String("keyPrefix", cfg.Routing.KeyPrefix),
	)

	// --- Load Activity Registry ---
	// validate-lead falls back to semantic-only checks when the registry
	// file or its activity entry is missing.
	var validateActivity *registry.Activity
	if reg, regErr := registry.LoadRegistry(cfg.Routing.RegistryPath); regErr != nil {
		zapLog.Warn("activity registry unavailable, schema validation disabled",
			zap.String("path", cfg.Routing.RegistryPath),
			zap.Error(regErr),
		)
	} else if validateActivity, regErr = reg.FindByTaskType(vl.TaskType); regErr != nil {
		zapLog.Warn("activity not registered, schema validation disabled",
			zap.String("taskType", vl.TaskType),
			zap.Error(regErr),
		)
	}

	// --- Register Workers ---
	workers := camunda.NewRegistry(zeebeClient.GetClient(), zapLog)

	// 1. validate-lead
	{
		wcfg := config.GetWorkerConfig(cfg, vl.TaskType)
		handler := vl.NewHandler(
			&vl.Config{
				Timeout: config.GetDuration(wcfg.Timeout),
			},
			validateActivity, log,
		)
		workers.Register(vl.TaskType, wcfg, handler.Handle)
	}

	// 2. fetch-agent-pool
	{
		wcfg := config.GetWorkerConfig(cfg, fap.TaskType)
		handler := fap.NewHandler(
			&fap.Config{
				Timeout:  config.GetDuration(wcfg.Timeout),
				PoolSize: cfg.Routing.DefaultPoolSize,
			},
			directory, log,
		)
		workers.Register(fap.TaskType, wcfg, handler.Handle)
	}

	// 3. rank-agents
	{
		wcfg := config.GetWorkerConfig(cfg, ra.TaskType)
		handler := ra.NewHandler(
			&ra.Config{
				Timeout: config.GetDuration(wcfg.Timeout),
			},
			scorer, log,
		)
		workers.Register(ra.TaskType, wcfg, handler.Handle)
	}

	// 4. route-lead
	{
		wcfg := config.GetWorkerConfig(cfg, rl.TaskType)
		handler := rl.NewHandler(
			&rl.Config{
				Timeout:        config.GetDuration(wcfg.Timeout),
				ReserveTimeout: config.GetDuration(cfg.Routing.ReserveTimeout),
			},
			coordinator, store, obs, log,
		)
		workers.Register(rl.TaskType, wcfg, handler.Handle)
	}

	zapLog.Info("All workers registered successfully", zap.Int("count", workers.Count()))

	// --- Health & Metrics Server ---
	// Handlers go on the default mux so the pprof import stays reachable.
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := pg.Ping(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": "postgres unreachable"})
			return
		}
		if err := redis.Ping(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": "redis unreachable"})
			return
		}
		if err := zeebeClient.HealthCheck(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": "zeebe unreachable"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":8080"}
	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Close()

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
