// Command pricecoalescerd runs the caching intermediary in front of the
// rate-limited pricing oracle: load config, init logging, register metrics,
// serve /health and /metrics, then run until SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaolim/pricecoalescer/internal/breaker"
	"github.com/shaolim/pricecoalescer/internal/coalesce"
	"github.com/shaolim/pricecoalescer/internal/config"
	"github.com/shaolim/pricecoalescer/internal/log"
	"github.com/shaolim/pricecoalescer/internal/pricing"
	"github.com/shaolim/pricecoalescer/internal/store"
	prom "github.com/shaolim/pricecoalescer/observe/prometheus"
)

var healthGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "pricecoalescer",
	Subsystem: "daemon",
	Name:      "health_status",
	Help:      "Health status of the pricing-cache daemon (1=healthy).",
})

func main() {
	cfg := config.GetInstance()
	log.InitLevel(levelFromString(cfg.Log.Level))
	log.InitEnvironment(log.Environment(cfg.Environment))
	logger := log.GetInstance().Sugar

	logger.Infof("pricecoalescerd starting, PID=%d", os.Getpid())

	prom.MustRegisterAll()
	healthGauge.Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := store.NewRedisClient(ctx, store.RedisOptions{
		UseSentinel:      cfg.Redis.UseSentinel,
		Addr:             cfg.Redis.Addr,
		Password:         cfg.Redis.Password,
		DB:               cfg.Redis.DB,
		SentinelAddrs:    cfg.Redis.SentinelAddrs,
		SentinelPassword: cfg.Redis.SentinelPassword,
		MasterName:       cfg.Redis.MasterName,
		DialTimeout:      cfg.RedisDialTimeout(),
		ReadTimeout:      cfg.RedisReadTimeout(),
		WriteTimeout:     cfg.RedisWriteTimeout(),
		PoolSize:         cfg.Redis.PoolSize,
		MinIdleConns:     cfg.Redis.MinIdleConns,
	})
	if err != nil {
		logger.Fatalf("connect to redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("redis connected")

	redisStore := store.NewRedisStore(redisClient)

	cb := breaker.New(breaker.Settings{
		Name:              "pricing-oracle",
		FailureThreshold:  uint32(cfg.Breaker.FailureThreshold),
		Cooldown:          cfg.BreakerCooldown(),
		HalfOpenMaxProbes: uint32(cfg.Breaker.HalfOpenMaxProbes),
	})

	cache := coalesce.New(redisStore, cb, coalesce.Config{
		FreshTTL:             cfg.FreshTTL(),
		StaleTTL:             cfg.StaleTTL(),
		LeaseTTL:             cfg.LeaseTTL(),
		FollowerTimeout:      cfg.FollowerTimeout(),
		FollowerRetries:      cfg.Cache.FollowerRetries,
		FetchBudget:          cfg.FetchBudget(),
		EnableStaleRetention: cfg.StaleRetentionEnabled(),
	})

	oracleHTTPClient := &http.Client{Timeout: cfg.OracleTimeout()}
	oracleClient := pricing.NewOracleClient(oracleHTTPClient, cfg.Oracle.BaseURL, cfg.Oracle.BearerToken)
	adapter := pricing.NewAdapter(cache, oracleClient)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/v1/pricing", newPricingHandler(adapter))

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server exited: %v", err)
		}
	}()
	logger.Infof("http server listening on %s", cfg.HTTP.Addr)

	<-ctx.Done()

	logger.Info("shutdown signal received")
	healthGauge.Set(0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown http server: %v", err)
	}
}

func levelFromString(s string) log.Level {
	switch s {
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
