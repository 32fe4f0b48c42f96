package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JosephRemingston/insightAI/internal/config"
	"github.com/JosephRemingston/insightAI/internal/metrics"
	"github.com/JosephRemingston/insightAI/internal/pkg/redact"
	"github.com/JosephRemingston/insightAI/internal/pkg/secret"
	"github.com/JosephRemingston/insightAI/internal/pkg/token"
	"github.com/JosephRemingston/insightAI/internal/registry"
	"github.com/JosephRemingston/insightAI/internal/service"
	"github.com/JosephRemingston/insightAI/internal/session"
	sessionmem "github.com/JosephRemingston/insightAI/internal/session/memory"
	sessionredis "github.com/JosephRemingston/insightAI/internal/session/redis"
	"github.com/JosephRemingston/insightAI/internal/storage"
	storagemem "github.com/JosephRemingston/insightAI/internal/storage/memory"
	"github.com/JosephRemingston/insightAI/internal/storage/mongo"
	"github.com/JosephRemingston/insightAI/internal/storage/postgres"
	vaulthttp "github.com/JosephRemingston/insightAI/internal/transport/http"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting vault-service", "env", cfg.Env)

	startedAt := time.Now()

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	key, err := cfg.Crypto.Key()
	if err != nil {
		log.Error("encryption_key_invalid", slog.String("err", err.Error()))
		os.Exit(1)
	}
	cipher, err := secret.New(key)
	if err != nil {
		log.Error("cipher_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := openStorage(initCtx, cfg.Storage, log)
	if err != nil {
		initCancel()
		log.Error("storage_init_failed", slog.String("driver", cfg.Storage.Driver), slog.String("err", err.Error()))
		os.Exit(1)
	}

	sessions, err := openSessions(initCtx, rootCtx, cfg.Session, log)
	initCancel()
	if err != nil {
		log.Error("session_init_failed", slog.String("driver", cfg.Session.Driver), slog.String("err", err.Error()))
		closeStorage(str, log)
		os.Exit(1)
	}

	conns := registry.New(registry.MongoDialer{}, cfg.Registry.ConnectTimeout,
		registry.WithLogger(log),
		registry.WithMetrics(m),
	)

	svc := service.New(str, sessions, token.New(cfg.Auth), cipher, conns)
	svc.SetMetrics(m)

	apiHandler := vaulthttp.NewRouter(svc, vaulthttp.Options{
		Logger:    log,
		Timeout:   cfg.Timeouts.Request,
		Metrics:   m,
		StartedAt: startedAt,
	})

	var ready int32 // 0: not ready; 1: ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.Handle("/", apiHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		_ = sessions.Close()
		closeStorage(str, log)
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("service_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	// Tenant connections first: they may outlive requests but not the process.
	if err := conns.CloseAll(shutdownCtx); err != nil {
		log.Warn("registry_close_failed", slog.String("err", err.Error()))
	}

	if err := sessions.Close(); err != nil {
		log.Warn("session_close_failed", slog.String("err", err.Error()))
	}
	closeStorage(str, log)

	log.Info("service_stopped")
}

func openStorage(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		st, err := mongo.New(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		log.Info("mongo_connected", slog.String("uri", redact.URI(cfg.MongoURI)))
		return st, nil

	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		log.Info("postgres_connected", slog.String("url", redact.URI(cfg.PostgresURL)))
		return st, nil

	case config.DriverMemory:
		log.Warn("storage_in_memory", slog.String("hint", "data is lost on restart"))
		return storagemem.New(), nil
	}

	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}

// openSessions dials with initCtx; the memory janitor runs until runCtx ends.
func openSessions(initCtx, runCtx context.Context, cfg config.SessionConfig, log *slog.Logger) (session.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		st, err := sessionredis.New(initCtx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		log.Info("redis_connected", slog.String("url", redact.URI(cfg.RedisURL)))
		return st, nil

	case config.DriverMemory:
		st := sessionmem.New()
		st.StartJanitor(runCtx, log, cfg.SweepInterval)
		log.Warn("session_in_memory", slog.String("hint", "sessions are lost on restart"))
		return st, nil
	}

	return nil, fmt.Errorf("unsupported session driver %q", cfg.Driver)
}

func closeStorage(st storage.Storage, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := st.Close(ctx); err != nil {
		log.Warn("storage_close_failed", slog.String("err", err.Error()))
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
