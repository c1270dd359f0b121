package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"honnylove-backend/handlers"
	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/commerce"
	"honnylove-backend/internal/config"
	"honnylove-backend/internal/consul"
	"honnylove-backend/internal/gateway"
	"honnylove-backend/internal/metrics"
	"honnylove-backend/internal/store"
	"honnylove-backend/internal/stores/kafka"
	"honnylove-backend/internal/stores/memory"
	"honnylove-backend/internal/stores/postgres"
	"honnylove-backend/internal/stores/redis"
	"honnylove-backend/internal/telemetry"
	"honnylove-backend/pkg/logging"
)

const replayTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error("tracer shutdown error", zap.Error(err))
			}
		}()
	}

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := auth.NewKeys(cfg.JWTSecret, cfg.ServiceName, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	stripe, err := gateway.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	opts := []commerce.Option{
		commerce.WithMetrics(m),
		commerce.WithPaymentSettings(cfg.PaymentCurrency, cfg.PaymentReturnURL),
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewConf(cfg.KafkaBrokers, cfg.ServiceName)
		if err != nil {
			return err
		}
		defer producer.Close()
		opts = append(opts, commerce.WithEvents(producer))
		log.Info("order events enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	if cfg.RedisAddr != "" {
		cache := redis.NewReplayCache(cfg.RedisAddr, replayTTL)
		defer func() { _ = cache.Close() }()
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis unreachable, webhook replay cache degraded", zap.Error(err))
		}
		opts = append(opts, commerce.WithReplayCache(cache))
	}
	svc := commerce.New(st, stripe, keys, opts...)

	router := handlers.API(cfg.EndpointPrefix, handlers.Deps{
		Keys:        keys,
		Service:     svc,
		Logger:      log,
		Metrics:     m,
		Verifier:    stripe,
		GinMode:     cfg.GinMode,
		Development: cfg.Development(),
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	healthSrv := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server start", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Info("grpc health server start", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	deregister := registerConsul(cfg, log)
	defer deregister()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	} else {
		log.Info("http server stopped")
	}
	grpcServer.GracefulStop()
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}
	db, err := postgres.OpenDB(ctx, cfg.DatabaseURL, postgres.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db, "up"); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	conf, err := postgres.NewConf(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return conf, func() { _ = db.Close() }, nil
}

// registerConsul registers the HTTP listener and returns the matching
// deregistration. Failures are logged; the service keeps running.
func registerConsul(cfg config.Config, log *zap.Logger) func() {
	if cfg.ConsulAddr == "" {
		return func() {}
	}
	hostname, _ := os.Hostname()
	host, port, err := consul.SplitHostPort(cfg.HTTPAddr, hostname)
	if err != nil {
		log.Error("consul registration skipped", zap.Error(err))
		return func() {}
	}
	var client *consulapi.Client
	client, err = consul.NewClient(cfg.ConsulAddr)
	if err != nil {
		log.Error("consul registration skipped", zap.Error(err))
		return func() {}
	}
	id := cfg.ServiceName + "-" + hostname
	err = consul.RegisterService(client, consul.Registration{ID: id, Name: cfg.ServiceName, Address: host, Port: port})
	if err != nil {
		log.Error("consul registration failed", zap.Error(err))
		return func() {}
	}
	log.Info("registered with consul", zap.String("id", id))
	return func() {
		if err := consul.DeregisterService(client, id); err != nil {
			log.Error("consul deregistration failed", zap.Error(err))
		}
	}
}
