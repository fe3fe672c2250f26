package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/condgate/internal/console/handler"
	"github.com/xela07ax/condgate/internal/console/server"
	"github.com/xela07ax/condgate/internal/console/service"
	"github.com/xela07ax/condgate/internal/engine"
	"github.com/xela07ax/condgate/internal/gate"
	"github.com/xela07ax/condgate/internal/infra"
	"github.com/xela07ax/condgate/internal/infra/auth"
	"github.com/xela07ax/condgate/internal/journal"
	"github.com/xela07ax/condgate/internal/registry"
	"github.com/xela07ax/condgate/internal/repository/postgres"
)

const kudosRule = "kudos"

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("condgated stopped with error", zap.Error(err))
	}
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gateMetrics := gate.NewMetrics(reg)
	metrics := engine.NewMetrics(reg)

	// 2. Инфраструктура: БД опциональна, без нее работаем на правилах из конфига
	var (
		err   error
		store *postgres.Store
		rs    registry.RuleStore
		jrnl  journal.Logger = journal.Nop{}
	)
	if cfg.Database.URL != "" {
		store, err = postgres.NewStore(appCtx, cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(appCtx); err != nil {
			return err
		}
		rs = registry.NewReliableStore(store, cfg.Registry)

		j := journal.New(store, logger, journal.Options{
			BufferSize:    cfg.Journal.BufferSize,
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		})
		j.Start()
		defer j.Stop()
		jrnl = j
	} else {
		logger.Warn("database.url is empty, running on config rules only")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// 3. Реестр правил: seed из конфига, поверх — БД, дальше живем по сигналам Redis
	seed, err := cfg.Rules()
	if err != nil {
		return err
	}
	gates := registry.New(rs, rdb, logger, gate.WithLogger(logger), gate.WithObserver(gateMetrics))
	gates.Seed(seed)
	if err := gates.Refresh(appCtx); err != nil {
		// Шлюз стартует на seed, следующий refresh подтянет БД
		logger.Warn("initial rule refresh failed", zap.Error(err))
	}
	go gates.StartListener(appCtx)

	// 4. Аутентификация: JWT с атрибутами опционален
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			return err
		}
		validator = auth.NewBaseValidator(pub)
	}

	// 5. HTTP: kudos за гейтом + консоль
	board := engine.NewKudosBoard()
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)
	if validator != nil {
		r.Use(auth.NewMiddleware(validator, logger))
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Mount("/v1/kudos", board.Routes(engine.GateMiddleware(gates, kudosRule, jrnl, metrics, logger)))

	if store != nil {
		console := server.NewConsoleServer(
			logger,
			cfg.Auth.AdminKeyHash,
			handler.NewRuleHandler(service.NewRuleService(store, rdb, jrnl)),
			handler.NewDecisionHandler(service.NewDecisionService(store)),
		)
		r.Mount("/console", console)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	// 6. gRPC: привязки методов из конфига + kudos
	bindings := make(map[string]engine.Binding, len(cfg.GRPC.Bindings)+1)
	for method, rule := range cfg.GRPC.Bindings {
		bindings[method] = engine.Binding{Rule: rule}
	}
	bindings[engine.KudosAwardMethod] = engine.Binding{
		Rule:  kudosRule,
		Empty: func() any { return &structpb.Struct{} },
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(
		engine.UnaryGateInterceptor(gates, bindings, validator, jrnl, metrics, logger),
	))
	grpcSrv.RegisterService(&engine.KudosServiceDesc, engine.NewKudosServer(board))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
	if err != nil {
		return fmt.Errorf("failed to listen gRPC: %w", err)
	}

	errCh := make(chan error, 3)
	go func() {
		logger.Info("gRPC server started", zap.Int("port", cfg.GRPC.Port))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics: %w", err)
		}
	}()

	// 7. Graceful Shutdown
	var runErr error
	select {
	case <-appCtx.Done():
		logger.Info("condgated stopping...")
	case runErr = <-errCh:
	}

	hs.Shutdown()
	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	logger.Info("condgated exited properly")
	return runErr
}
