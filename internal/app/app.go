package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthcheck "github.com/vladislavdragonenkov/shopbilling/internal/health"
	"github.com/vladislavdragonenkov/shopbilling/internal/version"
	billingv1 "github.com/vladislavdragonenkov/shopbilling/proto/billing/v1"
)

const (
	gracefulStopTimeout = 5 * time.Second
	outboxStopTimeout   = 5 * time.Second
)

// newGRPCServer регистрирует BillService и grpc.health.v1. Server reflection
// не подключается: сообщения идут через JSON-кодек и protobuf-дескрипторов
// у BillService нет.
func newGRPCServer(deps *Dependencies, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	billingv1.RegisterBillServiceServer(server, deps.BillServer)
	grpcMetrics.InitializeMetrics(server)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return server, healthServer
}

// Run поднимает хранилище, outbox worker, gRPC и HTTP-серверы и блокируется
// до отмены ctx или ошибки gRPC сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithFields(version.Fields()).Info("starting shop billing service")

	rt, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if rt.closeFn == nil {
			return
		}
		if err := rt.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if cfg.SeedDemo {
		if err := rt.seed(ctx, demoReferenceData()); err != nil {
			return fmt.Errorf("seed demo reference data: %w", err)
		}
		logger.Info("demo reference data seeded")
	}

	// Без Kafka outbox публикует события в лог.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	publisher, dlqPublisher := newOutboxPublishers(cfg, kafkaProducer, logger)
	deps := NewDependencies(rt, cfg, publisher, dlqPublisher, logger)

	outboxCtx, outboxCancel := context.WithCancel(context.Background())
	outboxDone := make(chan struct{})
	var outboxWG sync.WaitGroup
	outboxWG.Add(2)
	go func() {
		defer outboxWG.Done()
		deps.OutboxWorker.Run(outboxCtx)
	}()
	go func() {
		defer outboxWG.Done()
		deps.OutboxCleanup.Run(outboxCtx)
	}()
	go func() {
		outboxWG.Wait()
		close(outboxDone)
	}()
	defer shutdownOutboxWorker(outboxCancel, outboxDone, logger)

	grpcServer, healthServer := newGRPCServer(deps, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if rt.storageChecker != nil {
		healthHandler.RegisterChecker("storage", rt.storageChecker)
	}
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(rt.outboxRepo, cfg.OutboxMaxPending))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(gracefulStopTimeout):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// newHTTPMux собирает служебные HTTP-маршруты: метрики и пробы.
func newHTTPMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /healthz", healthHandler)
	mux.HandleFunc("GET /livez", healthcheck.LivenessHandler)
	mux.HandleFunc("GET /readyz", healthHandler.ReadinessHandler)
	return mux
}

// startMetricsServer поднимает служебный HTTP-сервер и останавливает его по ctx.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newHTTPMux(healthHandler), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("metrics and health probes listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

// shutdownOutboxWorker останавливает worker и ждёт завершения текущего цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("outbox worker stopped")
	case <-time.After(outboxStopTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}
