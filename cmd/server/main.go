package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibehive/auth"
	"vibehive/infrastructure/grpc/chatv1"
	"vibehive/infrastructure/grpc/server"
	"vibehive/infrastructure/pubsub"
	"vibehive/infrastructure/realtime"
	"vibehive/infrastructure/rest"
	"vibehive/infrastructure/storage"
	"vibehive/internal"
	"vibehive/projection"
	"vibehive/runtime"
	"vibehive/runtime/workers"
	"vibehive/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	grpcsdk "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns the server lifecycle so deferred
// cleanups (store close, broker close) run before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	dotenvErr := godotenv.Load()
	config, err := internal.Load()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	if dotenvErr != nil {
		logger.Debug("No .env file loaded", "error", dotenvErr)
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Message store
	store, err := storage.Open(ctx, storage.Driver(config.StoreDriver), config.StoreLocation(), logger, config.HistoryPageLimit)
	if err != nil {
		return exitRuntime, fmt.Errorf("message store: %w", err)
	}
	defer func() {
		logger.Info("Closing message store...")
		_ = store.Close()
	}()
	if badgerStore, ok := store.(*storage.BadgerMessageStore); ok && logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		badgerStore.StartInspector(config.DebugPort, endpoint)
	}

	// 3. Realtime channel, optionally relayed through redis
	registry := runtime.NewRegistry()
	channel := runtime.NewChannel(logger, registry, config.DeliveryTimeout)
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewStatsWorker(logger, channel, config.StatsInterval))

	if config.RedisURL != "" {
		broker, err := pubsub.NewRedisBroker(ctx, config.RedisURL, logger)
		if err != nil {
			return exitRuntime, err
		}
		defer func() { _ = broker.Close() }()
		channel.WithBroker(broker, config.InstanceID)
		sup.Add(workers.NewRelayWorker(broker, channel))
		logger.Info("Cross-instance relay enabled", "instance", config.InstanceID)
	}

	// 4. Core services
	coordinator := runtime.NewCoordinator(logger, store, channel, config.MaxContentLength, config.StorageRetries)
	index := projection.NewConversationIndex(logger, store, config.HistoryConcurrency)
	chatService := services.NewChatService(logger, store, coordinator, channel, index, config.MaxPageLimit)
	verifier := auth.NewVerifier(config.AuthSecret)
	if !verifier.Enabled() {
		logger.Warn("AUTH_SECRET is empty, announced identities are trusted")
	}

	errChan := make(chan error, 3)
	go sup.Run(ctx)

	// 5. gRPC server
	grpcServer, err := startGRPC(logger, config, verifier, chatService, errChan)
	if err != nil {
		return exitRuntime, err
	}

	// 6. HTTP server (REST + websocket)
	gin.SetMode(gin.ReleaseMode)
	engine := rest.NewEngine(logger,
		rest.NewMessageController(logger, chatService, config.RequestTimeout),
		verifier,
		realtime.NewHandler(logger, chatService, verifier, config.ReadTimeout, config.ConnectionBufferSize),
	)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.HTTPPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err = <-errChan:
		logger.Error("Server failed", "error", err)
		code = exitRuntime
	}

	// 8. Graceful shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	grpcServer.GracefulStop()
	sup.Stop()
	logger.Info("Program stopped cleanly")
	return code, err
}

func startGRPC(logger *slog.Logger, config internal.Config, verifier *auth.Verifier,
	chatService services.IChatService, errChan chan<- error) (*grpc.Server, error) {
	address := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	unary := []grpc.UnaryServerInterceptor{grpcsdk.UnaryLoggingInterceptor(logger)}
	var stream []grpc.StreamServerInterceptor
	if verifier.Enabled() {
		unary = append(unary, verifier.UnaryInterceptor())
		stream = append(stream, verifier.StreamInterceptor())
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unary...), grpc.ChainStreamInterceptor(stream...))
	chatv1.RegisterMessageServiceServer(s, server.NewMessageServer(logger, chatService, config.ConnectionBufferSize))
	healthpb.RegisterHealthServer(s, health.NewServer())

	go func() {
		logger.Info("Starting gRPC server", "address", address, "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	return s, nil
}
