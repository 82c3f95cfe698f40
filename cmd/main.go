package main

import (
	"chat-realtime/app"
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/infrastructure/broadcast"
	"chat-realtime/infrastructure/websocket"
	"chat-realtime/internal"
	"chat-realtime/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every defer (database, broker connections) runs before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	node := config.NodeID
	if node == "" {
		node = uuid.NewString()
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Shared broadcast layer
	broadcaster, closeBroadcaster, err := newBroadcaster(log, config, node)
	if err != nil {
		return err
	}
	defer closeBroadcaster()

	// 4. Realtime stack
	realtime := app.New(app.Deps{
		Log:         log,
		Node:        node,
		Verifier:    auth.NewVerifier(config.JWTAccessSecret),
		Memberships: repositories.NewMembershipRepository(db, log),
		LastSeen:    repositories.NewPresenceRepository(db, log),
		Broadcaster: broadcaster,

		InternalToken: config.InternalAPIToken,

		TypingTimeout: config.TypingTimeout,
		Socket: websocket.Options{
			PingPeriod:     config.WSPingPeriod,
			PongWait:       config.WSPongWait,
			WriteWait:      config.WSWriteWait,
			MaxMessageSize: config.WSMaxMessageSize,
			QueueSize:      config.OutboundQueueSize,
			OverflowPolicy: config.OverflowPolicy(),
		},
		RestartInterval:   config.RestartInterval,
		HeartbeatInterval: config.HeartbeatInterval,
	})

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	realtime.Start(ctx)

	// 6. HTTP Servers: clients on the public listener, the request layer on the internal one
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           realtime.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	internalServer := &http.Server{
		Addr:              config.InternalAddress(),
		Handler:           realtime.InternalHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 2)
	log.Info("Starting realtime server",
		"address", server.Addr,
		"internal_address", internalServer.Addr,
		"node", node,
		"broadcast", config.BroadcastDriver,
		"at", time.Now().UTC())
	serve(server, "http server", errChan)
	serve(internalServer, "internal http server", errChan)

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup: hijacked sockets are not covered by server.Shutdown,
	// the gateway closes them and announces the users going offline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Internal HTTP shutdown incomplete", "error", err)
	}
	realtime.Shutdown(shutdownCtx)
	log.Info("Program stopped cleanly")

	return nil
}

func serve(server *http.Server, name string, errChan chan<- error) {
	go func() {
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("%s error: %w", name, err)
		}
	}()
}

func newBroadcaster(log *slog.Logger, config internal.Config, node string) (contract.IBroadcaster, func(), error) {
	switch config.BroadcastDriver {
	case broadcast.DriverNats:
		nc, err := broadcast.ConnectNats(log, config.NatsURL, "chat-realtime-"+node)
		if err != nil {
			return nil, nil, fmt.Errorf("nats connection failed: %w", err)
		}
		return broadcast.NewNatsBroadcaster(log, nc, config.BroadcastChannel), func() {
			log.Info("Draining NATS connection...")
			_ = nc.Drain()
		}, nil

	case broadcast.DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr, Password: config.RedisPassword})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return broadcast.NewRedisBroadcaster(log, client, config.BroadcastChannel), func() {
			_ = client.Close()
		}, nil

	default:
		log.Info("Single process fanout, no shared broadcast layer")
		return nil, func() {}, nil
	}
}
