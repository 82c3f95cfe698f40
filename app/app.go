// Package app assembles the realtime subsystem from its parts. Both the
// server binary and the end-to-end suite build their stack through it.
package app

import (
	"chat-realtime/contract"
	"chat-realtime/errors"
	"chat-realtime/infrastructure/httpserver"
	"chat-realtime/infrastructure/websocket"
	"chat-realtime/observability"
	"chat-realtime/repositories"
	"chat-realtime/runtime"
	"chat-realtime/runtime/workers"
	"chat-realtime/services"
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Deps struct {
	Log         *slog.Logger
	Node        string
	Verifier    contract.ITokenVerifier
	Memberships repositories.IMembershipRepository
	LastSeen    contract.IPresenceStore
	// InternalToken guards the request layer hooks.
	InternalToken string
	// Broadcaster may be nil for a single-process deployment.
	Broadcaster contract.IBroadcaster

	TypingTimeout     time.Duration
	Socket            websocket.Options
	RestartInterval   time.Duration
	HeartbeatInterval time.Duration
}

type App struct {
	log        *slog.Logger
	Registry   *runtime.Registry
	Hub        *runtime.Hub
	Bus        *runtime.Bus
	Gateway    *runtime.Gateway
	Realtime   *services.RealtimeService
	Monitoring *observability.MonitoringManager
	supervisor *workers.Supervisor
	server     *httpserver.Server
	cancel     context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once
}

func New(d Deps) *App {
	log := d.Log.With("node", d.Node)

	registry := runtime.NewRegistry()
	hub := runtime.NewHub(log)
	bus := runtime.NewBus(log, d.Node, hub, d.Broadcaster)
	presence := runtime.NewPresenceBroadcaster(log, d.Memberships, bus)
	typing := runtime.NewTypingCoordinator(log, bus, d.TypingTimeout)
	gateway := runtime.NewGateway(log, d.Verifier, d.Memberships, registry, hub, bus, presence, typing, d.LastSeen)
	realtime := services.NewRealtimeService(log, bus, gateway)

	monitoring := observability.NewMonitoringManager(log, d.Node)
	monitoring.WatchGauges(func() observability.Gauges {
		stats := hub.Stats()
		return observability.Gauges{
			Connections: stats.Connections,
			Targets:     stats.Targets,
			OnlineUsers: len(registry.OnlineUsers()),
		}
	})
	hub.Observe(monitoring.AddDelivered, monitoring.IncrDropped)
	bus.OnDegraded(monitoring.IncrDegraded)
	gateway.OnReject(func(err error) { monitoring.IncrRejected(rejectReason(err)) })

	socket := websocket.NewHandler(log, gateway, d.Socket)
	socket.Observe(monitoring.IncrAccepted, monitoring.IncrDisconnected)
	socket.OnReject(func(err error) { monitoring.IncrRejected(rejectReason(err)) })

	supervisor := workers.NewSupervisor(log, d.RestartInterval)
	if d.Broadcaster != nil {
		supervisor.Add(workers.NewBroadcastListener(log, d.Broadcaster, bus))
	}
	if d.HeartbeatInterval > 0 {
		supervisor.Add(workers.NewHeartbeatWorker(log, monitoring, d.HeartbeatInterval))
	}

	return &App{
		log:        log,
		Registry:   registry,
		Hub:        hub,
		Bus:        bus,
		Gateway:    gateway,
		Realtime:   realtime,
		Monitoring: monitoring,
		supervisor: supervisor,
		server:     httpserver.NewServer(log, socket, d.Verifier, realtime, d.Memberships, monitoring, d.InternalToken),
		done:       make(chan struct{}),
	}
}

func rejectReason(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrUnauthorized):
		return "unauthorized"
	case stderrors.Is(err, errors.ErrMembershipLoad):
		return "membership"
	default:
		return "other"
	}
}

// Handler serves clients, InternalHandler serves the request layer. They are
// meant for two different listeners.
func (a *App) Handler() http.Handler { return a.server.Handler() }

func (a *App) InternalHandler() http.Handler { return a.server.InternalHandler() }

// Start runs the background workers until ctx is done or Shutdown is called.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	go func() {
		defer close(a.done)
		a.supervisor.Run(ctx)
	}()
}

// Shutdown disconnects every local connection, which announces offline users,
// then stops the workers.
func (a *App) Shutdown(ctx context.Context) {
	a.stopOnce.Do(func() {
		a.Gateway.Shutdown(ctx)
		if a.cancel == nil {
			return
		}
		a.cancel()
		select {
		case <-a.done:
		case <-ctx.Done():
			a.log.Warn("Workers did not stop in time")
		}
	})
}
