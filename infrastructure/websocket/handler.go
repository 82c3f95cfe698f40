// Package websocket is the socket transport of the realtime gateway.
package websocket

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/sink"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MessageTokenRequired = "Authentication token required"
	MessageInvalidToken  = "Invalid or expired token"
	MessageFailed        = "Connection failed"
)

type Options struct {
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	QueueSize      int
	OverflowPolicy sink.OverflowPolicy
}

func DefaultOptions() Options {
	return Options{
		PingPeriod:     54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
		QueueSize:      256,
		OverflowPolicy: sink.DropOldest,
	}
}

// Handler upgrades HTTP requests and binds each socket to the gateway.
type Handler struct {
	log        *slog.Logger
	gateway    contract.IGateway
	upgrader   websocket.Upgrader
	opts       Options
	onAccepted func()
	onClosed   func()
	onRejected func(err error)
}

func NewHandler(log *slog.Logger, gateway contract.IGateway, opts Options) *Handler {
	return &Handler{
		log:     log,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts:       opts,
		onAccepted: func() {},
		onClosed:   func() {},
		onRejected: func(error) {},
	}
}

// Observe installs connection lifecycle callbacks.
func (h *Handler) Observe(onAccepted, onClosed func()) {
	h.onAccepted = onAccepted
	h.onClosed = onClosed
}

// OnReject installs a callback fired when the handshake carries an unusable
// credential. Verification failures are reported by the gateway.
func (h *Handler) OnReject(fn func(err error)) { h.onRejected = fn }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, tokenErr := auth.TokenFromRequest(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if tokenErr != nil {
		h.log.Warn("Connection rejected", "reason", "authorization header", "remote", r.RemoteAddr, "error", tokenErr)
		h.onRejected(tokenErr)
		h.reject(conn, tokenErr)
		return
	}

	// The hijacked connection outlives nothing but this handler.
	ctx := context.WithoutCancel(r.Context())
	out := sink.NewConnectionSink(h.log, h.opts.QueueSize, h.opts.OverflowPolicy)
	connID, err := h.gateway.HandleConnect(ctx, token, out)
	if err != nil {
		h.reject(conn, err)
		return
	}
	h.onAccepted()

	go h.writePump(conn, out, connID)
	h.readPump(ctx, conn, connID)

	h.gateway.HandleDisconnect(ctx, connID)
	h.onClosed()
}

// RejectionMessage maps a connect failure onto the message sent to the client.
func RejectionMessage(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrMissingToken):
		return MessageTokenRequired
	case stderrors.Is(err, errors.ErrUnauthorized):
		return MessageInvalidToken
	default:
		return MessageFailed
	}
}

// reject writes an error frame, then a policy violation close frame, then
// closes the socket.
func (h *Handler) reject(conn *websocket.Conn, cause error) {
	defer conn.Close()
	message := RejectionMessage(cause)

	deadline := time.Now().Add(h.opts.WriteWait)
	if frame, err := event.NewFrame(event.Failure{Message: message}); err == nil {
		_ = conn.SetWriteDeadline(deadline)
		if err := conn.WriteJSON(frame); err != nil {
			h.log.Debug("Failed to write rejection frame", "error", err)
			return
		}
	}
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message)
	if err := conn.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil {
		h.log.Debug("Failed to write close frame", "error", err)
	}
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, connID domain.ConnectionID) {
	defer conn.Close()

	conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Socket closed unexpectedly", "connection_id", connID, "error", err)
			}
			return
		}

		var signal event.Signal
		if err := json.Unmarshal(data, &signal); err != nil {
			h.log.Debug("Ignoring malformed signal", "connection_id", connID, "error", err)
			continue
		}
		if err := h.gateway.HandleSignal(ctx, connID, signal); err != nil {
			h.log.Debug("Signal refused", "connection_id", connID, "event", signal.Event, "error", err)
		}
	}
}

// writePump drains the sink until it is closed, then closes the socket so the
// read pump ends as well.
func (h *Handler) writePump(conn *websocket.Conn, out *sink.ConnectionSink, connID domain.ConnectionID) {
	ticker := time.NewTicker(h.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-out.Out():
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				h.log.Debug("Error writing frame", "connection_id", connID, "error", err)
				return
			}

		case <-out.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.opts.WriteWait))
			return

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Debug("Error writing ping", "connection_id", connID, "error", err)
				return
			}
		}
	}
}
