package websocket

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/mocks"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func dial(t *testing.T, server *httptest.Server, query string, header http.Header) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newServer(gateway contract.IGateway) *httptest.Server {
	opts := DefaultOptions()
	opts.QueueSize = 8
	handler := NewHandler(logs.GetLoggerFromLevel(slog.LevelDebug), gateway, opts)
	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	return httptest.NewServer(mux)
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mocks.NewMockIGateway(ctrl)
	gateway.EXPECT().HandleConnect(gomock.Any(), "", gomock.Any()).Return(domain.ConnectionID(""), errors.ErrMissingToken)

	server := newServer(gateway)
	defer server.Close()
	conn := dial(t, server, "", nil)

	// Then an error frame comes first
	var frame event.Frame
	req.NoError(conn.ReadJSON(&frame))
	req.Equal(event.Error, frame.Event)
	req.JSONEq(`{"message":"Authentication token required"}`, string(frame.Data))

	// And a policy violation close follows
	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestHandler_RejectsInvalidTokenFromQuery(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mocks.NewMockIGateway(ctrl)
	gateway.EXPECT().
		HandleConnect(gomock.Any(), "bad", gomock.Any()).
		Return(domain.ConnectionID(""), stderrors.Join(errors.ErrUnauthorized, stderrors.New("signature")))

	server := newServer(gateway)
	defer server.Close()
	conn := dial(t, server, "?token=bad", nil)

	var frame event.Frame
	req.NoError(conn.ReadJSON(&frame))
	req.JSONEq(`{"message":"Invalid or expired token"}`, string(frame.Data))
}

func TestHandler_RejectsUnsupportedAuthorizationScheme(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	// Given a gateway that must never be reached
	gateway := mocks.NewMockIGateway(ctrl)
	gateway.EXPECT().HandleConnect(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	server := newServer(gateway)
	defer server.Close()
	// When a Basic credential is presented next to a query token
	conn := dial(t, server, "?token=good", http.Header{"Authorization": []string{"Basic Zm9vOmJhcg=="}})

	// Then the header is refused, the query token is not tried
	var frame event.Frame
	req.NoError(conn.ReadJSON(&frame))
	req.JSONEq(`{"message":"Invalid or expired token"}`, string(frame.Data))
	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestHandler_AcceptsLowercaseBearer(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mocks.NewMockIGateway(ctrl)
	disconnected := make(chan struct{})
	gateway.EXPECT().HandleConnect(gomock.Any(), "good", gomock.Any()).Return(domain.ConnectionID("conn-1"), nil)
	gateway.EXPECT().
		HandleDisconnect(gomock.Any(), domain.ConnectionID("conn-1")).
		Do(func(context.Context, domain.ConnectionID) { close(disconnected) })

	server := newServer(gateway)
	defer server.Close()
	conn := dial(t, server, "", http.Header{"Authorization": []string{"bearer good"}})
	req.NoError(conn.Close())

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		req.Fail("disconnect not reported")
	}
}

func TestHandler_DeliversFramesAndSignals(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mocks.NewMockIGateway(ctrl)

	sinks := make(chan contract.ConnectionSink, 1)
	signals := make(chan event.Signal, 1)
	disconnected := make(chan domain.ConnectionID, 1)

	// Given a gateway accepting the bearer token
	gateway.EXPECT().
		HandleConnect(gomock.Any(), "good", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, s contract.ConnectionSink) (domain.ConnectionID, error) {
			sinks <- s
			return "conn-1", nil
		})
	gateway.EXPECT().
		HandleSignal(gomock.Any(), domain.ConnectionID("conn-1"), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.ConnectionID, s event.Signal) error {
			signals <- s
			return nil
		})
	gateway.EXPECT().
		HandleDisconnect(gomock.Any(), domain.ConnectionID("conn-1")).
		Do(func(_ context.Context, connID domain.ConnectionID) { disconnected <- connID })

	server := newServer(gateway)
	defer server.Close()
	conn := dial(t, server, "", http.Header{"Authorization": []string{"Bearer good"}})

	// When the bus pushes a frame into the connection sink
	s := <-sinks
	frame, err := event.NewFrame(event.Typing{UserID: "bob", ChatID: "chat-1", IsTyping: true})
	req.NoError(err)
	req.NoError(s.Consume(context.Background(), frame))

	// Then the client reads it
	var got event.Frame
	req.NoError(conn.ReadJSON(&got))
	req.Equal(event.UserTyping, got.Event)
	req.JSONEq(`{"userId":"bob","chatId":"chat-1","isTyping":true}`, string(got.Data))

	// When the client sends a typing signal
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"user:typing","data":{"chatId":"chat-1"}}`)))
	select {
	case signal := <-signals:
		req.Equal(event.SignalTypingStart, signal.Event)
		req.Equal(domain.ChatID("chat-1"), signal.Data.ChatID)
	case <-time.After(time.Second):
		req.Fail("signal not forwarded")
	}

	// When the client leaves
	req.NoError(conn.Close())
	select {
	case connID := <-disconnected:
		req.Equal(domain.ConnectionID("conn-1"), connID)
	case <-time.After(time.Second):
		req.Fail("disconnect not reported")
	}
}

func TestHandler_ClosedSinkClosesSocket(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := mocks.NewMockIGateway(ctrl)

	sinks := make(chan contract.ConnectionSink, 1)
	gateway.EXPECT().
		HandleConnect(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, s contract.ConnectionSink) (domain.ConnectionID, error) {
			sinks <- s
			return "conn-1", nil
		})
	disconnected := make(chan struct{})
	gateway.EXPECT().
		HandleDisconnect(gomock.Any(), domain.ConnectionID("conn-1")).
		Do(func(context.Context, domain.ConnectionID) { close(disconnected) })

	server := newServer(gateway)
	defer server.Close()
	conn := dial(t, server, "?token=x", nil)

	// When the server side closes the sink
	(<-sinks).Close()

	// Then the client sees a normal closure
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		req.Fail("disconnect not reported")
	}
}

func TestRejectionMessage(t *testing.T) {
	req := require.New(t)
	req.Equal(MessageTokenRequired, RejectionMessage(errors.ErrMissingToken))
	req.Equal(MessageInvalidToken, RejectionMessage(errors.ErrUnauthorized))
	req.Equal(MessageFailed, RejectionMessage(errors.ErrMembershipLoad))
}

func TestFrameWireShape(t *testing.T) {
	req := require.New(t)
	frame, err := event.NewFrame(event.Failure{Message: MessageFailed})
	req.NoError(err)
	raw, err := json.Marshal(frame)
	req.NoError(err)
	req.JSONEq(`{"event":"error","data":{"message":"Connection failed"}}`, string(raw))
}
