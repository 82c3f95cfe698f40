package e2e

import (
	"bytes"
	"chat-realtime/app"
	"chat-realtime/auth"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/infrastructure/broadcast"
	"chat-realtime/infrastructure/websocket"
	"chat-realtime/repositories"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// node is one server process of the cluster under test.
type node struct {
	app      *app.App
	server   *httptest.Server
	internal *httptest.Server
}

// BaseRealtimeSuite runs two server nodes in process. They share one
// membership store and one in-memory broadcast layer, so every scenario
// crosses the node boundary the same way separate processes would.
type BaseRealtimeSuite struct {
	suite.Suite
	Config      Config
	db          *badger.DB
	broadcaster *broadcast.MemoryBroadcaster
	verifier    *auth.Verifier
	nodes       []node
	cancel      context.CancelFunc
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRealtimeSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.verifier = auth.NewVerifier(s.Config.Secret)
}

func (s *BaseRealtimeSuite) SetupTest() {
	var err error
	s.db, err = badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	s.Require().NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	memberships := repositories.NewMembershipRepository(s.db, log)
	lastSeen := repositories.NewPresenceRepository(s.db, log)
	s.broadcaster = broadcast.NewMemoryBroadcaster(log)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.nodes = nil
	for i := 1; i <= 2; i++ {
		a := app.New(app.Deps{
			Log:             log,
			Node:            fmt.Sprintf("node-%d", i),
			Verifier:        s.verifier,
			Memberships:     memberships,
			LastSeen:        lastSeen,
			InternalToken:   s.Config.InternalToken,
			Broadcaster:     s.broadcaster,
			TypingTimeout:   s.Config.TypingTimeout,
			Socket:          websocket.DefaultOptions(),
			RestartInterval: 20 * time.Millisecond,
		})
		a.Start(ctx)
		s.nodes = append(s.nodes, node{
			app:      a,
			server:   httptest.NewServer(a.Handler()),
			internal: httptest.NewServer(a.InternalHandler()),
		})
	}
	s.Require().Eventually(func() bool { return s.broadcaster.Listeners() == len(s.nodes) },
		s.Config.WaitFor, 5*time.Millisecond)
}

func (s *BaseRealtimeSuite) TearDownTest() {
	for _, n := range s.nodes {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		n.app.Shutdown(ctx)
		cancel()
		n.server.Close()
		n.internal.Close()
	}
	s.cancel()
	s.Require().NoError(s.db.Close())
}

// Step prints a colorized header for a scenario step
func (s *BaseRealtimeSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseRealtimeSuite) Node(i int) *app.App { return s.nodes[i].app }

func (s *BaseRealtimeSuite) eventually(cond func() bool) {
	s.Require().Eventually(cond, s.Config.WaitFor, 10*time.Millisecond)
}

// never waits a short while and fails if cond becomes true.
func (s *BaseRealtimeSuite) never(cond func() bool) {
	s.Require().Never(cond, 200*time.Millisecond, 10*time.Millisecond)
}

// Join seeds memberships through the internal HTTP hook of the first node.
func (s *BaseRealtimeSuite) Join(chatID domain.ChatID, users ...domain.UserID) {
	for _, user := range users {
		path := fmt.Sprintf("/internal/chats/%s/members/%s", chatID, user)
		status, _ := s.Call(s.nodes[0].internal.URL, http.MethodPut, path, nil, "Bearer "+s.Config.InternalToken)
		s.Require().Equal(http.StatusNoContent, status)
	}
}

// Post sends a domain event to an internal hook of node i and returns the status code.
func (s *BaseRealtimeSuite) Post(i int, hook string, payload any) int {
	status, _ := s.Call(s.nodes[i].internal.URL, http.MethodPost, "/internal/events/"+hook, payload, "Bearer "+s.Config.InternalToken)
	return status
}

// Public and Internal return the base URLs of node i.
func (s *BaseRealtimeSuite) Public(i int) string { return s.nodes[i].server.URL }
func (s *BaseRealtimeSuite) Internal(i int) string { return s.nodes[i].internal.URL }

// Call performs one HTTP request and returns the status code and the decoded JSON body, if any.
func (s *BaseRealtimeSuite) Call(baseURL, method, path string, payload any, authorization string) (int, map[string]any) {
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		s.Require().NoError(err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, baseURL+path, body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// Presence looks up user on node i as viewer, an empty viewer sends no credential.
func (s *BaseRealtimeSuite) Presence(i int, viewer, user domain.UserID) (int, map[string]any) {
	authorization := ""
	if viewer != "" {
		token, err := s.verifier.GenerateToken(viewer, time.Hour)
		s.Require().NoError(err)
		authorization = "Bearer " + token
	}
	return s.Call(s.Public(i), http.MethodGet, "/presence/"+string(user), nil, authorization)
}

// Connect opens a socket on node i as user.
func (s *BaseRealtimeSuite) Connect(i int, user domain.UserID) *Client {
	token, err := s.verifier.GenerateToken(user, time.Hour)
	s.Require().NoError(err)
	c := s.Dial(i, http.Header{"Authorization": []string{"Bearer " + token}}, string(user))
	// The first frame of an accepted socket is its own online status.
	s.Require().Eventually(func() bool { return c.Count(event.UserOnline, userIs(user)) == 1 },
		s.Config.WaitFor, 5*time.Millisecond)
	return c
}

func (s *BaseRealtimeSuite) Dial(i int, header http.Header, name string) *Client {
	url := "ws" + strings.TrimPrefix(s.nodes[i].server.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	s.Require().NoError(err)

	c := &Client{name: name, conn: conn, closed: make(chan struct{}), suite: s}
	go c.read()
	s.T().Cleanup(func() {
		_ = conn.Close()
		<-c.closed
	})
	return c
}

// Client records every frame a socket receives.
type Client struct {
	name   string
	conn   *gorilla.Conn
	suite  *BaseRealtimeSuite
	mu     sync.Mutex
	frames []event.Frame
	closed chan struct{}
	err    error
}

func (c *Client) read() {
	defer close(c.closed)
	for {
		var frame event.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		if c.suite.Config.DebugFrames {
			c.suite.T().Logf("%s <- %s %s", c.name, frame.Event, frame.Data)
		}
		c.mu.Lock()
		c.frames = append(c.frames, frame)
		c.mu.Unlock()
	}
}

// Count returns how many received frames are named name and satisfy match.
func (c *Client) Count(name event.Name, match func(data map[string]any) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f.Event != name {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(f.Data, &data); err != nil {
			continue
		}
		if match == nil || match(data) {
			n++
		}
	}
	return n
}

func (c *Client) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *Client) Signal(kind event.SignalKind, chatID domain.ChatID) {
	c.suite.Require().NoError(c.conn.WriteJSON(event.Signal{Event: kind, Data: event.SignalData{ChatID: chatID}}))
}

// Close performs a clean close handshake and waits for the server to drop the socket.
func (c *Client) Close() {
	_ = c.conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
	select {
	case <-c.closed:
	case <-time.After(c.suite.Config.WaitFor):
		_ = c.conn.Close()
	}
}

// Closed waits for the server to end the connection and returns the read error.
func (c *Client) Closed() error {
	select {
	case <-c.closed:
	case <-time.After(c.suite.Config.WaitFor):
		return fmt.Errorf("%s still connected", c.name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func userIs(user domain.UserID) func(map[string]any) bool {
	return func(data map[string]any) bool { return data["userId"] == string(user) }
}
