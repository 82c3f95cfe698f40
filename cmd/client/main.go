package main

import (
	"bufio"
	"chat-realtime/auth"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL       string        `env:"SERVER_URL,default=ws://localhost:8080/ws"`
	JWTAccessSecret string        `env:"JWT_ACCESS_SECRET,required=true"`
	UserID          string        `env:"USER_ID,required=true"`
	TokenTTL        time.Duration `env:"TOKEN_TTL,default=1h"`
}

var (
	incoming = color.New(color.FgCyan)
	presence = color.New(color.FgGreen)
	failure  = color.New(color.FgRed, color.OpBold)
)

// Development client: connects as USER_ID and prints every frame it receives.
// Commands on stdin: /typing <chat>, /stop <chat>, /quit.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	token, err := auth.NewVerifier(config.JWTAccessSecret).GenerateToken(domain.UserID(config.UserID), config.TokenTTL)
	if err != nil {
		return err
	}

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(config.ServerURL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", config.ServerURL, err)
	}
	defer conn.Close()
	fmt.Println(presence.Render(fmt.Sprintf("Connected to %s as %s", config.ServerURL, config.UserID)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var frame event.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				fmt.Println(failure.Render(fmt.Sprintf("Connection closed: %v", err)))
				return
			}
			printFrame(frame)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return nil
		default:
		}
		signal, quit, ok := parseCommand(scanner.Text())
		if quit {
			break
		}
		if !ok {
			fmt.Println(failure.Render("Usage: /typing <chat> | /stop <chat> | /quit"))
			continue
		}
		if err := conn.WriteJSON(signal); err != nil {
			return err
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}

func parseCommand(line string) (event.Signal, bool, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return event.Signal{}, false, false
	}
	switch fields[0] {
	case "/quit":
		return event.Signal{}, true, false
	case "/typing", "/stop":
		if len(fields) != 2 {
			return event.Signal{}, false, false
		}
		kind := event.SignalTypingStart
		if fields[0] == "/stop" {
			kind = event.SignalTypingStop
		}
		return event.Signal{Event: kind, Data: event.SignalData{ChatID: domain.ChatID(fields[1])}}, false, true
	default:
		return event.Signal{}, false, false
	}
}

func printFrame(frame event.Frame) {
	line := fmt.Sprintf("[%s] %-16s %s", time.Now().Format("15:04:05"), frame.Event, compact(frame.Data))
	switch frame.Event {
	case event.UserOnline, event.UserOffline:
		fmt.Println(presence.Render(line))
	case event.Error:
		fmt.Println(failure.Render(line))
	default:
		fmt.Println(incoming.Render(line))
	}
}

func compact(data json.RawMessage) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.Marshal(v)
	return string(out)
}
