package internal

import (
	"chat-realtime/errors"
	"chat-realtime/sink"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	NodeID   string `env:"NODE_ID"`

	// Internal hooks for the request layer listen apart from client traffic.
	InternalHost     string `env:"INTERNAL_HOST,default=127.0.0.1"`
	InternalPort     int    `env:"INTERNAL_PORT,default=8081" validate:"min=1,max=65535,nefield=Port"`
	InternalAPIToken string `env:"INTERNAL_API_TOKEN,required=true" validate:"required,min=16"`

	JWTAccessSecret string `env:"JWT_ACCESS_SECRET,required=true" validate:"required"`
	BadgerFilepath  string `env:"BADGER_FILEPATH,required=true" validate:"required"`

	BroadcastDriver  string `env:"BROADCAST_DRIVER,default=local" validate:"oneof=local nats redis"`
	NatsURL          string `env:"NATS_URL,default=nats://localhost:4222" validate:"required_if=BroadcastDriver nats"`
	RedisAddr        string `env:"REDIS_ADDR,default=localhost:6379" validate:"required_if=BroadcastDriver redis"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	BroadcastChannel string `env:"BROADCAST_CHANNEL,default=chat-realtime.fanout" validate:"required"`

	TypingTimeout          time.Duration `env:"TYPING_TIMEOUT,default=3s" validate:"gt=0"`
	OutboundQueueSize      int           `env:"OUTBOUND_QUEUE_SIZE,default=256" validate:"min=1"`
	OutboundOverflowPolicy string        `env:"OUTBOUND_OVERFLOW_POLICY,default=drop-oldest" validate:"oneof=drop-oldest disconnect"`

	WSPingPeriod     time.Duration `env:"WS_PING_PERIOD,default=54s" validate:"gt=0,ltfield=WSPongWait"`
	WSPongWait       time.Duration `env:"WS_PONG_WAIT,default=60s" validate:"gt=0"`
	WSWriteWait      time.Duration `env:"WS_WRITE_WAIT,default=10s" validate:"gt=0"`
	WSMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE,default=4096" validate:"min=64"`

	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=2s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s" validate:"gt=0"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
}

// Validate checks the cross-field rules env tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) OverflowPolicy() sink.OverflowPolicy {
	policy, err := sink.ParseOverflowPolicy(c.OutboundOverflowPolicy)
	if err != nil {
		return sink.DropOldest
	}
	return policy
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) InternalAddress() string {
	return fmt.Sprintf("%s:%d", c.InternalHost, c.InternalPort)
}
