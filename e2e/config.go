package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_DEBUG_FRAMES logs every frame received by the test clients
	DebugFrames   bool          `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	Secret        string        `envconfig:"E2E_JWT_SECRET" default:"e2e-secret"`
	InternalToken string        `envconfig:"E2E_INTERNAL_TOKEN" default:"e2e-internal-token-0123456789"`
	TypingTimeout time.Duration `envconfig:"E2E_TYPING_TIMEOUT" default:"300ms"`
	WaitFor       time.Duration `envconfig:"E2E_WAIT_FOR" default:"2s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
