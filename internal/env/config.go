package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// LocalEnvFile is loaded into the environment, if it exists, before the
// config is read
const LocalEnvFile = ".env.local"

type Config struct {
	// IdleTimeout is how long a client has to send each request
	IdleTimeout time.Duration `env:"SPRT_IDLE_TIMEOUT,default=20s"`

	// MaxMessageSize is the most a client may send for one request
	MaxMessageSize int `env:"SPRT_MAX_MESSAGE_SIZE,default=65536"`

	// StatsFile keeps the usage counters between runs, they are only kept
	// in memory if it's empty
	StatsFile string `env:"SPRT_STATS_FILE"`

	LogLevel  string `env:"SPRT_LOG_LEVEL,default=info"`
	DebugHTTP bool   `env:"SPRT_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(LocalEnvFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", LocalEnvFile, err)
		}
	}

	return LoadConfigWith(ctx, envconfig.OsLookuper())
}

// LoadConfigWith reads the config from lookuper instead of the environment
func LoadConfigWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	if config.IdleTimeout <= 0 {
		return nil, fmt.Errorf("SPRT_IDLE_TIMEOUT must be positive, got %s", config.IdleTimeout)
	}

	if config.MaxMessageSize <= 0 {
		return nil, fmt.Errorf("SPRT_MAX_MESSAGE_SIZE must be positive, got %d", config.MaxMessageSize)
	}

	return &config, nil
}
