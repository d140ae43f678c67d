package internal

import (
	"chat-relay/errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type Config struct {
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	MaxPendingLines int           `env:"MAX_PENDING_LINES,default=0" validate:"min=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	JournalFilepath string        `env:"JOURNAL_FILEPATH"`
	EventBufferSize int           `env:"EVENT_BUFFER_SIZE,default=256" validate:"min=1"`
	CensoredDir     string        `env:"CENSORED_DIR"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
	HealthPort      int           `env:"HEALTH_PORT,default=0" validate:"min=0,max=65535"`
}

// Load reads an optional .env file, then the environment. args are the
// positional command line arguments: a single one overrides PORT.
func Load(args []string) (Config, error) {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}

	switch len(args) {
	case 0:
	case 1:
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return Config{}, fmt.Errorf("%w: %q", errors.ErrInvalidPort, args[0])
		}
		config.Port = port
	default:
		return Config{}, errors.ErrUsage
	}

	if err := validate.Struct(config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if _, err := CharacterRune(config.CharReplacement); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) HealthAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HealthPort))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
