// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/samber/lo"

	"github.com/Tyrowin/linechat/internal/chat"
)

// HTTPDisabled as HTTPAddr turns off the HTTP listener (WebSocket, health and
// metrics endpoints).
const HTTPDisabled = "off"

// Config holds the server configuration settings. Fields are overlaid from
// the environment on top of the defaults.
type Config struct {
	TCPAddr  string `env:"CHAT_TCP_ADDR"`
	HTTPAddr string `env:"CHAT_HTTP_ADDR"`

	HistorySize   int           `env:"CHAT_HISTORY_SIZE"`
	MaxLineLength int           `env:"CHAT_MAX_LINE_LENGTH"`
	SendQueueSize int           `env:"CHAT_SEND_QUEUE_SIZE"`
	WriteTimeout  time.Duration `env:"CHAT_WRITE_TIMEOUT"`

	RateLimitBurst    int           `env:"RATE_LIMIT_BURST"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	ShutdownTimeout time.Duration `env:"CHAT_SHUTDOWN_TIMEOUT"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogPretty bool   `env:"LOG_PRETTY"`
}

func defaultConfig() Config {
	return Config{
		TCPAddr:           ":12345",
		HTTPAddr:          ":8080",
		HistorySize:       chat.DefaultHistorySize,
		MaxLineLength:     4096,
		SendQueueSize:     chat.DefaultSendQueueSize,
		WriteTimeout:      10 * time.Second,
		RateLimitBurst:    0,
		RateLimitInterval: time.Second,
		AllowedOrigins:    "http://localhost:8080",
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// durationVars accept either a Go duration ("1500ms") or whole seconds ("2").
var durationVars = []string{
	"CHAT_WRITE_TIMEOUT",
	"RATE_LIMIT_REFILL_INTERVAL",
	"CHAT_SHUTDOWN_TIMEOUT",
}

// NewConfigFromEnv creates a Config from environment variables. Unset and
// out-of-range values fall back to defaults; a value that cannot be parsed
// is an error.
func NewConfigFromEnv() (*Config, error) {
	return newConfigFromEnviron(os.Environ())
}

func newConfigFromEnviron(environ []string) (*Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("server.NewConfigFromEnv: %w", err)
	}
	secondsAsDuration(es)

	cfg := defaultConfig()
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("server.NewConfigFromEnv: %w", err)
	}
	cfg = SanitizeConfig(cfg)
	return &cfg, nil
}

// secondsAsDuration rewrites bare integers in duration variables as seconds.
func secondsAsDuration(es env.EnvSet) {
	for _, key := range durationVars {
		value, ok := es[key]
		if !ok {
			continue
		}
		if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			es[key] = strconv.Itoa(seconds) + "s"
		}
	}
}

// SanitizeConfig replaces invalid values with their defaults.
func SanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.TCPAddr == "" {
		cfg.TCPAddr = def.TCPAddr
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = HTTPDisabled
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = def.MaxLineLength
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.RateLimitBurst < 0 {
		cfg.RateLimitBurst = def.RateLimitBurst
	}
	if cfg.RateLimitInterval <= 0 {
		cfg.RateLimitInterval = def.RateLimitInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	return cfg
}

// HTTPEnabled reports whether the HTTP listener should run.
func (c Config) HTTPEnabled() bool {
	return c.HTTPAddr != "" && c.HTTPAddr != HTTPDisabled
}

// Origins splits AllowedOrigins on commas.
func (c Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// HubOptions maps the configuration onto chat.Options.
func (c Config) HubOptions(observer chat.Observer) chat.Options {
	return chat.Options{
		HistorySize:       c.HistorySize,
		SendQueueSize:     c.SendQueueSize,
		RateLimitBurst:    c.RateLimitBurst,
		RateLimitInterval: c.RateLimitInterval,
		Observer:          observer,
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return lo.Compact(parts)
}
