// Package config holds the tunable server parameters.
// Defaults come from the presets below; a YAML file may override any subset of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the root of the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Network  NetworkConfig  `yaml:"network"`
	Storage  StorageConfig  `yaml:"storage"`
	Referral ReferralConfig `yaml:"referral"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// EngineConfig configures the session loop.
type EngineConfig struct {
	// RegenPeriod is the scheduler period between regeneration ticks.
	RegenPeriod time.Duration `yaml:"regenPeriod"`
	// InboxBuffer is the per-session intent queue size.
	InboxBuffer int `yaml:"inboxBuffer"`
	// JournalRegen also journals every regeneration tick that added energy. Off by default.
	JournalRegen bool `yaml:"journalRegen"`
}

// NetworkConfig configures websocket clients.
type NetworkConfig struct {
	ClientSendBuffer int   `yaml:"clientSendBuffer"`
	MaxMessageSize   int64 `yaml:"maxMessageSize"`
	MaxTouchPoints   int   `yaml:"maxTouchPoints"`
	MaxClients       int   `yaml:"maxClients"`
}

// StorageConfig configures the sqlite journal.
type StorageConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Path            string `yaml:"path"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MemoryRetention int    `yaml:"memoryRetention"`
}

// ReferralConfig configures invite links.
type ReferralConfig struct {
	BotUsername string `yaml:"botUsername"`
	ShareText   string `yaml:"shareText"`
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Engine: EngineConfig{
			RegenPeriod: time.Second,
			InboxBuffer: 64,
		},
		Network: NetworkConfig{
			ClientSendBuffer: 64,
			MaxMessageSize:   512,
			MaxTouchPoints:   10,
			MaxClients:       2000,
		},
		Storage: StorageConfig{
			Enabled:         true,
			Path:            "data/tapper.db",
			MaxOpenConns:    numCPU * 2,
			MemoryRetention: 50000,
		},
		Referral: ReferralConfig{
			BotUsername: "TurboTapperBot",
			ShareText:   "🚀 Tap with me on Turbo Tapper and earn rewards!",
		},
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	c := DefaultConfig()
	c.Engine.InboxBuffer = 8
	c.Network.ClientSendBuffer = 8
	c.Network.MaxClients = 20
	c.Storage.Enabled = false
	c.Storage.MaxOpenConns = 1
	c.Storage.MemoryRetention = 1000
	return c
}

// Load reads a YAML file over DefaultConfig and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalid)
	}
	if c.Engine.RegenPeriod <= 0 {
		return fmt.Errorf("%w: engine.regenPeriod must be positive, got %v", ErrInvalid, c.Engine.RegenPeriod)
	}
	if c.Engine.InboxBuffer < 0 {
		return fmt.Errorf("%w: engine.inboxBuffer must not be negative", ErrInvalid)
	}
	if c.Network.ClientSendBuffer <= 0 {
		return fmt.Errorf("%w: network.clientSendBuffer must be positive", ErrInvalid)
	}
	if c.Network.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: network.maxMessageSize must be positive", ErrInvalid)
	}
	if c.Network.MaxTouchPoints < 1 {
		return fmt.Errorf("%w: network.maxTouchPoints must be at least 1", ErrInvalid)
	}
	if c.Network.MaxClients < 1 {
		return fmt.Errorf("%w: network.maxClients must be at least 1", ErrInvalid)
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required when storage is enabled", ErrInvalid)
	}
	if c.Storage.MemoryRetention < 0 {
		return fmt.Errorf("%w: storage.memoryRetention must not be negative", ErrInvalid)
	}
	return nil
}
