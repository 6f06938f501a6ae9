package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
	World   WorldConfig   `toml:"world"`
	Debug   DebugConfig   `toml:"debug"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress       string        `toml:"bind_address"`
	PeerAddress       string        `toml:"peer_address"` // simpeer's local bind
	TickRate          time.Duration `toml:"tick_rate"`
	InQueueSize       int           `toml:"in_queue_size"`
	MaxFrameSize      int           `toml:"max_frame_size"`
	MaxPacketsPerTick int           `toml:"max_packets_per_tick"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type WorldConfig struct {
	SpawnList  string `toml:"spawn_list"`
	ScriptsDir string `toml:"scripts_dir"`
	Manifest   string `toml:"manifest"` // empty skips the check
}

type DebugConfig struct {
	Profile string `toml:"profile"` // "", "cpu" or "mem"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// MinFrameSize is the smallest accepted max_frame_size. Every fixed-size
// packet fits in it with room to spare.
const MinFrameSize = 64

func (c *Config) validate() error {
	switch {
	case c.Network.TickRate <= 0:
		return fmt.Errorf("network.tick_rate must be positive, got %s", c.Network.TickRate)
	case c.Network.MaxFrameSize < MinFrameSize:
		return fmt.Errorf("network.max_frame_size must be at least %d, got %d", MinFrameSize, c.Network.MaxFrameSize)
	case c.Network.InQueueSize < 1:
		return fmt.Errorf("network.in_queue_size must be at least 1, got %d", c.Network.InQueueSize)
	}
	switch c.Debug.Profile {
	case "", "cpu", "mem":
	default:
		return fmt.Errorf("debug.profile must be \"\", \"cpu\" or \"mem\", got %q", c.Debug.Profile)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "simwire",
		},
		Network: NetworkConfig{
			BindAddress:       "127.0.0.1:7878",
			PeerAddress:       "127.0.0.1:7777",
			TickRate:          10 * time.Millisecond,
			InQueueSize:       256,
			MaxFrameSize:      4096,
			MaxPacketsPerTick: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		World: WorldConfig{
			SpawnList:  "data/spawn_list.yaml",
			ScriptsDir: "scripts",
			Manifest:   "data/manifest.yaml",
		},
	}
}
