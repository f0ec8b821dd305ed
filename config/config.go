// Package config loads triad settings from YAML and TRIAD_* environment variables
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/triad/audio"
	"github.com/lixenwraith/triad/field"
	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/network"
	"github.com/lixenwraith/triad/parameter"
	"github.com/lixenwraith/triad/particle"
	"github.com/lixenwraith/triad/wshub"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

// Config is the full runtime configuration
type Config struct {
	Sim     SimConfig     `yaml:"sim"`
	Mantle  MantleConfig  `yaml:"mantle"`
	Network NetworkConfig `yaml:"network"`
	Hub     HubConfig     `yaml:"hub"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
}

// SimConfig seeds the particle field and sets the update rate
type SimConfig struct {
	Particles  int           `yaml:"particles"`
	Layers     int           `yaml:"layers"`
	SpawnDepth float32       `yaml:"spawn_depth"`
	Seed       uint64        `yaml:"seed"`
	Tick       time.Duration `yaml:"tick"`

	// Recycle respawns settled particles at spawn depth
	Recycle bool `yaml:"recycle"`

	// ClampOvershoot pins z at 0 on the tick it would cross below
	ClampOvershoot bool `yaml:"clamp_overshoot"`

	CollapseRate  float32 `yaml:"collapse_rate"`
	EntropyFactor float32 `yaml:"entropy_factor"`
}

// MantleConfig tunes the rpm/entropy oscillator
type MantleConfig struct {
	Tick       time.Duration `yaml:"tick"`
	BaseRPM    float64       `yaml:"base_rpm"`
	MaxEntropy float64       `yaml:"max_entropy"`
	TimeStep   float64       `yaml:"time_step"`
}

// NetworkConfig selects the TCP state sync role
type NetworkConfig struct {
	// Role is "none", "server" or "client"
	Role    string `yaml:"role"`
	Address string `yaml:"address"`

	// Heartbeat of 0 disables liveness pings and idle peer drops
	Heartbeat   time.Duration `yaml:"heartbeat"`
	PeerTimeout time.Duration `yaml:"peer_timeout"`
}

// HubConfig is the websocket endpoint for browser clients
type HubConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// AudioConfig controls triad playback
type AudioConfig struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"`
	Preset  string  `yaml:"preset"`
}

// LoggingConfig controls the debug log file
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Dir   string `yaml:"dir"`
}

// Default returns the reference configuration
func Default() *Config {
	return &Config{
		Sim: SimConfig{
			Particles:     parameter.DefaultParticleCount,
			Layers:        parameter.DefaultLayerCount,
			SpawnDepth:    parameter.DefaultSpawnDepth,
			Seed:          1,
			Tick:          parameter.SimUpdateInterval,
			CollapseRate:  parameter.CollapseRate,
			EntropyFactor: parameter.EntropyFactor,
		},
		Mantle: MantleConfig{
			Tick:       parameter.MantleTickRate,
			BaseRPM:    parameter.BaseRPM,
			MaxEntropy: parameter.MaxEntropy,
			TimeStep:   parameter.MantleTimeStep,
		},
		Network: NetworkConfig{
			Role:        "none",
			Address:     parameter.DefaultSyncAddress,
			Heartbeat:   parameter.SyncHeartbeatInterval,
			PeerTimeout: parameter.SyncPeerTimeout,
		},
		Hub: HubConfig{
			Address: parameter.DefaultHubAddress,
			Path:    parameter.DefaultHubPath,
		},
		Audio: AudioConfig{
			Volume: parameter.DefaultMasterVolume,
			Preset: audio.PresetBeethoven,
		},
		Logging: LoggingConfig{
			Dir: parameter.LogDir,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and validates
// An empty path or a missing file yields the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes the configuration as YAML
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	switch {
	case c.Sim.Particles <= 0:
		return fmt.Errorf("%w: sim.particles must be positive, got %d", ErrInvalid, c.Sim.Particles)
	case c.Sim.Layers < 1 || c.Sim.Layers > 256:
		return fmt.Errorf("%w: sim.layers must be in [1, 256], got %d", ErrInvalid, c.Sim.Layers)
	case c.Sim.SpawnDepth <= 0:
		return fmt.Errorf("%w: sim.spawn_depth must be positive, got %v", ErrInvalid, c.Sim.SpawnDepth)
	case c.Sim.Tick <= 0:
		return fmt.Errorf("%w: sim.tick must be positive, got %v", ErrInvalid, c.Sim.Tick)
	case c.Sim.CollapseRate < 0:
		return fmt.Errorf("%w: sim.collapse_rate must be non-negative, got %v", ErrInvalid, c.Sim.CollapseRate)
	case c.Sim.EntropyFactor < 0:
		return fmt.Errorf("%w: sim.entropy_factor must be non-negative, got %v", ErrInvalid, c.Sim.EntropyFactor)
	case c.Mantle.Tick <= 0:
		return fmt.Errorf("%w: mantle.tick must be positive, got %v", ErrInvalid, c.Mantle.Tick)
	case c.Mantle.MaxEntropy <= 0:
		return fmt.Errorf("%w: mantle.max_entropy must be positive, got %v", ErrInvalid, c.Mantle.MaxEntropy)
	case c.Mantle.TimeStep <= 0:
		return fmt.Errorf("%w: mantle.time_step must be positive, got %v", ErrInvalid, c.Mantle.TimeStep)
	case c.Network.Heartbeat < 0:
		return fmt.Errorf("%w: network.heartbeat must be non-negative, got %v", ErrInvalid, c.Network.Heartbeat)
	case c.Network.Heartbeat > 0 && c.Network.PeerTimeout <= c.Network.Heartbeat:
		return fmt.Errorf("%w: network.peer_timeout must exceed network.heartbeat, got %v <= %v",
			ErrInvalid, c.Network.PeerTimeout, c.Network.Heartbeat)
	case c.Audio.Volume < 0 || c.Audio.Volume > 1:
		return fmt.Errorf("%w: audio.volume must be in [0, 1], got %v", ErrInvalid, c.Audio.Volume)
	case !strings.HasPrefix(c.Hub.Path, "/"):
		return fmt.Errorf("%w: hub.path must start with '/', got %q", ErrInvalid, c.Hub.Path)
	case c.Logging.Debug && c.Logging.Dir == "":
		return fmt.Errorf("%w: logging.dir is required when debug is on", ErrInvalid)
	}

	if _, err := network.ParseRole(c.Network.Role); err != nil {
		return fmt.Errorf("%w: network.role: %v", ErrInvalid, err)
	}
	if _, err := audio.Preset(c.Audio.Preset); err != nil {
		return fmt.Errorf("%w: audio.preset: %v", ErrInvalid, err)
	}
	return nil
}

// Dynamics returns the particle collapse constants
func (c *Config) Dynamics() particle.Dynamics {
	return particle.Dynamics{
		CollapseRate:   c.Sim.CollapseRate,
		EntropyFactor:  c.Sim.EntropyFactor,
		ClampOvershoot: c.Sim.ClampOvershoot,
	}
}

// SeedConfig returns the field seeding layout
func (c *Config) SeedConfig() field.SeedConfig {
	return field.SeedConfig{
		Count:      c.Sim.Particles,
		Layers:     c.Sim.Layers,
		SpawnDepth: c.Sim.SpawnDepth,
		Seed:       c.Sim.Seed,
		RPM:        float32(c.Mantle.BaseRPM),
	}
}

// MantleConfig returns the oscillator curve
func (c *Config) MantleConfig() mantle.Config {
	return mantle.Config{
		BaseRPM:    c.Mantle.BaseRPM,
		MaxEntropy: c.Mantle.MaxEntropy,
		TimeStep:   c.Mantle.TimeStep,
	}
}

// NetworkConfig returns the sync transport settings
func (c *Config) NetworkConfig() (*network.Config, error) {
	role, err := network.ParseRole(c.Network.Role)
	if err != nil {
		return nil, err
	}
	cfg := network.RoleConfig(role, c.Network.Address)
	cfg.HeartbeatInterval = c.Network.Heartbeat
	cfg.PeerTimeout = c.Network.PeerTimeout
	return cfg, nil
}

// HubConfig returns the websocket hub settings
func (c *Config) HubConfig() *wshub.Config {
	cfg := wshub.DefaultConfig()
	cfg.Enabled = c.Hub.Enabled
	if c.Hub.Address != "" {
		cfg.Address = c.Hub.Address
	}
	cfg.Path = c.Hub.Path
	return cfg
}

// AudioConfig returns the player settings
func (c *Config) AudioConfig() *audio.Config {
	cfg := audio.DefaultConfig()
	cfg.Enabled = c.Audio.Enabled
	cfg.Volume = c.Audio.Volume
	cfg.Preset = c.Audio.Preset
	return cfg
}

// applyEnvOverrides applies TRIAD_* environment variables; unparsable values are ignored
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRIAD_PARTICLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sim.Particles = n
		}
	}
	if v := os.Getenv("TRIAD_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sim.Layers = n
		}
	}
	if v := os.Getenv("TRIAD_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Sim.Seed = n
		}
	}
	if v := os.Getenv("TRIAD_SIM_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sim.Tick = d
		}
	}
	if v := os.Getenv("TRIAD_RECYCLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sim.Recycle = b
		}
	}
	if v := os.Getenv("TRIAD_CLAMP_OVERSHOOT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sim.ClampOvershoot = b
		}
	}

	if v := os.Getenv("TRIAD_NETWORK_ROLE"); v != "" {
		cfg.Network.Role = v
	}
	if v := os.Getenv("TRIAD_NETWORK_ADDRESS"); v != "" {
		cfg.Network.Address = v
	}

	if v := os.Getenv("TRIAD_HUB_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Hub.Enabled = b
		}
	}
	if v := os.Getenv("TRIAD_HUB_ADDRESS"); v != "" {
		cfg.Hub.Address = v
	}

	if v := os.Getenv("TRIAD_AUDIO_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Audio.Enabled = b
		}
	}
	// Master volume is given as 0-100
	if v := os.Getenv("TRIAD_MASTER_VOLUME"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audio.Volume = min(max(float64(n)/100, 0), 1)
		}
	}
	if v := os.Getenv("TRIAD_AUDIO_PRESET"); v != "" {
		cfg.Audio.Preset = v
	}

	if v := os.Getenv("TRIAD_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.Debug = b
		}
	}
	if v := os.Getenv("TRIAD_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
}
