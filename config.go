// config.go - Engine configuration loading

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_SAMPLE_RATE   = 48000
	DEFAULT_BPM           = 128
	DEFAULT_MASTER_VOLUME = 0.8

	DEFAULT_LIMITER_THRESHOLD = 0.95
	DEFAULT_LIMITER_RELEASE   = 0.1 // seconds

	DEFAULT_CLIP_THRESHOLD = 0.8
	DEFAULT_CLIP_AMOUNT    = 2.0

	DEFAULT_LISTEN = "127.0.0.1:8090"
)

type EQConfig struct {
	LowHz  float64 `yaml:"low_hz"`
	MidHz  float64 `yaml:"mid_hz"`
	HighHz float64 `yaml:"high_hz"`
}

type LimiterConfig struct {
	Threshold float64 `yaml:"threshold"`
	Release   float64 `yaml:"release"` // seconds
}

type ClipConfig struct {
	Threshold float64 `yaml:"threshold"`
	Amount    float64 `yaml:"amount"`
}

// Config holds the engine's startup parameters. Runtime changes flow
// through the command queue, not through this struct.
type Config struct {
	SampleRate   int     `yaml:"sample_rate"`
	BPM          int     `yaml:"bpm"`
	MasterVolume float64 `yaml:"master_volume"`
	Listen       string  `yaml:"listen"`
	LogLevel     string  `yaml:"log_level"`

	EQ      EQConfig      `yaml:"eq"`
	Limiter LimiterConfig `yaml:"limiter"`
	Clip    ClipConfig    `yaml:"clip"`
}

func DefaultConfig() *Config {
	return &Config{
		SampleRate:   DEFAULT_SAMPLE_RATE,
		BPM:          DEFAULT_BPM,
		MasterVolume: DEFAULT_MASTER_VOLUME,
		Listen:       DEFAULT_LISTEN,
		LogLevel:     "info",
		EQ: EQConfig{
			LowHz:  EQ_LOW_HZ,
			MidHz:  EQ_MID_HZ,
			HighHz: EQ_HIGH_HZ,
		},
		Limiter: LimiterConfig{
			Threshold: DEFAULT_LIMITER_THRESHOLD,
			Release:   DEFAULT_LIMITER_RELEASE,
		},
		Clip: ClipConfig{
			Threshold: DEFAULT_CLIP_THRESHOLD,
			Amount:    DEFAULT_CLIP_AMOUNT,
		},
	}
}

// LoadConfig reads a YAML config over the defaults. An empty path means
// defaults only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.BPM < 1 {
		return fmt.Errorf("bpm must be at least 1, got %d", c.BPM)
	}
	if c.MasterVolume < 0 || c.MasterVolume > 1 {
		return fmt.Errorf("master_volume must be in [0,1], got %g", c.MasterVolume)
	}
	if c.EQ.LowHz <= 0 || c.EQ.MidHz <= 0 || c.EQ.HighHz <= 0 {
		return fmt.Errorf("eq band frequencies must be positive")
	}
	if c.Limiter.Threshold < 0 || c.Limiter.Threshold > 1 {
		return fmt.Errorf("limiter threshold must be in [0,1], got %g", c.Limiter.Threshold)
	}
	if c.Limiter.Release <= 0 {
		return fmt.Errorf("limiter release must be positive, got %g", c.Limiter.Release)
	}
	return nil
}
