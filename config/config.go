// Package config loads session configuration from a YAML file, with
// endpoint credentials coming from the environment (optionally a .env file).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	core "github.com/andrassy/viseme-core/core"
	"github.com/andrassy/viseme-core/core/avatar"
	"github.com/andrassy/viseme-core/core/speech"
)

// Config is the complete start-time configuration surface: voice identity,
// system prompt, avatar identity and session limits, plus pipeline and
// reconnect tuning.
type Config struct {
	Speech    SpeechConfig    `yaml:"speech"`
	Avatar    AvatarConfig    `yaml:"avatar"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

type SpeechConfig struct {
	Voice              string `yaml:"voice"`
	SystemPrompt       string `yaml:"system_prompt"`
	TurnDetection      string `yaml:"turn_detection"`
	TranscriptionModel string `yaml:"transcription_model"`
}

type AvatarConfig struct {
	AvatarID       string `yaml:"avatar_id"`
	SessionTimeout int    `yaml:"session_timeout"` // seconds
	IdleTimeout    int    `yaml:"idle_timeout"`    // seconds
}

type PipelineConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

type ReconnectConfig struct {
	MaxAttempts  int     `yaml:"max_attempts"`
	BaseDelayMS  int     `yaml:"base_delay_ms"`
	MaxDelayMS   int     `yaml:"max_delay_ms"`
	JitterFactor float64 `yaml:"jitter_factor"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadEnv loads a .env file into the process environment if one exists.
// Endpoint clients read their API keys from the environment, never from the
// config file.
func LoadEnv() {
	_ = godotenv.Load()
}

// Validate checks the configuration for values the session would reject at
// start time.
func (c *Config) Validate() error {
	if c.Avatar.AvatarID == "" {
		return fmt.Errorf("avatar config: avatar_id is required")
	}
	if c.Avatar.SessionTimeout < 0 {
		return fmt.Errorf("avatar config: session_timeout must not be negative")
	}
	if c.Avatar.IdleTimeout < 0 {
		return fmt.Errorf("avatar config: idle_timeout must not be negative")
	}

	switch c.Speech.TurnDetection {
	case "", string(speech.TurnDetectionServerVAD), string(speech.TurnDetectionNone):
	default:
		return fmt.Errorf("speech config: unknown turn_detection %q", c.Speech.TurnDetection)
	}

	if c.Pipeline.QueueCapacity < 0 {
		return fmt.Errorf("pipeline config: queue_capacity must not be negative")
	}

	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect config: max_attempts must not be negative")
	}
	if c.Reconnect.JitterFactor < 0 || c.Reconnect.JitterFactor > 1 {
		return fmt.Errorf("reconnect config: jitter_factor must be in [0, 1]")
	}

	return nil
}

// SpeechSessionConfig converts to the speech endpoint's configuration.
func (c *Config) SpeechSessionConfig() speech.SessionConfig {
	return speech.SessionConfig{
		Voice:              c.Speech.Voice,
		Instructions:       c.Speech.SystemPrompt,
		TurnDetection:      speech.TurnDetection(c.Speech.TurnDetection),
		TranscriptionModel: c.Speech.TranscriptionModel,
	}
}

// AvatarSessionConfig converts to the rendering endpoint's configuration.
func (c *Config) AvatarSessionConfig() avatar.Config {
	return avatar.Config{
		AvatarID:       c.Avatar.AvatarID,
		SessionTimeout: time.Duration(c.Avatar.SessionTimeout) * time.Second,
		IdleTimeout:    time.Duration(c.Avatar.IdleTimeout) * time.Second,
	}
}

// ReconnectPolicy converts to the health monitor's reconnect policy. Zero
// values fall back to the session defaults.
func (c *Config) ReconnectPolicy() core.ReconnectPolicy {
	return core.ReconnectPolicy{
		MaxAttempts:  c.Reconnect.MaxAttempts,
		BaseDelay:    time.Duration(c.Reconnect.BaseDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(c.Reconnect.MaxDelayMS) * time.Millisecond,
		JitterFactor: c.Reconnect.JitterFactor,
	}
}
