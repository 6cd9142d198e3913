package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. STT_LOG_LEVEL.
const EnvPrefix = "STT_"

// Config holds all application configuration.
type Config struct {
	ModelsDir   string        `yaml:"models_dir" env:"MODELS_DIR"`
	LogLevel    string        `yaml:"log_level" env:"LOG_LEVEL"`
	MetricsAddr string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	Audio       AudioConfig   `yaml:"audio" envPrefix:"AUDIO_"`
	Device      DeviceConfig  `yaml:"device" envPrefix:"DEVICE_"`
	Publish     PublishConfig `yaml:"publish" envPrefix:"PUBLISH_"`
}

// AudioConfig holds the tunables around the fixed 16kHz mono capture format.
type AudioConfig struct {
	QueueDepth      int           `yaml:"queue_depth" env:"QUEUE_DEPTH"`
	PollInterval    time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	FileChunkFrames int           `yaml:"file_chunk_frames" env:"FILE_CHUNK_FRAMES"`
}

// DeviceConfig controls input device selection in realtime mode.
type DeviceConfig struct {
	Keywords []string `yaml:"keywords" env:"KEYWORDS" envSeparator:","`
	Name     string   `yaml:"name" env:"NAME"` // exact device name, wins over keywords
}

// PublishConfig enables publishing transcripts to NATS. Empty NATSURL disables it.
type PublishConfig struct {
	NATSURL        string        `yaml:"nats_url" env:"NATS_URL"`
	Subject        string        `yaml:"subject" env:"SUBJECT"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "speech-to-text")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		ModelsDir: "vosk_speech_models",
		LogLevel:  "info",
		Audio: AudioConfig{
			QueueDepth:      64,
			PollInterval:    time.Second,
			FileChunkFrames: 4000,
		},
		Device: DeviceConfig{
			Keywords: []string{"mic", "headset"},
		},
		Publish: PublishConfig{
			Subject:        "stt.transcript",
			ConnectTimeout: 5 * time.Second,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in models_dir is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ModelsDir = expandTilde(cfg.ModelsDir)

	return cfg, nil
}

// ApplyEnv overrides fields from STT_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	c.ModelsDir = expandTilde(c.ModelsDir)
	return nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir must not be empty")
	}

	if c.Audio.QueueDepth <= 0 {
		return fmt.Errorf("audio.queue_depth must be > 0")
	}

	if c.Audio.PollInterval <= 0 {
		return fmt.Errorf("audio.poll_interval must be > 0")
	}

	if c.Audio.FileChunkFrames <= 0 {
		return fmt.Errorf("audio.file_chunk_frames must be > 0")
	}

	for _, kw := range c.Device.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("device.keywords must not contain empty entries")
		}
	}

	if c.Publish.NATSURL != "" {
		if c.Publish.Subject == "" {
			return fmt.Errorf("publish.subject must not be empty when publish.nats_url is set")
		}
		if c.Publish.ConnectTimeout <= 0 {
			return fmt.Errorf("publish.connect_timeout must be > 0")
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
