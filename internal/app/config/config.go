package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/bearingsim/internal/adapters/archive"
	"github.com/ghalamif/bearingsim/internal/adapters/inference"
	"github.com/ghalamif/bearingsim/internal/adapters/mqtt"
	"github.com/ghalamif/bearingsim/internal/ports"
)

const envPrefix = "BEARINGSIM_"

type Config struct {
	Source    SourceConfig     `yaml:"source"`
	MQTT      mqtt.Config      `yaml:"mqtt"`
	Inference inference.Config `yaml:"inference"`
	Window    ports.Policy     `yaml:"window"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Archive   archive.Config   `yaml:"archive"`
	Log       LogConfig        `yaml:"log"`
}

// SourceConfig points at the recording. Its first line is always a header.
type SourceConfig struct {
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Addr     string `yaml:"addr"`
	Disabled bool   `yaml:"disabled"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads an optional .env next to the working directory, then the YAML
// file, then BEARINGSIM_* overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	// an explicit zero pacing must survive unmarshalling
	cfg := Config{Window: ports.Policy{Pacing: time.Second}}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Window.WindowSize == 0 {
		c.Window.WindowSize = 10
	}
	if c.Window.Year == 0 {
		c.Window.Year = 2022
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.MQTT.ApplyDefaults()
	c.Inference.ApplyDefaults()
	c.Archive.ApplyDefaults()
}

func (c *Config) validate() error {
	if c.Source.Path == "" {
		return fmt.Errorf("source.path is required")
	}
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt config: %w", err)
	}
	if err := c.Inference.Validate(); err != nil {
		return fmt.Errorf("inference config: %w", err)
	}
	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive config: %w", err)
	}
	if c.Window.WindowSize < 1 {
		return fmt.Errorf("window.size must be >= 1, got %d", c.Window.WindowSize)
	}
	if c.Window.Pacing < 0 || c.Window.ReadingDelay < 0 {
		return fmt.Errorf("window delays must not be negative")
	}
	if c.Window.Year < 1 || c.Window.Year > 9999 {
		return fmt.Errorf("window.year %d out of range", c.Window.Year)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Source.Path, "SOURCE_PATH")
	setString(&c.MQTT.Host, "MQTT_HOST")
	setString(&c.MQTT.ClientID, "MQTT_CLIENT_ID")
	setString(&c.Inference.Endpoint, "INFERENCE_ENDPOINT")
	setString(&c.Inference.ModelID, "MODEL_ID")
	setString(&c.Inference.ProjectID, "PROJECT_ID")
	setString(&c.Inference.Token, "INFERENCE_TOKEN")
	setString(&c.Archive.Driver, "ARCHIVE_DRIVER")
	setString(&c.Archive.DSN, "ARCHIVE_DSN")
	setString(&c.Metrics.Addr, "METRICS_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")

	if names, ok := lookup("SIGNAL_NAMES"); ok {
		c.Inference.SignalNames = nil
		for _, n := range strings.Split(names, ",") {
			c.Inference.SignalNames = append(c.Inference.SignalNames, strings.TrimSpace(n))
		}
	}

	var errs []error
	errs = append(errs,
		setInt(&c.MQTT.Port, "MQTT_PORT"),
		setInt(&c.Window.WindowSize, "WINDOW_SIZE"),
		setInt(&c.Window.Year, "YEAR"),
		setDuration(&c.Window.Pacing, "PACING"),
		setDuration(&c.Window.ReadingDelay, "READING_DELAY"),
		setDuration(&c.Inference.Timeout, "INFERENCE_TIMEOUT"),
	)
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}
