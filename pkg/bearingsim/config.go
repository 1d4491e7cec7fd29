package bearingsim

import (
	"github.com/ghalamif/bearingsim/internal/adapters/archive"
	"github.com/ghalamif/bearingsim/internal/adapters/inference"
	"github.com/ghalamif/bearingsim/internal/adapters/mqtt"
	"github.com/ghalamif/bearingsim/internal/app/config"
	"github.com/ghalamif/bearingsim/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SourceConfig points at the CSV recording.
	SourceConfig = config.SourceConfig
	// MQTTConfig holds broker address and topics.
	MQTTConfig = mqtt.Config
	// InferenceConfig points at the anomaly-detection model.
	InferenceConfig = inference.Config
	// Policy controls window size and pacing.
	Policy = ports.Policy
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// ArchiveConfig selects the optional summary database.
	ArchiveConfig = archive.Config
	LogConfig     = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
