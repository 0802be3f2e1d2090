package tracker

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds the tracking engine thresholds. Values come from defaults,
// optionally a YAML file, then environment variable overrides in that order.
type Config struct {
	// Reports faster than this are rejected as sensor error
	MaxSpeedKMH float64
	// Reports faster than this are accepted but raise an alert event
	ExcessiveSpeedKMH float64
	// How far in the future a report timestamp may be
	ClockSkewTolerance time.Duration
	// How old a report may be before it is dropped
	StalenessBound time.Duration
	// Minimum gap between "inside" heartbeat events per (vehicle, geofence)
	HeartbeatInterval time.Duration
	// Per subscriber event buffer; a full buffer drops events
	SubscriberBufferSize int
}

// UnmarshalYAML accepts duration fields as strings like "30s" or "5m".
// Fields absent from the document keep their current values.
func (config *Config) UnmarshalYAML(node *yaml.Node) error {
	var document struct {
		MaxSpeedKMH          *float64 `yaml:"max_speed_kmh"`
		ExcessiveSpeedKMH    *float64 `yaml:"excessive_speed_kmh"`
		ClockSkewTolerance   *string  `yaml:"clock_skew_tolerance"`
		StalenessBound       *string  `yaml:"staleness_bound"`
		HeartbeatInterval    *string  `yaml:"heartbeat_interval"`
		SubscriberBufferSize *int     `yaml:"subscriber_buffer_size"`
	}

	if err := node.Decode(&document); err != nil {
		return err
	}

	if document.MaxSpeedKMH != nil {
		config.MaxSpeedKMH = *document.MaxSpeedKMH
	}
	if document.ExcessiveSpeedKMH != nil {
		config.ExcessiveSpeedKMH = *document.ExcessiveSpeedKMH
	}
	if document.SubscriberBufferSize != nil {
		config.SubscriberBufferSize = *document.SubscriberBufferSize
	}

	durations := []struct {
		value  *string
		target *time.Duration
	}{
		{document.ClockSkewTolerance, &config.ClockSkewTolerance},
		{document.StalenessBound, &config.StalenessBound},
		{document.HeartbeatInterval, &config.HeartbeatInterval},
	}
	for _, duration := range durations {
		if duration.value == nil {
			continue
		}

		parsed, err := time.ParseDuration(*duration.value)
		if err != nil {
			return err
		}
		*duration.target = parsed
	}

	return nil
}

var defaultConfig = Config{
	MaxSpeedKMH:          200,
	ExcessiveSpeedKMH:    80,
	ClockSkewTolerance:   30 * time.Second,
	StalenessBound:       5 * time.Minute,
	HeartbeatInterval:    60 * time.Second,
	SubscriberBufferSize: 16,
}

// GetConfig returns the tracker configuration from defaults, the YAML file
// named by BUSPULSE_TRACKER_CONFIG if set, and environment variable overrides.
func GetConfig() Config {
	config := defaultConfig

	if path := os.Getenv("BUSPULSE_TRACKER_CONFIG"); path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to read tracker config file")
		} else if err := yaml.Unmarshal(contents, &config); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to parse tracker config file")
		}
	}

	if val := os.Getenv("BUSPULSE_TRACKER_MAX_SPEED_KMH"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.MaxSpeedKMH = parsed
		}
	}

	if val := os.Getenv("BUSPULSE_TRACKER_EXCESSIVE_SPEED_KMH"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.ExcessiveSpeedKMH = parsed
		}
	}

	if val := os.Getenv("BUSPULSE_TRACKER_CLOCK_SKEW_TOLERANCE"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.ClockSkewTolerance = parsed
		}
	}

	if val := os.Getenv("BUSPULSE_TRACKER_STALENESS_BOUND"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.StalenessBound = parsed
		}
	}

	if val := os.Getenv("BUSPULSE_TRACKER_HEARTBEAT_INTERVAL"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.HeartbeatInterval = parsed
		}
	}

	if val := os.Getenv("BUSPULSE_TRACKER_SUBSCRIBER_BUFFER_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			config.SubscriberBufferSize = parsed
		}
	}

	return config
}
