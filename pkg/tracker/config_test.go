package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetConfigDefaults(t *testing.T) {
	t.Setenv("BUSPULSE_TRACKER_CONFIG", "")

	config := GetConfig()
	if config != defaultConfig {
		t.Fatalf("expected defaults, got %+v", config)
	}
}

func TestGetConfigFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	contents := []byte(`
max_speed_kmh: 150
clock_skew_tolerance: 45s
staleness_bound: 10m
subscriber_buffer_size: 32
`)
	if err := os.WriteFile(path, contents, 0644); err != nil {
		t.Fatalf("write config file failed: %v", err)
	}
	t.Setenv("BUSPULSE_TRACKER_CONFIG", path)

	config := GetConfig()

	if config.MaxSpeedKMH != 150 {
		t.Fatalf("expected max speed 150, got %f", config.MaxSpeedKMH)
	}
	if config.ClockSkewTolerance != 45*time.Second {
		t.Fatalf("expected clock skew tolerance 45s, got %s", config.ClockSkewTolerance)
	}
	if config.StalenessBound != 10*time.Minute {
		t.Fatalf("expected staleness bound 10m, got %s", config.StalenessBound)
	}
	if config.SubscriberBufferSize != 32 {
		t.Fatalf("expected buffer size 32, got %d", config.SubscriberBufferSize)
	}

	// Fields absent from the file keep their defaults
	if config.ExcessiveSpeedKMH != defaultConfig.ExcessiveSpeedKMH {
		t.Fatalf("expected default excessive speed, got %f", config.ExcessiveSpeedKMH)
	}
	if config.HeartbeatInterval != defaultConfig.HeartbeatInterval {
		t.Fatalf("expected default heartbeat interval, got %s", config.HeartbeatInterval)
	}
}

func TestGetConfigEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	if err := os.WriteFile(path, []byte("max_speed_kmh: 150\n"), 0644); err != nil {
		t.Fatalf("write config file failed: %v", err)
	}
	t.Setenv("BUSPULSE_TRACKER_CONFIG", path)
	t.Setenv("BUSPULSE_TRACKER_MAX_SPEED_KMH", "120")
	t.Setenv("BUSPULSE_TRACKER_HEARTBEAT_INTERVAL", "90s")
	t.Setenv("BUSPULSE_TRACKER_SUBSCRIBER_BUFFER_SIZE", "64")

	config := GetConfig()

	if config.MaxSpeedKMH != 120 {
		t.Fatalf("expected env override 120, got %f", config.MaxSpeedKMH)
	}
	if config.HeartbeatInterval != 90*time.Second {
		t.Fatalf("expected heartbeat interval 90s, got %s", config.HeartbeatInterval)
	}
	if config.SubscriberBufferSize != 64 {
		t.Fatalf("expected buffer size 64, got %d", config.SubscriberBufferSize)
	}
}

func TestGetConfigMalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	if err := os.WriteFile(path, []byte("staleness_bound: [not, a, duration]\n"), 0644); err != nil {
		t.Fatalf("write config file failed: %v", err)
	}
	t.Setenv("BUSPULSE_TRACKER_CONFIG", path)

	config := GetConfig()
	if config.StalenessBound != defaultConfig.StalenessBound {
		t.Fatalf("expected default staleness bound, got %s", config.StalenessBound)
	}
}
