package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Camera.DeviceID != 0 {
		t.Errorf("expected DeviceID 0, got %d", cfg.Camera.DeviceID)
	}
	if cfg.Camera.Width != 640 {
		t.Errorf("expected Width 640, got %d", cfg.Camera.Width)
	}
	if cfg.Camera.Height != 480 {
		t.Errorf("expected Height 480, got %d", cfg.Camera.Height)
	}
	if cfg.Camera.FPS != 30 {
		t.Errorf("expected FPS 30, got %d", cfg.Camera.FPS)
	}
	if cfg.Depth.ThDepth != 35.0 {
		t.Errorf("expected ThDepth 35.0, got %f", cfg.Depth.ThDepth)
	}
	if cfg.ORB.NFeatures != 1000 {
		t.Errorf("expected NFeatures 1000, got %d", cfg.ORB.NFeatures)
	}
	if cfg.Tracking.Sensor != SensorMonocular {
		t.Errorf("expected Sensor monocular, got %q", cfg.Tracking.Sensor)
	}
	if cfg.IMU.MadgwickGain != 0.1 {
		t.Errorf("expected MadgwickGain 0.1, got %f", cfg.IMU.MadgwickGain)
	}
}

func TestEffectiveFPSFallback(t *testing.T) {
	cfg := Default()
	cfg.Camera.FPS = 0
	if got := cfg.Camera.EffectiveFPS(); got != 30 {
		t.Errorf("EffectiveFPS() with FPS=0 = %d, want 30", got)
	}
	cfg.Camera.FPS = 60
	if got := cfg.Camera.EffectiveFPS(); got != 60 {
		t.Errorf("EffectiveFPS() with FPS=60 = %d, want 60", got)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/tracker.toml")
	if err == nil {
		t.Fatal("expected an error for non-existent file")
	}
	if cfg != nil {
		t.Fatalf("expected nil config for non-existent file, got %+v", cfg)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	content := `
[camera]
device_id = 1
width = 1920
height = 1080
fx = 718.8
fy = 718.8
cx = 607.2
cy = 185.2
fps = 20
bf = 40.0

[depth]
th_depth = 40.0
depth_map_factor = 5000.0

[tracking]
sensor = "rgbd"
use_pattern = true
only_tracking = true

[imu]
madgwick_gain = 0.2
`
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Camera.DeviceID != 1 {
		t.Errorf("expected DeviceID 1, got %d", cfg.Camera.DeviceID)
	}
	if cfg.Camera.Width != 1920 {
		t.Errorf("expected Width 1920, got %d", cfg.Camera.Width)
	}
	if cfg.Camera.FPS != 20 {
		t.Errorf("expected FPS 20, got %d", cfg.Camera.FPS)
	}
	if cfg.Tracking.Sensor != SensorRGBD {
		t.Errorf("expected Sensor rgbd, got %q", cfg.Tracking.Sensor)
	}
	if !cfg.Tracking.UsePattern {
		t.Error("expected UsePattern true")
	}
	if !cfg.Tracking.OnlyTracking {
		t.Error("expected OnlyTracking true")
	}
	if cfg.Depth.ThDepth != 40.0 {
		t.Errorf("expected ThDepth 40.0, got %f", cfg.Depth.ThDepth)
	}
	if cfg.IMU.MadgwickGain != 0.2 {
		t.Errorf("expected MadgwickGain 0.2, got %f", cfg.IMU.MadgwickGain)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(path, []byte("invalid [ toml"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoad_InvalidConfigPropagates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.toml")
	content := "[camera]\nwidth = 0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected FatalConfig-style error for invalid width")
	}
}

func TestValidate_InvalidWidth(t *testing.T) {
	cfg := Default()
	cfg.Camera.Width = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid width")
	}
}

func TestValidate_InvalidHeight(t *testing.T) {
	cfg := Default()
	cfg.Camera.Height = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid height")
	}
}

func TestValidate_InvalidFocalLength(t *testing.T) {
	cfg := Default()
	cfg.Camera.Fx = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid fx")
	}
}

func TestValidate_InvalidThDepth(t *testing.T) {
	cfg := Default()
	cfg.Depth.ThDepth = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative th_depth")
	}
}

func TestValidate_InvalidSensor(t *testing.T) {
	cfg := Default()
	cfg.Tracking.Sensor = "lidar"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown sensor")
	}
}

func TestValidate_InvalidMadgwickGain(t *testing.T) {
	cfg := Default()
	cfg.IMU.MadgwickGain = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative madgwick_gain")
	}
}
