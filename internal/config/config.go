// Package config provides TOML configuration loading for the tracker.
//
// The configuration file supports the following structure:
//
//	[camera]
//	device_id = 0
//	width = 640
//	height = 480
//	fx = 500.0
//	fy = 500.0
//	cx = 320.0
//	cy = 240.0
//	k1 = 0.0
//	k2 = 0.0
//	k3 = 0.0
//	p1 = 0.0
//	p2 = 0.0
//	fps = 30
//	bf = 40.0
//
//	[depth]
//	th_depth = 35.0
//	depth_map_factor = 1000.0
//
//	[orb]
//	n_features = 1000
//	scale_factor = 1.2
//	n_levels = 8
//	ini_th_fast = 20
//	min_th_fast = 7
//
//	[tracking]
//	sensor = "monocular"
//	use_pattern = false
//	only_tracking = false
//
//	[imu]
//	madgwick_gain = 0.1
//
// Example usage:
//
//	cfg, err := config.Load("tracker.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Camera device: %d\n", cfg.Camera.DeviceID)
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Sensor identifies which bootstrap/tracking mode the Tracker should run.
type Sensor string

const (
	SensorMonocular Sensor = "monocular"
	SensorRGBD      Sensor = "rgbd"
	SensorFusion    Sensor = "fusion"
)

// Config represents the complete configuration for the tracker.
type Config struct {
	Camera   CameraConfig   `toml:"camera"`
	Depth    DepthConfig    `toml:"depth"`
	ORB      ORBConfig      `toml:"orb"`
	Tracking TrackingConfig `toml:"tracking"`
	IMU      IMUConfig      `toml:"imu"`
}

// CameraConfig holds pinhole intrinsics, distortion, and capture settings.
type CameraConfig struct {
	// DeviceID is the camera device index (default: 0).
	DeviceID int `toml:"device_id"`
	// Width is the capture width in pixels (default: 640).
	Width int `toml:"width"`
	// Height is the capture height in pixels (default: 480).
	Height int `toml:"height"`
	// Fx, Fy are the focal lengths in pixels.
	Fx float64 `toml:"fx"`
	Fy float64 `toml:"fy"`
	// Cx, Cy are the principal point coordinates in pixels.
	Cx float64 `toml:"cx"`
	Cy float64 `toml:"cy"`
	// K1, K2, K3 are radial distortion coefficients.
	K1 float64 `toml:"k1"`
	K2 float64 `toml:"k2"`
	K3 float64 `toml:"k3"`
	// P1, P2 are tangential distortion coefficients.
	P1 float64 `toml:"p1"`
	P2 float64 `toml:"p2"`
	// FPS is the target/assumed frame rate (default: 30; a configured 0
	// falls back to 30 everywhere fps is used, including KeyframePolicy's
	// MaxFrames).
	FPS int `toml:"fps"`
	// Bf is baseline * fx, used to derive ThDepth in metric units for
	// stereo/RGBD setups.
	Bf float64 `toml:"bf"`
}

// EffectiveFPS returns Camera.FPS, falling back to 30 when unset (§9 open
// question, resolved in SPEC_FULL.md: the fallback applies globally).
func (c CameraConfig) EffectiveFPS() int {
	if c.FPS <= 0 {
		return 30
	}
	return c.FPS
}

// DepthConfig holds RGBD-specific thresholds.
type DepthConfig struct {
	// ThDepth is the close-point threshold, scaled by bf/fx (default: 35.0).
	ThDepth float64 `toml:"th_depth"`
	// DepthMapFactor converts raw depth-image units into meters (default: 1000.0).
	DepthMapFactor float64 `toml:"depth_map_factor"`
}

// ORBConfig tunes the external feature extractor (§1, out of scope for
// implementation here but configured from the same file).
type ORBConfig struct {
	NFeatures   int     `toml:"n_features"`
	ScaleFactor float64 `toml:"scale_factor"`
	NLevels     int     `toml:"n_levels"`
	IniThFAST   int     `toml:"ini_th_fast"`
	MinThFAST   int     `toml:"min_th_fast"`
}

// TrackingConfig selects sensor mode and tracking-only behavior.
type TrackingConfig struct {
	// Sensor selects the bootstrap/tracking path (default: "monocular").
	Sensor Sensor `toml:"sensor"`
	// UsePattern enables the fiducial-pattern bootstrap (§4.2).
	UsePattern bool `toml:"use_pattern"`
	// OnlyTracking, when true, disables keyframe admission outright (see
	// SPEC_FULL.md's resolution of the corresponding open question).
	OnlyTracking bool `toml:"only_tracking"`
}

// IMUConfig tunes the Madgwick orientation filter used in fusion mode.
type IMUConfig struct {
	// MadgwickGain is the filter's beta gain (default: 0.1).
	MadgwickGain float64 `toml:"madgwick_gain"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			DeviceID: 0,
			Width:    640,
			Height:   480,
			Fx:       500.0,
			Fy:       500.0,
			Cx:       320.0,
			Cy:       240.0,
			FPS:      30,
		},
		Depth: DepthConfig{
			ThDepth:        35.0,
			DepthMapFactor: 1000.0,
		},
		ORB: ORBConfig{
			NFeatures:   1000,
			ScaleFactor: 1.2,
			NLevels:     8,
			IniThFAST:   20,
			MinThFAST:   7,
		},
		Tracking: TrackingConfig{
			Sensor: SensorMonocular,
		},
		IMU: IMUConfig{
			MadgwickGain: 0.1,
		},
	}
}

// Load reads and parses a TOML configuration file.
// An empty path returns the default configuration.
// A missing/invalid config path specified explicitly is a FatalConfig error
// (§7): Load propagates it to the caller rather than silently falling back.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 {
		return fmt.Errorf("camera width must be positive, got %d", c.Camera.Width)
	}
	if c.Camera.Height <= 0 {
		return fmt.Errorf("camera height must be positive, got %d", c.Camera.Height)
	}
	if c.Camera.Fx <= 0 || c.Camera.Fy <= 0 {
		return fmt.Errorf("camera fx/fy must be positive, got fx=%f fy=%f", c.Camera.Fx, c.Camera.Fy)
	}
	if c.Depth.ThDepth < 0 {
		return fmt.Errorf("th_depth must be non-negative, got %f", c.Depth.ThDepth)
	}
	if c.ORB.NFeatures <= 0 {
		return fmt.Errorf("orb n_features must be positive, got %d", c.ORB.NFeatures)
	}
	switch c.Tracking.Sensor {
	case SensorMonocular, SensorRGBD, SensorFusion:
	default:
		return fmt.Errorf("tracking sensor must be one of monocular/rgbd/fusion, got %q", c.Tracking.Sensor)
	}
	if c.IMU.MadgwickGain < 0 {
		return fmt.Errorf("madgwick_gain must be non-negative, got %f", c.IMU.MadgwickGain)
	}
	return nil
}
