// Package main provides the CLI driver for vslamtrack.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jderobotics/vslamtrack/internal/config"
	"github.com/jderobotics/vslamtrack/pkg/align"
	"github.com/jderobotics/vslamtrack/pkg/camera"
	"github.com/jderobotics/vslamtrack/pkg/extract"
	"github.com/jderobotics/vslamtrack/pkg/initialize"
	"github.com/jderobotics/vslamtrack/pkg/localmapper"
	"github.com/jderobotics/vslamtrack/pkg/motion"
	"github.com/jderobotics/vslamtrack/pkg/optimize"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
	"github.com/jderobotics/vslamtrack/pkg/tracker"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	cameraID := flag.Int("camera", -1, "Camera device ID (overrides config)")
	trajectoryPath := flag.String("trajectory", "", "Path to write the recorded trajectory on exit")
	onlyTracking := flag.Bool("only-tracking", false, "Disable keyframe admission (localization-only mode)")
	verbose := flag.Bool("verbose", false, "Enable verbose (debug-level) logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "vslamtrack - visual SLAM tracking front-end\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                               # Run with default settings\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config tracker.toml          # Run with a custom config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -trajectory run.txt           # Dump the trajectory on exit\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -only-tracking                # Localize without mapping\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("vslamtrack version %s\n", version)
		os.Exit(0)
	}

	logCfg := zap.NewProductionConfig()
	if *verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if *cameraID >= 0 {
		cfg.Camera.DeviceID = *cameraID
	}
	if *onlyTracking {
		cfg.Tracking.OnlyTracking = true
	}

	if *verbose {
		logger.Debug("configuration",
			zap.Int("camera_device", cfg.Camera.DeviceID),
			zap.Int("width", cfg.Camera.Width),
			zap.Int("height", cfg.Camera.Height),
			zap.Int("fps", cfg.Camera.EffectiveFPS()),
			zap.String("sensor", string(cfg.Tracking.Sensor)),
			zap.Bool("only_tracking", cfg.Tracking.OnlyTracking),
		)
	}

	source := camera.NewGoCVCamera(cfg.Camera.DeviceID, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.EffectiveFPS())
	if err := source.Open(); err != nil {
		logger.Fatal("failed to open camera", zap.Error(err))
	}
	defer source.Close()

	tr, err := tracker.New(cfg, logger, tracker.Deps{
		Extractor: extract.NewGoCVORB(extract.Params{
			NFeatures:   cfg.ORB.NFeatures,
			ScaleFactor: cfg.ORB.ScaleFactor,
			NLevels:     cfg.ORB.NLevels,
			IniThFAST:   cfg.ORB.IniThFAST,
			MinThFAST:   cfg.ORB.MinThFAST,
		}),
		Aligner:     &align.StubAligner{Ok: false},
		Optimizer:   optimize.NewGaussNewton(),
		LocalMapper: localmapper.NewQueue(),
		Initializer: initialize.NewEightPoint(),
	})
	if err != nil {
		logger.Fatal("failed to construct tracker", zap.Error(err))
	}
	tr.InformOnlyTracking(cfg.Tracking.OnlyTracking)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("tracking started, press Ctrl+C to stop")
	frameCount := uint64(0)
loop:
	for {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			break loop
		default:
		}

		frame, err := source.Read()
		if err != nil {
			logger.Error("camera read failed", zap.Error(err))
			break loop
		}

		pose, err := grabFrame(tr, cfg.Tracking.Sensor, cfg.Camera.EffectiveFPS(), frame)
		if err != nil {
			logger.Error("grab failed", zap.Error(err))
			continue
		}

		frameCount++
		if *verbose && frameCount%30 == 0 {
			logger.Debug("tracking status",
				zap.Uint64("frame", frameCount),
				zap.String("state", tr.State().String()),
				zap.Float64("tx", pose.Translation.X),
				zap.Float64("ty", pose.Translation.Y),
				zap.Float64("tz", pose.Translation.Z),
			)
		}
	}

	if *trajectoryPath != "" {
		if err := dumpTrajectory(tr, *trajectoryPath); err != nil {
			logger.Error("failed to write trajectory", zap.Error(err))
		} else {
			logger.Info("trajectory written", zap.String("path", *trajectoryPath))
		}
	}
}

// grabFrame dispatches a captured camera.Frame to the Grab* method matching
// the configured sensor mode. Fusion mode needs an IMU sample the camera
// Source doesn't supply, so it degrades to a zero-motion sample with dt
// derived from the configured frame rate rather than failing the frame.
func grabFrame(tr *tracker.Tracker, sensor config.Sensor, fps int, f camera.Frame) (spatial.Pose, error) {
	switch sensor {
	case config.SensorRGBD:
		depth := make([]float64, len(f.Depth))
		for i, d := range f.Depth {
			depth[i] = float64(d)
		}
		return tr.GrabRGBD(f.Gray, depth, f.Width, f.Height, f.Timestamp)
	case config.SensorFusion:
		dt := 1.0 / float64(fps)
		return tr.GrabFusion(f.Gray, f.Width, f.Height, dt, motion.IMUSample{}, f.Timestamp)
	default:
		return tr.GrabMonocular(f.Gray, f.Width, f.Height, f.Timestamp)
	}
}

func dumpTrajectory(tr *tracker.Tracker, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trajectory file: %w", err)
	}
	defer out.Close()
	_, err = tr.Trajectory().WriteTo(out)
	return err
}
