// Package tracker implements the Tracker state machine of §4.1: the
// per-frame tracking procedure, the three bootstrap strategies of §4.2,
// keyframe admission (§4.7), and the concurrency contract of §5 (one
// exclusive Map mutation lock held for the whole of each Grab* call).
package tracker

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jderobotics/vslamtrack/internal/config"
	"github.com/jderobotics/vslamtrack/pkg/align"
	"github.com/jderobotics/vslamtrack/pkg/extract"
	"github.com/jderobotics/vslamtrack/pkg/initialize"
	"github.com/jderobotics/vslamtrack/pkg/localmapper"
	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/motion"
	"github.com/jderobotics/vslamtrack/pkg/optimize"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
	"github.com/jderobotics/vslamtrack/pkg/trajectory"
)

// MinLocalMapInliers is §4.5's "Fail the frame iff matches_inliers < 15"
// gate and §4.1's "commit or fail" threshold.
const MinLocalMapInliers = 15

// MinReferenceKFInliers is §4.3's inlier floor.
const MinReferenceKFInliers = 10

// ReferenceKFSearchRadius is §4.3's default descriptor-projection radius.
const ReferenceKFSearchRadius = 32.0

// ReferenceKFMinMatches is §4.3's match-count floor before the
// radius-doubling fallback.
const ReferenceKFMinMatches = 20

// Tracker implements the state machine of §4.1, wiring together the
// external collaborators of §9's "injected interfaces" design note.
type Tracker struct {
	cfg    *config.Config
	logger *zap.Logger

	extractor       extract.Extractor
	aligner         align.Aligner
	optimizer       optimize.Optimizer
	localMapper     localmapper.LocalMapper
	initializer     initialize.Initializer
	patternDetector initialize.PatternDetector

	motionModel motion.Model
	imuModel    *motion.IMU

	Map *mapping.Map

	state State

	lastFrame     *mapping.Frame
	initialFrame  *mapping.Frame
	referenceKF   mapping.KeyFrameHandle
	lastRelocID   uint64
	frameCounter  uint64
	kfCountAtInit int

	framesSinceLastKF int
	onlyTrackingMode  bool

	trajectoryRecorder *trajectory.Recorder

	// currentGray/currentWidth/currentHeight are the raw image backing the
	// frame currently being processed, kept around for the Aligner (§4.3,
	// §4.6), which needs pixel data rather than extracted features.
	currentGray   []byte
	currentWidth  int
	currentHeight int
}

// Deps bundles every injected collaborator the Tracker needs. A nil Map
// defaults to a fresh empty Map; Extractor, Aligner, Optimizer,
// LocalMapper, and Initializer have no default, and New fails with
// ErrFatalConfig if any of them is nil. PatternDetector is only required
// when cfg.Tracking.UsePattern is set.
type Deps struct {
	Extractor       extract.Extractor
	Aligner         align.Aligner
	Optimizer       optimize.Optimizer
	LocalMapper     localmapper.LocalMapper
	Initializer     initialize.Initializer
	PatternDetector initialize.PatternDetector
	Map             *mapping.Map
}

// New constructs a Tracker. cfg is Validate()'d again here; a nil logger
// is replaced by zap.NewNop() (constructor injection, as in the teacher).
func New(cfg *config.Config, logger *zap.Logger, deps Deps) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrFatalConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatalConfig, err)
	}
	if deps.Extractor == nil || deps.Aligner == nil || deps.Optimizer == nil ||
		deps.LocalMapper == nil || deps.Initializer == nil {
		return nil, fmt.Errorf("%w: all of Extractor/Aligner/Optimizer/LocalMapper/Initializer must be supplied", ErrFatalConfig)
	}
	if cfg.Tracking.UsePattern && deps.PatternDetector == nil {
		return nil, fmt.Errorf("%w: PatternDetector must be supplied when UsePattern is enabled", ErrFatalConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := deps.Map
	if m == nil {
		m = mapping.NewMap()
	}

	t := &Tracker{
		cfg:             cfg,
		logger:          logger,
		extractor:       deps.Extractor,
		aligner:         deps.Aligner,
		optimizer:       deps.Optimizer,
		localMapper:     deps.LocalMapper,
		initializer:     deps.Initializer,
		patternDetector: deps.PatternDetector,
		Map:             m,
		state:           StateNoImages,
		referenceKF:     mapping.NoKeyFrame,
	}

	if cfg.Tracking.Sensor == config.SensorFusion {
		imu := motion.NewIMU(cfg.IMU.MadgwickGain)
		t.imuModel = imu
		t.motionModel = imu
	} else {
		t.motionModel = motion.NewConstantVelocity()
	}

	t.trajectoryRecorder = trajectory.NewRecorder()

	return t, nil
}

// InformOnlyTracking toggles tracking-only mode: when true, keyframe
// admission is disabled outright (§9 open question, resolved in
// SPEC_FULL.md).
func (t *Tracker) InformOnlyTracking(enabled bool) {
	t.onlyTrackingMode = enabled
}

// State reports the tracker's current state.
func (t *Tracker) State() State { return t.state }

// Trajectory returns the recorder accumulating every successfully tracked
// frame's relative pose (§6's "Persisted state", §10.3).
func (t *Tracker) Trajectory() *trajectory.Recorder { return t.trajectoryRecorder }

// Reset returns the system to state NoImages with an empty Map and a cold
// motion model (§8 invariant 5).
func (t *Tracker) Reset() {
	t.Map.Lock()
	defer t.Map.Unlock()

	t.resetLocked()
	t.frameCounter = 0
	t.logger.Info("tracker reset", zap.String("state", t.state.String()))
}

func validateImage(gray []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: non-positive image dimensions %dx%d", ErrInputViolation, width, height)
	}
	if len(gray) != width*height {
		return fmt.Errorf("%w: expected single-channel buffer of %d bytes, got %d", ErrInputViolation, width*height, len(gray))
	}
	return nil
}

func (t *Tracker) newFrame(gray []byte, width, height int, depthMap []float64) (*mapping.Frame, error) {
	k := t.intrinsics(width, height)
	keypoints, descriptors, err := t.extractor.Extract(gray, width, height)
	if err != nil {
		return nil, fmt.Errorf("tracker: extracting features: %w", err)
	}
	f := mapping.NewFrame(t.frameCounter, k, keypoints, descriptors, t.sampleDepths(keypoints, depthMap, width, height))
	t.frameCounter++
	return f, nil
}

// sampleDepths converts a raw per-pixel RGBD depth map (nearest-neighbor
// sampled at each keypoint, scaled by the configured DepthMapFactor) into
// the per-keypoint Frame.Depths slice initialize.BootstrapRGBD unprojects.
// Returns nil for a monocular/fusion frame (depthMap empty), which
// NewFrame defaults to the all-⊥ sentinel.
func (t *Tracker) sampleDepths(keypoints []mapping.Keypoint, depthMap []float64, width, height int) []float64 {
	if len(depthMap) == 0 {
		return nil
	}
	factor := t.cfg.Depth.DepthMapFactor
	if factor <= 0 {
		factor = 1
	}
	out := make([]float64, len(keypoints))
	for i, kp := range keypoints {
		x, y := int(kp.X), int(kp.Y)
		if x < 0 || x >= width || y < 0 || y >= height {
			out[i] = -1
			continue
		}
		raw := depthMap[y*width+x]
		if raw <= 0 {
			out[i] = -1
			continue
		}
		out[i] = raw / factor
	}
	return out
}

func (t *Tracker) intrinsics(width, height int) mapping.Intrinsics {
	c := t.cfg.Camera
	return mapping.Intrinsics{
		Fx: c.Fx, Fy: c.Fy, Cx: c.Cx, Cy: c.Cy,
		K1: c.K1, K2: c.K2, K3: c.K3, P1: c.P1, P2: c.P2,
		Width: width, Height: height, Bf: c.Bf,
	}
}

// zeroPose is the "not currently tracking" sentinel §6 calls the "zero
// matrix".
var zeroPose = spatial.Pose{}

// GrabMonocular implements §6's grab_monocular. It returns zeroPose if the
// tracker is not in state Ok after processing the frame.
func (t *Tracker) GrabMonocular(gray []byte, width, height int, timestamp time.Time) (spatial.Pose, error) {
	if err := validateImage(gray, width, height); err != nil {
		return zeroPose, err
	}

	t.Map.Lock()
	defer t.Map.Unlock()

	frame, err := t.newFrame(gray, width, height, nil)
	if err != nil {
		return zeroPose, err
	}

	t.currentGray, t.currentWidth, t.currentHeight = gray, width, height
	t.processFrame(frame, nil, 0)
	if t.state != StateOk {
		return zeroPose, nil
	}
	return frame.Pose, nil
}

// GrabRGBD implements §6's grab_rgbd.
func (t *Tracker) GrabRGBD(gray []byte, depth []float64, width, height int, timestamp time.Time) (spatial.Pose, error) {
	if err := validateImage(gray, width, height); err != nil {
		return zeroPose, err
	}
	if len(depth) != width*height && len(depth) != 0 {
		return zeroPose, fmt.Errorf("%w: depth buffer size mismatch", ErrInputViolation)
	}

	t.Map.Lock()
	defer t.Map.Unlock()

	frame, err := t.newFrame(gray, width, height, depth)
	if err != nil {
		return zeroPose, err
	}

	t.currentGray, t.currentWidth, t.currentHeight = gray, width, height
	t.processFrame(frame, nil, 0)
	if t.state != StateOk {
		return zeroPose, nil
	}
	return frame.Pose, nil
}

// GrabFusion implements §6's grab_fusion.
func (t *Tracker) GrabFusion(gray []byte, width, height int, dt float64, sample motion.IMUSample, timestamp time.Time) (spatial.Pose, error) {
	if err := validateImage(gray, width, height); err != nil {
		return zeroPose, err
	}

	t.Map.Lock()
	defer t.Map.Unlock()

	frame, err := t.newFrame(gray, width, height, nil)
	if err != nil {
		return zeroPose, err
	}

	t.currentGray, t.currentWidth, t.currentHeight = gray, width, height
	t.processFrame(frame, &sample, dt)
	if t.state != StateOk {
		return zeroPose, nil
	}
	return frame.Pose, nil
}

// processFrame implements the state dispatch of §4.1. Caller holds the
// Map lock.
func (t *Tracker) processFrame(frame *mapping.Frame, imu *motion.IMUSample, dt float64) {
	if t.state == StateNoImages {
		t.state = StateNotInitialized
		t.logger.Info("tracker state transition", zap.String("from", "NoImages"), zap.String("to", "NotInitialized"))
	}

	switch t.state {
	case StateNotInitialized:
		t.tryBootstrap(frame)
	case StateOk:
		t.trackOk(frame, imu, dt)
	case StateLost:
		t.trackLost(frame)
	}
}

func (t *Tracker) enterOk(kf *mapping.KeyFrame, kfHandle mapping.KeyFrameHandle, frame *mapping.Frame) {
	t.referenceKF = kfHandle
	t.lastFrame = frame
	t.initialFrame = nil
	t.kfCountAtInit = t.Map.KeyFramesInMap()
	t.state = StateOk
	t.motionModel.Update(frame.Pose)
	t.localMapper.InsertKeyFrame(kfHandle)
	t.logger.Info("tracker state transition", zap.String("from", "NotInitialized"), zap.String("to", "Ok"))
}
