// Package keyframepolicy implements the keyframe-admission predicate of
// §4.7: whether the current frame should be promoted to a KeyFrame and
// handed off to the LocalMapper.
package keyframepolicy

import "github.com/jderobotics/vslamtrack/internal/config"

// MinFrames is the constant floor used by condition C1b.
const MinFrames = 0

// Input bundles every signal the admission predicate reasons about.
type Input struct {
	Sensor       config.Sensor
	OnlyTracking bool

	// FramesSinceLastKF is the number of tracked frames since the last
	// admitted keyframe.
	FramesSinceLastKF int
	// FPS feeds MaxFrames = EffectiveFPS (0 falls back to 30, per the
	// config package's EffectiveFPS).
	FPS int

	CurrentInliers   int
	RefTrackedPoints int

	// CloseTrackedCount/CloseUntrackedCandidates are RGBD-only signals for
	// condition C1c (close-point insufficiency).
	CloseTrackedCount        int
	CloseUntrackedCandidates int

	KeyFramesInMap   int
	FramesSinceReloc int

	LocalMapperStopped         bool
	LocalMapperStopRequested   bool
	LocalMapperAcceptKeyFrames bool
	LocalMapperQueueLength     int
}

// MaxFrames returns in.FPS, falling back to 30 when unset or non-positive
// (the same fallback config.CameraConfig.EffectiveFPS applies).
func (in Input) MaxFrames() int {
	if in.FPS <= 0 {
		return 30
	}
	return in.FPS
}

// Decide applies §4.7's predicate. admit reports whether a keyframe should
// be created; interruptBA reports whether the LocalMapper's current BA
// pass should be interrupted first (set whenever the mapper is busy but
// admission conditions otherwise hold).
func Decide(in Input) (admit bool, interruptBA bool) {
	if in.OnlyTracking {
		return false, false
	}

	maxFrames := in.MaxFrames()

	if in.LocalMapperStopped || in.LocalMapperStopRequested {
		return false, false
	}
	if in.FramesSinceReloc < maxFrames && in.KeyFramesInMap > maxFrames {
		return false, false
	}

	c1a := in.FramesSinceLastKF >= maxFrames
	queueIdle := in.LocalMapperQueueLength == 0
	c1b := in.FramesSinceLastKF >= MinFrames && queueIdle

	var c1c, needClose bool
	if in.Sensor == config.SensorRGBD {
		ratio := 0.0
		if in.RefTrackedPoints > 0 {
			ratio = float64(in.CurrentInliers) / float64(in.RefTrackedPoints)
		}
		needClose = in.CloseTrackedCount < 100 && in.CloseUntrackedCandidates > 70
		c1c = ratio < 0.25 || needClose
	}

	thRefRatio := 0.9
	if in.Sensor == config.SensorRGBD {
		if in.KeyFramesInMap < 2 {
			thRefRatio = 0.4
		} else {
			thRefRatio = 0.75
		}
	}

	ratioCond := false
	if in.RefTrackedPoints > 0 {
		ratioCond = float64(in.CurrentInliers) < thRefRatio*float64(in.RefTrackedPoints)
	}
	c2 := in.CurrentInliers > 15 && (ratioCond || needClose)

	if !((c1a || c1b || c1c) && c2) {
		return false, false
	}

	if !in.LocalMapperAcceptKeyFrames {
		interruptBA = true
		if in.Sensor == config.SensorRGBD {
			admit = in.LocalMapperQueueLength < 3
		}
		return admit, interruptBA
	}

	return true, false
}
