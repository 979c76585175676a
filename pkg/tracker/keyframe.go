package tracker

import (
	"math"

	"github.com/jderobotics/vslamtrack/internal/config"
	"github.com/jderobotics/vslamtrack/pkg/keyframepolicy"
	"github.com/jderobotics/vslamtrack/pkg/mapping"
)

// closeDepthThreshold converts the configured ThDepth into the same
// metric units as Frame.Depths, matching the bf/fx scaling the RGBD
// close-point conditions (§4.7's C1c) use.
func (t *Tracker) closeDepthThreshold() float64 {
	if t.cfg.Camera.Fx == 0 {
		return t.cfg.Depth.ThDepth
	}
	return t.cfg.Camera.Bf / t.cfg.Camera.Fx * t.cfg.Depth.ThDepth
}

func (t *Tracker) countCloseSignals(frame *mapping.Frame) (tracked, untracked int) {
	threshold := t.closeDepthThreshold()
	for i, d := range frame.Depths {
		if d <= 0 || d >= threshold {
			continue
		}
		if frame.MapPoints[i].Valid() {
			tracked++
		} else {
			untracked++
		}
	}
	return tracked, untracked
}

// keyframepolicyInput translates the Tracker's live state into a
// keyframepolicy.Input for the current frame.
func keyframepolicyInput(t *Tracker, frame *mapping.Frame) keyframepolicy.Input {
	refTracked := 0
	if refKF := t.Map.KeyFrame(t.referenceKF); refKF != nil {
		refTracked = len(observedMapPoints(&refKF.Frame))
	}

	closeTracked, closeUntracked := 0, 0
	if t.cfg.Tracking.Sensor == config.SensorRGBD {
		closeTracked, closeUntracked = t.countCloseSignals(frame)
	}

	return keyframepolicy.Input{
		Sensor:                     t.cfg.Tracking.Sensor,
		OnlyTracking:               t.onlyTrackingMode,
		FramesSinceLastKF:          t.framesSinceLastKF,
		FPS:                        t.cfg.Camera.EffectiveFPS(),
		CurrentInliers:             frame.InlierObservationCount(),
		RefTrackedPoints:           refTracked,
		CloseTrackedCount:          closeTracked,
		CloseUntrackedCandidates:   closeUntracked,
		KeyFramesInMap:             t.Map.KeyFramesInMap(),
		FramesSinceReloc:           framesSinceReloc(t, frame),
		LocalMapperStopped:         t.localMapper.IsStopped(),
		LocalMapperStopRequested:   t.localMapper.StopRequested(),
		LocalMapperAcceptKeyFrames: t.localMapper.AcceptKeyFrames(),
		LocalMapperQueueLength:     t.localMapper.KeyFramesInQueue(),
	}
}

func framesSinceReloc(t *Tracker, frame *mapping.Frame) int {
	if t.lastRelocID == 0 {
		// No relocalization has happened yet; never suppress admission on
		// its account.
		return math.MaxInt32
	}
	return int(frame.ID - t.lastRelocID)
}

func keyframepolicyDecide(in keyframepolicy.Input) (admit bool, interruptBA bool) {
	return keyframepolicy.Decide(in)
}
