package tracker

import (
	"go.uber.org/zap"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
)

// RelocalizationSearchRadius is §4.6's descriptor-projection radius,
// generous relative to §4.3/§4.4 since the seed pose (a keyframe's own
// pose, not a motion prediction) may be far from the true current pose.
const RelocalizationSearchRadius = 64.0

// RelocalizationMinMatches and RelocalizationMinInliers are §4.6's
// candidate-acceptance gates.
const (
	RelocalizationMinMatches = 20
	RelocalizationMinInliers = 10
)

// Relocalization implements §4.6: try every keyframe in the map, most
// recently inserted first, as a pose seed, and accept the first one whose
// descriptor-projection match count and motion-only-BA inlier count both
// clear their thresholds.
func (t *Tracker) Relocalization(frame *mapping.Frame) bool {
	candidates := t.Map.AllKeyFrames()
	for i := len(candidates) - 1; i >= 0; i-- {
		h := candidates[i]
		kf := t.Map.KeyFrame(h)
		if kf == nil {
			continue
		}

		refined, ok := t.aligner.Align(t.currentGray, t.currentWidth, t.currentHeight, kf.Pose, kf.Pose)
		if !ok {
			refined = kf.Pose
		}
		frame.Pose = refined
		frame.HasPose = true

		for j := range frame.MapPoints {
			frame.MapPoints[j] = mapping.NoMapPoint
			frame.Outlier[j] = false
		}
		matched := projectAndMatch(frame, observedMapPoints(&kf.Frame), t.Map, RelocalizationSearchRadius)
		if matched < RelocalizationMinMatches {
			continue
		}

		inliers := t.optimizer.PoseOptimization(frame, t.Map)
		if inliers < RelocalizationMinInliers {
			continue
		}

		frame.RefKF = h
		t.referenceKF = h
		t.lastRelocID = frame.ID
		t.logger.Info("relocalization succeeded", zap.Uint64("kf_id", kf.KFID), zap.Uint64("frame_id", frame.ID))
		return true
	}
	return false
}

// trackLost implements the Lost-state body of §4.1: attempt
// relocalization every frame until it succeeds, at which point tracking
// resumes from state Ok with a freshly restarted motion model.
func (t *Tracker) trackLost(frame *mapping.Frame) {
	if !t.Relocalization(frame) {
		t.logger.Debug("relocalization attempt failed", zap.Uint64("frame_id", frame.ID))
		return
	}

	t.motionModel.Restart()
	t.motionModel.Update(frame.Pose)
	t.lastFrame = frame
	t.framesSinceLastKF = 0
	t.state = StateOk
	t.logger.Info("tracker state transition", zap.String("from", "Lost"), zap.String("to", "Ok"))
}
