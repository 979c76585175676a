package tracker

import (
	"go.uber.org/zap"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/motion"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

// TrackReferenceKeyFrame implements §4.3: seed the pose from last_frame,
// optionally refine it by direct alignment against the reference
// keyframe, match the reference keyframe's MapPoints into frame by
// descriptor projection (if too few land, retrying once against
// last_frame's MapPoints at double the radius), run motion-only BA, and
// succeed iff at least MinReferenceKFInliers survive.
func (t *Tracker) TrackReferenceKeyFrame(frame *mapping.Frame) bool {
	refKF := t.Map.KeyFrame(t.referenceKF)
	if refKF == nil {
		return false
	}

	seed := t.lastFrame.Pose
	refined, ok := t.aligner.Align(t.currentGray, t.currentWidth, t.currentHeight, seed, refKF.Pose)
	if !ok {
		// §8 invariant 7: revert to the seed bit-for-bit on alignment failure.
		refined = seed
	}
	frame.Pose = refined
	frame.HasPose = true

	candidates := observedMapPoints(&refKF.Frame)
	matched := projectAndMatch(frame, candidates, t.Map, ReferenceKFSearchRadius)
	if matched < ReferenceKFMinMatches {
		matched += projectAndMatch(frame, observedMapPoints(t.lastFrame), t.Map, ReferenceKFSearchRadius*2)
	}
	if matched < ReferenceKFMinMatches {
		return false
	}

	inliers := t.optimizer.PoseOptimization(frame, t.Map)
	frame.RefKF = t.referenceKF
	return inliers >= MinReferenceKFInliers
}

// TrackWithMotionModel implements §4.4's non-IMU path: seed from the
// constant-velocity model's prediction instead of last_frame's pose
// verbatim, then the same alignment/match/BA procedure as §4.3 matched
// against last_frame instead of the reference keyframe.
func (t *Tracker) TrackWithMotionModel(frame *mapping.Frame) bool {
	if !t.motionModel.Started() {
		return false
	}
	seed := t.motionModel.Predict(t.lastFrame.Pose)
	return t.trackFromSeed(frame, seed)
}

// TrackWithNewIMUModel implements §4.4's IMU-fused path: the seed rotation
// may be replaced by the Madgwick filter's orientation when it differs
// from last_frame's rotation by more than CurveThreshold.
func (t *Tracker) TrackWithNewIMUModel(frame *mapping.Frame, sample motion.IMUSample, dt float64) bool {
	if t.imuModel == nil {
		return false
	}
	seed := t.imuModel.PredictWithIMU(t.lastFrame.Pose, sample, dt)
	return t.trackFromSeed(frame, seed)
}

// trackFromSeed implements the matching/BA body shared by §4.4's two
// prediction paths: align the predicted seed against last_frame, match
// last_frame's MapPoints into frame by descriptor projection (with the
// same radius-doubling fallback as §4.3), run motion-only BA, and succeed
// iff at least MinReferenceKFInliers survive.
func (t *Tracker) trackFromSeed(frame *mapping.Frame, seed spatial.Pose) bool {
	refined, ok := t.aligner.Align(t.currentGray, t.currentWidth, t.currentHeight, seed, t.lastFrame.Pose)
	if !ok {
		// §8 invariant 7: revert to the seed bit-for-bit on alignment failure.
		refined = seed
	}
	frame.Pose = refined
	frame.HasPose = true

	candidates := observedMapPoints(t.lastFrame)
	matched := projectAndMatch(frame, candidates, t.Map, ReferenceKFSearchRadius)
	if matched < ReferenceKFMinMatches {
		matched += projectAndMatch(frame, candidates, t.Map, ReferenceKFSearchRadius*2)
	}
	if matched < ReferenceKFMinMatches {
		return false
	}

	inliers := t.optimizer.PoseOptimization(frame, t.Map)
	frame.RefKF = t.referenceKF
	return inliers >= MinReferenceKFInliers
}

// RecentRelocFrameWindow is §4.1 step 3's cutoff: frames at or before
// last_reloc_id + RecentRelocFrameWindow force TrackReferenceKeyFrame
// instead of the motion model, since the motion model has only one
// (possibly bad) sample to extrapolate from right after a relocalization.
const RecentRelocFrameWindow = 2

// recentlyRelocalized reports whether frame falls within
// RecentRelocFrameWindow frames of the last successful relocalization
// (§4.1 step 3; also consulted by §4.5 step 4's search-radius scaling).
func (t *Tracker) recentlyRelocalized(frame *mapping.Frame) bool {
	return t.lastRelocID > 0 && frame.ID <= t.lastRelocID+RecentRelocFrameWindow
}

// trackOk implements the Ok-state body of §4.1's per-frame procedure:
// predict/match/solve via the motion model (falling back to the reference
// keyframe), refine against the local map, and on success commit the
// motion model update and evaluate keyframe admission; on failure, demote
// to Lost and, if this happened within EarlyLossKeyFrameThreshold
// keyframes of bootstrap, perform a full system reset (§7's EarlyLoss).
func (t *Tracker) trackOk(frame *mapping.Frame, imu *motion.IMUSample, dt float64) {
	var stepOK bool
	if t.recentlyRelocalized(frame) {
		stepOK = t.TrackReferenceKeyFrame(frame)
	} else if imu != nil && t.imuModel != nil {
		stepOK = t.TrackWithNewIMUModel(frame, *imu, dt)
	} else if t.motionModel.Started() {
		stepOK = t.TrackWithMotionModel(frame)
	} else {
		stepOK = t.TrackReferenceKeyFrame(frame)
	}
	if !stepOK {
		stepOK = t.TrackReferenceKeyFrame(frame)
	}

	ok := stepOK && t.TrackLocalMap(frame)
	if !ok {
		t.onTrackingFailure(frame)
		return
	}

	t.motionModel.Update(frame.Pose)
	t.lastFrame = frame
	t.framesSinceLastKF++
	t.trajectoryRecorder.Record(trajectoryEntry(t.Map, frame, t.referenceKF))

	t.evaluateKeyframeAdmission(frame)
}

func (t *Tracker) onTrackingFailure(frame *mapping.Frame) {
	t.logger.Warn("tracking failure, demoting to Lost", zap.Error(ErrTransientTrackingFailure), zap.Uint64("frame_id", frame.ID))
	t.state = StateLost

	if t.Map.KeyFramesInMap()-t.kfCountAtInit <= EarlyLossKeyFrameThreshold {
		t.logger.Warn("early loss, resetting tracker", zap.Error(ErrEarlyLoss))
		t.resetLocked()
		return
	}
}

func (t *Tracker) evaluateKeyframeAdmission(frame *mapping.Frame) {
	in := keyframepolicyInput(t, frame)
	admit, interruptBA := keyframepolicyDecide(in)
	if interruptBA {
		t.localMapper.InterruptBA()
	}
	if !admit {
		return
	}

	// §5: pin the local mapper against a concurrent stop before committing a
	// new keyframe; if a stop is already requested, skip admission this cycle
	// rather than race a LocalMapping reset.
	if !t.localMapper.SetNotStop(true) {
		return
	}
	defer t.localMapper.SetNotStop(false)

	kf := newKeyFrameFrom(frame)
	kfHandle := t.Map.AddKeyFrame(kf)
	for i, h := range frame.MapPoints {
		if h.Valid() {
			t.Map.AddObservation(h, kfHandle, i)
		}
	}
	t.localMapper.InsertKeyFrame(kfHandle)
	t.referenceKF = kfHandle
	t.framesSinceLastKF = 0
	t.logger.Debug("keyframe admitted", zap.Uint64("kf_id", kf.KFID))
}

func (t *Tracker) resetLocked() {
	t.Map.Clear()
	t.motionModel.Restart()
	t.state = StateNoImages
	t.lastFrame = nil
	t.initialFrame = nil
	t.referenceKF = mapping.NoKeyFrame
	t.lastRelocID = 0
	t.kfCountAtInit = 0
	t.framesSinceLastKF = 0
	t.localMapper.RequestReset()
}

// keyframepolicyInput and keyframepolicyDecide live in keyframe.go.
