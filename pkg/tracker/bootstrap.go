package tracker

import (
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/internal/config"
	"github.com/jderobotics/vslamtrack/pkg/initialize"
	"github.com/jderobotics/vslamtrack/pkg/mapping"
)

// tryBootstrap implements §4.2's three bootstrap strategies, dispatched by
// sensor mode. Caller holds the Map lock.
func (t *Tracker) tryBootstrap(frame *mapping.Frame) {
	if t.cfg.Tracking.UsePattern {
		t.tryBootstrapPattern(frame)
		return
	}
	switch t.cfg.Tracking.Sensor {
	case config.SensorRGBD:
		t.tryBootstrapRGBD(frame)
	default:
		t.tryBootstrapMonocular(frame)
	}
}

// tryBootstrapPattern implements §4.2's fiducial-pattern bootstrap: the
// injected PatternDetector is run against the current raw image, and a
// successful detection is handed to initialize.BootstrapPattern to build
// the seed KeyFrame and its MapPoints in one shot.
func (t *Tracker) tryBootstrapPattern(frame *mapping.Frame) {
	points, patternToCamera, ok := t.patternDetector.Detect(t.currentGray, t.currentWidth, t.currentHeight)
	if !ok {
		t.logger.Debug("pattern bootstrap: no fiducial pattern detected", zap.Uint64("frame_id", frame.ID))
		return
	}

	kf, err := initialize.BootstrapPattern(points, patternToCamera, frame.K, t.Map)
	if err != nil {
		t.logger.Warn("pattern bootstrap failure", zap.Error(err))
		return
	}
	// BootstrapPattern builds its own internal Frame starting at id 0; fix it
	// up to the real frame id so §8 invariant 3 (strictly monotone ids) holds.
	kf.ID = frame.ID

	// BootstrapPattern already inserted kf into the Map; as with RGBD, it is
	// always the sole (and therefore last) keyframe at this point.
	handles := t.Map.AllKeyFrames()
	kfHandle := handles[len(handles)-1]
	t.enterOk(kf, kfHandle, &kf.Frame)
}

func (t *Tracker) tryBootstrapRGBD(frame *mapping.Frame) {
	kf, ok := initialize.BootstrapRGBD(frame, t.Map)
	if !ok {
		t.logger.Debug("rgbd bootstrap: not enough valid-depth keypoints yet", zap.Int("keypoints", len(frame.Keypoints)))
		return
	}
	// BootstrapRGBD already inserted kf into the Map; the bootstrap KeyFrame
	// is always the sole keyframe at this point (the Map is empty on entry
	// to NotInitialized), so it is always the last handle in the arena.
	handles := t.Map.AllKeyFrames()
	kfHandle := handles[len(handles)-1]
	t.enterOk(kf, kfHandle, frame)
}

// tryBootstrapMonocular implements §4.2's two-stage monocular bootstrap:
// stage A waits for a first frame with enough keypoints, stage B matches
// against every subsequent frame until the injected Initializer produces a
// two-view decomposition with enough triangulated points.
func (t *Tracker) tryBootstrapMonocular(frame *mapping.Frame) {
	if t.initialFrame == nil {
		if len(frame.Keypoints) < initialize.MinMonocularFirstFrameKeypoints {
			t.logger.Debug("monocular bootstrap: stage A waiting for more keypoints", zap.Int("keypoints", len(frame.Keypoints)))
			return
		}
		t.initialFrame = frame
		t.logger.Debug("monocular bootstrap: stage A captured reference frame", zap.Uint64("frame_id", frame.ID))
		return
	}

	matches := bruteForceMatch(t.initialFrame.Descriptors, frame.Descriptors)
	if len(matches) < initialize.MinMonocularMatches {
		t.logger.Debug("monocular bootstrap: too few matches against reference, restarting stage A", zap.Int("matches", len(matches)))
		t.initialFrame = frame
		return
	}

	result, ok := t.initializer.TryInitialize(t.initialFrame.Keypoints, frame.Keypoints, matches, frame.K)
	if !ok {
		t.logger.Warn("monocular bootstrap failure, restarting stage A", zap.Error(ErrBootstrapFailure))
		t.initialFrame = frame
		return
	}

	scale, ok := medianDepthScale(result)
	if !ok {
		t.logger.Warn("monocular bootstrap: non-positive median depth, restarting stage A", zap.Error(ErrBootstrapFailure))
		t.initialFrame = frame
		return
	}

	tracked := 0
	for i, m := range matches {
		if result.Triangulated[i] && frame.Keypoints[m.CurIdx].Octave == 0 {
			tracked++
		}
	}
	if tracked < initialize.MinMonocularTrackedAtLevel1 {
		t.logger.Warn("monocular bootstrap: too few triangulated points at pyramid level 1, restarting stage A", zap.Int("points", tracked), zap.Error(ErrBootstrapFailure))
		t.initialFrame = frame
		return
	}

	t.commitMonocularBootstrap(frame, matches, result, scale)
}

// bruteForceMatch pairs each reference descriptor, in reference order, with
// its closest still-unclaimed current-frame descriptor under
// maxDescriptorDistance. A current keypoint, once claimed, is never handed
// to a later reference descriptor even if that one is closer, so the
// result is greedy, not mutual-best; each current keypoint is used at most
// once.
func bruteForceMatch(ref, cur []mapping.Descriptor) []initialize.Match {
	claimed := make([]bool, len(cur))
	matches := make([]initialize.Match, 0, len(ref))
	for i, rd := range ref {
		best := -1
		bestDist := maxDescriptorDistance + 1
		for j, cd := range cur {
			if claimed[j] {
				continue
			}
			d := hammingDistance(rd, cd)
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		if best >= 0 {
			claimed[best] = true
			matches = append(matches, initialize.Match{RefIdx: i, CurIdx: best})
		}
	}
	return matches
}

// medianDepthScale computes §4.2's gauge-fixing scale factor: the
// rescaling that pins the triangulated map's median depth to 1.
func medianDepthScale(result initialize.Result) (float64, bool) {
	depths := make([]float64, 0, len(result.Points))
	for i, tri := range result.Triangulated {
		if tri {
			depths = append(depths, result.Points[i].Z)
		}
	}
	if len(depths) == 0 {
		return 0, false
	}
	sort.Float64s(depths)
	median := depths[len(depths)/2]
	if median <= 0 {
		return 0, false
	}
	return 1 / median, true
}

// commitMonocularBootstrap builds the two keyframes and their shared
// MapPoints from a successful two-view decomposition, gauge-fixed to unit
// median depth, and transitions the tracker to Ok.
func (t *Tracker) commitMonocularBootstrap(frame *mapping.Frame, matches []initialize.Match, result initialize.Result, scale float64) {
	refFrame := t.initialFrame

	refFrame.Pose = identityPose()
	refFrame.HasPose = true
	frame.Pose = scalePose(result.Pose, scale)
	frame.HasPose = true

	kf0 := newKeyFrameFrom(refFrame)
	kf0Handle := t.Map.AddKeyFrame(kf0)
	kf1 := newKeyFrameFrom(frame)
	kf1Handle := t.Map.AddKeyFrame(kf1)

	for i, m := range matches {
		if !result.Triangulated[i] {
			continue
		}
		worldPoint := r3.Scale(scale, result.Points[i])
		mp := mapping.NewMapPoint(worldPoint, kf0Handle, refFrame.Descriptors[m.RefIdx])
		mpHandle := t.Map.AddMapPoint(mp)

		kf0.MapPoints[m.RefIdx] = mpHandle
		kf1.MapPoints[m.CurIdx] = mpHandle
		frame.MapPoints[m.CurIdx] = mpHandle
		t.Map.AddObservation(mpHandle, kf0Handle, m.RefIdx)
		t.Map.AddObservation(mpHandle, kf1Handle, m.CurIdx)
	}

	// §4.2: run global BA over the two-keyframe seed map before committing.
	// This implementation gauge-fixes scale up front (medianDepthScale) rather
	// than after BA, so GlobalBA here refines the already-rescaled poses and
	// points instead of the spec's literal pre-rescale ordering.
	t.optimizer.GlobalBA(t.Map, 20)
	// kf1 is a snapshotted copy of frame (newKeyFrameFrom); pull its
	// BA-refined pose back onto frame so the pose enterOk hands to the
	// caller and records as lastFrame matches what the KeyFrame now holds.
	frame.Pose = kf1.Pose

	t.localMapper.InsertKeyFrame(kf0Handle)
	t.logger.Info("monocular bootstrap succeeded",
		zap.Uint64("ref_frame_id", refFrame.ID), zap.Uint64("cur_frame_id", frame.ID),
		zap.Int("triangulated_points", countTriangulated(result.Triangulated)))
	t.enterOk(kf1, kf1Handle, frame)
}

func countTriangulated(tri []bool) int {
	n := 0
	for _, ok := range tri {
		if ok {
			n++
		}
	}
	return n
}
