package tracker

import (
	"github.com/jderobotics/vslamtrack/internal/config"
	"github.com/jderobotics/vslamtrack/pkg/mapping"
)

// LocalMapBaseRadius is the unscaled search radius §4.5 multiplies by th
// (1 base, 3 RGBD, 5 near-relocalization) to get the final matching radius.
const LocalMapBaseRadius = 4.0

// MaxLocalKeyFrames is §4.5's bound on the local keyframe set: direct
// voters plus their covisibility neighbors and spanning-tree relatives,
// capped so a densely covisible map can't make TrackLocalMap unbounded.
const MaxLocalKeyFrames = 80

// observedMapPoints returns the live, non-bad MapPoint handles a KeyFrame
// (or Frame) currently associates with its keypoints.
func observedMapPoints(f *mapping.Frame) []mapping.MapPointHandle {
	out := make([]mapping.MapPointHandle, 0, len(f.MapPoints))
	for _, h := range f.MapPoints {
		if h.Valid() {
			out = append(out, h)
		}
	}
	return out
}

// localKeyFrameSet implements §4.5's local-KF-set rebuild: voters are the
// keyframes that share a MapPoint with frame's current associations;
// neighbors adds each voter's covisibility neighbors and spanning-tree
// parent/children, up to MaxLocalKeyFrames. It returns the set together
// with each handle's shared-observation count, used to pick the new
// reference keyframe.
func (t *Tracker) localKeyFrameSet(frame *mapping.Frame) (set []mapping.KeyFrameHandle, votes map[mapping.KeyFrameHandle]int) {
	votes = make(map[mapping.KeyFrameHandle]int)
	for _, h := range frame.MapPoints {
		if !h.Valid() {
			continue
		}
		mp := t.Map.MapPoint(h)
		if mp == nil {
			continue
		}
		for kfHandle := range mp.Observations {
			votes[kfHandle]++
		}
	}

	seen := make(map[mapping.KeyFrameHandle]bool, len(votes))
	set = make([]mapping.KeyFrameHandle, 0, len(votes))
	for h := range votes {
		seen[h] = true
		set = append(set, h)
	}

	for _, h := range append([]mapping.KeyFrameHandle(nil), set...) {
		if len(set) >= MaxLocalKeyFrames {
			break
		}
		kf := t.Map.KeyFrame(h)
		if kf == nil {
			continue
		}
		for neighbor := range kf.Covisibility {
			if !seen[neighbor] && len(set) < MaxLocalKeyFrames {
				seen[neighbor] = true
				set = append(set, neighbor)
			}
		}
		if kf.Parent.Valid() && !seen[kf.Parent] && len(set) < MaxLocalKeyFrames {
			seen[kf.Parent] = true
			set = append(set, kf.Parent)
		}
		for _, child := range kf.Children {
			if !seen[child] && len(set) < MaxLocalKeyFrames {
				seen[child] = true
				set = append(set, child)
			}
		}
	}

	return set, votes
}

// localMapPointSet unions the MapPoints observed by every keyframe in
// localKFs, deduplicated.
func (t *Tracker) localMapPointSet(localKFs []mapping.KeyFrameHandle) []mapping.MapPointHandle {
	seen := make(map[mapping.MapPointHandle]bool)
	out := make([]mapping.MapPointHandle, 0)
	for _, kfHandle := range localKFs {
		kf := t.Map.KeyFrame(kfHandle)
		if kf == nil {
			continue
		}
		for _, h := range kf.MapPoints {
			if !h.Valid() || seen[h] {
				continue
			}
			mp := t.Map.MapPoint(h)
			if mp == nil {
				continue
			}
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// matchRadiusScale returns §4.5's th multiplier: 1 by default, 3 for RGBD,
// 5 within RecentRelocFrameWindow frames of relocalization (the same
// window §4.1 step 3 uses to force TrackReferenceKeyFrame).
func (t *Tracker) matchRadiusScale(frame *mapping.Frame) float64 {
	th := 1.0
	if t.cfg.Tracking.Sensor == config.SensorRGBD {
		th = 3.0
	}
	if t.recentlyRelocalized(frame) {
		th = 5.0
	}
	return th
}

// TrackLocalMap implements §4.5: project the local map into frame, run a
// final motion-only BA, and fail the frame iff fewer than MinLocalMapInliers
// survive. The local KF with the most shared observations becomes the new
// reference keyframe whether or not the frame passes.
func (t *Tracker) TrackLocalMap(frame *mapping.Frame) bool {
	localKFs, votes := t.localKeyFrameSet(frame)
	localPoints := t.localMapPointSet(localKFs)
	t.Map.SetReferenceMapPoints(localPoints)

	radius := LocalMapBaseRadius * t.matchRadiusScale(frame)
	for _, h := range localPoints {
		mp := t.Map.MapPoint(h)
		if mp == nil {
			continue
		}
		if _, _, ok := frame.Project(mp.Position); ok {
			mp.VisibleCount++
		}
	}
	matched := projectAndMatch(frame, localPoints, t.Map, radius)
	for _, h := range frame.MapPoints {
		if !h.Valid() {
			continue
		}
		if mp := t.Map.MapPoint(h); mp != nil {
			mp.FoundCount++
		}
	}
	_ = matched

	inliers := t.optimizer.PoseOptimization(frame, t.Map)

	if best, ok := bestVoter(votes); ok {
		t.referenceKF = best
		frame.RefKF = best
	}

	return inliers >= MinLocalMapInliers
}

func bestVoter(votes map[mapping.KeyFrameHandle]int) (mapping.KeyFrameHandle, bool) {
	var best mapping.KeyFrameHandle
	bestCount := -1
	for h, c := range votes {
		if c > bestCount {
			best, bestCount = h, c
		}
	}
	return best, bestCount >= 0
}
