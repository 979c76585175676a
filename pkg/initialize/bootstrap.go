package initialize

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

// MinRGBDKeypoints is §4.2's RGBD bootstrap keypoint-count requirement
// (§8 invariant 9 exercises the 500/501 boundary).
const MinRGBDKeypoints = 500

// MinMonocularFirstFrameKeypoints is §4.2's stage-A threshold.
const MinMonocularFirstFrameKeypoints = 100

// MinMonocularMatches is §4.2's stage-B match-count floor before attempting
// essential-matrix recovery.
const MinMonocularMatches = 100

// MinMonocularTrackedAtLevel1 is §4.2's "tracked-points-at-level-1" floor;
// this implementation approximates scale-pyramid level 1 as octave == 0
// keypoints, since only the extractor assigns true scale levels.
const MinMonocularTrackedAtLevel1 = 100

// BootstrapRGBD implements §4.2's RGBD/Stereo bootstrap: it counts
// keypoints with valid (positive) depth and, if there are more than
// MinRGBDKeypoints, unprojects every one of them into a MapPoint anchored
// to a brand-new identity-pose KeyFrame.
//
// Returns ok=false (not a bootstrap failure — just "not enough data yet")
// when the valid-depth count is at or below the threshold.
func BootstrapRGBD(frame *mapping.Frame, m *mapping.Map) (kf *mapping.KeyFrame, ok bool) {
	validDepth := 0
	for _, d := range frame.Depths {
		if d > 0 {
			validDepth++
		}
	}
	if validDepth <= MinRGBDKeypoints {
		return nil, false
	}

	frame.Pose = spatial.Identity()
	frame.HasPose = true

	kfCopy := *frame
	kfCopy.MapPoints = append([]mapping.MapPointHandle(nil), frame.MapPoints...)
	kfCopy.Outlier = append([]bool(nil), frame.Outlier...)
	newKF := &mapping.KeyFrame{Frame: kfCopy}
	kfHandle := m.AddKeyFrame(newKF)

	for i, d := range frame.Depths {
		if d <= 0 {
			continue
		}
		kp := frame.Keypoints[i]
		camPoint := r3.Vec{
			X: (kp.X - frame.K.Cx) * d / frame.K.Fx,
			Y: (kp.Y - frame.K.Cy) * d / frame.K.Fy,
			Z: d,
		}
		mp := mapping.NewMapPoint(camPoint, kfHandle, frame.Descriptors[i])
		mpHandle := m.AddMapPoint(mp)
		newKF.MapPoints[i] = mpHandle
		frame.MapPoints[i] = mpHandle
		m.AddObservation(mpHandle, kfHandle, i)
	}

	return newKF, true
}

// PatternPoint is a detected fiducial marker point together with its known
// position in the pattern's own coordinate frame.
type PatternPoint struct {
	PixelX, PixelY   float64
	PatternX         float64
	PatternY         float64
	PatternZ         float64
	DescriptorSource mapping.Descriptor
}

// PatternDetector is the fiducial-marker detection contract for §4.2's
// Pattern bootstrap mode (§9's injected-interface design note): given a
// grayscale image, it reports whether a fiducial pattern was found and,
// if so, the detected pattern points plus the pattern's pose in the
// camera frame.
type PatternDetector interface {
	Detect(gray []byte, width, height int) (points []PatternPoint, patternToCamera spatial.Pose, ok bool)
}

// BootstrapPattern implements §4.2's fiducial bootstrap: given detected
// pattern points and the pattern-to-camera pose produced by the external
// fiducial detector, it creates one KeyFrame and one MapPoint per detected
// point.
func BootstrapPattern(points []PatternPoint, patternToCamera spatial.Pose, k mapping.Intrinsics, m *mapping.Map) (*mapping.KeyFrame, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("initialize: pattern bootstrap requires at least one detected point")
	}

	kps := make([]mapping.Keypoint, len(points))
	descriptors := make([]mapping.Descriptor, len(points))
	for i, p := range points {
		kps[i] = mapping.Keypoint{X: p.PixelX, Y: p.PixelY}
		descriptors[i] = p.DescriptorSource
	}

	frame := mapping.NewFrame(0, k, kps, descriptors, nil)
	frame.Pose = spatial.Identity()
	frame.HasPose = true

	kf := &mapping.KeyFrame{Frame: *frame}
	kfHandle := m.AddKeyFrame(kf)

	for i, p := range points {
		worldPoint := patternToCamera.Transform(r3.Vec{X: p.PatternX, Y: p.PatternY, Z: p.PatternZ})
		mp := mapping.NewMapPoint(worldPoint, kfHandle, descriptors[i])
		mpHandle := m.AddMapPoint(mp)
		kf.MapPoints[i] = mpHandle
		m.AddObservation(mpHandle, kfHandle, i)
	}

	return kf, nil
}
