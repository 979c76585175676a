package initialize

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

func testIntrinsics() mapping.Intrinsics {
	return mapping.Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240, Width: 640, Height: 480}
}

func TestBootstrapRGBDRejectsBelowThreshold(t *testing.T) {
	m := mapping.NewMap()
	m.Lock()
	defer m.Unlock()

	depths := make([]float64, MinRGBDKeypoints-1)
	for i := range depths {
		depths[i] = 1.0
	}
	frame := mapping.NewFrame(0, testIntrinsics(), make([]mapping.Keypoint, len(depths)), make([]mapping.Descriptor, len(depths)), depths)

	_, ok := BootstrapRGBD(frame, m)
	if ok {
		t.Error("expected bootstrap to fail with 499 valid-depth keypoints")
	}
}

func TestBootstrapRGBDAcceptsAtThreshold(t *testing.T) {
	m := mapping.NewMap()
	m.Lock()
	defer m.Unlock()

	depths := make([]float64, MinRGBDKeypoints+1)
	kps := make([]mapping.Keypoint, len(depths))
	for i := range depths {
		depths[i] = 1.5
		kps[i] = mapping.Keypoint{X: 320, Y: 240}
	}
	frame := mapping.NewFrame(0, testIntrinsics(), kps, make([]mapping.Descriptor, len(depths)), depths)

	kf, ok := BootstrapRGBD(frame, m)
	if !ok {
		t.Fatal("expected bootstrap to succeed with 501 valid-depth keypoints")
	}
	if !kf.Frame.Pose.IsIdentity(1e-9) {
		t.Error("expected the bootstrap keyframe's pose to be identity")
	}
	if got := len(m.AllMapPoints()); got < MinRGBDKeypoints {
		t.Errorf("expected at least %d map points, got %d", MinRGBDKeypoints, got)
	}
}

func TestBootstrapPatternRequiresPoints(t *testing.T) {
	m := mapping.NewMap()
	m.Lock()
	defer m.Unlock()

	if _, err := BootstrapPattern(nil, spatial.Identity(), testIntrinsics(), m); err == nil {
		t.Error("expected error bootstrapping from zero pattern points")
	}
}

func TestBootstrapPatternCreatesMapPoints(t *testing.T) {
	m := mapping.NewMap()
	m.Lock()
	defer m.Unlock()

	points := []PatternPoint{
		{PixelX: 300, PixelY: 200, PatternX: 0, PatternY: 0, PatternZ: 1},
		{PixelX: 340, PixelY: 200, PatternX: 0.1, PatternY: 0, PatternZ: 1},
	}
	kf, err := BootstrapPattern(points, spatial.Identity(), testIntrinsics(), m)
	if err != nil {
		t.Fatalf("BootstrapPattern: %v", err)
	}
	if len(m.AllMapPoints()) != 2 {
		t.Errorf("expected 2 map points, got %d", len(m.AllMapPoints()))
	}
	if !kf.Frame.Pose.IsIdentity(1e-9) {
		t.Error("expected pattern bootstrap keyframe pose to be identity")
	}
}

func syntheticMatches(n int) ([]mapping.Keypoint, []mapping.Keypoint, []Match, []r3.Vec) {
	k := testIntrinsics()
	truePose := spatial.NewPose(spatial.QuatFromAxisAngle(r3.Vec{Y: 1}, 0.2), r3.Vec{X: 0.3})

	refKP := make([]mapping.Keypoint, n)
	curKP := make([]mapping.Keypoint, n)
	matches := make([]Match, n)
	worldPoints := make([]r3.Vec, n)

	for i := 0; i < n; i++ {
		wp := r3.Vec{X: float64(i%5) * 0.2, Y: float64(i%3) * 0.15, Z: 3 + float64(i)*0.1}
		worldPoints[i] = wp

		u1 := k.Fx*wp.X/wp.Z + k.Cx
		v1 := k.Fy*wp.Y/wp.Z + k.Cy
		refKP[i] = mapping.Keypoint{X: u1, Y: v1}

		p2 := truePose.Transform(wp)
		u2 := k.Fx*p2.X/p2.Z + k.Cx
		v2 := k.Fy*p2.Y/p2.Z + k.Cy
		curKP[i] = mapping.Keypoint{X: u2, Y: v2}

		matches[i] = Match{RefIdx: i, CurIdx: i}
	}
	return refKP, curKP, matches, worldPoints
}

func TestEightPointRecoversRotationUpToSign(t *testing.T) {
	refKP, curKP, matches, _ := syntheticMatches(20)
	init := NewEightPoint()

	result, ok := init.TryInitialize(refKP, curKP, matches, testIntrinsics())
	if !ok {
		t.Fatal("expected TryInitialize to succeed on well-conditioned synthetic correspondences")
	}

	wantAngle := 0.2
	gotAngle := 2 * math.Asin(math.Min(1, r3.Norm(r3.Vec{
		X: result.Pose.Rotation.Imag,
		Y: result.Pose.Rotation.Jmag,
		Z: result.Pose.Rotation.Kmag,
	})))
	if math.Abs(gotAngle-wantAngle) > 0.05 {
		t.Errorf("recovered rotation angle = %v, want approximately %v", gotAngle, wantAngle)
	}
}

func TestEightPointRejectsTooFewMatches(t *testing.T) {
	refKP, curKP, matches, _ := syntheticMatches(4)
	init := NewEightPoint()
	if _, ok := init.TryInitialize(refKP, curKP, matches, testIntrinsics()); ok {
		t.Error("expected TryInitialize to reject fewer than 8 matches")
	}
}
