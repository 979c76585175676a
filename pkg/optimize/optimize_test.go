package optimize

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

func testIntrinsics() mapping.Intrinsics {
	return mapping.Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240, Width: 640, Height: 480}
}

func TestPoseOptimizationCountsInliers(t *testing.T) {
	m := mapping.NewMap()
	m.Lock()
	defer m.Unlock()

	kfH := m.AddKeyFrame(&mapping.KeyFrame{Frame: *mapping.NewFrame(0, testIntrinsics(), nil, nil, nil)})
	mp := mapping.NewMapPoint(r3.Vec{X: 0, Y: 0, Z: 2}, kfH, mapping.Descriptor{})
	mpH := m.AddMapPoint(mp)

	kps := []mapping.Keypoint{{X: 320, Y: 240}}
	f := mapping.NewFrame(1, testIntrinsics(), kps, make([]mapping.Descriptor, 1), nil)
	f.Pose = spatial.Identity()
	f.MapPoints[0] = mpH

	o := NewGaussNewton()
	inliers := o.PoseOptimization(f, m)

	if inliers != 1 {
		t.Errorf("PoseOptimization inliers = %d, want 1", inliers)
	}
	if f.Outlier[0] {
		t.Error("expected a perfectly-projecting correspondence to survive as an inlier")
	}
}

func TestPoseOptimizationFlagsFarOutlier(t *testing.T) {
	m := mapping.NewMap()
	m.Lock()
	defer m.Unlock()

	kfH := m.AddKeyFrame(&mapping.KeyFrame{Frame: *mapping.NewFrame(0, testIntrinsics(), nil, nil, nil)})
	mp := mapping.NewMapPoint(r3.Vec{X: 0, Y: 0, Z: 2}, kfH, mapping.Descriptor{})
	mpH := m.AddMapPoint(mp)

	// Keypoint is far from where the map point actually projects (320,240).
	kps := []mapping.Keypoint{{X: 10, Y: 10}}
	f := mapping.NewFrame(1, testIntrinsics(), kps, make([]mapping.Descriptor, 1), nil)
	f.Pose = spatial.Identity()
	f.MapPoints[0] = mpH

	o := &GaussNewton{Iterations: 1, Step: 0.0}
	inliers := o.PoseOptimization(f, m)

	if inliers != 0 {
		t.Errorf("PoseOptimization inliers = %d, want 0 for a far outlier", inliers)
	}
	if f.MapPoints[0] != mapping.NoMapPoint {
		t.Error("expected outlier association cleared after PoseOptimization")
	}
}

func TestGlobalBARunsOverAllKeyFrames(t *testing.T) {
	m := mapping.NewMap()
	m.Lock()
	defer m.Unlock()

	kf := &mapping.KeyFrame{Frame: *mapping.NewFrame(0, testIntrinsics(), []mapping.Keypoint{{X: 320, Y: 240}}, make([]mapping.Descriptor, 1), nil)}
	kf.Frame.Pose = spatial.Identity()
	kfH := m.AddKeyFrame(kf)
	mp := mapping.NewMapPoint(r3.Vec{X: 0, Y: 0, Z: 2}, kfH, mapping.Descriptor{})
	mpH := m.AddMapPoint(mp)
	kf.MapPoints[0] = mpH

	o := NewGaussNewton()
	o.GlobalBA(m, 2)
	// GlobalBA must not panic and must leave the keyframe's pose finite.
	if kf.Frame.Pose.Translation.X != kf.Frame.Pose.Translation.X {
		t.Error("GlobalBA produced a NaN translation")
	}
}
