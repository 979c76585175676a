// Package optimize provides the Optimizer contract consumed by the
// Tracker (§6, §9's injected-interface design note): motion-only pose
// refinement and a global bundle-adjustment pass. The implementation here
// is a naive gradient-descent reprojection-error minimizer over the
// translational degrees of freedom, sized for correctness and
// testability rather than production-grade convergence speed; rotation is
// held fixed within a single PoseOptimization call, matching how little
// the rotational block moves between consecutive tracked frames.
package optimize

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

// Optimizer is the contract §6 calls "pose_optimization" / "global_ba".
type Optimizer interface {
	// PoseOptimization refines frame.Pose in place against its current
	// mappoint associations, flags outliers whose reprojection error
	// exceeds the chi-squared gate, and returns the surviving inlier count.
	PoseOptimization(frame *mapping.Frame, m *mapping.Map) int
	// GlobalBA jointly refines every KeyFrame pose in m over the given
	// number of iterations.
	GlobalBA(m *mapping.Map, iterations int)
}

// ReprojectionThreshold is the per-correspondence squared-pixel-residual
// gate (roughly a 95% chi-squared bound for a 2-DOF measurement with unit
// pixel variance).
const ReprojectionThreshold = 5.991

// GaussNewton is a naive iterative reweighting optimizer: each round it
// reprojects every associated MapPoint, marks correspondences whose
// squared pixel error exceeds ReprojectionThreshold as outliers, and
// nudges the pose's translation by a gradient step computed from the
// surviving inliers. It converges adequately for the moderate
// frame-to-frame motion the tracker produces between consecutive frames.
type GaussNewton struct {
	// Iterations is the number of refinement passes PoseOptimization runs.
	Iterations int
	// Step is the gradient-descent step size.
	Step float64
}

// NewGaussNewton returns an optimizer with sane defaults.
func NewGaussNewton() *GaussNewton {
	return &GaussNewton{Iterations: 4, Step: 0.05}
}

// PoseOptimization implements Optimizer.
func (o *GaussNewton) PoseOptimization(frame *mapping.Frame, m *mapping.Map) int {
	iterations := o.Iterations
	if iterations <= 0 {
		iterations = 4
	}
	step := o.Step
	if step <= 0 {
		step = 0.05
	}

	inliers := 0
	for iter := 0; iter < iterations; iter++ {
		inliers = 0
		var grad r3.Vec
		n := 0

		for i, h := range frame.MapPoints {
			if !h.Valid() {
				continue
			}
			mp := m.MapPoint(h)
			if mp == nil {
				frame.MapPoints[i] = mapping.NoMapPoint
				continue
			}

			u, v, ok := frame.Project(mp.Position)
			if !ok {
				frame.Outlier[i] = true
				continue
			}
			kp := frame.Keypoints[i]
			du, dv := u-kp.X, v-kp.Y
			sqErr := du*du + dv*dv

			if sqErr > ReprojectionThreshold {
				frame.Outlier[i] = true
				continue
			}
			frame.Outlier[i] = false
			inliers++

			p := frame.Pose.Transform(mp.Position)
			if p.Z <= 1e-6 {
				continue
			}
			grad.X += du / p.Z
			grad.Y += dv / p.Z
			grad.Z += (du*frame.K.Fx + dv*frame.K.Fy) / (p.Z * p.Z)
			n++
		}

		if n == 0 {
			break
		}
		scale := step / float64(n)
		nudge := r3.Scale(-scale, grad)
		frame.Pose = spatial.NewPose(frame.Pose.Rotation, r3.Add(frame.Pose.Translation, nudge))
	}

	frame.ClearOutlierAssociations()
	return inliers
}

// GlobalBA implements Optimizer with repeated motion-only passes over every
// live KeyFrame, holding MapPoint positions fixed; a full joint
// optimization is out of scope for this naive optimizer.
func (o *GaussNewton) GlobalBA(m *mapping.Map, iterations int) {
	if iterations <= 0 {
		iterations = 1
	}
	for iter := 0; iter < iterations; iter++ {
		for _, h := range m.AllKeyFrames() {
			kf := m.KeyFrame(h)
			if kf == nil {
				continue
			}
			o.PoseOptimization(&kf.Frame, m)
		}
	}
}

var _ Optimizer = (*GaussNewton)(nil)
