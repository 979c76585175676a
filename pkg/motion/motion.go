// Package motion implements the polymorphic motion model of §9's design
// note: a shared capability set {Predict, Update, Restart, Started} with a
// constant-velocity variant and an IMU-augmented variant, plus the Madgwick
// orientation filter used to fuse gyro/accelerometer samples in fusion mode.
package motion

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

// Model is the capability set shared by every motion-model variant (§9).
type Model interface {
	// Predict extrapolates from the last known pose to the current frame.
	Predict(last spatial.Pose) spatial.Pose
	// Update folds a newly-solved pose into the model's velocity estimate.
	Update(current spatial.Pose)
	// Restart clears the model back to its cold state.
	Restart()
	// Started reports whether Update has been called since the last Restart.
	Started() bool
}

// ConstantVelocity assumes the camera's relative pose delta between
// consecutive frames stays constant: Predict(T) = deltaT * T.
type ConstantVelocity struct {
	delta   spatial.Pose
	last    spatial.Pose
	started bool
}

// NewConstantVelocity returns a cold constant-velocity model.
func NewConstantVelocity() *ConstantVelocity {
	return &ConstantVelocity{delta: spatial.Identity()}
}

// Predict returns delta*last; with no prior Update, delta is identity so
// Predict degenerates to returning last unchanged.
func (m *ConstantVelocity) Predict(last spatial.Pose) spatial.Pose {
	return spatial.Compose(m.delta, last)
}

// Update recomputes delta from the pose transition since the last Update.
func (m *ConstantVelocity) Update(current spatial.Pose) {
	if m.started {
		m.delta = spatial.Compose(current, m.last.Inverse())
	}
	m.last = current
	m.started = true
}

// Restart returns the model to its cold state (§8 invariant 5: reset()
// leaves MotionModel cold).
func (m *ConstantVelocity) Restart() {
	m.delta = spatial.Identity()
	m.last = spatial.Pose{}
	m.started = false
}

// Started reports whether at least one Update has landed since Restart.
func (m *ConstantVelocity) Started() bool { return m.started }

// IMUSample is one inertial measurement: body-frame acceleration (m/s^2)
// and angular rate (rad/s).
type IMUSample struct {
	Accel [3]float64
	Gyro  [3]float64
}

// IMU wraps a ConstantVelocity translation predictor with a Madgwick
// orientation filter supplying the rotational block, per §4.4's "curve
// replacement" rule: when the angular distance between the last frame's
// rotation and the filter's rotation exceeds CurveThreshold, the filter's
// rotation wins.
type IMU struct {
	cv     ConstantVelocity
	filter *Madgwick

	// CurveThreshold is the angular-distance cutoff (radians), measured from
	// the last frame's rotation, above which the Madgwick rotation replaces
	// the motion model's predicted rotation.
	CurveThreshold float64
}

// DefaultCurveThreshold is §4.4's literal "in a curve" cutoff.
const DefaultCurveThreshold = 0.02

// NewIMU returns a cold IMU-augmented motion model with the given Madgwick
// gain (beta).
func NewIMU(madgwickGain float64) *IMU {
	return &IMU{
		cv:             ConstantVelocity{delta: spatial.Identity()},
		filter:         NewMadgwick(madgwickGain),
		CurveThreshold: DefaultCurveThreshold,
	}
}

// Predict returns the constant-velocity prediction; callers implementing
// §4.4 should call PredictWithIMU instead to get the curve-replacement
// behavior, but Predict alone satisfies the Model interface.
func (m *IMU) Predict(last spatial.Pose) spatial.Pose {
	return m.cv.Predict(last)
}

// PredictWithIMU implements §4.4: it advances the Madgwick filter by dt
// using (accel, gyro), computes the constant-velocity prediction, and
// replaces the rotational block with the filter's output whenever the
// filter's orientation differs from last's rotation by more than
// CurveThreshold radians. Translation always comes from the
// constant-velocity model.
func (m *IMU) PredictWithIMU(last spatial.Pose, sample IMUSample, dt float64) spatial.Pose {
	m.filter.Update(sample.Accel, sample.Gyro, dt)

	predicted := m.cv.Predict(last)
	filterRotation := m.filter.Orientation()

	if spatial.AngularDistance(last.Rotation, filterRotation) > m.CurveThreshold {
		return spatial.NewPose(filterRotation, predicted.Translation)
	}
	return predicted
}

// Update folds a newly-solved pose into the translation model.
func (m *IMU) Update(current spatial.Pose) { m.cv.Update(current) }

// Restart clears both the translation model and the orientation filter.
func (m *IMU) Restart() {
	m.cv.Restart()
	m.filter.Reset()
}

// Started reports whether the translation model has been updated.
func (m *IMU) Started() bool { return m.cv.Started() }

// Filter exposes the underlying Madgwick filter, e.g. for diagnostics.
func (m *IMU) Filter() *Madgwick { return m.filter }

var _ Model = (*ConstantVelocity)(nil)
var _ Model = (*IMU)(nil)

// identityQuat is a zero-rotation reference for this package's tests.
var identityQuat = quat.Number{Real: 1}
