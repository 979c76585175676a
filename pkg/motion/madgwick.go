package motion

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/num/quat"
)

// Madgwick implements the Madgwick gradient-descent AHRS orientation
// filter, fusing gyroscope and accelerometer samples into a running
// orientation estimate. A mutex guards the filter state, so one filter may
// be shared between goroutines.
type Madgwick struct {
	mu sync.Mutex

	beta        float64
	orientation quat.Number
	initialized bool
}

// NewMadgwick creates a filter with the given beta gain (trades off
// gyroscope-integration drift against accelerometer-correction noise).
func NewMadgwick(beta float64) *Madgwick {
	return &Madgwick{
		beta:        beta,
		orientation: quat.Number{Real: 1},
	}
}

// Update advances the filter by dt seconds given body-frame acceleration
// (m/s^2, used only for its direction) and angular rate (rad/s).
func (f *Madgwick) Update(accel, gyro [3]float64, dt float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		f.orientation = quat.Number{Real: 1}
		f.initialized = true
	}

	q := f.orientation
	gx, gy, gz := gyro[0], gyro[1], gyro[2]
	ax, ay, az := accel[0], accel[1], accel[2]

	qDot := quat.Scale(0.5, quat.Mul(q, quat.Number{Imag: gx, Jmag: gy, Kmag: gz}))

	norm := math.Sqrt(ax*ax + ay*ay + az*az)
	if norm > 1e-9 {
		ax, ay, az = ax/norm, ay/norm, az/norm

		q0, q1, q2, q3 := q.Real, q.Imag, q.Jmag, q.Kmag

		f0 := 2*(q1*q3-q0*q2) - ax
		f1 := 2*(q0*q1+q2*q3) - ay
		f2 := 2*(0.5-q1*q1-q2*q2) - az

		j00, j01 := -2 * q2, 2 * q3
		j02, j03 := -2*q0, 2*q1
		j10, j11 := 2*q1, 2*q0
		j12, j13 := 2*q3, 2*q2
		j21, j22 := -4 * q1, -4 * q2

		gx4 := j00*f0 + j10*f1
		gy4 := j01*f0 + j11*f1 + j21*f2
		gz4 := j02*f0 + j12*f1 + j22*f2
		gw4 := j03*f0 + j13*f1

		gradNorm := math.Sqrt(gx4*gx4 + gy4*gy4 + gz4*gz4 + gw4*gw4)
		if gradNorm > 1e-9 {
			gx4, gy4, gz4, gw4 = gx4/gradNorm, gy4/gradNorm, gz4/gradNorm, gw4/gradNorm
		}

		qDot.Real -= f.beta * gx4
		qDot.Imag -= f.beta * gy4
		qDot.Jmag -= f.beta * gz4
		qDot.Kmag -= f.beta * gw4
	}

	q.Real += qDot.Real * dt
	q.Imag += qDot.Imag * dt
	q.Jmag += qDot.Jmag * dt
	q.Kmag += qDot.Kmag * dt

	if n := quat.Abs(q); n > 1e-9 {
		q = quat.Scale(1/n, q)
	}
	f.orientation = q
}

// Orientation returns the filter's current orientation estimate.
func (f *Madgwick) Orientation() quat.Number {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orientation
}

// Reset clears the filter back to the identity orientation.
func (f *Madgwick) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orientation = quat.Number{Real: 1}
	f.initialized = false
}
