// Package spatial provides the SE(3) pose representation and rotation/vector
// helpers shared by the tracker, motion model, and map. Poses are stored as
// a rotation (quaternion) plus a translation (r3.Vec) rather than a raw 4x4
// matrix, matching the teacher's preference for small owned value types over
// opaque matrix blobs; ToMatrix/FromMatrix bridge to the 4x4 homogeneous form
// the specification talks about (T_cw) when one is needed, e.g. for logging
// or for handing a pose to an external optimizer contract.
package spatial

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a rigid-body transform world->camera (T_cw), matching the
// specification's convention. Rotation is unit quaternion; Translation is
// in the same units as the map (meters, after gauge fixing).
type Pose struct {
	Rotation    quat.Number
	Translation r3.Vec
}

// Identity returns T_cw = I, the pose assigned to the first keyframe after
// (re)initialization (invariant 6 of the data model).
func Identity() Pose {
	return Pose{Rotation: quat.Number{Real: 1}}
}

// NewPose builds a pose from an explicit rotation and translation.
func NewPose(rot quat.Number, t r3.Vec) Pose {
	return Pose{Rotation: normalize(rot), Translation: t}
}

// Compose returns p applied after q, i.e. the transform equivalent to first
// applying q then p (p * q in SE(3) composition order).
func Compose(p, q Pose) Pose {
	r := quat.Mul(p.Rotation, q.Rotation)
	t := r3.Add(rotate(p.Rotation, q.Translation), p.Translation)
	return Pose{Rotation: normalize(r), Translation: t}
}

// Inverse returns the inverse transform.
func (p Pose) Inverse() Pose {
	rInv := quat.Conj(p.Rotation)
	tInv := r3.Scale(-1, rotate(rInv, p.Translation))
	return Pose{Rotation: rInv, Translation: tInv}
}

// Transform applies the pose to a point, i.e. computes R*x + t.
func (p Pose) Transform(x r3.Vec) r3.Vec {
	return r3.Add(rotate(p.Rotation, x), p.Translation)
}

// ToMatrix renders the pose as a row-major 4x4 homogeneous matrix, the form
// used in external interfaces (§6) and trajectory dumps.
func (p Pose) ToMatrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	rm := rotationMatrix(p.Rotation)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, rm[i][j])
		}
	}
	m.Set(0, 3, p.Translation.X)
	m.Set(1, 3, p.Translation.Y)
	m.Set(2, 3, p.Translation.Z)
	m.Set(3, 3, 1)
	return m
}

// FromMatrix parses a row-major 4x4 homogeneous matrix back into a Pose.
// Returns an error if m is not 4x4 or the upper-left 3x3 block isn't a valid
// (orthonormal, up to rounding) rotation.
func FromMatrix(m *mat.Dense) (Pose, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return Pose{}, fmt.Errorf("spatial: pose matrix must be 4x4, got %dx%d", r, c)
	}
	var rm [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm[i][j] = m.At(i, j)
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := rm[i][0]*rm[j][0] + rm[i][1]*rm[j][1] + rm[i][2]*rm[j][2]
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > 1e-6 {
				return Pose{}, fmt.Errorf("spatial: upper-left 3x3 block is not orthonormal")
			}
		}
	}
	q := matrixToQuat(rm)
	t := r3.Vec{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
	return Pose{Rotation: q, Translation: t}, nil
}

// IsIdentity reports whether the pose equals T_cw = I within tol.
func (p Pose) IsIdentity(tol float64) bool {
	d := AngularDistance(p.Rotation, quat.Number{Real: 1})
	return d <= tol && r3.Norm(p.Translation) <= tol
}

// AngularDistance returns the angle (radians, in [0, pi]) between the
// rotations represented by two unit quaternions. Used by the IMU motion
// model to decide whether the Madgwick orientation differs enough from the
// last frame's rotation to be substituted in (§4.4, threshold 0.02 rad).
func AngularDistance(a, b quat.Number) float64 {
	a, b = normalize(a), normalize(b)
	rel := quat.Mul(quat.Conj(a), b)
	w := rel.Real
	if w > 1 {
		w = 1
	}
	if w < -1 {
		w = -1
	}
	angle := 2 * math.Acos(math.Abs(w))
	return angle
}

func normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: q.Real / n, Imag: q.Imag / n, Jmag: q.Jmag / n, Kmag: q.Kmag / n}
}

// rotate applies a unit quaternion rotation to a vector: q * v * conj(q).
func rotate(q quat.Number, v r3.Vec) r3.Vec {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	res := quat.Mul(quat.Mul(q, qv), quat.Conj(q))
	return r3.Vec{X: res.Imag, Y: res.Jmag, Z: res.Kmag}
}

func rotationMatrix(q quat.Number) [3][3]float64 {
	q = normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// matrixToQuat converts a rotation matrix to a unit quaternion using the
// standard trace-based (Shepperd) construction.
func matrixToQuat(m [3][3]float64) quat.Number {
	trace := m[0][0] + m[1][1] + m[2][2]
	var q quat.Number
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		q.Real = 0.25 / s
		q.Imag = (m[2][1] - m[1][2]) * s
		q.Jmag = (m[0][2] - m[2][0]) * s
		q.Kmag = (m[1][0] - m[0][1]) * s
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2.0 * math.Sqrt(1.0+m[0][0]-m[1][1]-m[2][2])
		q.Real = (m[2][1] - m[1][2]) / s
		q.Imag = 0.25 * s
		q.Jmag = (m[0][1] + m[1][0]) / s
		q.Kmag = (m[0][2] + m[2][0]) / s
	case m[1][1] > m[2][2]:
		s := 2.0 * math.Sqrt(1.0+m[1][1]-m[0][0]-m[2][2])
		q.Real = (m[0][2] - m[2][0]) / s
		q.Imag = (m[0][1] + m[1][0]) / s
		q.Jmag = 0.25 * s
		q.Kmag = (m[1][2] + m[2][1]) / s
	default:
		s := 2.0 * math.Sqrt(1.0+m[2][2]-m[0][0]-m[1][1])
		q.Real = (m[1][0] - m[0][1]) / s
		q.Imag = (m[0][2] + m[2][0]) / s
		q.Jmag = (m[1][2] + m[2][1]) / s
		q.Kmag = 0.25 * s
	}
	return normalize(q)
}

// RotationMatrixToQuat converts a 3x3 rotation matrix (row-major) to a unit
// quaternion. Exported for use by the monocular initializer, which produces
// its candidate rotations as plain 3x3 matrices from SVD decomposition.
func RotationMatrixToQuat(m [3][3]float64) quat.Number {
	return matrixToQuat(m)
}

// QuatFromAxisAngle builds a unit quaternion for a rotation of angle radians
// about axis (need not be normalized).
func QuatFromAxisAngle(axis r3.Vec, angle float64) quat.Number {
	n := r3.Norm(axis)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	axis = r3.Scale(1/n, axis)
	half := angle / 2
	s := math.Sin(half)
	return quat.Number{Real: math.Cos(half), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}
