package initialize

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

// EightPoint is a deterministic (non-RANSAC) essential-matrix Initializer:
// the normalized eight-point algorithm followed by SVD-based R/t
// decomposition and a cheirality vote to pick the correct of the four
// candidate poses. It uses every match it is given: no RANSAC loop runs
// here or in the Tracker, which passes its brute-force descriptor matches
// unfiltered, so outlier matches enter the estimate and
// MinRANSACIterations is not applied anywhere.
type EightPoint struct{}

// NewEightPoint returns an EightPoint initializer.
func NewEightPoint() *EightPoint { return &EightPoint{} }

// TryInitialize implements Initializer.
func (EightPoint) TryInitialize(refKP, curKP []mapping.Keypoint, matches []Match, k mapping.Intrinsics) (Result, bool) {
	if len(matches) < 8 {
		return Result{}, false
	}

	refN := make([]r3.Vec, len(matches))
	curN := make([]r3.Vec, len(matches))
	for i, mt := range matches {
		refN[i] = normalize(refKP[mt.RefIdx], k)
		curN[i] = normalize(curKP[mt.CurIdx], k)
	}

	e, ok := estimateEssential(refN, curN)
	if !ok {
		return Result{}, false
	}

	pose, points, mask, ok := recoverPose(e, refN, curN)
	if !ok {
		return Result{}, false
	}

	return Result{Pose: pose, Points: points, Triangulated: mask}, true
}

// normalize maps a pixel-space keypoint to calibrated (K^-1 * [u,v,1])
// coordinates.
func normalize(kp mapping.Keypoint, k mapping.Intrinsics) r3.Vec {
	return r3.Vec{
		X: (kp.X - k.Cx) / k.Fx,
		Y: (kp.Y - k.Cy) / k.Fy,
		Z: 1,
	}
}

// estimateEssential runs the normalized eight-point algorithm: build the
// constraint matrix A from x2^T E x1 = 0 for each correspondence, take the
// right singular vector of smallest singular value as vec(E), then project
// onto the essential-matrix manifold (equal nonzero singular values,
// enforced by replacing the singular values with their average, zeroing
// the third).
func estimateEssential(ref, cur []r3.Vec) (*mat.Dense, bool) {
	n := len(ref)
	a := mat.NewDense(n, 9, nil)
	for i := 0; i < n; i++ {
		x1, y1 := ref[i].X, ref[i].Y
		x2, y2 := cur[i].X, cur[i].Y
		a.SetRow(i, []float64{
			x2 * x1, x2 * y1, x2,
			y2 * x1, y2 * y1, y2,
			x1, y1, 1,
		})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, false
	}
	var v mat.Dense
	svd.VTo(&v)
	_, cols := v.Dims()
	eVec := mat.Col(nil, cols-1, &v)

	e := mat.NewDense(3, 3, eVec)

	var esvd mat.SVD
	if !esvd.Factorize(e, mat.SVDFull) {
		return nil, false
	}
	sv := esvd.Values(nil)
	avg := (sv[0] + sv[1]) / 2
	var u, vt mat.Dense
	esvd.UTo(&u)
	esvd.VTo(&vt)
	sigma := mat.NewDiagDense(3, []float64{avg, avg, 0})

	var tmp mat.Dense
	tmp.Mul(&u, sigma)
	var eHat mat.Dense
	eHat.Mul(&tmp, vt.T())

	return &eHat, true
}

// recoverPose decomposes E into the four candidate (R, t) poses via the
// standard W-matrix construction, triangulates every correspondence
// against each candidate, and keeps the candidate with the most points in
// front of both cameras.
func recoverPose(e *mat.Dense, ref, cur []r3.Vec) (spatial.Pose, []r3.Vec, []bool, bool) {
	var svd mat.SVD
	if !svd.Factorize(e, mat.SVDFull) {
		return spatial.Pose{}, nil, nil, false
	}
	var u, vt mat.Dense
	svd.UTo(&u)
	svd.VTo(&vt)

	w := mat.NewDense(3, 3, []float64{0, -1, 0, 1, 0, 0, 0, 0, 1})

	var r1, r2, tmp mat.Dense
	tmp.Mul(&u, w)
	r1.Mul(&tmp, &vt)
	var tmp2 mat.Dense
	tmp2.Mul(&u, w.T())
	r2.Mul(&tmp2, &vt)

	// A valid rotation has det +1; the W-matrix construction can yield -1
	// depending on the sign ambiguity in U/V, in which case negate it.
	if mat.Det(&r1) < 0 {
		r1.Scale(-1, &r1)
	}
	if mat.Det(&r2) < 0 {
		r2.Scale(-1, &r2)
	}

	tCol := mat.Col(nil, 2, &u)
	tVec := r3.Vec{X: tCol[0], Y: tCol[1], Z: tCol[2]}

	candidates := []spatial.Pose{
		spatial.NewPose(matToQuat(&r1), tVec),
		spatial.NewPose(matToQuat(&r1), r3.Scale(-1, tVec)),
		spatial.NewPose(matToQuat(&r2), tVec),
		spatial.NewPose(matToQuat(&r2), r3.Scale(-1, tVec)),
	}

	bestCount := -1
	var bestPose spatial.Pose
	var bestPoints []r3.Vec
	var bestMask []bool

	for _, cand := range candidates {
		points := make([]r3.Vec, len(ref))
		mask := make([]bool, len(ref))
		count := 0
		for i := range ref {
			p, front := triangulate(ref[i], cur[i], cand)
			mask[i] = front
			if front {
				points[i] = p
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestPose = cand
			bestPoints = points
			bestMask = mask
		}
	}

	if bestCount == 0 {
		return spatial.Pose{}, nil, nil, false
	}
	return bestPose, bestPoints, bestMask, true
}

// triangulate uses the midpoint method: intersect the two rays as closely
// as possible and report whether the point lies in front of both cameras.
func triangulate(refRay, curRay r3.Vec, relPose spatial.Pose) (r3.Vec, bool) {
	d1 := r3.Unit(refRay)
	d2 := r3.Unit(spatial.Pose{Rotation: relPose.Inverse().Rotation}.Transform(curRay))
	// Camera 2's center in reference-camera coordinates is -R^T t; here we
	// work directly in the reference frame so camera 1 sits at the origin.
	c2 := relPose.Inverse().Translation

	// Closed-form midpoint of the common perpendicular between the two
	// rays o1+t*d1 and o2+s*d2 (o1 = origin, o2 = c2).
	a := r3.Dot(d1, d1)
	b := r3.Dot(d1, d2)
	c := r3.Dot(d2, d2)
	w0 := r3.Sub(r3.Vec{}, c2)
	d := r3.Dot(d1, w0)
	eVal := r3.Dot(d2, w0)

	denom := a*c - b*b
	if math.Abs(denom) < 1e-12 {
		return r3.Vec{}, false
	}
	s := (b*eVal - c*d) / denom
	t := (a*eVal - b*d) / denom

	p1 := r3.Scale(s, d1)
	p2 := r3.Add(c2, r3.Scale(t, d2))
	mid := r3.Scale(0.5, r3.Add(p1, p2))

	inFront1 := s > 0
	pInCam2 := relPose.Transform(mid)
	inFront2 := pInCam2.Z > 0

	return mid, inFront1 && inFront2
}

func matToQuat(m *mat.Dense) quat.Number {
	var arr [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			arr[i][j] = m.At(i, j)
		}
	}
	return spatial.RotationMatrixToQuat(arr)
}
