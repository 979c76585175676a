package spatial

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestIdentityIsIdentity(t *testing.T) {
	p := Identity()
	if !p.IsIdentity(1e-9) {
		t.Fatalf("expected Identity() to satisfy IsIdentity")
	}
}

func TestComposeWithIdentity(t *testing.T) {
	p := NewPose(QuatFromAxisAngle(r3.Vec{Y: 1}, math.Pi/4), r3.Vec{X: 1, Y: 2, Z: 3})
	got := Compose(p, Identity())
	if AngularDistance(got.Rotation, p.Rotation) > 1e-9 {
		t.Errorf("Compose(p, Identity) changed rotation")
	}
	if r3.Norm(r3.Sub(got.Translation, p.Translation)) > 1e-9 {
		t.Errorf("Compose(p, Identity) changed translation: got %+v want %+v", got.Translation, p.Translation)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	p := NewPose(QuatFromAxisAngle(r3.Vec{X: 0.3, Y: 1, Z: -0.2}, 1.2), r3.Vec{X: -0.5, Y: 2, Z: 0.1})
	roundTrip := Compose(p.Inverse(), p)
	if !roundTrip.IsIdentity(1e-6) {
		t.Errorf("p^-1 * p should be identity, got rot=%v t=%v", roundTrip.Rotation, roundTrip.Translation)
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	p := NewPose(QuatFromAxisAngle(r3.Vec{X: 1, Y: 1, Z: 1}, 0.9), r3.Vec{X: 1.5, Y: -2.5, Z: 0.25})
	m := p.ToMatrix()
	back, err := FromMatrix(m)
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	if AngularDistance(back.Rotation, p.Rotation) > 1e-6 {
		t.Errorf("rotation did not round-trip through matrix form")
	}
	if r3.Norm(r3.Sub(back.Translation, p.Translation)) > 1e-9 {
		t.Errorf("translation did not round-trip through matrix form")
	}
}

func TestFromMatrixRejectsWrongShape(t *testing.T) {
	bad := mat.NewDense(3, 3, nil)
	if _, err := FromMatrix(bad); err == nil {
		t.Error("expected error for non-4x4 matrix")
	}
}

func TestAngularDistanceThreshold(t *testing.T) {
	a := quat.Number{Real: 1}
	b := QuatFromAxisAngle(r3.Vec{Y: 1}, 3*math.Pi/180) // 3 degrees
	d := AngularDistance(a, b)
	want := 3 * math.Pi / 180
	if math.Abs(d-want) > 1e-9 {
		t.Errorf("AngularDistance = %v, want %v", d, want)
	}
	if d <= 0.02 {
		t.Errorf("3 degrees (%v rad) should exceed the 0.02 rad curve threshold", d)
	}
}

func TestAngularDistanceIgnoresSign(t *testing.T) {
	a := quat.Number{Real: 1}
	b := quat.Number{Real: -1}
	if d := AngularDistance(a, b); d > 1e-9 {
		t.Errorf("q and -q represent the same rotation, want distance 0, got %v", d)
	}
}
