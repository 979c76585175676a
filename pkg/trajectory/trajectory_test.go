package trajectory

import (
	"bytes"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

func TestRecordAndLen(t *testing.T) {
	r := NewRecorder()
	r.Record(Entry{FrameID: 1, RefKFID: 0, Relative: spatial.Identity()})
	r.Record(Entry{FrameID: 2, RefKFID: 0, Relative: spatial.Identity()})
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	r := NewRecorder()
	r.Record(Entry{
		FrameID:  7,
		RefKFID:  3,
		Relative: spatial.NewPose(spatial.QuatFromAxisAngle(r3.Vec{Y: 1}, 0.4), r3.Vec{X: 1, Y: -2, Z: 0.5}),
	})
	r.Record(Entry{FrameID: 8, RefKFID: 3, Relative: spatial.Identity()})

	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	back := NewRecorder()
	if _, err := back.ReadFrom(&buf); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	if back.Len() != 2 {
		t.Fatalf("round-tripped Len() = %d, want 2", back.Len())
	}
	got := back.Entries()[0]
	if got.FrameID != 7 || got.RefKFID != 3 {
		t.Errorf("entry 0 ids = (%d, %d), want (7, 3)", got.FrameID, got.RefKFID)
	}
	want := r.Entries()[0].Relative
	if spatial.AngularDistance(got.Relative.Rotation, want.Rotation) > 1e-9 {
		t.Error("round-tripped rotation does not match")
	}
	if r3.Norm(r3.Sub(got.Relative.Translation, want.Translation)) > 1e-9 {
		t.Error("round-tripped translation does not match")
	}
}

func TestReadFromRejectsMalformedLine(t *testing.T) {
	r := NewRecorder()
	_, err := r.ReadFrom(strings.NewReader("not enough fields\n"))
	if err == nil {
		t.Error("expected error parsing a malformed trajectory line")
	}
}

func TestReadFromSkipsBlankLines(t *testing.T) {
	r := NewRecorder()
	input := "1 0 1 0 0 0 0 0 0\n\n2 0 1 0 0 0 0 0 0\n"
	if _, err := r.ReadFrom(strings.NewReader(input)); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (blank line skipped)", r.Len())
	}
}
