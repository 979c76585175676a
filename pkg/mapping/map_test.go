package mapping

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func testIntrinsics() Intrinsics {
	return Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240, Width: 640, Height: 480}
}

func newTestKeyFrame(id uint64) *KeyFrame {
	f := NewFrame(id, testIntrinsics(), nil, nil, nil)
	return &KeyFrame{Frame: *f}
}

func TestAddKeyFrameAssignsSequentialID(t *testing.T) {
	m := NewMap()
	m.Lock()
	defer m.Unlock()

	h1 := m.AddKeyFrame(newTestKeyFrame(0))
	h2 := m.AddKeyFrame(newTestKeyFrame(0))

	kf1 := m.KeyFrame(h1)
	kf2 := m.KeyFrame(h2)
	if kf1.KFID != 0 || kf2.KFID != 1 {
		t.Errorf("expected KFIDs 0,1 got %d,%d", kf1.KFID, kf2.KFID)
	}
	if m.KeyFramesInMap() != 2 {
		t.Errorf("KeyFramesInMap = %d, want 2", m.KeyFramesInMap())
	}
}

func TestStaleHandleAfterRemoveKeyFrame(t *testing.T) {
	m := NewMap()
	m.Lock()
	defer m.Unlock()

	h := m.AddKeyFrame(newTestKeyFrame(0))
	m.RemoveKeyFrame(h)

	if m.KeyFrame(h) != nil {
		t.Error("expected stale handle to resolve to nil after removal")
	}
	if m.KeyFramesInMap() != 0 {
		t.Errorf("KeyFramesInMap = %d, want 0", m.KeyFramesInMap())
	}
}

func TestRecycledSlotBumpsGeneration(t *testing.T) {
	m := NewMap()
	m.Lock()
	defer m.Unlock()

	h1 := m.AddKeyFrame(newTestKeyFrame(0))
	m.RemoveKeyFrame(h1)
	h2 := m.AddKeyFrame(newTestKeyFrame(0))

	if h1.index != h2.index {
		t.Fatalf("expected slot reuse, got different indices %d vs %d", h1.index, h2.index)
	}
	if h1.gen == h2.gen {
		t.Error("expected generation to change on slot reuse")
	}
	if m.KeyFrame(h1) != nil {
		t.Error("stale handle h1 must not resolve after slot recycled")
	}
	if m.KeyFrame(h2) == nil {
		t.Error("fresh handle h2 must resolve")
	}
}

func TestMapPointReplaceSingleHop(t *testing.T) {
	m := NewMap()
	m.Lock()
	defer m.Unlock()

	kfH := m.AddKeyFrame(newTestKeyFrame(0))
	kf := m.KeyFrame(kfH)
	kf.MapPoints = make([]MapPointHandle, 1)

	fromMP := NewMapPoint(r3.Vec{}, kfH, Descriptor{})
	toMP := NewMapPoint(r3.Vec{}, kfH, Descriptor{})
	fromH := m.AddMapPoint(fromMP)
	toH := m.AddMapPoint(toMP)

	m.AddObservation(fromH, kfH, 0)
	kf.MapPoints[0] = fromH

	m.Replace(fromH, toH)

	resolved := m.MapPoint(fromH)
	if resolved == nil {
		t.Fatal("expected replaced handle to resolve through single hop")
	}
	if resolved != toMP {
		t.Error("expected fromH to resolve to toMP after replacement")
	}
	if kf.MapPoints[0] != toH {
		t.Error("expected keyframe's per-keypoint association to repoint at the surviving map point")
	}
}

func TestEraseObservationMarksBadWhenOrphaned(t *testing.T) {
	m := NewMap()
	m.Lock()
	defer m.Unlock()

	kfH := m.AddKeyFrame(newTestKeyFrame(0))
	mp := NewMapPoint(r3.Vec{}, kfH, Descriptor{})
	mpH := m.AddMapPoint(mp)
	m.AddObservation(mpH, kfH, 0)

	m.EraseObservation(mpH, kfH)

	if !mp.Bad {
		t.Error("expected map point with zero remaining observations to be marked bad")
	}
	if m.MapPoint(mpH) != nil {
		t.Error("bad map points must not resolve via MapPoint()")
	}
}

func TestCovisibilityUpdatesOnSharedObservation(t *testing.T) {
	m := NewMap()
	m.Lock()
	defer m.Unlock()

	kf1H := m.AddKeyFrame(newTestKeyFrame(0))
	kf2H := m.AddKeyFrame(newTestKeyFrame(0))
	kf1 := m.KeyFrame(kf1H)
	kf2 := m.KeyFrame(kf2H)

	mp := NewMapPoint(r3.Vec{}, kf1H, Descriptor{})
	mpH := m.AddMapPoint(mp)

	m.AddObservation(mpH, kf1H, 0)
	m.AddObservation(mpH, kf2H, 0)

	if kf1.Covisibility[kf2H] != 1 {
		t.Errorf("expected covisibility weight 1 between kf1 and kf2, got %d", kf1.Covisibility[kf2H])
	}
	if kf2.Covisibility[kf1H] != 1 {
		t.Errorf("expected covisibility weight 1 between kf2 and kf1, got %d", kf2.Covisibility[kf1H])
	}
}

func TestClearResetsMap(t *testing.T) {
	m := NewMap()
	m.Lock()
	defer m.Unlock()

	m.AddKeyFrame(newTestKeyFrame(0))
	mp := NewMapPoint(r3.Vec{}, NoKeyFrame, Descriptor{})
	m.AddMapPoint(mp)

	m.Clear()

	if m.KeyFramesInMap() != 0 {
		t.Errorf("expected 0 keyframes after Clear, got %d", m.KeyFramesInMap())
	}
	if len(m.AllMapPoints()) != 0 {
		t.Errorf("expected 0 map points after Clear, got %d", len(m.AllMapPoints()))
	}
}

func TestSetAndGetReferenceMapPoints(t *testing.T) {
	m := NewMap()
	m.Lock()
	defer m.Unlock()

	mp := NewMapPoint(r3.Vec{}, NoKeyFrame, Descriptor{})
	h := m.AddMapPoint(mp)
	m.SetReferenceMapPoints([]MapPointHandle{h})

	got := m.ReferenceMapPoints()
	if len(got) != 1 || got[0] != h {
		t.Errorf("ReferenceMapPoints() = %v, want [%v]", got, h)
	}
}
