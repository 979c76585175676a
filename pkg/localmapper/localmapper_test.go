package localmapper

import (
	"testing"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
)

func TestInsertKeyFrameFIFOOrder(t *testing.T) {
	q := NewQueue()
	m := mapping.NewMap()
	m.Lock()
	h1 := m.AddKeyFrame(&mapping.KeyFrame{})
	h2 := m.AddKeyFrame(&mapping.KeyFrame{})
	m.Unlock()

	q.InsertKeyFrame(h1)
	q.InsertKeyFrame(h2)

	if got := q.KeyFramesInQueue(); got != 2 {
		t.Fatalf("KeyFramesInQueue() = %d, want 2", got)
	}

	pending := q.Pending()
	if len(pending) != 2 || pending[0] != h1 || pending[1] != h2 {
		t.Errorf("Pending() = %v, want FIFO [h1, h2]", pending)
	}
	if q.KeyFramesInQueue() != 0 {
		t.Error("expected queue drained after Pending()")
	}
}

func TestSetNotStopFailsWhenStopRequested(t *testing.T) {
	q := NewQueue()
	q.RequestStop()

	if q.SetNotStop(true) {
		t.Error("expected SetNotStop(true) to fail once a stop has been requested")
	}
}

func TestSetNotStopSucceedsWithoutPendingStop(t *testing.T) {
	q := NewQueue()
	if !q.SetNotStop(true) {
		t.Error("expected SetNotStop(true) to succeed with no stop requested")
	}
}

func TestRequestResetClearsQueue(t *testing.T) {
	q := NewQueue()
	m := mapping.NewMap()
	m.Lock()
	h := m.AddKeyFrame(&mapping.KeyFrame{})
	m.Unlock()
	q.InsertKeyFrame(h)

	q.RequestReset()

	if !q.ResetPending() {
		t.Error("expected ResetPending() true after RequestReset")
	}
	if q.KeyFramesInQueue() != 0 {
		t.Error("expected queue cleared by RequestReset")
	}
}

func TestInterruptBAIsObservable(t *testing.T) {
	q := NewQueue()
	if q.Interrupted() {
		t.Fatal("expected Interrupted() false before InterruptBA")
	}
	q.InterruptBA()
	if !q.Interrupted() {
		t.Error("expected Interrupted() true after InterruptBA")
	}
}
