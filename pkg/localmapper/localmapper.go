// Package localmapper provides the LocalMapper contract consumed by the
// Tracker (§5, §6): a FIFO queue of admitted KeyFrames plus the
// stop/interrupt flags the keyframe-admission predicate (§4.7) reasons
// about. The real LocalMapping thread (triangulation, local BA, KF/MP
// culling) is out of this spec's scope; LocalMapper here is the
// synchronization surface the Tracker observes.
package localmapper

import (
	"sync"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
)

// LocalMapper is the contract of §6's "Consumed from LocalMapper" table.
type LocalMapper interface {
	InsertKeyFrame(h mapping.KeyFrameHandle)
	AcceptKeyFrames() bool
	IsStopped() bool
	StopRequested() bool
	InterruptBA()
	SetNotStop(bool) bool
	KeyFramesInQueue() int
	RequestReset()
}

// Queue is a straightforward FIFO-backed LocalMapper. It does not run a
// background processing goroutine itself (that belongs to the full
// LocalMapping thread, out of scope here); tests and the CLI driver can
// drain Pending() to simulate consumption.
type Queue struct {
	mu sync.Mutex

	pending []mapping.KeyFrameHandle

	accept       bool
	stopped      bool
	stopReq      bool
	notStopLock  bool
	interrupted  bool
	resetPending bool
}

// NewQueue returns a LocalMapper that initially accepts keyframes.
func NewQueue() *Queue {
	return &Queue{accept: true}
}

// InsertKeyFrame enqueues h for later processing, in strict tracking order
// per §5's ordering guarantee.
func (q *Queue) InsertKeyFrame(h mapping.KeyFrameHandle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, h)
}

// AcceptKeyFrames reports whether the queue is currently accepting new
// keyframes. The flag starts true and changes only through
// SetAcceptKeyFrames; a stop does not clear it.
func (q *Queue) AcceptKeyFrames() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.accept
}

// SetAcceptKeyFrames toggles AcceptKeyFrames; exposed for the LocalMapping
// thread/test harness, not part of the Tracker-facing contract.
func (q *Queue) SetAcceptKeyFrames(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.accept = v
}

// IsStopped reports whether the local mapper is currently paused (e.g. by
// LoopClosing, per §5).
func (q *Queue) IsStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// SetStopped toggles IsStopped; exposed for test harnesses simulating the
// LoopClosing collaborator.
func (q *Queue) SetStopped(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = v
}

// StopRequested reports whether a stop has been requested but not yet
// taken effect.
func (q *Queue) StopRequested() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopReq
}

// RequestStop requests a stop; exposed for test harnesses.
func (q *Queue) RequestStop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopReq = true
}

// InterruptBA signals the local mapper to abandon its current local BA
// pass, per §4.7's "LocalMapper busy" handling.
func (q *Queue) InterruptBA() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.interrupted = true
}

// Interrupted reports whether InterruptBA has been called since the last
// clear; exposed for test harnesses.
func (q *Queue) Interrupted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.interrupted
}

// SetNotStop attempts to pin the local mapper so it will not stop. It
// returns false if a stop has already been requested (§5: "returns false
// if a stop has already been requested — Tracker must skip keyframe
// creation in that case").
func (q *Queue) SetNotStop(v bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if v && q.stopReq {
		return false
	}
	q.notStopLock = v
	return true
}

// KeyFramesInQueue reports the number of keyframes awaiting processing,
// backing §4.7's RGBD "queue has <3 pending" admission rule.
func (q *Queue) KeyFramesInQueue() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// RequestReset marks the local mapper for a full reset (§4.1's early-loss
// reset path).
func (q *Queue) RequestReset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetPending = true
	q.pending = nil
}

// ResetPending reports whether RequestReset has been called since
// acknowledgement; exposed for test harnesses.
func (q *Queue) ResetPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.resetPending
}

// AcknowledgeReset clears ResetPending; exposed for test harnesses.
func (q *Queue) AcknowledgeReset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetPending = false
}

// Pending drains and returns every queued keyframe handle in FIFO order.
func (q *Queue) Pending() []mapping.KeyFrameHandle {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

var _ LocalMapper = (*Queue)(nil)
