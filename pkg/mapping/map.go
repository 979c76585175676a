package mapping

import (
	"sync"
)

// keyframeSlot is one arena slot for a KeyFrame. A slot with live == false
// is free (its index can be recycled with gen bumped).
type keyframeSlot struct {
	kf   *KeyFrame
	gen  uint32
	live bool
}

// mapPointSlot is one arena slot for a MapPoint.
type mapPointSlot struct {
	mp   *MapPoint
	gen  uint32
	live bool
}

// Map is the shared data model of §3: a covisibility graph of KeyFrames and
// the MapPoints they observe. KeyFrames and MapPoints never hold pointers to
// each other directly (§9's cyclic-ownership note); all cross-references are
// Handles resolved through the Map while Lock is held.
//
// Map is safe for concurrent use: a single exclusive mutex covers the whole
// structure, matching the Tracker's "one lock held for the whole of Track()"
// design (§5).
type Map struct {
	mu sync.Mutex

	keyframes []keyframeSlot
	mappoints []mapPointSlot

	freeKF []int
	freeMP []int

	nextKFID uint64

	referenceMapPoints []MapPointHandle
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{}
}

// Lock acquires the Map's mutation lock. Every Handle dereference and every
// mutating method requires the caller to hold it first.
func (m *Map) Lock() { m.mu.Lock() }

// Unlock releases the Map's mutation lock.
func (m *Map) Unlock() { m.mu.Unlock() }

// AddKeyFrame inserts kf into the arena and returns its handle. The caller
// must hold the lock.
func (m *Map) AddKeyFrame(kf *KeyFrame) KeyFrameHandle {
	kf.KFID = m.nextKFID
	m.nextKFID++
	if kf.Covisibility == nil {
		kf.Covisibility = make(map[KeyFrameHandle]int)
	}
	kf.Parent = NoKeyFrame

	if n := len(m.freeKF); n > 0 {
		idx := m.freeKF[n-1]
		m.freeKF = m.freeKF[:n-1]
		slot := &m.keyframes[idx]
		slot.kf = kf
		slot.live = true
		return KeyFrameHandle{index: idx, gen: slot.gen}
	}

	m.keyframes = append(m.keyframes, keyframeSlot{kf: kf, live: true})
	return KeyFrameHandle{index: len(m.keyframes) - 1, gen: 0}
}

// AddMapPoint inserts mp into the arena and returns its handle. The caller
// must hold the lock.
func (m *Map) AddMapPoint(mp *MapPoint) MapPointHandle {
	if n := len(m.freeMP); n > 0 {
		idx := m.freeMP[n-1]
		m.freeMP = m.freeMP[:n-1]
		slot := &m.mappoints[idx]
		slot.mp = mp
		slot.live = true
		return MapPointHandle{index: idx, gen: slot.gen}
	}

	m.mappoints = append(m.mappoints, mapPointSlot{mp: mp, live: true})
	return MapPointHandle{index: len(m.mappoints) - 1, gen: 0}
}

// KeyFrame resolves h to its live *KeyFrame, or nil if h is stale/freed.
// The caller must hold the lock.
func (m *Map) KeyFrame(h KeyFrameHandle) *KeyFrame {
	if h.index < 0 || h.index >= len(m.keyframes) {
		return nil
	}
	slot := &m.keyframes[h.index]
	if !slot.live || slot.gen != h.gen {
		return nil
	}
	return slot.kf
}

// MapPoint resolves h to its live *MapPoint, chasing a single replacement
// hop if the point was merged into another one by the loop-closing
// collaborator (§9's single-hop replacement invariant). The caller must
// hold the lock.
func (m *Map) MapPoint(h MapPointHandle) *MapPoint {
	mp := m.rawMapPoint(h)
	if mp == nil {
		return nil
	}
	if mp.ReplacedBy.Valid() {
		if next := m.rawMapPoint(mp.ReplacedBy); next != nil && !next.Bad {
			return next
		}
		return nil
	}
	if mp.Bad {
		return nil
	}
	return mp
}

func (m *Map) rawMapPoint(h MapPointHandle) *MapPoint {
	if h.index < 0 || h.index >= len(m.mappoints) {
		return nil
	}
	slot := &m.mappoints[h.index]
	if !slot.live || slot.gen != h.gen {
		return nil
	}
	return slot.mp
}

// RemoveMapPoint frees h's slot, bumping its generation so stale handles
// fail to resolve. The caller must hold the lock.
func (m *Map) RemoveMapPoint(h MapPointHandle) {
	if h.index < 0 || h.index >= len(m.mappoints) {
		return
	}
	slot := &m.mappoints[h.index]
	if !slot.live {
		return
	}
	slot.live = false
	slot.mp = nil
	slot.gen++
	m.freeMP = append(m.freeMP, h.index)
}

// RemoveKeyFrame frees h's slot and unlinks it from every neighbor's
// covisibility map. The caller must hold the lock.
func (m *Map) RemoveKeyFrame(h KeyFrameHandle) {
	kf := m.KeyFrame(h)
	if kf == nil {
		return
	}
	for neighbor := range kf.Covisibility {
		if nkf := m.KeyFrame(neighbor); nkf != nil {
			delete(nkf.Covisibility, h)
		}
	}
	slot := &m.keyframes[h.index]
	slot.live = false
	slot.kf = nil
	slot.gen++
	m.freeKF = append(m.freeKF, h.index)
}

// AllKeyFrames returns handles for every live KeyFrame. The caller must
// hold the lock.
func (m *Map) AllKeyFrames() []KeyFrameHandle {
	out := make([]KeyFrameHandle, 0, len(m.keyframes))
	for i, slot := range m.keyframes {
		if slot.live {
			out = append(out, KeyFrameHandle{index: i, gen: slot.gen})
		}
	}
	return out
}

// AllMapPoints returns handles for every live, non-bad MapPoint. The caller
// must hold the lock.
func (m *Map) AllMapPoints() []MapPointHandle {
	out := make([]MapPointHandle, 0, len(m.mappoints))
	for i, slot := range m.mappoints {
		if slot.live && !slot.mp.Bad {
			out = append(out, MapPointHandle{index: i, gen: slot.gen})
		}
	}
	return out
}

// KeyFramesInMap reports the number of live KeyFrames; this backs the
// §4.7 keyframe-policy condition on total map size.
func (m *Map) KeyFramesInMap() int {
	n := 0
	for _, slot := range m.keyframes {
		if slot.live {
			n++
		}
	}
	return n
}

// SetReferenceMapPoints replaces the local map used for the "project local
// map into the current frame" step of TrackLocalMap (§4.5).
func (m *Map) SetReferenceMapPoints(points []MapPointHandle) {
	m.referenceMapPoints = points
}

// ReferenceMapPoints returns the most recently set reference map point set.
func (m *Map) ReferenceMapPoints() []MapPointHandle {
	return m.referenceMapPoints
}

// Clear discards every KeyFrame and MapPoint, resetting the Map to empty
// (§4.1's reset-on-fatal-loss path). The caller must hold the lock.
func (m *Map) Clear() {
	m.keyframes = nil
	m.mappoints = nil
	m.freeKF = nil
	m.freeMP = nil
	m.nextKFID = 0
	m.referenceMapPoints = nil
}

// AddObservation records that kf observes mp at keypoint index kpIdx and
// refreshes the covisibility graph between kf and every other KeyFrame that
// already observes mp. mp's descriptor, mean viewing direction and distance
// bounds are not updated. The caller must hold the lock.
func (m *Map) AddObservation(mpHandle MapPointHandle, kfHandle KeyFrameHandle, kpIdx int) {
	mp := m.rawMapPoint(mpHandle)
	kf := m.KeyFrame(kfHandle)
	if mp == nil || kf == nil {
		return
	}
	mp.Observations[kfHandle] = kpIdx

	for other := range mp.Observations {
		if other == kfHandle {
			continue
		}
		okf := m.KeyFrame(other)
		if okf == nil {
			continue
		}
		kf.Covisibility[other]++
		okf.Covisibility[kfHandle]++
	}
}

// EraseObservation removes kf's observation of mp and decrements the
// covisibility weight between kf and every KeyFrame that still observes mp.
// The caller must hold the lock.
func (m *Map) EraseObservation(mpHandle MapPointHandle, kfHandle KeyFrameHandle) {
	mp := m.rawMapPoint(mpHandle)
	kf := m.KeyFrame(kfHandle)
	if mp == nil || kf == nil {
		return
	}
	delete(mp.Observations, kfHandle)

	for other := range mp.Observations {
		okf := m.KeyFrame(other)
		if okf == nil {
			continue
		}
		kf.Covisibility[other]--
		okf.Covisibility[kfHandle]--
		if kf.Covisibility[other] <= 0 {
			delete(kf.Covisibility, other)
			delete(okf.Covisibility, kfHandle)
		}
	}

	if len(mp.Observations) == 0 {
		mp.Bad = true
	}
}

// Replace merges "from" into "to": every KeyFrame observing "from" is
// re-pointed at "to", and "from" is marked bad with ReplacedBy = to so that
// any stale handle still in flight (e.g. a Frame's per-keypoint
// association from the previous Track() call) resolves through exactly one
// hop (§9's single-hop replacement invariant). The caller must hold the
// lock.
func (m *Map) Replace(from, to MapPointHandle) {
	if from == to {
		return
	}
	fromMP := m.rawMapPoint(from)
	toMP := m.rawMapPoint(to)
	if fromMP == nil || toMP == nil {
		return
	}

	for kfHandle, kpIdx := range fromMP.Observations {
		kf := m.KeyFrame(kfHandle)
		if kf == nil {
			continue
		}
		if _, alreadyObserves := toMP.Observations[kfHandle]; alreadyObserves {
			continue
		}
		toMP.Observations[kfHandle] = kpIdx
		if kpIdx >= 0 && kpIdx < len(kf.MapPoints) {
			kf.MapPoints[kpIdx] = to
		}
		for other := range toMP.Observations {
			if other == kfHandle {
				continue
			}
			okf := m.KeyFrame(other)
			if okf == nil {
				continue
			}
			kf.Covisibility[other]++
			okf.Covisibility[kfHandle]++
		}
	}

	toMP.FoundCount += fromMP.FoundCount
	toMP.VisibleCount += fromMP.VisibleCount
	fromMP.Bad = true
	fromMP.ReplacedBy = to
}
