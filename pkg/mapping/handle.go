// Package mapping implements the shared Map: the data model of §3 (Frame,
// KeyFrame, MapPoint) plus the arena-backed ownership scheme from §9's
// "Cyclic ownership" design note. KeyFrames and MapPoints never hold raw
// pointers to each other; they hold Handles, which are only resolvable
// through the Map while its mutation lock is held (invariant 4 of §3).
package mapping

import "math"

// KeyFrameHandle is a fallible, generation-checked reference to a KeyFrame
// living in the Map's keyframe arena. The zero value refers to arena slot 0;
// use NoKeyFrame for "no keyframe" (⊥).
type KeyFrameHandle struct {
	index int
	gen   uint32
}

// NoKeyFrame is the ⊥ KeyFrameHandle.
var NoKeyFrame = KeyFrameHandle{index: -1}

// Valid reports whether h could possibly resolve (it does not guarantee the
// slot is still live; Get still chases generation).
func (h KeyFrameHandle) Valid() bool { return h.index >= 0 }

// MapPointHandle is a fallible, generation-checked reference to a MapPoint
// living in the Map's mappoint arena. The zero value refers to arena slot 0;
// use NoMapPoint for "no map point" (⊥).
type MapPointHandle struct {
	index int
	gen   uint32
}

// NoMapPoint is the ⊥ MapPointHandle.
var NoMapPoint = MapPointHandle{index: -1}

// Valid reports whether h could possibly resolve.
func (h MapPointHandle) Valid() bool { return h.index >= 0 }

// infinity is used for scale-invariance distance bounds before a MapPoint's
// first observation establishes real bounds.
var infinity = math.Inf(1)
