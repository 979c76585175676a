package mapping

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

// Keypoint is a single undistorted 2D feature observation plus the scale
// level it was detected at (ORB is a scale-pyramid detector; §6 configures
// nLevels/scaleFactor for the external extractor that produces these).
type Keypoint struct {
	X, Y   float64
	Octave int
	Angle  float64
}

// Descriptor is an ORB binary descriptor (32 bytes, one per keypoint).
type Descriptor [32]byte

// Frame is a transient per-input observation (§3). It is never stored in
// the Map's arenas; the Tracker owns it directly and discards it once a
// newer frame supersedes it as last_frame.
type Frame struct {
	ID uint64

	K           Intrinsics
	Keypoints   []Keypoint
	Descriptors []Descriptor
	// Depths holds per-keypoint depth (RGBD only); a negative value means ⊥.
	Depths []float64
	// MapPoints holds the per-keypoint association; NoMapPoint means ⊥.
	MapPoints []MapPointHandle
	// Outlier is set by motion-only BA when a correspondence is rejected.
	Outlier []bool

	// HasPose distinguishes "pose ⊥" (not yet tracked) from Identity().
	HasPose bool
	Pose    spatial.Pose

	// RefKF is the reference keyframe this frame was tracked against.
	RefKF KeyFrameHandle
}

// NewFrame allocates a Frame with n keypoint slots, all initially
// unassociated and not outliers.
func NewFrame(id uint64, k Intrinsics, keypoints []Keypoint, descriptors []Descriptor, depths []float64) *Frame {
	n := len(keypoints)
	f := &Frame{
		ID:          id,
		K:           k,
		Keypoints:   keypoints,
		Descriptors: descriptors,
		Depths:      depths,
		MapPoints:   make([]MapPointHandle, n),
		Outlier:     make([]bool, n),
		RefKF:       NoKeyFrame,
	}
	for i := range f.MapPoints {
		f.MapPoints[i] = NoMapPoint
	}
	if f.Depths == nil {
		f.Depths = make([]float64, n)
		for i := range f.Depths {
			f.Depths[i] = -1
		}
	}
	return f
}

// ClearOutlierAssociations drops the mappoint slot for every keypoint
// flagged as an outlier, enforcing invariant 3 of §3 before a frame commits.
func (f *Frame) ClearOutlierAssociations() {
	for i, bad := range f.Outlier {
		if bad {
			f.MapPoints[i] = NoMapPoint
		}
	}
}

// InlierObservationCount counts keypoints with a live, non-outlier MapPoint
// association. This is the "inlier count" referenced throughout §4.
func (f *Frame) InlierObservationCount() int {
	n := 0
	for i, h := range f.MapPoints {
		if h.Valid() && !f.Outlier[i] {
			n++
		}
	}
	return n
}

// Intrinsics holds pinhole camera intrinsics and distortion coefficients (§6).
type Intrinsics struct {
	Fx, Fy, Cx, Cy     float64
	K1, K2, K3, P1, P2 float64
	Width, Height      int
	// Bf is baseline*fx for RGBD/stereo close-point scaling.
	Bf float64
}

// Project projects a world point into pixel coordinates given the frame's
// pose (world->camera) and intrinsics. ok is false if the point is behind
// the camera or projects outside the image.
func (f *Frame) Project(world r3.Vec) (u, v float64, ok bool) {
	p := f.Pose.Transform(world)
	if p.Z <= 0 {
		return 0, 0, false
	}
	u = f.K.Fx*p.X/p.Z + f.K.Cx
	v = f.K.Fy*p.Y/p.Z + f.K.Cy
	if u < 0 || v < 0 || u >= float64(f.K.Width) || v >= float64(f.K.Height) {
		return u, v, false
	}
	return u, v, true
}

// KeyFrame is a promoted Frame that becomes a vertex of the covisibility
// graph (§3). It lives inside the Map's arena; other KeyFrames and
// MapPoints reference it only via KeyFrameHandle.
type KeyFrame struct {
	KFID uint64
	Frame

	// Covisibility maps neighbor KeyFrame -> shared MapPoint count.
	Covisibility map[KeyFrameHandle]int
	Parent       KeyFrameHandle
	Children     []KeyFrameHandle

	bad bool
}

// MapPoint is a 3D world-space landmark (§3).
type MapPoint struct {
	Position r3.Vec

	RefKF KeyFrameHandle
	// Observations maps observing KeyFrame -> keypoint index in that KF.
	Observations map[KeyFrameHandle]int

	Descriptor   Descriptor
	MeanViewDir  r3.Vec
	MinDistance  float64
	MaxDistance  float64
	VisibleCount int
	FoundCount   int
	ReplacedBy   MapPointHandle
	Bad          bool
}

// NewMapPoint creates a MapPoint with default (unbounded) scale-invariance
// distance bounds [0, +Inf); nothing in this module narrows them afterwards.
func NewMapPoint(position r3.Vec, ref KeyFrameHandle, descriptor Descriptor) *MapPoint {
	return &MapPoint{
		Position:     position,
		RefKF:        ref,
		Observations: make(map[KeyFrameHandle]int),
		Descriptor:   descriptor,
		ReplacedBy:   NoMapPoint,
		MinDistance:  0,
		MaxDistance:  infinity,
		VisibleCount: 1,
		FoundCount:   1,
	}
}

// FoundRatio is the tracked-vs-visible ratio LocalMapper culling typically
// keys off; exposed here since KeyframePolicy and TrackLocalMap both reason
// about visibility/found counters.
func (p *MapPoint) FoundRatio() float64 {
	if p.VisibleCount == 0 {
		return 0
	}
	return float64(p.FoundCount) / float64(p.VisibleCount)
}
