// Package initialize implements the bootstrap strategies of §4.2: RGBD
// depth-based unprojection, monocular two-view essential-matrix recovery
// plus triangulation, and fiducial-pattern bootstrap. The monocular path
// is modeled as an injected Initializer (§9's design note) so the Tracker
// can be tested against a deterministic stub.
package initialize

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

// Match pairs a reference-frame keypoint index with a current-frame
// keypoint index.
type Match struct {
	RefIdx, CurIdx int
}

// Result is what a successful monocular two-view decomposition produces.
type Result struct {
	// Pose is the recovered current-camera pose relative to the reference
	// camera (reference assumed to be T_cw = I).
	Pose spatial.Pose
	// Points holds one triangulated 3D point per entry in Matches where
	// Triangulated[i] is true; entries are ⊥ (zero value) otherwise.
	Points []r3.Vec
	// Triangulated marks which Matches entries triangulated successfully
	// in front of both cameras.
	Triangulated []bool
}

// Initializer is the monocular two-view bootstrap contract (§4.2, §9).
// MinRANSACIterations is the spec's literal "≥200 RANSAC iterations"
// requirement; implementations should honor it or document why not.
type Initializer interface {
	TryInitialize(refKeypoints, curKeypoints []mapping.Keypoint, matches []Match, k mapping.Intrinsics) (Result, bool)
}

const MinRANSACIterations = 200
