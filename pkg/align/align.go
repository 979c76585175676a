// Package align provides the direct photometric image-alignment contract
// used to refine a seeded pose before feature matching in §4.3 and §4.6
// (§9's injected-interface design note).
package align

import "github.com/jderobotics/vslamtrack/pkg/spatial"

// Aligner refines a seed pose by directly warping the current image
// against a reference. Ok is false if alignment did not converge; callers
// must then revert to the seed pose unchanged (§8 invariant 7).
type Aligner interface {
	Align(currentGray []byte, width, height int, seed, referencePose spatial.Pose) (refined spatial.Pose, ok bool)
}

// StubAligner is a deterministic Aligner for tests. Ok and Refined are
// fixed per instance; Align ignores its inputs.
type StubAligner struct {
	Ok      bool
	Refined spatial.Pose
}

// Align returns the stub's fixed result, echoing the seed when Ok is
// false or Refined is left as the zero Pose.
func (s *StubAligner) Align(currentGray []byte, width, height int, seed, referencePose spatial.Pose) (spatial.Pose, bool) {
	if !s.Ok {
		return seed, false
	}
	if s.Refined == (spatial.Pose{}) {
		return seed, true
	}
	return s.Refined, true
}

var _ Aligner = (*StubAligner)(nil)
