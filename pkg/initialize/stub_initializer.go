package initialize

import "github.com/jderobotics/vslamtrack/pkg/mapping"

// StubInitializer is a deterministic Initializer for tests: it always
// returns a fixed Result.
type StubInitializer struct {
	Result Result
	Ok     bool
}

// TryInitialize implements Initializer.
func (s *StubInitializer) TryInitialize(refKP, curKP []mapping.Keypoint, matches []Match, k mapping.Intrinsics) (Result, bool) {
	return s.Result, s.Ok
}

var _ Initializer = (*StubInitializer)(nil)
