package extract

import "github.com/jderobotics/vslamtrack/pkg/mapping"

// StubExtractor is a deterministic Extractor for tests: it returns a fixed
// script of (keypoints, descriptors) pairs, one per call, cycling through
// on exhaustion so long-running tracker tests don't need an unbounded
// script.
type StubExtractor struct {
	Script [][2]interface{} // pairs of ([]mapping.Keypoint, []mapping.Descriptor)
	calls  int
}

// NewStubExtractor builds a StubExtractor that always returns the given
// keypoints/descriptors regardless of input, useful for single-frame tests.
func NewStubExtractor(keypoints []mapping.Keypoint, descriptors []mapping.Descriptor) *StubExtractor {
	return &StubExtractor{Script: [][2]interface{}{{keypoints, descriptors}}}
}

// Extract ignores its input and returns the next scripted result.
func (s *StubExtractor) Extract(gray []byte, width, height int) ([]mapping.Keypoint, []mapping.Descriptor, error) {
	entry := s.Script[s.calls%len(s.Script)]
	s.calls++
	return entry[0].([]mapping.Keypoint), entry[1].([]mapping.Descriptor), nil
}

var _ Extractor = (*StubExtractor)(nil)
