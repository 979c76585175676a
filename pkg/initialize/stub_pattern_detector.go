package initialize

import "github.com/jderobotics/vslamtrack/pkg/spatial"

// StubPatternDetector is a deterministic PatternDetector for tests: it
// always returns a fixed detection result.
type StubPatternDetector struct {
	Points          []PatternPoint
	PatternToCamera spatial.Pose
	Ok              bool
}

// Detect implements PatternDetector.
func (s *StubPatternDetector) Detect(gray []byte, width, height int) ([]PatternPoint, spatial.Pose, bool) {
	return s.Points, s.PatternToCamera, s.Ok
}

var _ PatternDetector = (*StubPatternDetector)(nil)
