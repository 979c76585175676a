// Package extract provides the feature-extraction contract (§9's
// "injected interface" design note): oriented FAST keypoints with rotated
// BRIEF descriptors. The Tracker depends only on the Extractor interface,
// matching the teacher's pattern of accepting collaborators as interfaces
// at construction time.
package extract

import "github.com/jderobotics/vslamtrack/pkg/mapping"

// Extractor detects keypoints and computes descriptors for a grayscale
// image, tuned by the ORB parameters in §6's configuration table.
type Extractor interface {
	Extract(gray []byte, width, height int) ([]mapping.Keypoint, []mapping.Descriptor, error)
}

// Params mirrors the ORBextractor config keys of §6.
type Params struct {
	NFeatures   int
	ScaleFactor float64
	NLevels     int
	IniThFAST   int
	MinThFAST   int
}
