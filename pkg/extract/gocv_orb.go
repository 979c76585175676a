//go:build cgo
// +build cgo

package extract

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
)

// GoCVORB implements Extractor using GoCV's ORB binding: oriented FAST
// keypoints, rotated BRIEF descriptors, a multi-scale pyramid controlled
// by Params.
type GoCVORB struct {
	orb gocv.ORB
}

// NewGoCVORB constructs an ORB extractor from the given tuning parameters.
func NewGoCVORB(p Params) *GoCVORB {
	orb := gocv.NewORBWithParams(
		p.NFeatures,
		float32(p.ScaleFactor),
		p.NLevels,
		31, // edgeThreshold, matches gocv's default
		0,  // firstLevel
		2,  // WTA_K
		gocv.ORBScoreHarris,
		31, // patchSize
		p.IniThFAST,
	)
	return &GoCVORB{orb: orb}
}

// Extract runs ORB detection+description on a single-channel image.
func (e *GoCVORB) Extract(gray []byte, width, height int) ([]mapping.Keypoint, []mapping.Descriptor, error) {
	if width <= 0 || height <= 0 || len(gray) != width*height {
		return nil, nil, fmt.Errorf("extract: input violation, grayscale buffer does not match %dx%d", width, height)
	}

	m, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, gray)
	if err != nil {
		return nil, nil, fmt.Errorf("extract: wrapping grayscale buffer: %w", err)
	}
	defer m.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := e.orb.DetectAndCompute(m, mask)
	defer desc.Close()

	keypoints := make([]mapping.Keypoint, len(kps))
	descriptors := make([]mapping.Descriptor, len(kps))
	for i, kp := range kps {
		keypoints[i] = mapping.Keypoint{X: kp.X, Y: kp.Y, Octave: kp.Octave, Angle: float64(kp.Angle)}
	}
	for i := 0; i < desc.Rows() && i < len(descriptors); i++ {
		row := desc.RowRange(i, i+1)
		copy(descriptors[i][:], row.ToBytes())
		row.Close()
	}

	return keypoints, descriptors, nil
}

// Close releases the underlying ORB detector.
func (e *GoCVORB) Close() error {
	return e.orb.Close()
}

var _ Extractor = (*GoCVORB)(nil)
