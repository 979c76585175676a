package tracker

import "github.com/jderobotics/vslamtrack/pkg/mapping"

// hammingDistance counts differing bits between two ORB descriptors.
func hammingDistance(a, b mapping.Descriptor) int {
	dist := 0
	for i := range a {
		x := a[i] ^ b[i]
		for x != 0 {
			dist += int(x & 1)
			x >>= 1
		}
	}
	return dist
}

// maxDescriptorDistance is the Hamming-distance gate for accepting a
// projected-point candidate match; it is generous enough for synthetic
// test descriptors (commonly all-zero, distance 0) while still rejecting
// a clearly unrelated descriptor.
const maxDescriptorDistance = 80

// projectAndMatch implements the descriptor-projection matching used by
// §4.3/§4.4/§4.5/§4.6: for each candidate MapPoint, project it into frame
// using frame.Pose, find the nearest not-yet-associated keypoint within
// radius pixels whose descriptor distance is acceptable, and assign it.
// Returns the number of new associations made.
func projectAndMatch(frame *mapping.Frame, candidates []mapping.MapPointHandle, m *mapping.Map, radius float64) int {
	claimed := make([]bool, len(frame.Keypoints))
	for i, h := range frame.MapPoints {
		if h.Valid() {
			claimed[i] = true
		}
	}

	matches := 0
	for _, h := range candidates {
		mp := m.MapPoint(h)
		if mp == nil || mp.Bad {
			continue
		}
		u, v, ok := frame.Project(mp.Position)
		if !ok {
			continue
		}

		best := -1
		bestDist := maxDescriptorDistance + 1
		bestPixel := radius * radius
		for i, kp := range frame.Keypoints {
			if claimed[i] {
				continue
			}
			du, dv := kp.X-u, kp.Y-v
			pixelSq := du*du + dv*dv
			if pixelSq > radius*radius {
				continue
			}
			d := hammingDistance(mp.Descriptor, frame.Descriptors[i])
			if d > maxDescriptorDistance {
				continue
			}
			if d < bestDist || (d == bestDist && pixelSq < bestPixel) {
				best = i
				bestDist = d
				bestPixel = pixelSq
			}
		}

		if best >= 0 {
			frame.MapPoints[best] = h
			claimed[best] = true
			matches++
		}
	}
	return matches
}
