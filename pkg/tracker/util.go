package tracker

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/mapping"
	"github.com/jderobotics/vslamtrack/pkg/spatial"
	"github.com/jderobotics/vslamtrack/pkg/trajectory"
)

func identityPose() spatial.Pose {
	return spatial.Identity()
}

func scalePose(p spatial.Pose, scale float64) spatial.Pose {
	return spatial.NewPose(p.Rotation, r3.Scale(scale, p.Translation))
}

// newKeyFrameFrom copies frame's feature/association state into a new
// KeyFrame with its own backing slices, so later mutation of either copy
// (outlier flags, per-keypoint MapPoint associations) cannot alias the
// other (§3's Frame/KeyFrame are distinct owners of the same observation).
func newKeyFrameFrom(frame *mapping.Frame) *mapping.KeyFrame {
	cp := *frame
	cp.MapPoints = append([]mapping.MapPointHandle(nil), frame.MapPoints...)
	cp.Outlier = append([]bool(nil), frame.Outlier...)
	cp.Depths = append([]float64(nil), frame.Depths...)
	return &mapping.KeyFrame{Frame: cp}
}

// trajectoryEntry builds the recorded trajectory.Entry for a successfully
// tracked frame: its pose expressed relative to the reference keyframe it
// was tracked against, matching the convention typical SLAM trajectory
// dumps use so downstream consumers don't need the absolute map gauge.
func trajectoryEntry(m *mapping.Map, frame *mapping.Frame, refKF mapping.KeyFrameHandle) trajectory.Entry {
	kf := m.KeyFrame(refKF)
	relative := frame.Pose
	var refKFID uint64
	if kf != nil {
		relative = spatial.Compose(frame.Pose, kf.Pose.Inverse())
		refKFID = kf.KFID
	}
	return trajectory.Entry{FrameID: frame.ID, RefKFID: refKFID, Relative: relative}
}
