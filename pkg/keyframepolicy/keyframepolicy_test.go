package keyframepolicy

import (
	"testing"

	"github.com/jderobotics/vslamtrack/internal/config"
)

func baseInput() Input {
	return Input{
		Sensor:                     config.SensorMonocular,
		FPS:                        30,
		CurrentInliers:             20,
		RefTrackedPoints:           100, // ratioCond: 20 < 0.9*100 = true
		LocalMapperAcceptKeyFrames: true,
		KeyFramesInMap:             10,
		FramesSinceReloc:           1000,
	}
}

func TestBoundaryMaxFramesMinusOneRejects(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = in.MaxFrames() - 1
	in.LocalMapperQueueLength = 1 // queue not idle, so C1b false too

	admit, _ := Decide(in)
	if admit {
		t.Error("expected no admission at frames_since_last_kf = MaxFrames-1 with C1b/c1c unmet")
	}
}

func TestBoundaryAtMaxFramesAdmits(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = in.MaxFrames()
	in.LocalMapperQueueLength = 1

	admit, _ := Decide(in)
	if !admit {
		t.Error("expected admission at frames_since_last_kf = MaxFrames")
	}
}

func TestC1bIdleQueueAdmitsBeforeMaxFrames(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = 1
	in.LocalMapperQueueLength = 0 // idle

	admit, _ := Decide(in)
	if !admit {
		t.Error("expected C1b (idle queue) to admit well before MaxFrames")
	}
}

func TestC2FailsWhenInlierRatioTooHigh(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = in.MaxFrames()
	in.CurrentInliers = 95 // 95 is not < 0.9*100=90, and needClose is false for monocular

	admit, _ := Decide(in)
	if admit {
		t.Error("expected no admission when inlier count is too close to reference tracked points")
	}
}

func TestC2FailsWhenInliersAtOrBelowFifteen(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = in.MaxFrames()
	in.CurrentInliers = 15

	admit, _ := Decide(in)
	if admit {
		t.Error("expected no admission when inlier count is not strictly greater than 15")
	}
}

func TestOnlyTrackingDisablesAdmissionOutright(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = in.MaxFrames()
	in.OnlyTracking = true

	admit, _ := Decide(in)
	if admit {
		t.Error("expected OnlyTracking(true) to disable keyframe admission outright")
	}
}

func TestS6SuppressionWhenLocalMapperStopped(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = in.MaxFrames()
	in.LocalMapperStopped = true

	admit, _ := Decide(in)
	if admit {
		t.Error("expected no admission while LocalMapper is stopped (S6)")
	}
}

func TestSuppressionNearRelocWithLargeMap(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = in.MaxFrames()
	in.FramesSinceReloc = 1
	in.KeyFramesInMap = in.MaxFrames() + 1

	admit, _ := Decide(in)
	if admit {
		t.Error("expected suppression shortly after relocalization with a large map")
	}
}

func TestBusyLocalMapperDefersMonocular(t *testing.T) {
	in := baseInput()
	in.FramesSinceLastKF = in.MaxFrames()
	in.LocalMapperAcceptKeyFrames = false

	admit, interrupt := Decide(in)
	if admit {
		t.Error("expected monocular to defer (not admit) when LocalMapper is busy")
	}
	if !interrupt {
		t.Error("expected InterruptBA signal when LocalMapper is busy but conditions otherwise hold")
	}
}

func TestBusyLocalMapperRGBDAdmitsWithShortQueue(t *testing.T) {
	in := baseInput()
	in.Sensor = config.SensorRGBD
	in.KeyFramesInMap = 5
	in.RefTrackedPoints = 100
	in.CurrentInliers = 20 // 20 < 0.75*100
	in.FramesSinceLastKF = in.MaxFrames()
	in.LocalMapperAcceptKeyFrames = false
	in.LocalMapperQueueLength = 2

	admit, interrupt := Decide(in)
	if !admit {
		t.Error("expected RGBD to admit when LocalMapper is busy but its queue has <3 pending")
	}
	if !interrupt {
		t.Error("expected InterruptBA signal")
	}
}

func TestBusyLocalMapperRGBDRejectsWithLongQueue(t *testing.T) {
	in := baseInput()
	in.Sensor = config.SensorRGBD
	in.KeyFramesInMap = 5
	in.RefTrackedPoints = 100
	in.CurrentInliers = 20
	in.FramesSinceLastKF = in.MaxFrames()
	in.LocalMapperAcceptKeyFrames = false
	in.LocalMapperQueueLength = 3

	admit, _ := Decide(in)
	if admit {
		t.Error("expected RGBD to reject when LocalMapper's queue has >=3 pending")
	}
}

func TestC1cRGBDCloseDepthInsufficiency(t *testing.T) {
	in := baseInput()
	in.Sensor = config.SensorRGBD
	in.KeyFramesInMap = 5
	in.RefTrackedPoints = 1000 // overridden to 2000 below: 800/2000 = 0.4 is above 0.25, so C1c triggers only via needClose
	in.CurrentInliers = 800    // ratioCond holds: 800 < 0.75*2000
	in.RefTrackedPoints = 2000
	in.CloseTrackedCount = 50
	in.CloseUntrackedCandidates = 80
	in.FramesSinceLastKF = 0
	in.LocalMapperQueueLength = 1 // C1b false

	admit, _ := Decide(in)
	if !admit {
		t.Error("expected C1c (close-depth insufficiency) to admit on RGBD even with frames_since_last_kf = 0")
	}
}
