package tracker

import "errors"

// Error taxonomy (§7). Track() and its Grab* entry points never let these
// escape directly except FatalConfig/InputViolation, which propagate to
// the caller; TransientTrackingFailure/BootstrapFailure/EarlyLoss are
// handled internally (state transitions) and only surface through the
// logger.
var (
	// ErrTransientTrackingFailure means not enough matches, alignment
	// failed, or BA produced too few inliers. The tracker demotes to
	// Lost and attempts relocalization on the next frame.
	ErrTransientTrackingFailure = errors.New("tracker: transient tracking failure")

	// ErrBootstrapFailure means monocular initialization produced a
	// non-positive median depth or too few reliable triangulated points.
	// The tracker resets its bootstrap stage but stays NotInitialized.
	ErrBootstrapFailure = errors.New("tracker: bootstrap failure")

	// ErrEarlyLoss means the tracker went Lost within a handful of
	// keyframes of initialization, considered a spurious bootstrap. The
	// tracker performs a full system reset.
	ErrEarlyLoss = errors.New("tracker: early loss, resetting")

	// ErrFatalConfig means the supplied configuration was missing or
	// invalid. Propagated to the caller; the tracker refuses to start.
	ErrFatalConfig = errors.New("tracker: fatal configuration error")

	// ErrInputViolation means the input image did not have exactly one
	// channel (grayscale). A contract violation, not a tracking failure.
	ErrInputViolation = errors.New("tracker: input violation")
)

// EarlyLossKeyFrameThreshold is §4.1's "≤5 keyframes after init" cutoff.
const EarlyLossKeyFrameThreshold = 5
