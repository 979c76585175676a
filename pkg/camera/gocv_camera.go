//go:build cgo
// +build cgo

package camera

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const fourccMJPEG = 0x47504A4D

// GoCVCamera implements Source using OpenCV via GoCV, adapted from the
// teacher's OpenCVCamera: V4L2 backend, MJPEG codec for USB webcam
// compatibility, grayscale output in place of RGB24 since the tracker's
// extractor operates on single-channel images.
type GoCVCamera struct {
	mu sync.Mutex

	deviceID      int
	width, height int
	fps           int

	webcam *gocv.VideoCapture
	opened bool
}

// NewGoCVCamera returns a camera source for the given device/resolution/fps.
// A zero width/height/fps leaves the driver's default in place.
func NewGoCVCamera(deviceID, width, height, fps int) *GoCVCamera {
	return &GoCVCamera{deviceID: deviceID, width: width, height: height, fps: fps}
}

// Open starts the underlying video capture device.
func (c *GoCVCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened {
		return fmt.Errorf("camera: device %d already opened", c.deviceID)
	}

	webcam, err := gocv.OpenVideoCaptureWithAPI(c.deviceID, gocv.VideoCaptureV4L2)
	if err != nil {
		return fmt.Errorf("camera: opening device %d: %w", c.deviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("camera: device %d not found or unavailable", c.deviceID)
	}

	webcam.Set(gocv.VideoCaptureFOURCC, fourccMJPEG)
	if c.width > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	}
	if c.height > 0 {
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	}
	if c.fps > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}

	c.width = int(webcam.Get(gocv.VideoCaptureFrameWidth))
	c.height = int(webcam.Get(gocv.VideoCaptureFrameHeight))
	c.fps = int(webcam.Get(gocv.VideoCaptureFPS))
	c.webcam = webcam
	c.opened = true

	warmup := gocv.NewMat()
	c.webcam.Read(&warmup)
	warmup.Close()

	return nil
}

// Read captures a single grayscale frame.
func (c *GoCVCamera) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return Frame{}, fmt.Errorf("camera: device %d not opened", c.deviceID)
	}

	raw := gocv.NewMat()
	defer raw.Close()
	if ok := c.webcam.Read(&raw); !ok {
		return Frame{}, fmt.Errorf("camera: failed to read frame from device %d", c.deviceID)
	}
	if raw.Empty() {
		return Frame{}, fmt.Errorf("camera: captured frame is empty")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(raw, &gray, gocv.ColorBGRToGray) //nolint:errcheck

	return Frame{
		Gray:      gray.ToBytes(),
		Width:     gray.Cols(),
		Height:    gray.Rows(),
		Timestamp: time.Now(),
	}, nil
}

// Close releases the underlying capture device.
func (c *GoCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil
	}
	if c.webcam != nil {
		if err := c.webcam.Close(); err != nil {
			c.opened = false
			return fmt.Errorf("camera: closing device %d: %w", c.deviceID, err)
		}
	}
	c.opened = false
	return nil
}

var _ Source = (*GoCVCamera)(nil)
