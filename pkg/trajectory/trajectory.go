// Package trajectory implements §10.3's supplemented trajectory-recording
// feature: a line-oriented text dump of per-frame poses relative to their
// tracking-time reference keyframe, as named in §6's "Persisted state"
// entry. A plain line format is used instead of a speculative YAML
// dependency not otherwise exercised anywhere else in this module.
package trajectory

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jderobotics/vslamtrack/pkg/spatial"
)

// Entry is one recorded frame: its tracking-time pose relative to its
// reference keyframe (T_cr = T_cw * T_wk), the reference keyframe's id,
// and the frame's own id.
type Entry struct {
	FrameID  uint64
	RefKFID  uint64
	Relative spatial.Pose
}

// Recorder accumulates Entries and can flush them to a writer. It mirrors
// the teacher's pattern of small, explicitly-flushed in-memory buffers
// rather than an always-open file handle.
type Recorder struct {
	entries []Entry
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one tracked-frame entry.
func (r *Recorder) Record(e Entry) {
	r.entries = append(r.entries, e)
}

// Len reports the number of recorded entries.
func (r *Recorder) Len() int { return len(r.entries) }

// Entries returns the recorded entries in insertion order.
func (r *Recorder) Entries() []Entry {
	return r.entries
}

// WriteTo serializes every entry as one line:
//
//	<frame_id> <ref_kf_id> <qw> <qx> <qy> <qz> <tx> <ty> <tz>
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, e := range r.entries {
		q := e.Relative.Rotation
		t := e.Relative.Translation
		line := fmt.Sprintf("%d %d %s %s %s %s %s %s %s\n",
			e.FrameID, e.RefKFID,
			formatFloat(q.Real), formatFloat(q.Imag), formatFloat(q.Jmag), formatFloat(q.Kmag),
			formatFloat(t.X), formatFloat(t.Y), formatFloat(t.Z))
		n, err := bw.WriteString(line)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("trajectory: writing entry: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return total, fmt.Errorf("trajectory: flushing: %w", err)
	}
	return total, nil
}

// ReadFrom parses the line format written by WriteTo, replacing any
// existing entries.
func (r *Recorder) ReadFrom(rd io.Reader) (int64, error) {
	scanner := bufio.NewScanner(rd)
	var entries []Entry
	var total int64
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		total += int64(len(line)) + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 9 {
			return total, fmt.Errorf("trajectory: line %d: expected 9 fields, got %d", lineNo, len(fields))
		}
		frameID, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return total, fmt.Errorf("trajectory: line %d: parsing frame id: %w", lineNo, err)
		}
		refKFID, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return total, fmt.Errorf("trajectory: line %d: parsing reference keyframe id: %w", lineNo, err)
		}
		vals := make([]float64, 7)
		for i := 0; i < 7; i++ {
			v, err := strconv.ParseFloat(fields[2+i], 64)
			if err != nil {
				return total, fmt.Errorf("trajectory: line %d: parsing field %d: %w", lineNo, i, err)
			}
			vals[i] = v
		}
		entries = append(entries, Entry{
			FrameID: frameID,
			RefKFID: refKFID,
			Relative: spatial.Pose{
				Rotation:    quatFromComponents(vals[0], vals[1], vals[2], vals[3]),
				Translation: vecFromComponents(vals[4], vals[5], vals[6]),
			},
		})
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("trajectory: scanning: %w", err)
	}
	r.entries = entries
	return total, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 17, 64)
}

func quatFromComponents(w, x, y, z float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

func vecFromComponents(x, y, z float64) r3.Vec {
	return r3.Vec{X: x, Y: y, Z: z}
}
