// Package replay implements a detector that plays back recorded detections, one JSON array per
// line and per frame, so runs can be reproduced without a model.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"image"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
	"go.viam.com/gatekeeper/vision/objectdetection"
)

// Model is the config type of the replay detector.
const Model = "replay"

// Config is the attribute struct for the replay detector.
type Config struct {
	Path string `json:"path"`
}

func init() {
	objectdetection.Registry.Register(Model, func(
		ctx context.Context, attrs config.AttributeMap, logger logging.Logger,
	) (objectdetection.Detector, error) {
		var conf Config
		if err := attrs.Decode(&conf); err != nil {
			return nil, err
		}
		if conf.Path == "" {
			return nil, errors.New(`"path" is required`)
		}
		//nolint:gosec
		f, err := os.Open(conf.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close() //nolint:errcheck
		return NewDetector(f, logger)
	})
}

// Detector returns the recorded detections of frame i on its i-th call, ignoring the image.
// After the last recorded frame it returns no detections.
type Detector struct {
	mu     sync.Mutex
	frames [][]objectdetection.Detection
	next   int
}

// NewDetector reads every recorded frame from r. Blank lines are frames with no detections.
func NewDetector(r io.Reader, logger logging.Logger) (*Detector, error) {
	frames := [][]objectdetection.Detection{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		dets := []objectdetection.Detection{}
		if text := scanner.Bytes(); len(text) > 0 {
			if err := json.Unmarshal(text, &dets); err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
		}
		frames = append(frames, dets)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debugw("loaded recorded detections", "frames", len(frames))
	return &Detector{frames: frames}, nil
}

// Detect returns the next recorded frame.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.next >= len(d.frames) {
		return nil, nil
	}
	d.next++
	return append([]objectdetection.Detection(nil), d.frames[d.next-1]...), nil
}

// Len returns the number of recorded frames.
func (d *Detector) Len() int {
	return len(d.frames)
}

// Recorder writes detections in the format the replay detector reads.
type Recorder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewRecorder returns a recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: json.NewEncoder(w)}
}

// Record writes one frame of detections.
func (r *Recorder) Record(dets []objectdetection.Detection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dets == nil {
		dets = []objectdetection.Detection{}
	}
	return r.enc.Encode(dets)
}

// Wrap returns a detector that records everything det returns. A failed frame is recorded as
// an empty one.
func (r *Recorder) Wrap(det objectdetection.Detector) objectdetection.Detector {
	return objectdetection.DetectorFunc(func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		dets, err := det.Detect(ctx, img)
		if err != nil {
			// keep one line per frame so a replay stays aligned
			return nil, multierr.Combine(err, r.Record(nil))
		}
		if err := r.Record(dets); err != nil {
			return nil, errors.Wrap(err, "cannot record detections")
		}
		return dets, nil
	})
}
