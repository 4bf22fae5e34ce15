// Package objectdetection defines the detection record, the detector contract, and the filters
// that decide which detections are allowed to drive the gate.
package objectdetection

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/registry"
)

// Registry holds the detector models. Subpackages register themselves from init.
var Registry = registry.New[Detector]("detector")

// Detection is a single detected region in one frame.
type Detection struct {
	ClassID     int
	Label       string
	Confidence  float64
	BoundingBox image.Rectangle
}

// NewDetection creates a detection from its parts.
func NewDetection(box image.Rectangle, confidence float64, classID int, label string) Detection {
	return Detection{
		ClassID:     classID,
		Label:       label,
		Confidence:  confidence,
		BoundingBox: box,
	}
}

// Validate checks the detector output contract: a non-negative class id and a confidence
// in [0, 1].
func (d Detection) Validate() error {
	if d.ClassID < 0 {
		return errors.Errorf("class id must be non-negative, got %d", d.ClassID)
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return errors.Errorf("confidence must be in [0, 1], got %v", d.Confidence)
	}
	return nil
}

type detectionJSON struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

// MarshalJSON encodes the bounding box as [x1, y1, x2, y2].
func (d Detection) MarshalJSON() ([]byte, error) {
	b := d.BoundingBox
	return json.Marshal(detectionJSON{
		ClassID:    d.ClassID,
		Label:      d.Label,
		Confidence: d.Confidence,
		Box:        [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
	})
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var raw detectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = NewDetection(image.Rect(raw.Box[0], raw.Box[1], raw.Box[2], raw.Box[3]), raw.Confidence, raw.ClassID, raw.Label)
	return nil
}

// Area is the pixel area of the bounding box.
func (d Detection) Area() int {
	return d.BoundingBox.Dx() * d.BoundingBox.Dy()
}

func (d Detection) String() string {
	name := d.Label
	if name == "" {
		name = fmt.Sprintf("class %d", d.ClassID)
	}
	b := d.BoundingBox
	return fmt.Sprintf("%s %.2f (%d,%d)-(%d,%d)", name, d.Confidence, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
}

// A Detector finds regions of interest in a frame. It is called once per frame and the order
// of the returned detections carries no meaning.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}

// Build wraps a detector with postprocessors that run, in order, on every result.
func Build(det Detector, post ...Postprocessor) (Detector, error) {
	if det == nil {
		return nil, errors.New("must have a Detector to build a detection pipeline")
	}
	if len(post) == 0 {
		return det, nil
	}
	return DetectorFunc(func(ctx context.Context, img image.Image) ([]Detection, error) {
		dets, err := det.Detect(ctx, img)
		if err != nil {
			return nil, err
		}
		for _, p := range post {
			if p != nil {
				dets = p(dets)
			}
		}
		return dets, nil
	}), nil
}
