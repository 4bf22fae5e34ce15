package objectdetection

import (
	"math"

	"github.com/pkg/errors"
)

// FilterResult is the outcome of filtering one frame's detections.
type FilterResult struct {
	// Found is true when at least one detection qualified.
	Found bool
	// Qualifying holds the qualifying detections in input order.
	Qualifying []Detection
	// Invalid counts detections that broke the detector contract and were skipped.
	Invalid int
}

// Best returns the qualifying detection with the highest confidence.
func (r FilterResult) Best() (Detection, bool) {
	if len(r.Qualifying) == 0 {
		return Detection{}, false
	}
	best := r.Qualifying[0]
	for _, d := range r.Qualifying[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}

// TargetFilter selects detections of a single class whose confidence strictly exceeds a
// threshold.
type TargetFilter struct {
	classID   int
	threshold float64
}

// NewTargetFilter returns a filter for the given class id and confidence threshold.
func NewTargetFilter(classID int, threshold float64) (*TargetFilter, error) {
	if classID < 0 {
		return nil, errors.Errorf("target class must be non-negative, got %d", classID)
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, errors.Errorf("confidence threshold must be in [0, 1], got %v", threshold)
	}
	return &TargetFilter{classID: classID, threshold: threshold}, nil
}

// ClassID is the target class.
func (f *TargetFilter) ClassID() int {
	return f.classID
}

// Threshold is the exclusive confidence threshold.
func (f *TargetFilter) Threshold() float64 {
	return f.threshold
}

// Qualifies reports whether a single detection qualifies.
func (f *TargetFilter) Qualifies(d Detection) bool {
	if d.Validate() != nil {
		return false
	}
	return d.ClassID == f.classID && d.Confidence > f.threshold
}

// Apply filters one frame's detections. An empty input is not an error.
func (f *TargetFilter) Apply(dets []Detection) FilterResult {
	var res FilterResult
	for _, d := range dets {
		if d.Validate() != nil {
			res.Invalid++
			continue
		}
		if d.ClassID == f.classID && d.Confidence > f.threshold {
			res.Qualifying = append(res.Qualifying, d)
		}
	}
	res.Found = len(res.Qualifying) > 0
	return res
}
