package control

import (
	"time"

	"github.com/montanaflynn/stats"
)

// StopReason says why the loop ended.
type StopReason int

const (
	// ReasonExhausted means the source had no more frames.
	ReasonExhausted StopReason = iota
	// ReasonTerminated means the termination signal was raised.
	ReasonTerminated
	// ReasonCanceled means the context was canceled.
	ReasonCanceled
	// ReasonReadFailure means a frame could not be read.
	ReasonReadFailure
)

func (r StopReason) String() string {
	switch r {
	case ReasonExhausted:
		return "source exhausted"
	case ReasonTerminated:
		return "terminated"
	case ReasonCanceled:
		return "canceled"
	case ReasonReadFailure:
		return "frame read failure"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Stats summarizes a run.
type Stats struct {
	Frames            int            `json:"frames"`
	Activations       int            `json:"activations"`
	DetectorErrors    int            `json:"detector_errors"`
	InvalidDetections int            `json:"invalid_detections"`
	RenderErrors      int            `json:"render_errors"`
	RecordErrors      int            `json:"record_errors"`
	Reason            StopReason     `json:"reason"`
	Latency           LatencySummary `json:"latency"`
}

// LatencySummary describes per-frame processing time. Mean and Max cover the whole run; the
// percentiles cover the most recent latencyWindowSize frames.
type LatencySummary struct {
	Mean time.Duration `json:"mean_ns"`
	P50  time.Duration `json:"p50_ns"`
	P95  time.Duration `json:"p95_ns"`
	Max  time.Duration `json:"max_ns"`
}

func summarize(latencies []time.Duration) LatencySummary {
	if len(latencies) == 0 {
		return LatencySummary{}
	}
	data := make(stats.Float64Data, 0, len(latencies))
	for _, l := range latencies {
		data = append(data, float64(l))
	}
	//nolint:errcheck
	mean, _ := data.Mean()
	//nolint:errcheck
	p50, _ := data.Percentile(50)
	//nolint:errcheck
	p95, _ := data.Percentile(95)
	//nolint:errcheck
	maxLatency, _ := data.Max()
	return LatencySummary{
		Mean: time.Duration(mean),
		P50:  time.Duration(p50),
		P95:  time.Duration(p95),
		Max:  time.Duration(maxLatency),
	}
}

const latencyWindowSize = 1024

// latencyWindow keeps whole-run mean and max plus a fixed ring of recent samples, so a source
// that never ends does not grow it.
type latencyWindow struct {
	recent []time.Duration
	next   int
	count  int64
	total  time.Duration
	max    time.Duration
}

func newLatencyWindow(size int) *latencyWindow {
	return &latencyWindow{recent: make([]time.Duration, 0, size)}
}

func (w *latencyWindow) add(d time.Duration) {
	w.count++
	w.total += d
	if d > w.max {
		w.max = d
	}
	if len(w.recent) < cap(w.recent) {
		w.recent = append(w.recent, d)
		return
	}
	w.recent[w.next] = d
	w.next = (w.next + 1) % len(w.recent)
}

func (w *latencyWindow) summary() LatencySummary {
	if w.count == 0 {
		return LatencySummary{}
	}
	s := summarize(w.recent)
	s.Mean = w.total / time.Duration(w.count)
	s.Max = w.max
	return s
}
