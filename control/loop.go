// Package control runs the frame-by-frame detection loop that drives the gate: acquire a frame,
// detect, filter, step the gate controller, render, repeat.
package control

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"golang.org/x/time/rate"

	"go.viam.com/gatekeeper/components/camera"
	"go.viam.com/gatekeeper/events"
	"go.viam.com/gatekeeper/gate"
	"go.viam.com/gatekeeper/logging"
	"go.viam.com/gatekeeper/render"
	"go.viam.com/gatekeeper/vision/objectdetection"
)

// A Recorder persists activations.
type Recorder interface {
	Record(ctx context.Context, a events.Activation) error
}

// Params are the collaborators and settings of a loop. Source, Detector, Filter, Gate and
// Logger are required.
type Params struct {
	Source   camera.Source
	Detector objectdetection.Detector
	Filter   *objectdetection.TargetFilter
	Gate     *gate.Controller

	Renderer render.Renderer
	Recorder Recorder
	Signal   TerminationSignal

	// MaxFPS throttles frame acquisition. Zero means unthrottled.
	MaxFPS float64
	// Prefetch reads up to this many frames ahead on a background goroutine. Zero reads inline.
	Prefetch int

	// Clock timestamps frames and reports status. Nil means the gate controller's clock.
	Clock  clock.Clock
	Logger logging.Logger
}

// Status is a point in time view of a running loop.
type Status struct {
	Gate    gate.Snapshot `json:"gate"`
	Frames  int           `json:"frames"`
	Running bool          `json:"running"`
}

// Loop is the orchestration loop. Only the goroutine calling Run touches the gate controller.
type Loop struct {
	p       Params
	limiter *rate.Limiter

	mu        sync.Mutex
	running   bool
	frames    int
	gateState gate.State
	gateSnap  gate.Snapshot

	activeBackgroundWorkers sync.WaitGroup
}

// NewLoop validates params and returns a loop ready to Run.
func NewLoop(p Params) (*Loop, error) {
	switch {
	case p.Source == nil:
		return nil, errors.New("loop needs a frame source")
	case p.Detector == nil:
		return nil, errors.New("loop needs a detector")
	case p.Filter == nil:
		return nil, errors.New("loop needs a target filter")
	case p.Gate == nil:
		return nil, errors.New("loop needs a gate controller")
	case p.Logger == nil:
		return nil, errors.New("loop needs a logger")
	case p.MaxFPS < 0:
		return nil, errors.Errorf("max fps must be non-negative, got %v", p.MaxFPS)
	case p.Prefetch < 0:
		return nil, errors.Errorf("prefetch must be non-negative, got %d", p.Prefetch)
	}
	if p.Clock == nil {
		p.Clock = p.Gate.Clock()
	}
	if p.Signal == nil {
		p.Signal = SignalFunc(func() bool { return false })
	}
	l := &Loop{p: p, gateSnap: p.Gate.Snapshot()}
	if p.MaxFPS > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(p.MaxFPS), 1)
	}
	return l, nil
}

// Status returns the current status. It is safe to call from any goroutine.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := l.gateSnap
	snap.Phase = l.gateState.Phase(snap.Cooldown, l.p.Clock.Now())
	return Status{Gate: snap, Frames: l.frames, Running: l.running}
}

type frameResult struct {
	img image.Image
	err error
}

// frameFunc returns the next frame.
type frameFunc func(ctx context.Context) (image.Image, error)

// startPrefetch reads frames ahead into an ordered channel. It stops after the first error.
func (l *Loop) startPrefetch(ctx context.Context) frameFunc {
	frames := make(chan frameResult, l.p.Prefetch)
	l.activeBackgroundWorkers.Add(1)
	go func() {
		defer l.activeBackgroundWorkers.Done()
		defer close(frames)
		for {
			img, err := l.p.Source.Next(ctx)
			select {
			case frames <- frameResult{img: img, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return func(ctx context.Context) (image.Image, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok := <-frames:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return nil, camera.ErrSourceExhausted
			}
			return res.img, res.err
		}
	}
}

// Run processes frames until the source is exhausted or fails, the termination signal is
// raised, or ctx is canceled. A frame read failure ends the run gracefully: it is logged and
// reported in Stats.Reason, not returned.
func (l *Loop) Run(ctx context.Context) (Stats, error) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return Stats{}, errors.New("loop is already running")
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		l.activeBackgroundWorkers.Wait()
	}()

	next := frameFunc(l.p.Source.Next)
	if l.p.Prefetch > 0 {
		next = l.startPrefetch(runCtx)
	}

	var stats Stats
	latencies := newLatencyWindow(latencyWindowSize)
	logger := l.p.Logger
	for {
		if ctx.Err() != nil {
			stats.Reason = ReasonCanceled
			break
		}
		if l.p.Signal.Requested() {
			stats.Reason = ReasonTerminated
			break
		}
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				stats.Reason = ReasonCanceled
				break
			}
		}

		started := time.Now()
		img, err := next(runCtx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				stats.Reason = ReasonCanceled
			case camera.IsExhausted(err):
				stats.Reason = ReasonExhausted
			default:
				logger.Errorw("cannot read frame, stopping", "frame", stats.Frames+1, "error", err)
				stats.Reason = ReasonReadFailure
			}
			break
		}
		stats.Frames++
		l.processFrame(runCtx, stats.Frames, img, &stats)
		latencies.add(time.Since(started))
	}

	stats.Latency = latencies.summary()
	logger.Infow("detection loop stopped",
		"reason", stats.Reason.String(),
		"frames", stats.Frames,
		"activations", stats.Activations,
		"detector_errors", stats.DetectorErrors,
		"latency_p50", stats.Latency.P50,
		"latency_p95", stats.Latency.P95,
	)
	return stats, nil
}

func (l *Loop) processFrame(ctx context.Context, index int, img image.Image, stats *Stats) {
	ctx, span := trace.StartSpan(ctx, "control::processFrame")
	defer span.End()
	span.AddAttributes(trace.Int64Attribute("frame", int64(index)))
	logger := l.p.Logger

	dets, err := l.p.Detector.Detect(ctx, img)
	if err != nil {
		stats.DetectorErrors++
		logger.Warnw("detector failed, treating frame as empty", "frame", index, "error", err)
		dets = nil
	}

	result := l.p.Filter.Apply(dets)
	if result.Invalid > 0 {
		stats.InvalidDetections += result.Invalid
		logger.Warnw("ignoring detections outside the detector contract", "frame", index, "count", result.Invalid)
	}

	fired := l.p.Gate.Step(ctx, result.Found)
	now := l.p.Clock.Now()
	if fired {
		// activation frames log their detections at any level
		ctx = logging.EnableDebugMode(ctx, fmt.Sprintf("activation-%d", index))
		stats.Activations++
		span.AddAttributes(trace.BoolAttribute("fired", true))
		if l.p.Recorder != nil {
			best, _ := result.Best()
			at := l.p.Gate.State().LastActivation
			if err := l.p.Recorder.Record(ctx, events.NewActivation(at, index, best)); err != nil {
				stats.RecordErrors++
				logger.Warnw("cannot record activation", "frame", index, "error", err)
			}
		}
	}

	l.mu.Lock()
	l.frames = index
	l.gateState = l.p.Gate.State()
	l.gateSnap = l.p.Gate.Snapshot()
	l.mu.Unlock()

	logger.CDebugw(ctx, "frame processed",
		"frame", index,
		"detections", len(dets),
		"qualifying", len(result.Qualifying),
		"fired", fired,
		"phase", l.gateSnap.Phase.String(),
	)

	if l.p.Renderer != nil {
		frame := render.Frame{
			Index:      index,
			Time:       now,
			Image:      img,
			Qualifying: result.Qualifying,
			Fired:      fired,
			Phase:      l.gateSnap.Phase,
		}
		if err := l.p.Renderer.Render(ctx, frame); err != nil {
			stats.RenderErrors++
			logger.Warnw("cannot render frame", "frame", index, "error", err)
		}
	}
}
