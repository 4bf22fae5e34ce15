package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/gatekeeper/gate"
	"go.viam.com/gatekeeper/vision/objectdetection"
)

// Frame is everything known about one processed frame.
type Frame struct {
	// Index counts frames from 1.
	Index      int
	Time       time.Time
	Image      image.Image
	Qualifying []objectdetection.Detection
	// Fired is set when the gate was triggered on this frame.
	Fired bool
	Phase gate.Phase
}

// A Renderer presents processed frames. Errors are reported to the caller but never stop the loop.
type Renderer interface {
	Render(ctx context.Context, frame Frame) error
}

// Func adapts a function to the Renderer interface.
type Func func(ctx context.Context, frame Frame) error

// Render calls f.
func (f Func) Render(ctx context.Context, frame Frame) error {
	return f(ctx, frame)
}

// Multi renders to every renderer in order, combining their errors.
type Multi []Renderer

// Render calls every renderer, even after one fails.
func (m Multi) Render(ctx context.Context, frame Frame) error {
	var err error
	for _, r := range m {
		if r != nil {
			err = multierr.Combine(err, r.Render(ctx, frame))
		}
	}
	return err
}

// FrameWriter writes annotated frames as numbered JPEG files.
type FrameWriter struct {
	dir        string
	onFireOnly bool
	targetName string
	quality    int
}

// NewFrameWriter creates dir if needed. With onFireOnly, only frames where the gate fired are
// written.
func NewFrameWriter(dir string, onFireOnly bool, targetName string) (*FrameWriter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "cannot create frame dump dir %s", dir)
	}
	return &FrameWriter{dir: dir, onFireOnly: onFireOnly, targetName: targetName, quality: 85}, nil
}

// Path is the file a frame is written to.
func (w *FrameWriter) Path(frame Frame) string {
	return filepath.Join(w.dir, fmt.Sprintf("frame_%06d.jpg", frame.Index))
}

// Render writes the frame if it should be kept.
func (w *FrameWriter) Render(ctx context.Context, frame Frame) error {
	if w.onFireOnly && !frame.Fired {
		return nil
	}
	annotated := Overlay(frame.Image, frame.Qualifying, frame.Fired, w.targetName)
	f, err := os.Create(w.Path(frame))
	if err != nil {
		return err
	}
	return multierr.Combine(jpeg.Encode(f, annotated, &jpeg.Options{Quality: w.quality}), f.Close())
}

// Latest keeps the most recent annotated frame encoded as JPEG.
type Latest struct {
	targetName string

	mu    sync.RWMutex
	jpeg  []byte
	index int
}

// NewLatest returns an empty Latest.
func NewLatest(targetName string) *Latest {
	return &Latest{targetName: targetName}
}

// Render encodes and stores the frame.
func (l *Latest) Render(ctx context.Context, frame Frame) error {
	var buf bytes.Buffer
	annotated := Overlay(frame.Image, frame.Qualifying, frame.Fired, l.targetName)
	if err := jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: 75}); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jpeg = buf.Bytes()
	l.index = frame.Index
	return nil
}

// JPEG returns the latest frame and its index, or false before the first frame.
func (l *Latest) JPEG() ([]byte, int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.jpeg == nil {
		return nil, 0, false
	}
	return l.jpeg, l.index, true
}
