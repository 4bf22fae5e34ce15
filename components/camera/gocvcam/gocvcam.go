//go:build gocv

// Package gocvcam implements a frame source and an on-screen window backed by OpenCV. It is only
// built with the gocv tag since it needs the OpenCV shared libraries.
package gocvcam

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"go.viam.com/gatekeeper/components/camera"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
	"go.viam.com/gatekeeper/render"
)

// Model is the config type of the OpenCV source.
const Model = "gocv"

// Config picks a capture device or a video file.
type Config struct {
	Device int    `json:"device,omitempty"`
	File   string `json:"file,omitempty"`
}

func init() {
	camera.Registry.Register(Model, func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (camera.Source, error) {
		var conf Config
		if err := attrs.Decode(&conf); err != nil {
			return nil, err
		}
		return NewSource(conf, logger)
	})
}

// Source reads frames through an OpenCV VideoCapture.
type Source struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	isFile  bool
	logger  logging.Logger
}

// NewSource opens the configured file, or the capture device when no file is given.
func NewSource(conf Config, logger logging.Logger) (*Source, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	if conf.File != "" {
		capture, err = gocv.VideoCaptureFile(conf.File)
	} else {
		capture, err = gocv.VideoCaptureDevice(conf.Device)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot open video capture")
	}
	if !capture.IsOpened() {
		return nil, multiClose(capture, errors.New("video capture did not open"))
	}
	return &Source{capture: capture, mat: gocv.NewMat(), isFile: conf.File != "", logger: logger}, nil
}

func multiClose(capture *gocv.VideoCapture, err error) error {
	if closeErr := capture.Close(); closeErr != nil {
		return errors.Wrap(err, closeErr.Error())
	}
	return err
}

// Next reads one frame. A file that stops returning frames is exhausted; a device that does is
// a read failure.
func (s *Source) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		if s.isFile {
			return nil, camera.ErrSourceExhausted
		}
		return nil, errors.New("cannot read frame from capture device")
	}
	return s.mat.ToImage()
}

// Close releases the capture.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mat.Close(); err != nil {
		return err
	}
	return s.capture.Close()
}

// Window shows annotated frames on screen. Pressing q requests termination.
type Window struct {
	window     *gocv.Window
	targetName string
	quit       atomic.Bool
}

// NewWindow opens a window titled title.
func NewWindow(title, targetName string) *Window {
	return &Window{window: gocv.NewWindow(title), targetName: targetName}
}

// Render draws the frame and polls the keyboard.
func (w *Window) Render(ctx context.Context, frame render.Frame) error {
	annotated := render.Overlay(frame.Image, frame.Qualifying, frame.Fired, w.targetName)
	mat, err := gocv.ImageToMatRGB(annotated)
	if err != nil {
		return err
	}
	defer mat.Close() //nolint:errcheck
	w.window.IMShow(mat)
	if key := w.window.WaitKey(1); key == 'q' || key == 'Q' {
		w.quit.Store(true)
	}
	return nil
}

// Requested reports whether q was pressed.
func (w *Window) Requested() bool {
	return w.quit.Load()
}

// Close closes the window.
func (w *Window) Close() error {
	return w.window.Close()
}
