// Package camera defines the frame sources that feed the detection loop.
package camera

import (
	"context"
	"image"
	"io"

	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
	"go.viam.com/gatekeeper/registry"
)

var (
	// ErrSourceExhausted is returned by Next once a finite source has no more frames.
	ErrSourceExhausted = errors.New("frame source exhausted")
	// ErrSourceUnavailable matches, via errors.Is, every error returned by Open.
	ErrSourceUnavailable = errors.New("frame source unavailable")
)

// Registry holds the frame source models. Subpackages register themselves from init.
var Registry = registry.New[Source]("camera")

// A Source produces frames in order.
type Source interface {
	// Next blocks until the next frame is available. It returns ErrSourceExhausted (or io.EOF)
	// at the end of a finite stream and any other error when a frame could not be read.
	Next(ctx context.Context) (image.Image, error)
	// Close releases the underlying device or process.
	Close(ctx context.Context) error
}

// IsExhausted reports whether err marks the normal end of a stream.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrSourceExhausted) || errors.Is(err, io.EOF)
}

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return ErrSourceUnavailable.Error() + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() error {
	return e.err
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// Open builds the source described by conf. Any failure is reported as ErrSourceUnavailable.
func Open(ctx context.Context, conf config.Component, logger logging.Logger) (Source, error) {
	src, err := Registry.Build(ctx, conf, logger)
	if err != nil {
		return nil, &unavailableError{err: err}
	}
	return src, nil
}

// SourceFunc adapts a function to the Source interface. Close is a no-op.
type SourceFunc func(ctx context.Context) (image.Image, error)

// Next calls f.
func (f SourceFunc) Next(ctx context.Context) (image.Image, error) {
	return f(ctx)
}

// Close does nothing.
func (f SourceFunc) Close(ctx context.Context) error {
	return nil
}

// Frames returns a source that yields frames in order and then ErrSourceExhausted.
func Frames(frames ...image.Image) Source {
	next := 0
	return SourceFunc(func(ctx context.Context) (image.Image, error) {
		if next >= len(frames) {
			return nil, ErrSourceExhausted
		}
		next++
		return frames[next-1], nil
	})
}
