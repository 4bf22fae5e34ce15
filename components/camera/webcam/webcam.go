// Package webcam implements a frame source for locally attached cameras via mediadevices.
package webcam

import (
	"context"
	"image"
	"image/draw"
	"strings"
	"sync"

	"github.com/pion/mediadevices"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/components/camera"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// Model is the config type of the webcam source.
const Model = "webcam"

// Config selects and sizes the webcam.
type Config struct {
	// Label picks the first device whose label contains it. Empty picks any camera.
	Label  string `json:"label,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
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

// makeConstraints returns the mediadevices constraints for conf.
func makeConstraints(conf Config, deviceID string, logger logging.Logger) mediadevices.MediaStreamConstraints {
	return mediadevices.MediaStreamConstraints{
		Video: func(constraint *mediadevices.MediaTrackConstraints) {
			if deviceID != "" {
				constraint.DeviceID = prop.String(deviceID)
			}
			if conf.Width > 0 {
				constraint.Width = prop.IntExact(conf.Width)
			} else {
				constraint.Width = prop.IntRanged{Min: 0, Ideal: 640, Max: 4096}
			}
			if conf.Height > 0 {
				constraint.Height = prop.IntExact(conf.Height)
			} else {
				constraint.Height = prop.IntRanged{Min: 0, Ideal: 480, Max: 2160}
			}
			constraint.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatI420,
				frame.FormatYUY2,
				frame.FormatUYVY,
				frame.FormatMJPEG,
				frame.FormatNV12,
				frame.FormatRGBA,
			}
			logger.Debugf("constraints: %v", constraint)
		},
	}
}

// findDevice returns the id of the first video device whose label contains label.
func findDevice(label string) (string, error) {
	for _, device := range mediadevices.EnumerateDevices() {
		if device.Kind == mediadevices.VideoInput && strings.Contains(device.Label, label) {
			return device.DeviceID, nil
		}
	}
	return "", errors.Errorf("no webcam with label containing %q", label)
}

// Source reads frames from a webcam.
type Source struct {
	mu     sync.Mutex
	track  mediadevices.Track
	reader video.Reader
	logger logging.Logger
}

// NewSource opens the webcam selected by conf.
func NewSource(conf Config, logger logging.Logger) (*Source, error) {
	mediadevicescamera.Initialize()

	deviceID := ""
	if conf.Label != "" {
		var err error
		if deviceID, err = findDevice(conf.Label); err != nil {
			return nil, err
		}
	}
	stream, err := mediadevices.GetUserMedia(makeConstraints(conf, deviceID, logger))
	if err != nil {
		return nil, errors.Wrap(err, "found no webcams")
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, errors.New("webcam stream has no video track")
	}
	videoTrack, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		return nil, errors.Errorf("unexpected track type %T", tracks[0])
	}
	return &Source{track: videoTrack, reader: videoTrack.NewReader(false), logger: logger}, nil
}

// Next returns the next webcam frame. The frame is copied so it outlives the driver buffer.
func (s *Source) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, release, err := s.reader.Read()
	if release != nil {
		defer release()
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot read webcam frame")
	}
	return copyImage(img), nil
}

// Close stops the capture.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track.Close()
}

func copyImage(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
