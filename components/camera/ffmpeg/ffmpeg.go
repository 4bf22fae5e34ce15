// Package ffmpeg provides a frame source backed by an ffmpeg process. Anything ffmpeg can read
// (video files, RTSP/HTTP streams, capture devices) is transcoded to MJPEG and decoded in order.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.viam.com/utils"

	"go.viam.com/gatekeeper/components/camera"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// Model is the config type of the ffmpeg source.
const Model = "ffmpeg"

// Config is the attribute struct for ffmpeg sources.
type Config struct {
	Source       string                 `json:"source"`
	InputKWArgs  map[string]interface{} `json:"input_kw_args,omitempty"`
	OutputKWArgs map[string]interface{} `json:"output_kw_args,omitempty"`
	// OpenTimeoutMS bounds the wait for the first frame. Zero means defaultOpenTimeout.
	OpenTimeoutMS int `json:"open_timeout_ms,omitempty"`
}

const defaultOpenTimeout = 10 * time.Second

func init() {
	camera.Registry.Register(Model, func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (camera.Source, error) {
		var conf Config
		if err := attrs.Decode(&conf); err != nil {
			return nil, err
		}
		return NewSource(ctx, conf, logger)
	})
}

// Source reads frames from an ffmpeg child process.
type Source struct {
	mu     sync.Mutex
	frames *bufio.Reader
	// first holds the frame read while opening until Next returns it.
	first  []byte
	pipe   *io.PipeReader
	done   chan struct{}
	// runErr is set before done is closed.
	runErr error

	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
	logger                  logging.Logger
}

// NewSource starts ffmpeg on conf.Source and waits for the first frame, so that an input ffmpeg
// cannot open fails here rather than on the first Next.
func NewSource(ctx context.Context, conf Config, logger logging.Logger) (*Source, error) {
	// make sure ffmpeg is in the path before doing anything else
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, err
	}
	if conf.Source == "" {
		return nil, errors.New(`"source" is required`)
	}
	if conf.OpenTimeoutMS < 0 {
		return nil, errors.Errorf(`"open_timeout_ms" must be non-negative, got %d`, conf.OpenTimeoutMS)
	}

	outArgs := make(map[string]interface{}, len(conf.OutputKWArgs)+2)
	for key, value := range conf.OutputKWArgs {
		outArgs[key] = value
	}
	outArgs["format"] = "image2pipe"
	outArgs["vcodec"] = "mjpeg"

	cancelableCtx, cancel := context.WithCancel(context.Background())
	in, out := io.Pipe()
	src := &Source{
		frames: bufio.NewReaderSize(in, 1<<20),
		pipe:   in,
		done:   make(chan struct{}),
		cancel: cancel,
		logger: logger,
	}

	src.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		stream := ffmpeg.Input(conf.Source, conf.InputKWArgs).Output("pipe:", outArgs)
		stream.Context = cancelableCtx
		err := stream.WithOutput(out).Run()
		if err != nil && cancelableCtx.Err() == nil {
			src.runErr = err
			logger.Warnw("ffmpeg exited", "source", conf.Source, "error", err)
		}
		close(src.done)
		// readers see EOF once the buffered frames are consumed
		utils.UncheckedError(out.CloseWithError(io.EOF))
	}, src.activeBackgroundWorkers.Done)

	timeout := defaultOpenTimeout
	if conf.OpenTimeoutMS > 0 {
		timeout = time.Duration(conf.OpenTimeoutMS) * time.Millisecond
	}
	openCtx, cancelOpen := context.WithTimeout(ctx, timeout)
	defer cancelOpen()
	if err := src.readFirst(openCtx); err != nil {
		utils.UncheckedError(src.Close(context.Background()))
		return nil, errors.Wrapf(err, "ffmpeg cannot open %q", conf.Source)
	}
	return src, nil
}

// readFirst buffers the first frame. An input that ends cleanly before any frame is not an
// error; Next reports it as exhausted.
func (s *Source) readFirst(ctx context.Context) error {
	read := make(chan error, 1)
	go func() {
		frame, err := readJPEG(s.frames)
		s.first = frame
		read <- err
	}()

	select {
	case <-ctx.Done():
		s.cancel()
		utils.UncheckedError(s.pipe.Close())
		<-read
		return errors.Wrap(ctx.Err(), "no frame before the open timeout")
	case err := <-read:
		if err == nil {
			return nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			<-s.done
			if s.runErr != nil {
				return s.runErr
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
		}
		return err
	}
}

// Next decodes the next frame. A clean end of stream is camera.ErrSourceExhausted; an ffmpeg
// failure is returned as is.
func (s *Source) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame := s.first
	s.first = nil
	var err error
	if frame == nil {
		frame, err = readJPEG(s.frames)
	}
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			select {
			case <-s.done:
				if s.runErr != nil {
					return nil, errors.Wrap(s.runErr, "ffmpeg failed")
				}
			default:
			}
			return nil, camera.ErrSourceExhausted
		}
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode ffmpeg frame")
	}
	return img, nil
}

// Close stops ffmpeg and waits for it to exit.
func (s *Source) Close(ctx context.Context) error {
	s.cancel()
	utils.UncheckedError(s.pipe.Close())
	s.activeBackgroundWorkers.Wait()
	return nil
}

// readJPEG returns the bytes of the next JPEG image in an MJPEG stream, from the SOI marker
// through the EOI marker. Entropy-coded data stuffs 0xFF bytes, so 0xFFD9 only appears as EOI.
func readJPEG(r *bufio.Reader) ([]byte, error) {
	var prev byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if prev == 0xFF && b == 0xD8 {
			break
		}
		prev = b
	}

	frame := []byte{0xFF, 0xD8}
	prev = 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		frame = append(frame, b)
		if prev == 0xFF && b == 0xD9 {
			return frame, nil
		}
		prev = b
	}
}
