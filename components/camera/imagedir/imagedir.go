// Package imagedir implements a frame source that plays back a directory of still images in
// lexical file order.
package imagedir

import (
	"context"
	"image"
	// register image decoders.
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"

	"go.viam.com/gatekeeper/components/camera"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

// Model is the config type of the image directory source.
const Model = "imagedir"

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".ppm":  true,
}

// Config describes which files to play back.
type Config struct {
	Dir string `json:"dir"`
	// Pattern is a filepath.Match glob applied to file names. Empty matches everything.
	Pattern string `json:"pattern,omitempty"`
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

// Source yields one decoded image per file.
type Source struct {
	mu     sync.Mutex
	files  []string
	next   int
	logger logging.Logger
}

// NewSource lists the matching images in conf.Dir. A directory with no images is an error.
func NewSource(conf Config, logger logging.Logger) (*Source, error) {
	if conf.Dir == "" {
		return nil, errors.New(`"dir" is required`)
	}
	pattern := conf.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, errors.Wrapf(err, "bad pattern %q", pattern)
	}

	entries, err := os.ReadDir(conf.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list %s", conf.Dir)
	}
	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		//nolint:errcheck
		if ok, _ := filepath.Match(pattern, entry.Name()); ok {
			files = append(files, filepath.Join(conf.Dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images matching %q in %s", pattern, conf.Dir)
	}
	sort.Strings(files)
	logger.Debugw("playing back image directory", "dir", conf.Dir, "frames", len(files))
	return &Source{files: files, logger: logger}, nil
}

// Len returns the number of frames the source will yield.
func (s *Source) Len() int {
	return len(s.files)
}

// Next decodes the next file, or returns camera.ErrSourceExhausted after the last one.
func (s *Source) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.files) {
		return nil, camera.ErrSourceExhausted
	}
	path := s.files[s.next]
	s.next++

	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s", path)
	}
	return img, nil
}

// Close does nothing; files are opened per frame.
func (s *Source) Close(ctx context.Context) error {
	return nil
}
