package imagedir

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/gatekeeper/components/camera"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

func writeImage(t *testing.T, path string, width int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 4))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	switch filepath.Ext(path) {
	case ".png":
		err = png.Encode(f, img)
	case ".ppm":
		err = ppm.Encode(f, img)
	default:
		err = jpeg.Encode(f, img, nil)
	}
	test.That(t, err, test.ShouldBeNil)
}

func TestSourceOrder(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "frame_002.png"), 2)
	writeImage(t, filepath.Join(dir, "frame_001.jpg"), 1)
	writeImage(t, filepath.Join(dir, "frame_003.ppm"), 3)
	test.That(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600), test.ShouldBeNil)

	src, err := NewSource(Config{Dir: dir}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src.Len(), test.ShouldEqual, 3)

	for _, width := range []int{1, 2, 3} {
		img, err := src.Next(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds().Dx(), test.ShouldEqual, width)
	}
	_, err = src.Next(context.Background())
	test.That(t, errors.Is(err, camera.ErrSourceExhausted), test.ShouldBeTrue)
	test.That(t, src.Close(context.Background()), test.ShouldBeNil)
}

func TestSourcePattern(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 1)
	writeImage(t, filepath.Join(dir, "b.png"), 2)
	src, err := NewSource(Config{Dir: dir, Pattern: "b*"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src.Len(), test.ShouldEqual, 1)
}

func TestSourceUnavailable(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewSource(Config{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewSource(Config{Dir: t.TempDir()}, logger)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no images")

	_, err = camera.Open(context.Background(), config.Component{
		Type:       Model,
		Attributes: config.AttributeMap{"dir": filepath.Join(t.TempDir(), "missing")},
	}, logger)
	test.That(t, errors.Is(err, camera.ErrSourceUnavailable), test.ShouldBeTrue)
}

func TestCorruptFrameIsReadFailure(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not a png"), 0o600), test.ShouldBeNil)
	src, err := NewSource(Config{Dir: dir}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, err = src.Next(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, camera.IsExhausted(err), test.ShouldBeFalse)
}
