package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/gatekeeper/components/camera"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
)

func encodeJPEG(t *testing.T, width int) []byte {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, width, 8)), nil), test.ShouldBeNil)
	return buf.Bytes()
}

func TestReadJPEGSplitsStream(t *testing.T) {
	first := encodeJPEG(t, 8)
	second := encodeJPEG(t, 16)
	stream := append(append([]byte{0x00, 0x01}, first...), second...)
	r := bufio.NewReader(bytes.NewReader(stream))

	for _, want := range [][]byte{first, second} {
		frame, err := readJPEG(r)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, frame, test.ShouldResemble, want)
	}
	_, err := readJPEG(r)
	test.That(t, errors.Is(err, io.EOF), test.ShouldBeTrue)

	truncated := bufio.NewReader(bytes.NewReader(first[:len(first)/2]))
	_, err = readJPEG(truncated)
	test.That(t, errors.Is(err, io.ErrUnexpectedEOF), test.ShouldBeTrue)
}

func TestSourceWithoutFFmpeg(t *testing.T) {
	t.Setenv("PATH", "")
	_, err := NewSource(context.Background(), Config{Source: "video.mp4"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSourcePlaysFileToExhaustion(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.jpg")
	test.That(t, os.WriteFile(path, encodeJPEG(t, 32), 0o600), test.ShouldBeNil)

	src, err := NewSource(context.Background(), Config{Source: path}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, src.Close(context.Background()), test.ShouldBeNil)
	}()

	img, err := src.Next(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 32)
	_, err = src.Next(context.Background())
	test.That(t, errors.Is(err, camera.ErrSourceExhausted), test.ShouldBeTrue)
}

// fakeFFmpeg puts a shell script named ffmpeg first on PATH.
func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	//nolint:gosec
	test.That(t, os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte("#!/bin/sh\n"+script+"\n"), 0o755), test.ShouldBeNil)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

func TestOpenReportsUnreadableInput(t *testing.T) {
	fakeFFmpeg(t, `echo "/nonexistent/missing.mp4: No such file or directory" >&2; exit 1`)

	_, err := camera.Open(context.Background(), config.Component{
		Type:       Model,
		Attributes: config.AttributeMap{"source": "/nonexistent/missing.mp4"},
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, camera.ErrSourceUnavailable), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing.mp4")
}

func TestOpenTimesOutWithoutFrames(t *testing.T) {
	fakeFFmpeg(t, `exec sleep 30`)

	_, err := NewSource(context.Background(),
		Config{Source: "rtsp://camera.invalid/stream", OpenTimeoutMS: 50}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestSourceKeepsFirstFrame(t *testing.T) {
	dir := fakeFFmpeg(t, `cat "$(dirname "$0")/frames.mjpeg"`)
	stream := append(encodeJPEG(t, 8), encodeJPEG(t, 16)...)
	test.That(t, os.WriteFile(filepath.Join(dir, "frames.mjpeg"), stream, 0o600), test.ShouldBeNil)

	src, err := NewSource(context.Background(), Config{Source: "video.mp4"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, src.Close(context.Background()), test.ShouldBeNil)
	}()

	for _, width := range []int{8, 16} {
		img, err := src.Next(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds().Dx(), test.ShouldEqual, width)
	}
	_, err = src.Next(context.Background())
	test.That(t, errors.Is(err, camera.ErrSourceExhausted), test.ShouldBeTrue)
}

func TestSourceWithNoFramesIsExhausted(t *testing.T) {
	fakeFFmpeg(t, `exit 0`)

	src, err := NewSource(context.Background(), Config{Source: "empty.mp4"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, src.Close(context.Background()), test.ShouldBeNil)
	}()
	_, err = src.Next(context.Background())
	test.That(t, errors.Is(err, camera.ErrSourceExhausted), test.ShouldBeTrue)
}
