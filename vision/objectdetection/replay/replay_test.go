package replay

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
	"go.viam.com/gatekeeper/vision/objectdetection"
)

const recording = `[{"class_id":5,"label":"bus","confidence":0.82,"box":[10,20,110,220]}]

[{"class_id":2,"confidence":0.9,"box":[0,0,5,5]},{"class_id":5,"confidence":0.6,"box":[1,1,2,2]}]
`

func TestReplay(t *testing.T) {
	ctx := context.Background()
	det, err := NewDetector(strings.NewReader(recording), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, det.Len(), test.ShouldEqual, 3)

	dets, err := det.Detect(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldResemble, []objectdetection.Detection{
		objectdetection.NewDetection(image.Rect(10, 20, 110, 220), 0.82, 5, "bus"),
	})

	dets, err = det.Detect(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldBeEmpty)

	dets, err = det.Detect(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)

	// past the end of the recording every frame is empty
	for i := 0; i < 3; i++ {
		dets, err = det.Detect(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dets, test.ShouldBeEmpty)
	}
}

func TestReplayBadLine(t *testing.T) {
	_, err := NewDetector(strings.NewReader("[]\n{oops\n"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")
}

func TestRecorderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	frames := [][]objectdetection.Detection{
		{objectdetection.NewDetection(image.Rect(1, 2, 3, 4), 0.7, 5, "bus")},
		nil,
	}
	i := 0
	wrapped := rec.Wrap(objectdetection.DetectorFunc(func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		i++
		return frames[i-1], nil
	}))
	for range frames {
		_, err := wrapped.Detect(context.Background(), nil)
		test.That(t, err, test.ShouldBeNil)
	}

	det, err := NewDetector(&buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	first, err := det.Detect(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first, test.ShouldResemble, frames[0])
	second, err := det.Detect(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldBeEmpty)
}

func TestRecorderKeepsFailedFramesAligned(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	calls := 0
	wrapped := rec.Wrap(objectdetection.DetectorFunc(func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("inference failed")
		}
		return []objectdetection.Detection{objectdetection.NewDetection(image.Rect(0, 0, 8, 8), 0.9, 5, "bus")}, nil
	}))
	_, err := wrapped.Detect(context.Background(), nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = wrapped.Detect(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)

	det, err := NewDetector(&buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, det.Len(), test.ShouldEqual, 2)
	first, err := det.Detect(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first, test.ShouldBeEmpty)
	second, err := det.Detect(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldHaveLength, 1)
}

func TestReplayRegistered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.jsonl")
	test.That(t, os.WriteFile(path, []byte(recording), 0o600), test.ShouldBeNil)
	logger := logging.NewTestLogger(t)

	det, err := objectdetection.Registry.Build(context.Background(),
		config.Component{Type: Model, Attributes: config.AttributeMap{"path": path}}, logger)
	test.That(t, err, test.ShouldBeNil)
	dets, err := det.Detect(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)

	_, err = objectdetection.Registry.Build(context.Background(), config.Component{Type: Model}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
