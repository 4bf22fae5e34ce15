package events

import (
	"context"
	"image"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/gatekeeper/vision/objectdetection"
)

func openTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	l, err := Open(context.Background(), path)
	test.That(t, err, test.ShouldBeNil)
	return l, path
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	l, _ := openTestLog(t)
	defer func() {
		test.That(t, l.Close(), test.ShouldBeNil)
	}()

	start := time.Unix(1_700_000_000, 0)
	bus := objectdetection.NewDetection(image.Rect(10, 20, 110, 220), 0.82, 5, "bus")
	for i, offset := range []time.Duration{0, 12 * time.Second, 30 * time.Second} {
		test.That(t, l.Record(ctx, NewActivation(start.Add(offset), i*10+1, bus)), test.ShouldBeNil)
	}

	n, err := l.Count(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 3)

	recent, err := l.Recent(ctx, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, recent, test.ShouldHaveLength, 2)
	test.That(t, recent[0].Time.Equal(start.Add(30*time.Second)), test.ShouldBeTrue)
	test.That(t, recent[0].FrameIndex, test.ShouldEqual, 21)
	test.That(t, recent[0].Detection, test.ShouldResemble, bus)
	test.That(t, recent[1].Time.Equal(start.Add(12*time.Second)), test.ShouldBeTrue)
	test.That(t, recent[0].ID, test.ShouldNotEqual, recent[1].ID)

	all, err := l.Recent(ctx, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, all, test.ShouldHaveLength, 3)
}

func TestReopenKeepsActivations(t *testing.T) {
	ctx := context.Background()
	l, path := openTestLog(t)
	a := NewActivation(time.Unix(5, 0), 1, objectdetection.NewDetection(image.Rect(0, 0, 1, 1), 0.7, 5, ""))
	test.That(t, l.Record(ctx, a), test.ShouldBeNil)
	test.That(t, l.Close(), test.ShouldBeNil)

	// migrations are idempotent
	l, err := Open(ctx, path)
	test.That(t, err, test.ShouldBeNil)
	defer l.Close()
	recent, err := l.Recent(ctx, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, recent, test.ShouldHaveLength, 1)
	test.That(t, recent[0].ID, test.ShouldEqual, a.ID)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "events.db"))
	test.That(t, err, test.ShouldNotBeNil)
}
