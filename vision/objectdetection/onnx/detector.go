// Package onnx implements a YOLOv8 object detector on ONNX Runtime.
package onnx

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/logging"
	"go.viam.com/gatekeeper/vision/objectdetection"
)

// Model is the config type of the ONNX detector.
const Model = "onnx"

// Config is the attribute struct for the ONNX detector.
type Config struct {
	ModelPath string `json:"model_path"`
	// LibraryPath is the onnxruntime shared library. Empty uses the platform default.
	LibraryPath string `json:"library_path,omitempty"`
	// LabelsPath holds one class name per line. Empty uses the COCO labels.
	LabelsPath     string  `json:"labels_path,omitempty"`
	InputSize      int     `json:"input_size,omitempty"`
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
	IOUThreshold   float64 `json:"iou_threshold,omitempty"`
	IntraOpThreads int     `json:"intra_op_threads,omitempty"`
}

// Defaults for unset attributes.
const (
	DefaultModelPath      = "yolov8n.onnx"
	DefaultInputSize      = 640
	DefaultScoreThreshold = 0.25
	DefaultIOUThreshold   = 0.45
)

func (conf *Config) applyDefaults() {
	if conf.ModelPath == "" {
		conf.ModelPath = DefaultModelPath
	}
	if conf.InputSize == 0 {
		conf.InputSize = DefaultInputSize
	}
	if conf.ScoreThreshold == 0 {
		conf.ScoreThreshold = DefaultScoreThreshold
	}
	if conf.IOUThreshold == 0 {
		conf.IOUThreshold = DefaultIOUThreshold
	}
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate() error {
	if conf.InputSize <= 0 || conf.InputSize%32 != 0 {
		return errors.Errorf("input_size must be a positive multiple of 32, got %d", conf.InputSize)
	}
	if conf.ScoreThreshold < 0 || conf.ScoreThreshold > 1 {
		return errors.Errorf("score_threshold must be in [0, 1], got %v", conf.ScoreThreshold)
	}
	if conf.IOUThreshold < 0 || conf.IOUThreshold > 1 {
		return errors.Errorf("iou_threshold must be in [0, 1], got %v", conf.IOUThreshold)
	}
	if conf.IntraOpThreads < 0 {
		return errors.Errorf("intra_op_threads must be non-negative, got %d", conf.IntraOpThreads)
	}
	return nil
}

func init() {
	objectdetection.Registry.Register(Model, func(
		ctx context.Context, attrs config.AttributeMap, logger logging.Logger,
	) (objectdetection.Detector, error) {
		var conf Config
		if err := attrs.Decode(&conf); err != nil {
			return nil, err
		}
		return NewDetector(conf, logger)
	})
}

var (
	envMu   sync.Mutex
	envRefs int
)

// acquireEnvironment initializes onnxruntime on first use. The environment is process wide.
func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "cannot initialize onnxruntime")
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}

// Detector runs a YOLOv8 model. Sessions are not safe for concurrent runs, so Detect is serialized.
type Detector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	conf       Config
	labels     objectdetection.Labels
	numAnchors int
	post       objectdetection.Postprocessor
	logger     logging.Logger
}

// NewDetector loads the model described by conf.
func NewDetector(conf Config, logger logging.Logger) (*Detector, error) {
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(conf.ModelPath); err != nil {
		return nil, errors.Wrap(err, "cannot find model")
	}
	labels := objectdetection.COCOLabels()
	if conf.LabelsPath != "" {
		var err error
		if labels, err = objectdetection.LoadLabels(conf.LabelsPath); err != nil {
			return nil, err
		}
	}
	if err := acquireEnvironment(conf.LibraryPath); err != nil {
		return nil, err
	}

	d := &Detector{
		conf:       conf,
		labels:     labels,
		numAnchors: numAnchors(conf.InputSize),
		post:       objectdetection.NewScoreFilter(conf.ScoreThreshold),
		logger:     logger,
	}
	if err := d.initSession(); err != nil {
		return nil, multierr.Combine(err, d.destroy(), releaseEnvironment())
	}
	logger.Infow("loaded onnx model", "model", conf.ModelPath, "input_size", conf.InputSize, "classes", len(labels))
	return d, nil
}

func (d *Detector) initSession() error {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return errors.Wrap(err, "error creating session options")
	}
	defer options.Destroy() //nolint:errcheck
	if d.conf.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(d.conf.IntraOpThreads); err != nil {
			return err
		}
	}

	size := int64(d.conf.InputSize)
	if d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size)); err != nil {
		return errors.Wrap(err, "error creating input tensor")
	}
	outputShape := ort.NewShape(1, int64(4+len(d.labels)), int64(d.numAnchors))
	if d.output, err = ort.NewEmptyTensor[float32](outputShape); err != nil {
		return errors.Wrap(err, "error creating output tensor")
	}
	d.session, err = ort.NewAdvancedSession(
		d.conf.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{d.input},
		[]ort.ArbitraryTensor{d.output},
		options,
	)
	if err != nil {
		return errors.Wrap(err, "error creating session")
	}
	return nil
}

// Detect runs the model on img and returns detections in source pixel coordinates.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
	ctx, span := trace.StartSpan(ctx, "onnx::Detect")
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, errors.New("detector is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("cannot detect on an empty image")
	}
	lb := newLetterbox(b.Dx(), b.Dy(), d.conf.InputSize)
	fillTensor(lb.apply(img, d.conf.InputSize), d.input.GetData())
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "model inference")
	}

	dets := decode(d.output.GetData(), len(d.labels), d.numAnchors, lb, d.conf.ScoreThreshold, d.labels)
	dets = nms(d.post(dets), d.conf.IOUThreshold)
	if b.Min != (image.Point{}) {
		for i := range dets {
			dets[i].BoundingBox = dets[i].BoundingBox.Add(b.Min)
		}
	}
	return dets, nil
}

func (d *Detector) destroy() error {
	var err error
	if d.session != nil {
		err = multierr.Combine(err, d.session.Destroy())
		d.session = nil
	}
	if d.input != nil {
		err = multierr.Combine(err, d.input.Destroy())
		d.input = nil
	}
	if d.output != nil {
		err = multierr.Combine(err, d.output.Destroy())
		d.output = nil
	}
	return err
}

// Close frees the session and releases the runtime.
func (d *Detector) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	return multierr.Combine(d.destroy(), releaseEnvironment())
}
