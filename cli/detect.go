package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/gatekeeper/render"
	"go.viam.com/gatekeeper/vision/objectdetection"
)

// DetectAction runs the configured detector and target filter on one image, prints every
// detection, and writes an annotated PNG.
func DetectAction(c *cli.Context) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, c.Bool(debugFlag))
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	imagePath := c.Path(imageFlag)
	img, err := imaging.Open(imagePath)
	if err != nil {
		return errors.Wrapf(err, "cannot read image %q", imagePath)
	}

	model, err := objectdetection.Registry.Build(c.Context, cfg.Detector.Component, logger)
	if err != nil {
		return err
	}
	if closer, ok := model.(interface{ Close(context.Context) error }); ok {
		defer closer.Close(context.Background()) //nolint:errcheck
	}
	var post []objectdetection.Postprocessor
	if cfg.Detector.MinBoxArea > 0 {
		post = append(post, objectdetection.NewAreaFilter(cfg.Detector.MinBoxArea))
	}
	det, err := objectdetection.Build(model, post...)
	if err != nil {
		return err
	}
	filter, err := objectdetection.NewTargetFilter(cfg.TargetClass, cfg.ConfidenceThreshold)
	if err != nil {
		return err
	}

	dets, err := det.Detect(c.Context, img)
	if err != nil {
		return errors.Wrap(err, "detection failed")
	}
	result := filter.Apply(dets)
	for _, d := range dets {
		mark := " "
		if filter.Qualifies(d) {
			mark = "*"
		}
		printf(c.App.Writer, "%s %s", mark, d)
	}
	if result.Invalid > 0 {
		warningf(c.App.ErrWriter, "%d detections were outside the detector contract and ignored", result.Invalid)
	}
	if result.Found {
		best, _ := result.Best()
		printf(c.App.Writer, "%s in view (best %.2f): the gate would open", cfg.TargetName(), best.Confidence)
	} else {
		printf(c.App.Writer, "no %s above %.2f: the gate would stay closed", cfg.TargetName(), cfg.ConfidenceThreshold)
	}

	annotated := render.Overlay(img, result.Qualifying, result.Found, cfg.TargetName())
	if width := c.Uint(previewWidthFlag); width > 0 {
		annotated = resize.Resize(width, 0, annotated, resize.Bilinear)
	}
	outPath := c.Path(outputFlag)
	if outPath == "" {
		outPath = strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".detections.png"
	}
	if err := imaging.Save(annotated, outPath); err != nil {
		return errors.Wrapf(err, "cannot write %q", outPath)
	}
	printf(c.App.Writer, "wrote %s", outPath)
	return nil
}
