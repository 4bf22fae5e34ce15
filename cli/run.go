package cli

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/gatekeeper/components/actuator"
	"go.viam.com/gatekeeper/components/camera"
	"go.viam.com/gatekeeper/config"
	"go.viam.com/gatekeeper/control"
	"go.viam.com/gatekeeper/events"
	"go.viam.com/gatekeeper/gate"
	"go.viam.com/gatekeeper/logging"
	"go.viam.com/gatekeeper/render"
	"go.viam.com/gatekeeper/vision/objectdetection"
	"go.viam.com/gatekeeper/vision/objectdetection/replay"
	"go.viam.com/gatekeeper/web/server"
)

// window is an on-screen renderer that can also ask the loop to stop.
type window interface {
	render.Renderer
	control.TerminationSignal
	Close() error
}

// pipeline is every collaborator of one run, built from a config.
type pipeline struct {
	logger   logging.Logger
	source   camera.Source
	detector objectdetection.Detector
	actuator actuator.Actuator
	events   *events.Log
	record   *os.File
	latest   *render.Latest
	window   window
	loop     *control.Loop
	listener net.Listener
	server   *server.Server
}

// buildPipeline opens every configured component. On failure whatever was already opened is
// closed again.
func buildPipeline(
	ctx context.Context,
	cfg *config.Config,
	stop control.TerminationSignal,
	logger logging.Logger,
) (_ *pipeline, err error) {
	p := &pipeline{logger: logger}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, p.Close(context.Background()))
		}
	}()

	sourceLogger := logger.Sublogger("source").With("model", cfg.Source.Type)
	if p.source, err = camera.Open(ctx, cfg.Source, sourceLogger); err != nil {
		return nil, err
	}
	if p.detector, err = objectdetection.Registry.Build(ctx, cfg.Detector.Component, logger); err != nil {
		return nil, err
	}
	detector, err := p.postprocess(cfg.Detector)
	if err != nil {
		return nil, err
	}
	if p.actuator, err = actuator.Registry.Build(ctx, cfg.Actuator.Component,
		logger.Sublogger("actuator").With("model", cfg.Actuator.Type)); err != nil {
		return nil, err
	}
	retrying := actuator.WithRetry(p.actuator, cfg.Actuator.RetryAttempts, cfg.Actuator.RetryBackoff(), logger)

	filter, err := objectdetection.NewTargetFilter(cfg.TargetClass, cfg.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	controller, err := gate.NewController(cfg.Cooldown(), retrying, nil, logger.Sublogger("gate"))
	if err != nil {
		return nil, err
	}

	var renderers render.Multi
	if cfg.Render.DumpDir != "" {
		writer, err := render.NewFrameWriter(cfg.Render.DumpDir, cfg.Render.DumpOnFireOnly, cfg.TargetName())
		if err != nil {
			return nil, err
		}
		renderers = append(renderers, writer)
	}
	if cfg.Render.HTTPAddr != "" {
		p.latest = render.NewLatest(cfg.TargetName())
		renderers = append(renderers, p.latest)
	}
	if cfg.Render.Window {
		if p.window, err = newWindow(cfg, logger); err != nil {
			return nil, err
		}
		if p.window != nil {
			renderers = append(renderers, p.window)
		}
	}

	var recorder control.Recorder
	if cfg.Events.Path != "" {
		if p.events, err = events.Open(ctx, cfg.Events.Path); err != nil {
			return nil, err
		}
		recorder = p.events
	}

	params := control.Params{
		Source:   p.source,
		Detector: detector,
		Filter:   filter,
		Gate:     controller,
		Recorder: recorder,
		Signal:   control.AnySignal{stop},
		MaxFPS:   cfg.MaxFPS,
		Prefetch: cfg.Prefetch,
		Logger:   logger.Sublogger("loop"),
	}
	if len(renderers) > 0 {
		params.Renderer = renderers
	}
	if p.window != nil {
		params.Signal = control.AnySignal{stop, p.window}
	}
	if p.loop, err = control.NewLoop(params); err != nil {
		return nil, err
	}

	if cfg.Render.HTTPAddr != "" {
		opts := server.Options{Status: p.loop, Frames: p.latest}
		if p.events != nil {
			opts.Events = p.events
		}
		if p.server, err = server.New(opts, logger.Sublogger("http")); err != nil {
			return nil, err
		}
		if p.listener, err = net.Listen("tcp", cfg.Render.HTTPAddr); err != nil {
			return nil, errors.Wrapf(err, "cannot listen on %q", cfg.Render.HTTPAddr)
		}
	}
	return p, nil
}

// postprocess applies the model-independent detector settings to p.detector.
func (p *pipeline) postprocess(conf config.DetectorConfig) (objectdetection.Detector, error) {
	var post []objectdetection.Postprocessor
	if conf.MinBoxArea > 0 {
		post = append(post, objectdetection.NewAreaFilter(conf.MinBoxArea))
	}
	detector, err := objectdetection.Build(p.detector, post...)
	if err != nil {
		return nil, err
	}
	if conf.RecordPath != "" {
		//nolint:gosec
		if p.record, err = os.Create(conf.RecordPath); err != nil {
			return nil, errors.Wrap(err, "cannot create detection recording")
		}
		p.logger.Infow("recording detections", "path", conf.RecordPath)
		detector = replay.NewRecorder(p.record).Wrap(detector)
	}
	return detector, nil
}

// Run runs the loop and, when configured, the HTTP server next to it. The server stops when
// the loop does.
func (p *pipeline) Run(ctx context.Context) (control.Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	var stats control.Stats
	g.Go(func() error {
		defer stopServer()
		var err error
		stats, err = p.loop.Run(gctx)
		return err
	})
	if p.server != nil {
		g.Go(func() error {
			return p.server.Serve(serverCtx, p.listener)
		})
	}
	err := g.Wait()
	return stats, err
}

// Close releases every opened component.
func (p *pipeline) Close(ctx context.Context) error {
	var err error
	if p.source != nil {
		err = multierr.Combine(err, p.source.Close(ctx))
	}
	if closer, ok := p.detector.(interface{ Close(context.Context) error }); ok {
		err = multierr.Combine(err, closer.Close(ctx))
	}
	if p.actuator != nil {
		err = multierr.Combine(err, p.actuator.Close(ctx))
	}
	if p.events != nil {
		err = multierr.Combine(err, p.events.Close())
	}
	if p.record != nil {
		err = multierr.Combine(err, p.record.Close())
	}
	if p.window != nil {
		err = multierr.Combine(err, p.window.Close())
	}
	if p.listener != nil && p.server == nil {
		err = multierr.Combine(err, p.listener.Close())
	}
	return err
}

// RunAction runs the detection loop described by the config file.
func RunAction(c *cli.Context) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, c.Bool(debugFlag))
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(closeLog)

	ctx, stopSignals := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	stop := control.AnySignal{control.ContextSignal(ctx)}
	if !c.Bool(noKeypressFlag) {
		keypress, err := control.NewTerminalKeypressSignal(logger)
		if err != nil {
			logger.Debugw("not watching the keyboard", "error", err)
		} else {
			logger.Info("type q and press Enter to stop")
			stop = append(stop, keypress)
		}
	}

	p, err := buildPipeline(ctx, cfg, stop, logger)
	if err != nil {
		return err
	}
	logger.Infow("gatekeeper started",
		"source", cfg.Source.Type,
		"detector", cfg.Detector.Type,
		"actuator", cfg.Actuator.Type,
		"target", cfg.TargetName(),
		"threshold", cfg.ConfidenceThreshold,
		"cooldown", cfg.Cooldown(),
	)

	stats, runErr := p.Run(ctx)
	if err := multierr.Combine(runErr, p.Close(context.Background())); err != nil {
		return err
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	if stats.Reason == control.ReasonReadFailure {
		warningf(c.App.ErrWriter, "stopped early because a frame could not be read")
	}
	return nil
}
