package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/dexter/internal/asr"
	"github.com/rbright/dexter/internal/audio"
	"github.com/rbright/dexter/internal/config"
	"github.com/rbright/dexter/internal/events"
	"github.com/rbright/dexter/internal/fsm"
	"github.com/rbright/dexter/internal/history"
	"github.com/rbright/dexter/internal/indicator"
	"github.com/rbright/dexter/internal/ipc"
	"github.com/rbright/dexter/internal/metrics"
	"github.com/rbright/dexter/internal/output"
	"github.com/rbright/dexter/internal/pipeline"
	"github.com/rbright/dexter/internal/session"
	"github.com/rbright/dexter/internal/status"
	"github.com/rbright/dexter/internal/wakeword"
)

// commandListen owns the socket and every capture resource until ctx ends or
// a client sends stop. Setup failures release whatever was already acquired.
func (r Runner) commandListen(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	segmenter, err := asr.Open(asr.Config{
		Model:            cfg.Recognizer.Model,
		Language:         cfg.Recognizer.Language,
		Threads:          cfg.Recognizer.Threads,
		SilenceThreshold: cfg.Audio.SilenceThreshold,
		Endpoint:         cfg.Recognizer.Endpoint,
		MaxUtterance:     cfg.Recognizer.MaxUtterance,
	})
	if err != nil {
		return r.setupFailed(logger, "recognizer", err)
	}
	recognizer := asr.NewRecognizer(segmenter, nil)
	defer func() { _ = recognizer.Close() }()

	source, err := audio.Open(runCtx, audio.Options{
		Backend:   cfg.Audio.Backend,
		Input:     cfg.Audio.Input,
		Fallback:  cfg.Audio.Fallback,
		FrameSize: cfg.Audio.FrameSize,
		Logger:    logger,
	})
	if err != nil {
		return r.setupFailed(logger, "audio", err)
	}
	defer func() { _ = source.Close() }()
	logger.Info("capture started", "device", audio.DescribeDevice(source.Device()), "frame_size", cfg.Audio.FrameSize)

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		metricsServer, err := m.Listen(cfg.Metrics.Listen, logger)
		if err != nil {
			return r.setupFailed(logger, "metrics", err)
		}
		defer func() { _ = metricsServer.Close() }()
		logger.Info("metrics listening", "addr", metricsServer.Addr().String())
	}

	bus := connectEvents(cfg.Events, logger)
	defer func() { _ = bus.Close() }()

	sinks := []status.Named{
		{Name: "file", Sink: status.FileSink{Path: cfg.Output.StatusPath}},
		{Name: "log", Sink: status.LogSink{Logger: logger}},
		{Name: "metrics", Sink: status.SinkFunc(func(_ context.Context, snap status.Snapshot) error {
			m.ObserveState(snap.State)
			return nil
		})},
	}
	if cfg.Health.Listen != "" {
		healthSink, err := status.ListenHealth(cfg.Health.Listen, logger)
		if err != nil {
			return r.setupFailed(logger, "health", err)
		}
		defer func() { _ = healthSink.Close() }()
		logger.Info("health listening", "addr", healthSink.Addr().String())
		sinks = append(sinks, status.Named{Name: "health", Sink: healthSink})
	}
	if bus != nil {
		sinks = append(sinks, status.Named{Name: "events", Sink: status.EventSink{Bus: bus, Subject: cfg.Events.StatusSubject}})
	}
	if cfg.Indicator.Enable || cfg.Indicator.SoundEnable {
		notifier := indicator.New(cfg.Indicator, logger)
		defer notifier.Wait()
		sinks = append(sinks, status.Named{Name: "indicator", Sink: notifier})
	}
	publisher := status.NewPublisher(nil, sinks...)

	followers, closeFollowers := transcriptFollowers(cfg, bus, logger)
	defer closeFollowers()

	sess := session.New(session.Config{
		Matcher:        wakeword.New(cfg.Wake.Phrase),
		SilenceTimeout: cfg.Session.SilenceTimeout,
		Committer:      output.NewCommitter(cfg.Output.TranscriptPath, logger, followers...),
		Publisher:      publisher,
		Logger:         logger,
	})
	if err := sess.Announce(runCtx); err != nil {
		logger.Warn("initial status publish failed", "error", err.Error())
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, listenerHandler(publisher, stop))
	}()

	var echo io.Writer
	if cfg.Output.Echo {
		echo = r.Stdout
	}
	var dump *pipeline.AudioDump
	if cfg.Debug.EnableAudioDump {
		dump = pipeline.NewAudioDump(cfg.Debug.AudioDumpDir, nil, logger)
	}

	fmt.Fprintf(r.Stdout, "Listening for '%s'...\n", wakeword.New(cfg.Wake.Phrase).Phrase())
	driver := &pipeline.Driver{
		Source:           source,
		Recognizer:       recognizer,
		Session:          sess,
		SilenceThreshold: cfg.Audio.SilenceThreshold,
		Metrics:          m,
		Echo:             echo,
		Dump:             dump,
		Logger:           logger,
	}
	runErr := driver.Run(runCtx)

	// The driver discards any open recording; observers see the return to idle.
	if err := sess.Announce(context.Background()); err != nil {
		logger.Warn("final status publish failed", "error", err.Error())
	}

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if runErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		logger.Error("listener failed", "error", runErr.Error())
		return 1
	}

	logger.Info("listener stopped", "dropped_frames", source.Dropped())
	return 0
}

func (r Runner) setupFailed(logger *slog.Logger, stage string, err error) int {
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	logger.Error("listener setup failed", "stage", stage, "error", err.Error())
	return 1
}

// connectEvents returns nil when events are disabled or the server is unreachable.
func connectEvents(cfg config.EventsConfig, logger *slog.Logger) *events.Bus {
	if cfg.NATSURL == "" {
		return nil
	}
	bus, err := events.Connect(cfg.NATSURL, logger)
	if err != nil {
		logger.Warn("events disabled; nats unreachable", "url", cfg.NATSURL, "error", err.Error())
		return nil
	}
	return bus
}

// transcriptFollowers builds the best-effort hand-offs that run after each transcript write.
func transcriptFollowers(cfg config.Config, bus *events.Bus, logger *slog.Logger) ([]output.Named, func()) {
	var followers []output.Named
	closeFn := func() {}

	if cfg.Output.Clipboard {
		followers = append(followers, output.Named{Name: "clipboard", Follower: output.Clipboard{Argv: cfg.Clipboard.Argv}})
	}
	if cfg.History.Enable {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("history disabled; store unavailable", "path", cfg.History.Path, "error", err.Error())
		} else {
			followers = append(followers, output.Named{Name: "history", Follower: output.History{Store: store}})
			closeFn = func() { _ = store.Close() }
		}
	}
	if bus != nil {
		followers = append(followers, output.Named{Name: "events", Follower: output.Event{Bus: bus, Subject: cfg.Events.TranscriptSubject}})
	}
	return followers, closeFn
}

// listenerHandler answers status from the last published snapshot and
// cancels the run context on stop.
func listenerHandler(publisher *status.Publisher, stop context.CancelFunc) ipc.Handler {
	return ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
		switch req.Command {
		case ipc.CommandStatus:
			snap, ok := publisher.Latest()
			if !ok {
				return ipc.Response{OK: true, State: string(fsm.StateIdle)}
			}
			return ipc.Response{
				OK:        true,
				State:     string(snap.State),
				Message:   snap.Message,
				UpdatedAt: snap.At.Format(time.RFC3339Nano),
			}
		case ipc.CommandStop:
			stop()
			return ipc.Response{OK: true, Message: "stopping"}
		default:
			return ipc.Response{OK: false, Error: fmt.Sprintf("unsupported command %q", req.Command)}
		}
	})
}

