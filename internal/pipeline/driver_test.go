package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rbright/dexter/internal/asr"
	"github.com/rbright/dexter/internal/audio"
	"github.com/rbright/dexter/internal/fsm"
	"github.com/rbright/dexter/internal/metrics"
	"github.com/rbright/dexter/internal/session"
	"github.com/rbright/dexter/internal/wakeword"
)

const frameSamples = 4096

var frameStep = 256 * time.Millisecond

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type step struct {
	frame audio.Frame
	err   error
}

// scriptedSource advances the clock by one frame duration per read.
type scriptedSource struct {
	clock   *fakeClock
	steps   []step
	block   bool
	blocked chan struct{}
	dropped int64
}

func (s *scriptedSource) ReadFrame(ctx context.Context) (audio.Frame, error) {
	if len(s.steps) == 0 {
		if s.block {
			if s.blocked != nil {
				close(s.blocked)
				s.blocked = nil
			}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, audio.ErrClosed
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	s.clock.now = s.clock.now.Add(frameStep)
	return next.frame, next.err
}

func (s *scriptedSource) Device() audio.Device { return audio.Device{ID: "fake"} }
func (s *scriptedSource) Dropped() int64       { return s.dropped }
func (s *scriptedSource) Close() error         { return nil }

// scriptedBackend returns one result per accepted frame, then silence.
type scriptedBackend struct {
	results []asr.Result
	errs    []error
}

func (b *scriptedBackend) Accept(audio.Frame) (asr.Result, error) {
	var err error
	if len(b.errs) > 0 {
		err = b.errs[0]
		b.errs = b.errs[1:]
	}
	if len(b.results) == 0 {
		return asr.Result{}, err
	}
	next := b.results[0]
	b.results = b.results[1:]
	return next, err
}

func (b *scriptedBackend) Close() error { return nil }

func loud() step {
	samples := make([]int16, frameSamples)
	for i := range samples {
		samples[i] = 1000
	}
	return step{frame: audio.FrameFromSamples(samples)}
}

func quiet() step {
	return step{frame: audio.FrameFromSamples(make([]int16, frameSamples))}
}

func quietSteps(n int) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = quiet()
	}
	return out
}

type harness struct {
	clock     *fakeClock
	source    *scriptedSource
	driver    *Driver
	session   *session.Session
	commits   []session.Transcript
	states    []fsm.State
	echo      *bytes.Buffer
	metrics   *metrics.Metrics
	commitErr error
}

func newHarness(t *testing.T, steps []step, results []asr.Result) *harness {
	t.Helper()

	h := &harness{
		clock:   &fakeClock{now: time.Unix(1_700_000_000, 0)},
		echo:    &bytes.Buffer{},
		metrics: metrics.New(),
	}
	h.source = &scriptedSource{clock: h.clock, steps: steps}
	h.session = session.New(session.Config{
		Matcher: wakeword.New("hey dexter"),
		Committer: session.CommitFunc(func(_ context.Context, tr session.Transcript) error {
			if h.commitErr != nil {
				return h.commitErr
			}
			h.commits = append(h.commits, tr)
			return nil
		}),
		Publisher: session.PublishFunc(func(_ context.Context, state fsm.State, _ string) error {
			h.states = append(h.states, state)
			return nil
		}),
	})
	h.driver = &Driver{
		Source:     h.source,
		Recognizer: asr.NewRecognizer(&scriptedBackend{results: results}, h.clock.Now),
		Session:    h.session,
		Metrics:    h.metrics,
		Echo:       h.echo,
		Now:        h.clock.Now,
	}
	return h
}

func TestRunFlushesAfterSilence(t *testing.T) {
	steps := append([]step{loud(), loud()}, quietSteps(12)...)
	h := newHarness(t, steps, []asr.Result{
		{Text: "hey dexter", Final: true},
		{Text: "  buy   milk ", Final: true},
	})

	require.NoError(t, h.driver.Run(context.Background()))

	require.Len(t, h.commits, 1)
	require.Equal(t, []string{"buy milk"}, h.commits[0].Entries)
	require.Equal(t, []fsm.State{fsm.StateRecording, fsm.StateIdle}, h.states)
	require.Equal(t, fsm.StateIdle, h.session.State())
	require.Equal(t, "Heard: hey dexter\nHeard: buy milk\n", h.echo.String())
	require.Equal(t, 14.0, testutil.ToFloat64(h.metrics.FramesRead))
	require.Equal(t, 12.0, testutil.ToFloat64(h.metrics.SilentFrames))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsFlushed))
}

func TestRunKeepsRecordingWhileSilenceIsShort(t *testing.T) {
	// 7 silent frames after the last utterance is 1.792s of silence.
	steps := append([]step{loud(), loud()}, quietSteps(7)...)
	h := newHarness(t, steps, []asr.Result{
		{Text: "hey dexter", Final: true},
		{Text: "note", Final: true},
	})

	require.NoError(t, h.driver.Run(context.Background()))

	require.Empty(t, h.commits)
	require.Equal(t, []fsm.State{fsm.StateRecording}, h.states)
	require.Equal(t, fsm.StateIdle, h.session.State(), "exit discards the open recording")
}

func TestRunIgnoresSpeechBeforeWakePhrase(t *testing.T) {
	steps := append([]step{loud(), loud()}, quietSteps(12)...)
	h := newHarness(t, steps, []asr.Result{
		{Text: "buy milk", Final: true},
		{Text: "call mom", Final: true},
	})

	require.NoError(t, h.driver.Run(context.Background()))

	require.Empty(t, h.commits)
	require.Empty(t, h.states)
	require.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Utterances.WithLabelValues(string(session.OutcomeIgnored))))
}

func TestRunTreatsReadErrorsAsSilence(t *testing.T) {
	steps := []step{loud(), loud()}
	for range 12 {
		steps = append(steps, step{err: fmt.Errorf("%w: stalled", audio.ErrRead)})
	}
	h := newHarness(t, steps, []asr.Result{
		{Text: "hey dexter", Final: true},
		{Text: "buy milk", Final: true},
	})

	require.NoError(t, h.driver.Run(context.Background()))

	require.Len(t, h.commits, 1)
	require.Equal(t, "buy milk", h.commits[0].Text())
	require.Equal(t, 12.0, testutil.ToFloat64(h.metrics.ReadErrors))
}

func TestRunContinuesAfterRecognizerError(t *testing.T) {
	steps := append([]step{loud(), loud(), loud()}, quietSteps(12)...)
	h := newHarness(t, steps, []asr.Result{
		{Text: "hey dexter", Final: true},
		{},
		{Text: "still here", Final: true},
	})
	h.driver.Recognizer = asr.NewRecognizer(&scriptedBackend{
		results: []asr.Result{{Text: "hey dexter", Final: true}, {}, {Text: "still here", Final: true}},
		errs:    []error{nil, errors.New("decoder hiccup")},
	}, h.clock.Now)

	require.NoError(t, h.driver.Run(context.Background()))

	require.Len(t, h.commits, 1)
	require.Equal(t, []string{"still here"}, h.commits[0].Entries)
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RecognizerErrors))
}

func TestRunRetriesFailedFlush(t *testing.T) {
	steps := append([]step{loud(), loud()}, quietSteps(20)...)
	h := newHarness(t, steps, []asr.Result{
		{Text: "hey dexter", Final: true},
		{Text: "buy milk", Final: true},
	})
	h.commitErr = errors.New("disk full")

	// Clear the error once the first flush has failed.
	h.driver.Session = session.New(session.Config{
		Matcher: wakeword.New("hey dexter"),
		Committer: session.CommitFunc(func(_ context.Context, tr session.Transcript) error {
			if h.commitErr != nil {
				h.commitErr = nil
				return errors.New("disk full")
			}
			h.commits = append(h.commits, tr)
			return nil
		}),
	})

	require.NoError(t, h.driver.Run(context.Background()))

	require.Len(t, h.commits, 1)
	require.Equal(t, []string{"buy milk"}, h.commits[0].Entries)
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FlushFailures))
}

func TestRunDiscardsOpenRecordingOnCancel(t *testing.T) {
	h := newHarness(t, []step{loud(), loud()}, []asr.Result{
		{Text: "hey dexter", Final: true},
		{Text: "half a thought", Final: true},
	})
	h.source.block = true
	blocked := make(chan struct{})
	h.source.blocked = blocked

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.driver.Run(ctx) }()

	select {
	case <-blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("driver never drained the script")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop after cancel")
	}
	require.Empty(t, h.commits)
	require.Equal(t, fsm.StateIdle, h.session.State())
	require.Empty(t, h.session.Entries())
}

type brokenSource struct{ scriptedSource }

func (b *brokenSource) ReadFrame(context.Context) (audio.Frame, error) {
	return nil, errors.New("unexpected")
}

func TestRunReturnsUnexpectedSourceErrors(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.driver.Source = &brokenSource{}

	err := h.driver.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "read frame")
}

func TestRunRequiresCollaborators(t *testing.T) {
	err := (&Driver{}).Run(context.Background())
	require.Error(t, err)
}

func TestRunWritesDebugAudioDump(t *testing.T) {
	dir := t.TempDir()
	steps := append([]step{loud(), loud()}, quietSteps(12)...)
	h := newHarness(t, steps, []asr.Result{
		{Text: "hey dexter", Final: true},
		{Text: "buy milk", Final: true},
	})
	h.driver.Dump = NewAudioDump(dir, h.clock.Now, nil)

	require.NoError(t, h.driver.Run(context.Background()))

	matches, err := filepath.Glob(filepath.Join(dir, "audio-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	file, err := os.Open(matches[0])
	require.NoError(t, err)
	defer file.Close()

	decoder := wav.NewDecoder(file)
	require.True(t, decoder.IsValidFile())
	buf, err := decoder.FullPCMBuffer()
	require.NoError(t, err)
	// The wake frame opens the dump, and frames are recorded until the flush.
	require.Greater(t, len(buf.Data), frameSamples)
	require.Equal(t, 0, len(buf.Data)%frameSamples)
}
