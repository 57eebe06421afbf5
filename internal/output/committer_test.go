package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/dexter/internal/artifact"
	"github.com/rbright/dexter/internal/events"
	"github.com/rbright/dexter/internal/history"
	"github.com/rbright/dexter/internal/session"
	"github.com/stretchr/testify/require"
)

func testTranscript() session.Transcript {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return session.Transcript{
		ID:         "session-1",
		Entries:    []string{"buy milk", "call mom"},
		StartedAt:  start,
		FinishedAt: start.Add(4 * time.Second),
	}
}

func TestCommitterWritesArtifactThenFollowers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcription", "transcription.txt")

	var order []string
	committer := NewCommitter(path, nil,
		Named{Name: "first", Follower: FollowerFunc(func(context.Context, session.Transcript) error {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, "buy milk\ncall mom", string(data))
			order = append(order, "first")
			return nil
		})},
		Named{Name: "second", Follower: FollowerFunc(func(context.Context, session.Transcript) error {
			order = append(order, "second")
			return nil
		})},
	)

	require.NoError(t, committer.Commit(context.Background(), testTranscript()))
	require.Equal(t, []string{"first", "second"}, order)

	stat, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestCommitterFollowerFailureDoesNotFailCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcription.txt")

	ran := false
	committer := NewCommitter(path, nil,
		Named{Name: "broken", Follower: FollowerFunc(func(context.Context, session.Transcript) error {
			return errors.New("boom")
		})},
		Named{Name: "after", Follower: FollowerFunc(func(context.Context, session.Transcript) error {
			ran = true
			return nil
		})},
	)

	require.NoError(t, committer.Commit(context.Background(), testTranscript()))
	require.True(t, ran)
}

func TestCommitterArtifactFailureSkipsFollowers(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o600))

	called := false
	committer := NewCommitter(filepath.Join(blocker, "transcription.txt"), nil,
		Named{Name: "never", Follower: FollowerFunc(func(context.Context, session.Transcript) error {
			called = true
			return nil
		})},
	)

	err := committer.Commit(context.Background(), testTranscript())
	require.ErrorIs(t, err, artifact.ErrWrite)
	require.False(t, called)
}

type recordingStore struct {
	records []history.Record
}

func (s *recordingStore) Insert(_ context.Context, record history.Record) error {
	s.records = append(s.records, record)
	return nil
}

func TestHistoryFollowerInsertsRecord(t *testing.T) {
	store := &recordingStore{}
	transcript := testTranscript()

	require.NoError(t, History{Store: store}.Follow(context.Background(), transcript))
	require.Len(t, store.records, 1)
	require.Equal(t, "session-1", store.records[0].ID)
	require.Equal(t, "buy milk\ncall mom", store.records[0].Text)
	require.Equal(t, transcript.Entries, store.records[0].Entries)
	require.Equal(t, transcript.StartedAt, store.records[0].StartedAt)
}

type capturePublisher struct {
	subject string
	data    []byte
}

func (p *capturePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return nil
}

func TestEventFollowerPublishesTranscript(t *testing.T) {
	pub := &capturePublisher{}
	bus := events.NewBus(pub, nil)

	require.NoError(t, Event{Bus: bus, Subject: "dexter.transcripts"}.Follow(context.Background(), testTranscript()))
	require.Equal(t, "dexter.transcripts", pub.subject)
	require.JSONEq(t, `{
		"session_id": "session-1",
		"text": "buy milk\ncall mom",
		"entries": ["buy milk", "call mom"],
		"started_at": 1772366400000,
		"finished_at": 1772366404000
	}`, string(pub.data))
}
