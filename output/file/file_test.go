package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
)

func testSink(t *testing.T) (*Sink, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSink(Config{
		Directory:     dir,
		FilePrefix:    "matches",
		BufferSize:    2,
		FlushInterval: time.Hour, // flushes driven by the test
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(time.Second) })
	return s, filepath.Join(dir, "matches.out")
}

func tripMatch(stations ...string) *event.PartialMatch {
	ts := time.Date(2017, 9, 1, 8, 0, 0, 0, time.UTC)
	events := make([]*event.Event, len(stations))
	for i, st := range stations {
		events[i] = event.New("Trip", event.Payload{"destination": st}, ts.Add(time.Duration(i)*time.Minute))
	}
	return event.NewPartialMatch(events, nil)
}

func TestConfig_Validate(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	cfg := DefaultConfig()
	assert.NoError(t, (&cfg).Validate())
}

func TestSink_WritesGroups(t *testing.T) {
	s, path := testSink(t)

	require.NoError(t, s.WriteMatch(tripMatch("3001", "3186")))
	require.NoError(t, s.WriteMatch(nil)) // empty marker, also triggers flush at buffer size 2

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, `"destination":"3001"`)
	assert.Contains(t, text, `"destination":"3186"`)
	assert.Contains(t, text, "{}\n")
	assert.Equal(t, int64(2), s.Written())

	// Groups are blank-line separated.
	groups := strings.Split(strings.TrimRight(text, "\n"), "\n\n")
	assert.Len(t, groups, 2)
}

func TestSink_StopFlushesBuffer(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSink(Config{Directory: dir, BufferSize: 100, FlushInterval: time.Hour}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.NoError(t, s.WriteMatch(tripMatch("3203")))
	require.NoError(t, s.Stop(time.Second))

	content, err := os.ReadFile(filepath.Join(dir, "matches.out"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `"destination":"3203"`)

	// Stop is idempotent.
	assert.NoError(t, s.Stop(time.Second))
}

func TestSink_DoubleStart(t *testing.T) {
	s, _ := testSink(t)
	err := s.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestSink_TruncateMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matches.out")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	s, err := NewSink(Config{Directory: dir, Append: false}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.WriteMatch(tripMatch("3186")))
	require.NoError(t, s.Stop(time.Second))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "stale")
}
