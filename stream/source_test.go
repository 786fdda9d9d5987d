package stream

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streamcep/errors"
)

func writeInput(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trips.csv")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestSourceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SourceConfig
		wantErr bool
	}{
		{"valid", SourceConfig{Path: "data.csv"}, false},
		{"missing path", SourceConfig{}, true},
		{"blank path", SourceConfig{Path: "   "}, true},
		{"negative cap", SourceConfig{Path: "data.csv", MaxRecords: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSource_ReadsAllLines(t *testing.T) {
	path := writeInput(t, "r1\nr2\nr3\n")
	src, err := NewSource(SourceConfig{Path: path}, nil)
	require.NoError(t, err)

	var got []string
	n, err := src.Read(context.Background(), func(rec string) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"r1", "r2", "r3"}, got)
}

func TestSource_SkipsHeader(t *testing.T) {
	path := writeInput(t, "duration,start,stop\nr1\nr2\n")
	src, err := NewSource(SourceConfig{Path: path, SkipHeader: true}, nil)
	require.NoError(t, err)

	var got []string
	n, err := src.Read(context.Background(), func(rec string) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"r1", "r2"}, got)
}

func TestSource_HonorsRecordCap(t *testing.T) {
	path := writeInput(t, "r1\nr2\nr3\nr4\n")
	src, err := NewSource(SourceConfig{Path: path, MaxRecords: 2}, nil)
	require.NoError(t, err)

	n, err := src.Read(context.Background(), func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSource_SkipsBlankLines(t *testing.T) {
	path := writeInput(t, "r1\n\nr2\n\n")
	src, err := NewSource(SourceConfig{Path: path}, nil)
	require.NoError(t, err)

	n, err := src.Read(context.Background(), func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSource_StopsOnCallbackError(t *testing.T) {
	path := writeInput(t, "r1\nr2\nr3\n")
	src, err := NewSource(SourceConfig{Path: path}, nil)
	require.NoError(t, err)

	wantErr := errors.WrapFatal(errors.ErrParsingFailed, "test", "callback", "fail on purpose")
	n, err := src.Read(context.Background(), func(rec string) error {
		if rec == "r2" {
			return wantErr
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestSource_MissingFile(t *testing.T) {
	src, err := NewSource(SourceConfig{Path: filepath.Join(t.TempDir(), "absent.csv")}, nil)
	require.NoError(t, err)

	_, err = src.Read(context.Background(), func(string) error { return nil })
	require.Error(t, err)
}

func TestSource_CancelledContext(t *testing.T) {
	path := writeInput(t, "r1\nr2\n")
	src, err := NewSource(SourceConfig{Path: path}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.Read(ctx, func(string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
