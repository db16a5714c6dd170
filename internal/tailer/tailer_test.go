package tailer

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	uploads []string
	err     error
}

func (f *fakeUploader) Upload(filename string, content []byte) error {
	if f.err != nil {
		return f.err
	}
	f.uploads = append(f.uploads, string(content))
	return nil
}

func TestSessionBoundary(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"2024-03-15 20:45:12.500 INFO NET: disconnected from server", true},
		{"=== Log closed UTC 2024-03-15 20:45:13", true},
		{"2024-03-15 19:02:10.250 INFO EXPORT: EVENT: shot, weapon=AIM-120C", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sessionBoundary(tt.line), tt.line)
	}
}

func TestFlushUploadsAndResets(t *testing.T) {
	up := &fakeUploader{}
	tr := New(Config{LogPath: "unused.log"}, up, zerolog.Nop())

	tr.buffer.WriteString("line one\nline two\n")
	tr.flush("session ended")

	require.Len(t, up.uploads, 1)
	assert.Equal(t, "line one\nline two\n", up.uploads[0])
	assert.Zero(t, tr.buffer.Len())
}

func TestFlushSkipsEmptyBuffer(t *testing.T) {
	up := &fakeUploader{}
	tr := New(Config{LogPath: "unused.log"}, up, zerolog.Nop())

	tr.flush("idle timeout")
	assert.Empty(t, up.uploads)
}

func TestFlushKeepsBufferOnFailure(t *testing.T) {
	up := &fakeUploader{err: errors.New("server unreachable")}
	tr := New(Config{LogPath: "unused.log"}, up, zerolog.Nop())

	tr.buffer.WriteString("session content\n")
	tr.flush("session ended")

	// content preserved for retry
	assert.Equal(t, "session content\n", tr.buffer.String())

	up.err = nil
	tr.flush("session ended")
	require.Len(t, up.uploads, 1)
	assert.Equal(t, "session content\n", up.uploads[0])
}
