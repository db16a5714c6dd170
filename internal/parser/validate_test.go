package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLog(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantErr    bool
		wantReason string
	}{
		{
			name:       "empty content",
			content:    "",
			wantErr:    true,
			wantReason: "empty",
		},
		{
			name:       "whitespace only",
			content:    "   \n\t\n",
			wantErr:    true,
			wantReason: "empty",
		},
		{
			name:       "no DCS signatures",
			content:    "2024-03-15 18:42:07.123 some random application log\nmore lines\n",
			wantErr:    true,
			wantReason: "does not appear to be a valid DCS log",
		},
		{
			name:       "signature but no timestamp",
			content:    "=== Log opened\nDCS/2.9.4.53627 (x86_64; Windows NT 10.0.22631)\n",
			wantErr:    true,
			wantReason: "timestamp",
		},
		{
			name:    "valid log",
			content: sampleSession,
		},
		{
			name:    "timestamp mid-file is enough",
			content: "DCS/2.9.4.53627\nprelude line\n2024-03-15 18:42:07.123 INFO APP: ready\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLog(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidLog)
				assert.Contains(t, err.Error(), tt.wantReason)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFileHashDeterminism(t *testing.T) {
	content := sampleSession

	h1 := FileHash(content)
	h2 := FileHash(content)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.Equal(t, strings.ToLower(h1), h1)

	// A single-byte change yields a different hash.
	changed := content[:len(content)-2] + "X\n"
	assert.NotEqual(t, h1, FileHash(changed))
}

func TestFileHashKnownVector(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		FileHash("abc"))
}
