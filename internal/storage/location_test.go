package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_String(t *testing.T) {
	tests := []struct {
		name     string
		loc      Location
		expected string
	}{
		{
			name:     "plain path",
			loc:      Location{Bucket: "docs", FileID: "a.txt", Path: "/nas/docs/a.txt"},
			expected: "nas://docs/a.txt?path=/nas/docs/a.txt",
		},
		{
			name:     "spaces and reserved characters are percent-encoded",
			loc:      Location{Bucket: "docs", FileID: "q&a.txt", Path: "/nas/my docs/q&a+1.txt"},
			expected: "nas://docs/q%26a.txt?path=/nas/my%20docs/q%26a%2B1.txt",
		},
		{
			name:     "non-ascii bytes",
			loc:      Location{Bucket: "b", FileID: "f", Path: "/nas/报告.pdf"},
			expected: "nas://b/f?path=/nas/%E6%8A%A5%E5%91%8A.pdf",
		},
		{
			name:     "without path",
			loc:      Location{Bucket: "docs", FileID: "a.txt"},
			expected: "nas://docs/a.txt",
		},
		{
			name:     "legacy path is emitted as is",
			loc:      Location{Path: "/nas/docs/a.txt", Legacy: true},
			expected: "/nas/docs/a.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.loc.String())
		})
	}
}

func TestParseLocation_RoundTrip(t *testing.T) {
	paths := []string{
		"/nas/docs/a.txt",
		"/nas/my docs/report (final).pdf",
		"/nas/odd/100%/a+b=c;d?e#f.txt",
		"/nas/unicode/Übersicht-报告.xlsx",
		"/nas/already%20encoded.txt",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			encoded := Location{Bucket: "docs", FileID: "id-1", Path: p}.String()

			loc, err := ParseLocation(encoded)
			require.NoError(t, err)
			assert.Equal(t, p, loc.Path)
			assert.Equal(t, "docs", loc.Bucket)
			assert.Equal(t, "id-1", loc.FileID)
			assert.False(t, loc.Legacy)
		})
	}
}

func TestParseLocation_Fallback(t *testing.T) {
	t.Run("bucket and file id without path", func(t *testing.T) {
		loc, err := ParseLocation("nas://docs/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "docs", loc.Bucket)
		assert.Equal(t, "a.txt", loc.FileID)
		assert.Empty(t, loc.Path)
	})

	t.Run("nested file id", func(t *testing.T) {
		loc, err := ParseLocation("nas://docs/2024/q1/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "docs", loc.Bucket)
		assert.Equal(t, "2024/q1/a.txt", loc.FileID)
	})

	t.Run("empty path parameter falls back", func(t *testing.T) {
		loc, err := ParseLocation("nas://docs/a.txt?path=")
		require.NoError(t, err)
		assert.Empty(t, loc.Path)
		assert.Equal(t, "a.txt", loc.FileID)
	})

	t.Run("neither path nor two segments", func(t *testing.T) {
		_, err := ParseLocation("nas://docs")
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("malformed query", func(t *testing.T) {
		_, err := ParseLocation("nas://docs/a.txt?path=%zz")
		assert.True(t, errors.Is(err, ErrValidation))
	})
}

func TestParseLocation_Legacy(t *testing.T) {
	loc, err := ParseLocation("/mnt/nas/docs/a.txt")
	require.NoError(t, err)
	assert.True(t, loc.Legacy)
	assert.Equal(t, "/mnt/nas/docs/a.txt", loc.Path)

	_, err = ParseLocation("")
	assert.True(t, errors.Is(err, ErrValidation))
}
