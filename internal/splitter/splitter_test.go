package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyDocument(t *testing.T) {
	s := New(500, 100)
	assert.Nil(t, s.Split(""))
}

func TestSplit_ShorterThanChunkSize(t *testing.T) {
	s := New(500, 100)
	chunks := s.Split("short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestSplit_OverlapCarriesTail(t *testing.T) {
	s := New(10, 4)
	text := "abcdefghijklmnopqrst"
	chunks := s.Split(text)
	require.True(t, len(chunks) >= 2)

	// Each chunk after the first starts with the last 4 runes of its
	// predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev[len(prev)-4:]
		assert.True(t, strings.HasPrefix(chunks[i], tail),
			"chunk %d %q should start with %q", i, chunks[i], tail)
	}

	// Nothing is lost: stitching chunks minus overlaps reproduces the text.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		rebuilt.WriteString(chunks[i][4:])
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplit_FinalChunkMayBeShort(t *testing.T) {
	s := New(10, 0)
	chunks := s.Split("abcdefghijklm")
	require.Len(t, chunks, 2)
	assert.Equal(t, "abcdefghij", chunks[0])
	assert.Equal(t, "klm", chunks[1])
}

func TestSplit_Deterministic(t *testing.T) {
	s := New(50, 10)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestNew_InvalidConfigFallsBack(t *testing.T) {
	s := New(0, -1)
	chunks := s.Split(strings.Repeat("x", 600))
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 500)
}
