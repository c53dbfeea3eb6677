package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func runChunker(t *testing.T, frags []string, targetTokens, overlapTokens int) []chunk {
	t.Helper()

	g, ctx := errgroup.WithContext(context.Background())
	in := make(chan string, len(frags))
	for _, f := range frags {
		in <- f
	}
	close(in)

	out := streamChunk(ctx, g, in, targetTokens, overlapTokens)

	var chunks []chunk
	for c := range out {
		chunks = append(chunks, c)
	}
	require.NoError(t, g.Wait())
	return chunks
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("abc"))
	assert.Equal(t, 1, approxTokens("abcd"))
	assert.Equal(t, 2, approxTokens("abcde"))
}

func TestStreamChunkEmitsSequentialPositions(t *testing.T) {
	// Each fragment is 8 chars = 2 tokens; target 4 tokens groups pairs.
	frags := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc", "dddddddd"}
	chunks := runChunker(t, frags, 4, 0)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Pos)
	assert.Equal(t, 1, chunks[1].Pos)
	assert.Equal(t, "aaaaaaaa\nbbbbbbbb", chunks[0].Text)
	assert.Equal(t, "cccccccc\ndddddddd", chunks[1].Text)
	assert.Equal(t, 4, chunks[0].TokenCnt)
}

func TestStreamChunkFlushesTail(t *testing.T) {
	chunks := runChunker(t, []string{"aaaaaaaa", "bbbbbbbb", "cc"}, 4, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, "cc", chunks[1].Text)
}

func TestStreamChunkOverlapSeedsNextChunk(t *testing.T) {
	frags := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc", "dddddddd"}
	chunks := runChunker(t, frags, 4, 2)

	require.GreaterOrEqual(t, len(chunks), 2)
	// The tail of the first chunk reappears at the head of the second.
	firstLines := strings.Split(chunks[0].Text, "\n")
	tail := firstLines[len(firstLines)-1]
	assert.True(t, strings.HasPrefix(chunks[1].Text, tail))
}

func TestStreamChunkEmptyInput(t *testing.T) {
	chunks := runChunker(t, nil, 4, 0)
	assert.Empty(t, chunks)
}

func TestParseObjectURL(t *testing.T) {
	bucket, key := parseObjectURL("https://my-bucket.s3.us-east-2.amazonaws.com/users/u1/documents/d1/file.pdf")
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "users/u1/documents/d1/file.pdf", key)
}
