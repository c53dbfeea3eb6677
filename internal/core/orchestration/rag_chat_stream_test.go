package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/retrieval"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

func newStreamStrategy(completer *fakeCompleter, retriever *fakeRetriever) *RAGChatStream {
	return NewRAGChatStream(newTestResolver(), completer, retriever, discardLogger())
}

func TestRAGChatStreamTerminalChunkContract(t *testing.T) {
	completer := &fakeCompleter{
		results:      []*core.CompletionResult{{Answer: "query"}},
		streamDeltas: []string{"Hello ", "world"},
		streamResult: &core.CompletionResult{Answer: "Hello world", Usage: core.TokenUsage{TotalTokens: 5}},
	}
	retriever := &fakeRetriever{summary: testSummary("a.txt")}
	s := newStreamStrategy(completer, retriever)

	pc := NewPipelineContext(models.UserInformation{}, testRAGProfile(), testRequest("q"))
	chunks := collectChunks(s.ReplyStream(context.Background(), pc))

	require.NotEmpty(t, chunks)
	for _, c := range chunks[:len(chunks)-1] {
		assert.NotEmpty(t, c.Text)
		assert.Nil(t, c.FinalResult)
	}
	last := chunks[len(chunks)-1]
	assert.Empty(t, last.Text)
	require.NotNil(t, last.FinalResult)
	assert.Equal(t, "Hello world", last.FinalResult.Answer)
	require.NotNil(t, last.FinalResult.Diagnostics)
}

func TestRAGChatStreamNoSourcesEmitsSingleTerminalChunk(t *testing.T) {
	completer := &fakeCompleter{results: []*core.CompletionResult{{Answer: "query"}}}
	retriever := &fakeRetriever{summary: &retrieval.Summary{FormattedSourceText: retrieval.NoSourcesMarker}}
	s := newStreamStrategy(completer, retriever)

	pc := NewPipelineContext(models.UserInformation{}, testRAGProfile(), testRequest("q"))
	chunks := collectChunks(s.ReplyStream(context.Background(), pc))

	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].FinalResult)
	assert.Equal(t, NoSourcesAnswer, chunks[0].FinalResult.Answer)
}

func TestRAGChatStreamPolicyViolationEmitsSingleTerminalChunk(t *testing.T) {
	completer := &fakeCompleter{results: []*core.CompletionResult{{Blocked: true}}}
	retriever := &fakeRetriever{}
	s := newStreamStrategy(completer, retriever)

	pc := NewPipelineContext(models.UserInformation{}, testRAGProfile(), testRequest("q"))
	chunks := collectChunks(s.ReplyStream(context.Background(), pc))

	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].FinalResult)
	assert.Equal(t, PolicyViolationAnswer, chunks[0].FinalResult.Answer)
	assert.Equal(t, 0, retriever.calls)
}

func TestRAGChatStreamErrorClosesWithoutTerminalChunk(t *testing.T) {
	completer := &fakeCompleter{
		results:       []*core.CompletionResult{{Answer: "query"}},
		streamDeltas:  []string{"partial "},
		streamNextErr: errors.New("upstream failed"),
	}
	retriever := &fakeRetriever{summary: testSummary("a.txt")}
	s := newStreamStrategy(completer, retriever)

	pc := NewPipelineContext(models.UserInformation{}, testRAGProfile(), testRequest("q"))
	chunks := collectChunks(s.ReplyStream(context.Background(), pc))

	assert.Nil(t, terminalOf(chunks))
}

func TestRAGChatStreamCancellationClosesWithoutTerminalChunk(t *testing.T) {
	completer := &fakeCompleter{
		results:      []*core.CompletionResult{{Answer: "query"}},
		streamDeltas: []string{"a", "b", "c"},
		streamResult: &core.CompletionResult{Answer: "abc"},
	}
	retriever := &fakeRetriever{summary: testSummary("a.txt")}
	s := newStreamStrategy(completer, retriever)

	ctx, cancel := context.WithCancel(context.Background())
	pc := NewPipelineContext(models.UserInformation{}, testRAGProfile(), testRequest("q"))
	ch := s.ReplyStream(ctx, pc)

	// Take the first delta, then walk away mid-stream.
	first, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "a", first.Text)
	cancel()

	chunks := collectChunks(ch)
	assert.Nil(t, terminalOf(chunks))
}
