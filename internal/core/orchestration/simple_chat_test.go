package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

func TestSimpleChatClassifiesAttachmentsByMediaType(t *testing.T) {
	completer := &fakeCompleter{results: []*core.CompletionResult{{Answer: "done"}}}
	extractor := &fakeExtractor{text: "extracted pdf text"}
	s := NewSimpleChat(newTestResolver(), completer, extractor, discardLogger())

	req := testRequest("describe these files")
	req.FileAttachments = []models.FileAttachment{
		{Name: "diagram.png", ContentType: "image/png", Data: []byte{0x89, 0x50}},
		{Name: "report.pdf", ContentType: "application/pdf; charset=binary", Data: []byte("%PDF")},
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte("plain notes")},
	}

	pc := NewPipelineContext(models.UserInformation{UserName: "Ada"}, testChatProfile(), req)
	_, err := s.Reply(context.Background(), pc)
	require.NoError(t, err)

	msgs := completer.lastRequest.Messages
	require.Len(t, msgs, 1)
	parts := msgs[0].Parts
	require.Len(t, parts, 4)

	assert.Equal(t, "describe these files", parts[0].Text)

	assert.Equal(t, "png", parts[1].ImageFormat)
	assert.Equal(t, []byte{0x89, 0x50}, parts[1].ImageData)
	assert.Empty(t, parts[1].Text)

	assert.Equal(t, "report.pdf:\nextracted pdf text", parts[2].Text)
	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, "application/pdf", extractor.lastContentType)

	assert.Equal(t, "notes.txt:\nplain notes", parts[3].Text)
}

func TestSimpleChatBlockedCompletionBecomesPolicyResponse(t *testing.T) {
	completer := &fakeCompleter{results: []*core.CompletionResult{{Blocked: true}}}
	s := NewSimpleChat(newTestResolver(), completer, &fakeExtractor{}, discardLogger())

	pc := NewPipelineContext(models.UserInformation{}, testChatProfile(), testRequest("q"))
	resp, err := s.Reply(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, PolicyViolationAnswer, resp.Answer)
}

func TestSimpleChatIncludesAnsweredHistory(t *testing.T) {
	completer := &fakeCompleter{results: []*core.CompletionResult{{Answer: "done"}}}
	s := NewSimpleChat(newTestResolver(), completer, &fakeExtractor{}, discardLogger())

	prior := "earlier answer"
	req := testRequest("ignored")
	req.History = []models.ChatTurn{
		{User: "first question", Assistant: &prior},
		{User: "second question"},
	}

	pc := NewPipelineContext(models.UserInformation{}, testChatProfile(), req)
	_, err := s.Reply(context.Background(), pc)
	require.NoError(t, err)

	msgs := completer.lastRequest.Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "first question", msgs[0].Parts[0].Text)
	assert.Equal(t, "model", msgs[1].Role)
	assert.Equal(t, "earlier answer", msgs[1].Parts[0].Text)
	assert.Equal(t, "second question", msgs[2].Parts[0].Text)
}

func TestSimpleChatStreamEmitsTerminalChunk(t *testing.T) {
	completer := &fakeCompleter{
		streamDeltas: []string{"Hi ", "there"},
		streamResult: &core.CompletionResult{Answer: "Hi there"},
	}
	s := NewSimpleChat(newTestResolver(), completer, &fakeExtractor{}, discardLogger())

	pc := NewPipelineContext(models.UserInformation{}, testChatProfile(), testRequest("q"))
	chunks := collectChunks(s.ReplyStream(context.Background(), pc))

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hi ", chunks[0].Text)
	assert.Equal(t, "there", chunks[1].Text)
	require.NotNil(t, chunks[2].FinalResult)
	assert.Equal(t, "Hi there", chunks[2].FinalResult.Answer)
}
