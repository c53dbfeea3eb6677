package orchestration

import (
	"context"
	"errors"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/retrieval"
)

// Fixed soft-failure answers. These produce well-formed responses, never
// transport errors.
const (
	NoSourcesAnswer = "I could not find any documents relevant to your question. " +
		"Try selecting different documents or rephrasing the question."
	PolicyViolationAnswer = "Your message was flagged by the content management policy. " +
		"Please rephrase it and try again."
)

// Strategy answers one chat turn in a single shot.
type Strategy interface {
	Reply(ctx context.Context, pc *PipelineContext) (*models.ApproachResponse, error)
}

// StreamingStrategy answers one chat turn as an ordered chunk stream. The
// channel is closed when the pipeline ends; a stream that closes without a
// terminal chunk (FinalResult != nil) failed or was cancelled.
type StreamingStrategy interface {
	ReplyStream(ctx context.Context, pc *PipelineContext) <-chan models.ChatChunkResponse
}

// KnowledgeRetriever is the retrieval step's contract, satisfied by
// retrieval.Retriever.
type KnowledgeRetriever interface {
	Search(ctx context.Context, query string, settings *profile.RAGSettings, user models.UserInformation, selectedFiles []string) (*retrieval.Summary, error)
}

// emit sends one chunk, blocking until the transport has taken it. The
// unbuffered send is the cooperative yield point between producer and
// transport; it doubles as the between-chunk cancellation check.
func emit(ctx context.Context, out chan<- models.ChatChunkResponse, chunk models.ChatChunkResponse) bool {
	// A cancelled context wins even when the transport could still take
	// the chunk.
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitFinal sends the terminal chunk: empty text, populated final result.
func emitFinal(ctx context.Context, out chan<- models.ChatChunkResponse, resp *models.ApproachResponse) bool {
	return emit(ctx, out, models.ChatChunkResponse{FinalResult: resp})
}

// historyMessages converts all answered prior turns to completion messages.
// The unanswered current turn is the caller's to build.
func historyMessages(history []models.ChatTurn) []core.ChatMessage {
	if len(history) == 0 {
		return nil
	}
	var msgs []core.ChatMessage
	for _, t := range history[:len(history)-1] {
		msgs = append(msgs, core.TextMessage("user", t.User))
		if t.Assistant != nil {
			msgs = append(msgs, core.TextMessage("model", *t.Assistant))
		}
	}
	return msgs
}

// drainStream consumes a chunk stream and returns its final result.
func drainStream(ch <-chan models.ChatChunkResponse) (*models.ApproachResponse, error) {
	var final *models.ApproachResponse
	for chunk := range ch {
		if chunk.FinalResult != nil {
			final = chunk.FinalResult
		}
	}
	if final == nil {
		return nil, errors.New("stream ended without a final result")
	}
	return final, nil
}

// temperature unpacks the optional override.
func temperature(req *models.ChatRequest) *float32 {
	if req.Overrides == nil {
		return nil
	}
	return req.Overrides.Temperature
}
