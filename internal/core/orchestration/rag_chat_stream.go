package orchestration

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/prompt"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

// RAGChatStream is the streaming retrieval-augmented strategy. It matches
// RAGChat through retrieval, then streams the answer delta by delta,
// yielding to the transport after every chunk.
type RAGChatStream struct {
	ragCore
}

func NewRAGChatStream(prompts *prompt.Resolver, completer core.CompletionClient, retriever KnowledgeRetriever, logger *slog.Logger) *RAGChatStream {
	return &RAGChatStream{ragCore{prompts: prompts, completer: completer, retriever: retriever, logger: logger}}
}

func (s *RAGChatStream) ReplyStream(ctx context.Context, pc *PipelineContext) <-chan models.ChatChunkResponse {
	out := make(chan models.ChatChunkResponse)
	go func() {
		defer close(out)

		if pc.Profile.RAGSettings == nil {
			s.logger.Error("rag stream: rag settings missing", "profile", pc.Profile.Name)
			return
		}

		if err := s.generateSearchQuery(ctx, pc); err != nil {
			s.logger.Error("rag stream: search query", "error", err)
			return
		}
		if pc.PolicyViolation {
			// Soft failure: one terminal chunk, no further steps.
			emitFinal(ctx, out, Assemble(AssembleInput{Context: pc, Answer: PolicyViolationAnswer}))
			return
		}

		found, err := s.retrieveKnowledge(ctx, pc)
		if err != nil {
			s.logger.Error("rag stream: retrieve", "error", err)
			return
		}
		if !found {
			emitFinal(ctx, out, Assemble(AssembleInput{Context: pc, Answer: NoSourcesAnswer}))
			return
		}

		req, err := s.buildPrompt(pc)
		if err != nil {
			s.logger.Error("rag stream: build prompt", "error", err)
			return
		}
		stream, err := s.completer.Stream(ctx, req)
		if err != nil {
			s.logger.Error("rag stream: start stream", "error", err)
			return
		}

		start := time.Now()
		for {
			delta, err := stream.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				// Abort without a terminal chunk; the transport treats
				// that as a failed stream.
				s.logger.Error("rag stream: stream", "error", err)
				return
			}
			if delta == "" {
				continue
			}
			if !emit(ctx, out, models.ChatChunkResponse{Text: delta}) {
				return
			}
		}

		res := stream.Result()
		if res.Blocked {
			emitFinal(ctx, out, Assemble(AssembleInput{Context: pc, Answer: PolicyViolationAnswer}))
			return
		}
		emitFinal(ctx, out, Assemble(AssembleInput{
			Context:                    pc,
			Answer:                     res.Answer,
			Thoughts:                   s.thoughts(pc),
			Sources:                    pc.Sources,
			Usage:                      &res.Usage,
			ModelDeploymentName:        res.ModelDeploymentName,
			AnswerDurationMilliseconds: time.Since(start).Milliseconds(),
		}))
	}()
	return out
}

var _ StreamingStrategy = (*RAGChatStream)(nil)
