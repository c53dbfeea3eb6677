package orchestration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/prompt"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

// SimpleChat answers directly from the model with no retrieval step.
// Attachments on the current turn are classified by media type: images go
// to the model as image content, PDFs as extracted text, anything else as
// UTF-8 text.
type SimpleChat struct {
	prompts   *prompt.Resolver
	completer core.CompletionClient
	extractor core.TextExtractor
	logger    *slog.Logger
}

func NewSimpleChat(prompts *prompt.Resolver, completer core.CompletionClient, extractor core.TextExtractor, logger *slog.Logger) *SimpleChat {
	return &SimpleChat{prompts: prompts, completer: completer, extractor: extractor, logger: logger}
}

func (s *SimpleChat) buildRequest(ctx context.Context, pc *PipelineContext) (core.CompletionRequest, error) {
	systemFile := pc.Profile.ChatSystemMessageFile
	if systemFile == "" {
		systemFile = prompt.SimpleChatSystem
	}
	system, err := s.prompts.GetAndRender(systemFile, map[string]string{
		"user_name": pc.User.UserName,
	})
	if err != nil {
		return core.CompletionRequest{}, err
	}
	pc.SystemPrompt = system

	parts := []core.MessagePart{{Text: pc.Question}}
	for _, att := range pc.Request.FileAttachments {
		part, err := s.attachmentPart(ctx, att)
		if err != nil {
			return core.CompletionRequest{}, err
		}
		parts = append(parts, part)
	}

	messages := append(historyMessages(pc.Request.History),
		core.ChatMessage{Role: "user", Parts: parts})

	return core.CompletionRequest{
		SystemPrompt: system,
		Messages:     messages,
		Temperature:  temperature(pc.Request),
		PremiumTier:  pc.Request.PremiumModelRequested(),
	}, nil
}

// attachmentPart classifies one attachment by media type.
func (s *SimpleChat) attachmentPart(ctx context.Context, att models.FileAttachment) (core.MessagePart, error) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(att.ContentType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return core.MessagePart{
			ImageFormat: strings.TrimPrefix(mediaType, "image/"),
			ImageData:   att.Data,
		}, nil
	case mediaType == "application/pdf":
		text, err := s.extractor.ExtractText(ctx, att.Data, mediaType)
		if err != nil {
			return core.MessagePart{}, fmt.Errorf("extract attachment %q: %w", att.Name, err)
		}
		return core.MessagePart{Text: fmt.Sprintf("%s:\n%s", att.Name, text)}, nil
	default:
		return core.MessagePart{Text: fmt.Sprintf("%s:\n%s", att.Name, string(att.Data))}, nil
	}
}

// Reply runs the pipeline with a single-shot completion.
func (s *SimpleChat) Reply(ctx context.Context, pc *PipelineContext) (*models.ApproachResponse, error) {
	req, err := s.buildRequest(ctx, pc)
	if err != nil {
		return nil, err
	}
	res, err := s.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Blocked {
		return Assemble(AssembleInput{Context: pc, Answer: PolicyViolationAnswer}), nil
	}
	return Assemble(AssembleInput{
		Context:                    pc,
		Answer:                     res.Answer,
		Usage:                      &res.Usage,
		ModelDeploymentName:        res.ModelDeploymentName,
		AnswerDurationMilliseconds: res.DurationMilliseconds,
	}), nil
}

// ReplyStream runs the pipeline, yielding each model delta as it arrives.
func (s *SimpleChat) ReplyStream(ctx context.Context, pc *PipelineContext) <-chan models.ChatChunkResponse {
	out := make(chan models.ChatChunkResponse)
	go func() {
		defer close(out)

		req, err := s.buildRequest(ctx, pc)
		if err != nil {
			s.logger.Error("simple chat: build request", "error", err)
			return
		}
		stream, err := s.completer.Stream(ctx, req)
		if err != nil {
			s.logger.Error("simple chat: start stream", "error", err)
			return
		}

		start := time.Now()
		for {
			delta, err := stream.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				s.logger.Error("simple chat: stream", "error", err)
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
			Usage:                      &res.Usage,
			ModelDeploymentName:        res.ModelDeploymentName,
			AnswerDurationMilliseconds: time.Since(start).Milliseconds(),
		}))
	}()
	return out
}

var (
	_ Strategy          = (*SimpleChat)(nil)
	_ StreamingStrategy = (*SimpleChat)(nil)
)
