package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/orchestration"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
)

// ChatService resolves the caller's profile, dispatches the request to
// the configured strategy and records the answered turn.
type ChatService struct {
	catalog  *profile.Catalog
	selector *orchestration.Selector
	history  core.HistoryRecorder
	logger   *slog.Logger
}

func NewChatService(catalog *profile.Catalog, selector *orchestration.Selector, history core.HistoryRecorder, logger *slog.Logger) *ChatService {
	return &ChatService{catalog: catalog, selector: selector, history: history, logger: logger}
}

func (s *ChatService) pipelineContext(user models.UserInformation, req *models.ChatRequest) (*orchestration.PipelineContext, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	prof, err := s.catalog.Resolve(req.OptionFlags[models.OptionFlagProfile], user)
	if err != nil {
		return nil, err
	}
	return orchestration.NewPipelineContext(user, prof, req), nil
}

// approachFor prefers the request's explicit approach; a request that
// leaves it empty runs the resolved profile's approach.
func approachFor(pc *orchestration.PipelineContext) models.Approach {
	if pc.Request.Approach != "" {
		return pc.Request.Approach
	}
	return pc.Profile.Approach
}

// Reply answers one turn in a single shot.
func (s *ChatService) Reply(ctx context.Context, user models.UserInformation, req *models.ChatRequest) (*models.ApproachResponse, error) {
	pc, err := s.pipelineContext(user, req)
	if err != nil {
		return nil, err
	}
	strategy, err := s.selector.Batch(approachFor(pc))
	if err != nil {
		return nil, err
	}

	resp, err := strategy.Reply(ctx, pc)
	if err != nil {
		return nil, err
	}

	s.recordTurn(ctx, user, req, resp)
	return resp, nil
}

// ReplyStream answers one turn as an ordered chunk stream. The answered
// turn is recorded when the terminal chunk passes through; a stream that
// closes without one is not recorded.
func (s *ChatService) ReplyStream(ctx context.Context, user models.UserInformation, req *models.ChatRequest) (<-chan models.ChatChunkResponse, error) {
	pc, err := s.pipelineContext(user, req)
	if err != nil {
		return nil, err
	}
	strategy, err := s.selector.Streaming(approachFor(pc))
	if err != nil {
		return nil, err
	}

	upstream := strategy.ReplyStream(ctx, pc)
	out := make(chan models.ChatChunkResponse)
	go func() {
		defer close(out)
		for chunk := range upstream {
			if chunk.FinalResult != nil {
				s.recordTurn(ctx, user, req, chunk.FinalResult)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Rate attaches a user rating to a previously answered turn.
func (s *ChatService) Rate(ctx context.Context, user models.UserInformation, rating *models.ChatRatingRequest) error {
	if rating.ChatID == uuid.Nil || rating.MessageID == uuid.Nil {
		return fmt.Errorf("chat_id and message_id are required")
	}
	return s.history.RecordRating(ctx, user, rating)
}

// Profiles lists the chat profiles the caller may use.
func (s *ChatService) Profiles(user models.UserInformation) []profile.Definition {
	return s.catalog.ListFor(user)
}

func (s *ChatService) recordTurn(ctx context.Context, user models.UserInformation, req *models.ChatRequest, resp *models.ApproachResponse) {
	if err := s.history.RecordTurn(ctx, user, req, resp); err != nil {
		s.logger.Error("record turn failed", "chat_id", req.ChatID, "error", err)
	}
}
