package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/prompt"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

// ragCore holds the steps shared by the batch and streaming RAG strategies:
// search-query generation, knowledge retrieval and prompt assembly.
type ragCore struct {
	prompts   *prompt.Resolver
	completer core.CompletionClient
	retriever KnowledgeRetriever
	logger    *slog.Logger
}

// generateSearchQuery asks the model for a standalone search query distilled
// from the conversation. A content-policy block sets the pipeline flag
// instead of failing.
func (r *ragCore) generateSearchQuery(ctx context.Context, pc *PipelineContext) error {
	system, err := r.prompts.Get(prompt.SearchQuerySystem)
	if err != nil {
		return err
	}
	user, err := r.prompts.GetAndRender(prompt.SearchQueryUser, map[string]string{
		"history":  prompt.HistoryText(pc.Request.History),
		"question": pc.Question,
	})
	if err != nil {
		return err
	}

	res, err := r.completer.Complete(ctx, core.CompletionRequest{
		SystemPrompt: system,
		Messages:     []core.ChatMessage{core.TextMessage("user", user)},
	})
	if err != nil {
		return fmt.Errorf("generate search query: %w", err)
	}
	if res.Blocked {
		pc.PolicyViolation = true
		return nil
	}

	pc.SearchQuery = strings.TrimSpace(strings.Trim(res.Answer, `"`))
	if pc.SearchQuery == "" {
		pc.SearchQuery = pc.Question
	}
	return nil
}

// retrieveKnowledge fills the context with the formatted source block.
// Returns true when usable sources were found.
func (r *ragCore) retrieveKnowledge(ctx context.Context, pc *PipelineContext) (bool, error) {
	summary, err := r.retriever.Search(ctx, pc.SearchQuery, pc.Profile.RAGSettings, pc.User, pc.Request.SelectedFiles)
	if err != nil {
		return false, err
	}
	if summary.NoSources() {
		return false, nil
	}
	pc.SourceText = summary.FormattedSourceText
	pc.Sources = summary.Sources
	return true, nil
}

// buildPrompt renders the chat system and user templates with the retrieved
// knowledge injected.
func (r *ragCore) buildPrompt(pc *PipelineContext) (core.CompletionRequest, error) {
	systemFile := pc.Profile.ChatSystemMessageFile
	if systemFile == "" {
		systemFile = prompt.RAGChatSystem
	}
	system, err := r.prompts.GetAndRender(systemFile, map[string]string{
		"sources":   pc.SourceText,
		"user_name": pc.User.UserName,
	})
	if err != nil {
		return core.CompletionRequest{}, err
	}
	user, err := r.prompts.GetAndRender(prompt.RAGChatUser, map[string]string{
		"question": pc.Question,
	})
	if err != nil {
		return core.CompletionRequest{}, err
	}
	pc.SystemPrompt = system
	pc.UserMessage = user

	messages := append(historyMessages(pc.Request.History), core.TextMessage("user", user))
	return core.CompletionRequest{
		SystemPrompt: system,
		Messages:     messages,
		Temperature:  temperature(pc.Request),
		PremiumTier:  pc.Request.PremiumModelRequested(),
	}, nil
}

// thoughts formats the reasoning trace surfaced with the response.
func (r *ragCore) thoughts(pc *PipelineContext) string {
	return fmt.Sprintf("Searched for:\n%s\n\nPrompt:\n%s", pc.SearchQuery, pc.SystemPrompt)
}

// RAGChat is the batch retrieval-augmented strategy: one non-streaming
// completion over the retrieved sources.
type RAGChat struct {
	ragCore
}

func NewRAGChat(prompts *prompt.Resolver, completer core.CompletionClient, retriever KnowledgeRetriever, logger *slog.Logger) *RAGChat {
	return &RAGChat{ragCore{prompts: prompts, completer: completer, retriever: retriever, logger: logger}}
}

func (s *RAGChat) Reply(ctx context.Context, pc *PipelineContext) (*models.ApproachResponse, error) {
	if pc.Profile.RAGSettings == nil {
		return nil, fmt.Errorf("profile %q: rag settings missing", pc.Profile.Name)
	}

	if err := s.generateSearchQuery(ctx, pc); err != nil {
		return nil, err
	}
	if pc.PolicyViolation {
		return Assemble(AssembleInput{Context: pc, Answer: PolicyViolationAnswer}), nil
	}

	found, err := s.retrieveKnowledge(ctx, pc)
	if err != nil {
		return nil, err
	}
	if !found {
		// Short-circuit: no completion call, empty citations.
		return Assemble(AssembleInput{Context: pc, Answer: NoSourcesAnswer}), nil
	}

	req, err := s.buildPrompt(pc)
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
		Thoughts:                   s.thoughts(pc),
		Sources:                    pc.Sources,
		Usage:                      &res.Usage,
		ModelDeploymentName:        res.ModelDeploymentName,
		AnswerDurationMilliseconds: res.DurationMilliseconds,
	}), nil
}

var _ Strategy = (*RAGChat)(nil)
