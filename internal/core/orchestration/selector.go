package orchestration

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/prompt"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
)

// Deps are the collaborators the strategy set is built over.
type Deps struct {
	Prompts    *prompt.Resolver
	Completer  core.CompletionClient
	Retriever  KnowledgeRetriever
	Extractor  core.TextExtractor
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ErrUnknownApproach marks a request for an approach with no orchestrator.
var ErrUnknownApproach = errors.New("unknown approach")

// Selector maps an approach to its orchestrator. The mapping is a closed
// table built once at startup; unknown approaches fail at validation time,
// not at request time.
type Selector struct {
	batch     map[models.Approach]Strategy
	streaming map[models.Approach]StreamingStrategy
}

func NewSelector(d Deps) *Selector {
	simple := NewSimpleChat(d.Prompts, d.Completer, d.Extractor, d.Logger)
	endpoint := NewEndpointChat(d.HTTPClient, d.Logger)
	endpointV2 := NewEndpointChatV2(d.HTTPClient, d.Logger)

	return &Selector{
		batch: map[models.Approach]Strategy{
			models.ApproachChat:                simple,
			models.ApproachRAGChat:             NewRAGChat(d.Prompts, d.Completer, d.Retriever, d.Logger),
			models.ApproachEndpointAssistant:   endpoint,
			models.ApproachEndpointAssistantV2: endpointV2,
		},
		streaming: map[models.Approach]StreamingStrategy{
			models.ApproachChat:                simple,
			models.ApproachRAGChat:             NewRAGChatStream(d.Prompts, d.Completer, d.Retriever, d.Logger),
			models.ApproachEndpointAssistant:   endpoint,
			models.ApproachEndpointAssistantV2: endpointV2,
		},
	}
}

// Batch resolves the single-shot orchestrator for an approach.
func (s *Selector) Batch(a models.Approach) (Strategy, error) {
	st, ok := s.batch[a]
	if !ok {
		return nil, fmt.Errorf("%w: no orchestrator for %q", ErrUnknownApproach, a)
	}
	return st, nil
}

// Streaming resolves the streaming orchestrator for an approach.
func (s *Selector) Streaming(a models.Approach) (StreamingStrategy, error) {
	st, ok := s.streaming[a]
	if !ok {
		return nil, fmt.Errorf("%w: no streaming orchestrator for %q", ErrUnknownApproach, a)
	}
	return st, nil
}

// Validate checks at startup that every catalog profile maps to an
// orchestrator in both tables.
func (s *Selector) Validate(c *profile.Catalog) error {
	for _, d := range c.All() {
		if _, err := s.Batch(d.Approach); err != nil {
			return fmt.Errorf("profile %q: %w", d.Name, err)
		}
		if _, err := s.Streaming(d.Approach); err != nil {
			return fmt.Errorf("profile %q: %w", d.Name, err)
		}
	}
	return nil
}
