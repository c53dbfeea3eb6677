package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
)

// NoSourcesMarker is the protocol constant signaling that retrieval found
// zero usable documents. Orchestrators compare against it explicitly; it is
// never free text.
const NoSourcesMarker = "NO_SOURCES"

var ErrEmptyQuery = errors.New("search query is empty")

// Summary is the retriever's output: the formatted citation block plus the
// sources it was built from, in rank order.
type Summary struct {
	FormattedSourceText string
	Sources             []KnowledgeSource
}

// NoSources reports the sentinel "nothing usable found" state.
func (s *Summary) NoSources() bool {
	return s.FormattedSourceText == NoSourcesMarker
}

// Retriever turns a search query into ranked knowledge snippets under a
// token budget. Search failures surface to the caller; there is no retry
// here.
type Retriever struct {
	embedder core.EmbeddingProvider
	index    core.SearchIndex
	counter  core.TokenCounter
}

func NewRetriever(embedder core.EmbeddingProvider, index core.SearchIndex, counter core.TokenCounter) *Retriever {
	if counter == nil {
		counter = EstimatingTokenCounter{}
	}
	return &Retriever{embedder: embedder, index: index, counter: counter}
}

// Search embeds the query, runs the vector search, applies the caller's
// document-selection/ownership filter, and accumulates whole documents in
// rank order until the token budget is exhausted.
func (r *Retriever) Search(ctx context.Context, query string, settings *profile.RAGSettings, user models.UserInformation, selectedFiles []string) (*Summary, error) {
	query = strings.TrimSpace(strings.Trim(query, `"'`))
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if settings == nil {
		return nil, errors.New("rag settings are required")
	}
	if settings.KNearestNeighborsCount < 1 {
		return nil, fmt.Errorf("k nearest neighbors count must be >= 1, got %d", settings.KNearestNeighborsCount)
	}
	if settings.DocumentFilesCount < 1 {
		return nil, fmt.Errorf("document files count must be >= 1, got %d", settings.DocumentFilesCount)
	}

	vecs, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errors.New("embedder returned no vectors")
	}

	sq := core.SearchQuery{
		IndexName:         settings.IndexName,
		Vector:            vecs[0],
		Top:               settings.DocumentFilesCount,
		KNearestNeighbors: settings.KNearestNeighborsCount,
	}
	// Restricting hits to the caller's selected documents is a security
	// filter: ownership metadata must match the requesting user.
	if len(selectedFiles) > 0 {
		sq.Filter = &core.SearchFilter{
			SelectedFiles: selectedFiles,
			UserID:        user.UserID,
			SessionID:     user.SessionID,
		}
	}

	hits, err := r.index.Search(ctx, sq)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return &Summary{FormattedSourceText: NoSourcesMarker}, nil
	}

	budget := settings.MaxSourceTokens
	if budget <= 0 {
		budget = defaultMaxSourceTokens
	}

	var (
		b       strings.Builder
		sources []KnowledgeSource
		used    int
	)
	for _, hit := range hits {
		src := newSource(settings.IndexSchema, hit)
		text := src.FormatAsCitationText()
		tokens, err := r.counter.CountTokens(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("count source tokens: %w", err)
		}
		// A document is included wholly or not at all.
		if used+tokens > budget {
			break
		}
		used += tokens
		b.WriteString(text)
		b.WriteString("\n\n")
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return &Summary{FormattedSourceText: NoSourcesMarker}, nil
	}
	return &Summary{FormattedSourceText: strings.TrimRight(b.String(), "\n"), Sources: sources}, nil
}

const defaultMaxSourceTokens = 4000

// EstimatingTokenCounter is the cheap default: ~4 chars per token. Wire a
// model-backed core.TokenCounter for exact budgeting.
type EstimatingTokenCounter struct{}

func (EstimatingTokenCounter) CountTokens(_ context.Context, text string) (int, error) {
	n := len([]rune(text))
	if n <= 0 {
		return 0, nil
	}
	return (n + 3) / 4, nil
}
