package orchestration

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/prompt"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/retrieval"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
)

type fakeCompleter struct {
	mu            sync.Mutex
	completeCalls int
	results       []*core.CompletionResult
	completeErr   error
	lastRequest   core.CompletionRequest

	streamDeltas  []string
	streamResult  *core.CompletionResult
	streamErr     error
	streamNextErr error
}

func (f *fakeCompleter) Complete(_ context.Context, req core.CompletionRequest) (*core.CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.lastRequest = req
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	if len(f.results) == 0 {
		return &core.CompletionResult{Answer: "ok"}, nil
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res, nil
}

func (f *fakeCompleter) Stream(_ context.Context, req core.CompletionRequest) (core.CompletionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRequest = req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &fakeStream{deltas: f.streamDeltas, res: f.streamResult, nextErr: f.streamNextErr}, nil
}

type fakeStream struct {
	deltas  []string
	i       int
	res     *core.CompletionResult
	nextErr error
}

func (s *fakeStream) Next() (string, error) {
	if s.i < len(s.deltas) {
		d := s.deltas[s.i]
		s.i++
		return d, nil
	}
	if s.nextErr != nil {
		return "", s.nextErr
	}
	return "", io.EOF
}

func (s *fakeStream) Result() *core.CompletionResult { return s.res }

type fakeRetriever struct {
	summary     *retrieval.Summary
	err         error
	calls       int
	gotQuery    string
	gotSelected []string
	gotUser     models.UserInformation
}

func (f *fakeRetriever) Search(_ context.Context, query string, _ *profile.RAGSettings, user models.UserInformation, selected []string) (*retrieval.Summary, error) {
	f.calls++
	f.gotQuery = query
	f.gotUser = user
	f.gotSelected = selected
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

type fakeExtractor struct {
	text            string
	err             error
	calls           int
	lastContentType string
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ []byte, contentType string) (string, error) {
	f.calls++
	f.lastContentType = contentType
	return f.text, f.err
}

type testSource struct {
	file    string
	content string
}

func (s testSource) Filepath() string { return s.file }
func (s testSource) Content() string  { return s.content }
func (s testSource) FormatAsCitationText() string {
	return "[" + s.file + "]\n" + s.content
}

func testSummary(files ...string) *retrieval.Summary {
	var (
		b       []byte
		sources []retrieval.KnowledgeSource
	)
	for _, f := range files {
		src := testSource{file: f, content: "content of " + f}
		sources = append(sources, src)
		b = append(b, src.FormatAsCitationText()...)
		b = append(b, '\n', '\n')
	}
	return &retrieval.Summary{FormattedSourceText: string(b), Sources: sources}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver() *prompt.Resolver {
	return prompt.NewResolver()
}

func testRAGProfile() *profile.Definition {
	return &profile.Definition{
		Name:     "Document Search",
		Approach: models.ApproachRAGChat,
		RAGSettings: &profile.RAGSettings{
			IndexName:              "document_chunks",
			KNearestNeighborsCount: 10,
			DocumentFilesCount:     5,
			MaxSourceTokens:        4000,
			CitationBaseURL:        "https://files.example.com",
		},
	}
}

func testChatProfile() *profile.Definition {
	return &profile.Definition{Name: "General", Approach: models.ApproachChat}
}

func testRequest(question string) *models.ChatRequest {
	return &models.ChatRequest{
		ChatID:     uuid.New(),
		ChatTurnID: uuid.New(),
		History:    []models.ChatTurn{{User: question}},
	}
}

func collectChunks(ch <-chan models.ChatChunkResponse) []models.ChatChunkResponse {
	var chunks []models.ChatChunkResponse
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks
}

func terminalOf(chunks []models.ChatChunkResponse) *models.ApproachResponse {
	for _, c := range chunks {
		if c.FinalResult != nil {
			return c.FinalResult
		}
	}
	return nil
}
