package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
)

// GeminiClient implements core.CompletionClient over two Gemini model
// deployments: standard and premium. The facade is stateless per call and
// safe for concurrent use.
type GeminiClient struct {
	client        *genai.Client
	standardModel string
	premiumModel  string
}

func NewGeminiClient(ctx context.Context, apiKey, standardModel, premiumModel string) (*GeminiClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if standardModel == "" {
		standardModel = "gemini-1.5-flash"
	}
	if premiumModel == "" {
		premiumModel = standardModel
	}
	return &GeminiClient{client: cl, standardModel: standardModel, premiumModel: premiumModel}, nil
}

func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// model resolves the deployment tier for one request.
func (g *GeminiClient) model(req core.CompletionRequest) (*genai.GenerativeModel, string) {
	name := g.standardModel
	if req.PremiumTier {
		name = g.premiumModel
	}
	m := g.client.GenerativeModel(name)
	if req.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	if req.Temperature != nil {
		m.SetTemperature(*req.Temperature)
	}
	return m, name
}

// Complete performs one non-streaming completion, recording wall-clock
// duration around the call. A content-policy block comes back as data.
func (g *GeminiClient) Complete(ctx context.Context, req core.CompletionRequest) (*core.CompletionResult, error) {
	m, name := g.model(req)
	history, last, err := toContents(req.Messages)
	if err != nil {
		return nil, err
	}

	cs := m.StartChat()
	cs.History = history

	start := time.Now()
	resp, err := cs.SendMessage(ctx, last...)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return &core.CompletionResult{
				ModelDeploymentName:  name,
				DurationMilliseconds: elapsed,
				Blocked:              true,
			}, nil
		}
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	res := &core.CompletionResult{
		Answer:               responseText(resp),
		ModelDeploymentName:  name,
		DurationMilliseconds: elapsed,
	}
	applyUsage(&res.Usage, resp.UsageMetadata)
	return res, nil
}

// Stream starts a streaming completion. Cancellation is observed between
// deltas via the context handed to SendMessageStream.
func (g *GeminiClient) Stream(ctx context.Context, req core.CompletionRequest) (core.CompletionStream, error) {
	m, name := g.model(req)
	history, last, err := toContents(req.Messages)
	if err != nil {
		return nil, err
	}

	cs := m.StartChat()
	cs.History = history

	return &geminiStream{
		iter:  cs.SendMessageStream(ctx, last...),
		start: time.Now(),
		result: core.CompletionResult{
			ModelDeploymentName: name,
		},
	}, nil
}

// CountTokens asks the standard deployment for a model-exact token count.
func (g *GeminiClient) CountTokens(ctx context.Context, text string) (int, error) {
	m := g.client.GenerativeModel(g.standardModel)
	resp, err := m.CountTokens(ctx, genai.Text(text))
	if err != nil {
		return 0, fmt.Errorf("gemini count tokens: %w", err)
	}
	return int(resp.TotalTokens), nil
}

// geminiStream adapts the genai response iterator to core.CompletionStream.
// Exhaustion is signaled with io.EOF, never a sentinel delta.
type geminiStream struct {
	iter   *genai.GenerateContentResponseIterator
	result core.CompletionResult
	start  time.Time
	done   bool
}

func (s *geminiStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	resp, err := s.iter.Next()
	if err == iterator.Done {
		s.finish()
		return "", io.EOF
	}
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			s.result.Blocked = true
			s.finish()
			return "", io.EOF
		}
		return "", fmt.Errorf("gemini stream: %w", err)
	}
	applyUsage(&s.result.Usage, resp.UsageMetadata)
	text := responseText(resp)
	s.result.Answer += text
	return text, nil
}

func (s *geminiStream) finish() {
	s.done = true
	s.result.DurationMilliseconds = time.Since(s.start).Milliseconds()
}

// Result is valid only after Next returned io.EOF.
func (s *geminiStream) Result() *core.CompletionResult {
	return &s.result
}

// toContents converts chat messages into genai contents, splitting off the
// parts of the final message (the one actually sent).
func toContents(messages []core.ChatMessage) (history []*genai.Content, last []genai.Part, err error) {
	if len(messages) == 0 {
		return nil, nil, errors.New("completion request has no messages")
	}
	for _, msg := range messages[:len(messages)-1] {
		history = append(history, &genai.Content{Role: msg.Role, Parts: toParts(msg.Parts)})
	}
	last = toParts(messages[len(messages)-1].Parts)
	if len(last) == 0 {
		return nil, nil, errors.New("final message has no parts")
	}
	return history, last, nil
}

func toParts(parts []core.MessagePart) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.ImageData) > 0 {
			out = append(out, genai.ImageData(p.ImageFormat, p.ImageData))
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func applyUsage(u *core.TokenUsage, meta *genai.UsageMetadata) {
	if meta == nil {
		return
	}
	u.PromptTokens = int(meta.PromptTokenCount)
	u.CompletionTokens = int(meta.CandidatesTokenCount)
	u.TotalTokens = int(meta.TotalTokenCount)
}

var _ core.CompletionClient = (*GeminiClient)(nil)
var _ core.TokenCounter = (*GeminiClient)(nil)
