package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
)

// endpointMessage is one turn in the payload forwarded to an external
// assistant endpoint.
type endpointMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type endpointChatRequest struct {
	ChatID   string            `json:"chat_id"`
	Messages []endpointMessage `json:"messages"`
}

type endpointChatResponse struct {
	Answer   string `json:"answer"`
	Thoughts string `json:"thoughts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// EndpointChat forwards the whole chat history to a configured external
// HTTP endpoint and returns its single JSON response. Stateless: every
// turn carries the full history.
type EndpointChat struct {
	client *http.Client
	logger *slog.Logger
}

func NewEndpointChat(client *http.Client, logger *slog.Logger) *EndpointChat {
	if client == nil {
		client = http.DefaultClient
	}
	return &EndpointChat{client: client, logger: logger}
}

func (s *EndpointChat) Reply(ctx context.Context, pc *PipelineContext) (*models.ApproachResponse, error) {
	settings := pc.Profile.AssistantEndpoint
	if settings == nil {
		return nil, fmt.Errorf("profile %q: assistant endpoint settings missing", pc.Profile.Name)
	}

	payload := endpointChatRequest{ChatID: pc.Request.ChatID.String()}
	for _, t := range pc.Request.History {
		payload.Messages = append(payload.Messages, endpointMessage{Role: "user", Content: t.User})
		if t.Assistant != nil {
			payload.Messages = append(payload.Messages, endpointMessage{Role: "assistant", Content: *t.Assistant})
		}
	}

	var reply endpointChatResponse
	if err := postJSON(ctx, s.client, settings, settings.APIEndpoint, payload, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("assistant endpoint: %s", reply.Error)
	}

	return Assemble(AssembleInput{
		Context:  pc,
		Answer:   reply.Answer,
		Thoughts: reply.Thoughts,
	}), nil
}

// ReplyStream wraps the single JSON response as one terminal chunk.
func (s *EndpointChat) ReplyStream(ctx context.Context, pc *PipelineContext) <-chan models.ChatChunkResponse {
	out := make(chan models.ChatChunkResponse)
	go func() {
		defer close(out)
		resp, err := s.Reply(ctx, pc)
		if err != nil {
			s.logger.Error("endpoint chat", "error", err)
			return
		}
		emitFinal(ctx, out, resp)
	}()
	return out
}

// postJSON posts a JSON payload and decodes the JSON reply. Non-2xx status
// is a fatal per-request error.
func postJSON(ctx context.Context, client *http.Client, settings *profile.AssistantEndpointSettings, url string, payload, reply any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal endpoint payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build endpoint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := settings.APIKey(); key != "" {
		req.Header.Set("X-Api-Key", key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call assistant endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("assistant endpoint returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("decode endpoint response: %w", err)
	}
	return nil
}

var (
	_ Strategy          = (*EndpointChat)(nil)
	_ StreamingStrategy = (*EndpointChat)(nil)
)
