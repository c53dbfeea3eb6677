package orchestration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
)

// threadEntry is one cached chat-session handle. The once guards thread
// creation so concurrent first turns for the same session issue exactly one
// create-thread call.
type threadEntry struct {
	once     sync.Once
	threadID string
	err      error
}

// threadKey scopes cached threads to their owner. Two users presenting the
// same chat id must never share an upstream thread.
type threadKey struct {
	userID string
	chatID uuid.UUID
}

// threadCache maps chat sessions to externally issued thread ids. Thread
// ids live only as long as the process; whether they should survive
// restarts is an open question the upstream service does not answer.
type threadCache struct {
	mu      sync.Mutex
	entries map[threadKey]*threadEntry
}

func newThreadCache() *threadCache {
	return &threadCache{entries: make(map[threadKey]*threadEntry)}
}

// entry returns the cache slot for a session, inserting it if absent.
func (c *threadCache) entry(key threadKey) *threadEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &threadEntry{}
		c.entries[key] = e
	}
	return e
}

// evict removes a failed entry so the next turn can retry creation. Only
// the given entry is removed; a replacement inserted meanwhile stays.
func (c *threadCache) evict(key threadKey, e *threadEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] == e {
		delete(c.entries, key)
	}
}

// EndpointChatV2 talks to a threaded external assistant service. The first
// turn of a chat session creates an upstream thread; later turns reuse the
// cached thread id. The run response body is a line-delimited stream
// forwarded verbatim, chunk by chunk.
type EndpointChatV2 struct {
	client  *http.Client
	threads *threadCache
	logger  *slog.Logger
}

func NewEndpointChatV2(client *http.Client, logger *slog.Logger) *EndpointChatV2 {
	if client == nil {
		client = http.DefaultClient
	}
	return &EndpointChatV2{client: client, threads: newThreadCache(), logger: logger}
}

type createThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

type runRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// threadID resolves the upstream thread for a chat session, creating it on
// first use. Only successful creations stay cached: a transient upstream
// failure is evicted so the next turn of the session retries.
func (s *EndpointChatV2) threadID(ctx context.Context, settings *profile.AssistantEndpointSettings, key threadKey) (string, error) {
	e := s.threads.entry(key)
	e.once.Do(func() {
		var reply createThreadResponse
		e.err = postJSON(ctx, s.client, settings, settings.APIEndpoint+"/threads", struct{}{}, &reply)
		if e.err == nil && reply.ThreadID == "" {
			e.err = fmt.Errorf("assistant endpoint returned empty thread id")
		}
		e.threadID = reply.ThreadID
	})
	if e.err != nil {
		s.threads.evict(key, e)
		return "", e.err
	}
	return e.threadID, nil
}

func (s *EndpointChatV2) ReplyStream(ctx context.Context, pc *PipelineContext) <-chan models.ChatChunkResponse {
	out := make(chan models.ChatChunkResponse)
	go func() {
		defer close(out)

		settings := pc.Profile.AssistantEndpoint
		if settings == nil {
			s.logger.Error("endpoint chat v2: assistant endpoint settings missing", "profile", pc.Profile.Name)
			return
		}

		threadID, err := s.threadID(ctx, settings, threadKey{userID: pc.User.UserID, chatID: pc.Request.ChatID})
		if err != nil {
			s.logger.Error("endpoint chat v2: thread", "error", err)
			return
		}

		body, err := json.Marshal(runRequest{ThreadID: threadID, Message: pc.Question})
		if err != nil {
			s.logger.Error("endpoint chat v2: marshal run", "error", err)
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.APIEndpoint+"/runs", bytes.NewReader(body))
		if err != nil {
			s.logger.Error("endpoint chat v2: build run request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if key := settings.APIKey(); key != "" {
			req.Header.Set("X-Api-Key", key)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.Error("endpoint chat v2: run", "error", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			s.logger.Error("endpoint chat v2: run status", "status", resp.StatusCode)
			return
		}

		// Forward each line verbatim, accumulating the full text for the
		// terminal chunk.
		var answer strings.Builder
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				continue
			}
			answer.WriteString(line)
			answer.WriteString("\n")
			if !emit(ctx, out, models.ChatChunkResponse{Text: line}) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			s.logger.Error("endpoint chat v2: read stream", "error", err)
			return
		}

		emitFinal(ctx, out, Assemble(AssembleInput{
			Context:  pc,
			Answer:   strings.TrimRight(answer.String(), "\n"),
			Thoughts: fmt.Sprintf("Assistant thread: %s", threadID),
		}))
	}()
	return out
}

// Reply drains the chunk stream and returns the terminal result.
func (s *EndpointChatV2) Reply(ctx context.Context, pc *PipelineContext) (*models.ApproachResponse, error) {
	return drainStream(s.ReplyStream(ctx, pc))
}

var (
	_ Strategy          = (*EndpointChatV2)(nil)
	_ StreamingStrategy = (*EndpointChatV2)(nil)
)
