package orchestration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
)

func endpointProfile(url string) *profile.Definition {
	return &profile.Definition{
		Name:              "Ops",
		Approach:          models.ApproachEndpointAssistant,
		AssistantEndpoint: &profile.AssistantEndpointSettings{APIEndpoint: url, APIKeyEnvName: "TEST_ASSISTANT_KEY"},
	}
}

func TestEndpointChatForwardsFullHistory(t *testing.T) {
	t.Setenv("TEST_ASSISTANT_KEY", "sekrit")

	var got endpointChatRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(endpointChatResponse{Answer: "from upstream", Thoughts: "trace"})
	}))
	defer srv.Close()

	s := NewEndpointChat(srv.Client(), discardLogger())

	prior := "earlier answer"
	req := testRequest("ignored")
	req.History = []models.ChatTurn{
		{User: "first", Assistant: &prior},
		{User: "second"},
	}

	pc := NewPipelineContext(models.UserInformation{}, endpointProfile(srv.URL), req)
	resp, err := s.Reply(context.Background(), pc)
	require.NoError(t, err)

	assert.Equal(t, "sekrit", gotKey)
	assert.Equal(t, req.ChatID.String(), got.ChatID)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, endpointMessage{Role: "user", Content: "first"}, got.Messages[0])
	assert.Equal(t, endpointMessage{Role: "assistant", Content: "earlier answer"}, got.Messages[1])
	assert.Equal(t, endpointMessage{Role: "user", Content: "second"}, got.Messages[2])

	assert.Equal(t, "from upstream", resp.Answer)
	assert.Equal(t, "trace", resp.Thoughts)
	assert.Nil(t, resp.Diagnostics)
}

func TestEndpointChatUpstreamErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(endpointChatResponse{Error: "assistant offline"})
	}))
	defer srv.Close()

	s := NewEndpointChat(srv.Client(), discardLogger())
	pc := NewPipelineContext(models.UserInformation{}, endpointProfile(srv.URL), testRequest("q"))
	_, err := s.Reply(context.Background(), pc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant offline")
}

func TestEndpointChatNon2xxIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewEndpointChat(srv.Client(), discardLogger())
	pc := NewPipelineContext(models.UserInformation{}, endpointProfile(srv.URL), testRequest("q"))
	_, err := s.Reply(context.Background(), pc)
	require.Error(t, err)
}

func TestEndpointChatKeepsUpstreamBracketsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(endpointChatResponse{Answer: "Restart via [runbook step 4]."})
	}))
	defer srv.Close()

	s := NewEndpointChat(srv.Client(), discardLogger())
	pc := NewPipelineContext(models.UserInformation{}, endpointProfile(srv.URL), testRequest("q"))
	resp, err := s.Reply(context.Background(), pc)
	require.NoError(t, err)

	// The upstream owns its prose; nothing was retrieved to cite.
	assert.Equal(t, "Restart via [runbook step 4].", resp.Answer)
	assert.Empty(t, resp.DataPoints)
}

func TestEndpointChatStreamWrapsReplyAsTerminalChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(endpointChatResponse{Answer: "single shot"})
	}))
	defer srv.Close()

	s := NewEndpointChat(srv.Client(), discardLogger())
	pc := NewPipelineContext(models.UserInformation{}, endpointProfile(srv.URL), testRequest("q"))
	chunks := collectChunks(s.ReplyStream(context.Background(), pc))

	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].FinalResult)
	assert.Equal(t, "single shot", chunks[0].FinalResult.Answer)
}
