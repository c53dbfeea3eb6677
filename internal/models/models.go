package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Approach selects which orchestration strategy serves a chat request.
type Approach string

const (
	ApproachChat                Approach = "Chat"
	ApproachRAGChat             Approach = "RAGChat"
	ApproachEndpointAssistant   Approach = "EndpointAssistant"
	ApproachEndpointAssistantV2 Approach = "EndpointAssistantV2"
)

// UserInformation identifies the authenticated caller of a request.
// It is resolved by the auth middleware and trusted as already checked.
type UserInformation struct {
	UserID    string   `json:"user_id"`
	UserName  string   `json:"user_name"`
	SessionID string   `json:"session_id"`
	Groups    []string `json:"groups"`
}

// ChatTurn is one question/answer pair. The most recent turn's Assistant
// is nil until the current request is answered.
type ChatTurn struct {
	User      string  `json:"user"`
	Assistant *string `json:"assistant,omitempty"`
}

// FileAttachment is a file sent along with a simple-chat turn.
// Data travels base64-encoded on the wire.
type FileAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// RequestOverrides carries optional per-request tuning knobs.
type RequestOverrides struct {
	Temperature              *float32 `json:"temperature,omitempty"`
	SuggestFollowupQuestions bool     `json:"suggest_followup_questions,omitempty"`
}

// ChatRequest is one inbound chat turn. ChatID groups turns into a session;
// ChatTurnID uniquely identifies this turn for later rating.
type ChatRequest struct {
	ChatID          uuid.UUID         `json:"chat_id"`
	ChatTurnID      uuid.UUID         `json:"chat_turn_id"`
	History         []ChatTurn        `json:"history"`
	SelectedFiles   []string          `json:"selected_files,omitempty"`
	OptionFlags     map[string]string `json:"option_flags,omitempty"`
	Approach        Approach          `json:"approach,omitempty"`
	Overrides       *RequestOverrides `json:"overrides,omitempty"`
	FileAttachments []FileAttachment  `json:"file_attachments,omitempty"`
}

// Option flag keys recognized on ChatRequest.OptionFlags.
const (
	OptionFlagProfile      = "profile"
	OptionFlagPremiumModel = "premium_model"
)

var (
	ErrEmptyHistory  = errors.New("chat request history must not be empty")
	ErrMissingChatID = errors.New("chat request must carry a chat id")
)

// Validate checks the structural invariants of the request. A zero chat id
// is rejected: sessions keyed by it would collide across callers.
func (r *ChatRequest) Validate() error {
	if len(r.History) == 0 {
		return ErrEmptyHistory
	}
	if r.ChatID == uuid.Nil {
		return ErrMissingChatID
	}
	return nil
}

// Question returns the user text of the most recent turn.
func (r *ChatRequest) Question() string {
	if len(r.History) == 0 {
		return ""
	}
	return r.History[len(r.History)-1].User
}

// PremiumModelRequested reports whether the caller asked for the premium
// model deployment tier.
func (r *ChatRequest) PremiumModelRequested() bool {
	return r.OptionFlags[OptionFlagPremiumModel] == "true"
}

// DataPoint is one retrieved source surfaced to the caller as a citation.
type DataPoint struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Diagnostics captures token usage and timing for one answered turn.
type Diagnostics struct {
	CompletionTokens             int    `json:"completion_tokens"`
	PromptTokens                 int    `json:"prompt_tokens"`
	TotalTokens                  int    `json:"total_tokens"`
	AnswerDurationMilliseconds   int64  `json:"answer_duration_ms"`
	ModelDeploymentName          string `json:"model_deployment_name"`
	WorkflowDurationMilliseconds int64  `json:"workflow_duration_ms"`
}

// ApproachResponse is the final, immutable result of one chat turn.
// MessageID/ChatID always come from the request; they are never regenerated.
type ApproachResponse struct {
	Answer          string       `json:"answer"`
	Thoughts        string       `json:"thoughts,omitempty"`
	DataPoints      []DataPoint  `json:"data_points,omitempty"`
	CitationBaseURL string       `json:"citation_base_url,omitempty"`
	MessageID       uuid.UUID    `json:"message_id"`
	ChatID          uuid.UUID    `json:"chat_id"`
	Diagnostics     *Diagnostics `json:"diagnostics,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// ChatChunkResponse is one unit of a streamed reply. Every chunk but the
// last carries text and a nil FinalResult; the terminal chunk carries an
// empty Text and the populated FinalResult.
type ChatChunkResponse struct {
	Text        string            `json:"text"`
	FinalResult *ApproachResponse `json:"final_result,omitempty"`
}

// ChatRatingRequest attaches a user rating to a previously answered turn.
type ChatRatingRequest struct {
	ChatID    uuid.UUID `json:"chat_id"`
	MessageID uuid.UUID `json:"message_id"`
	Rating    int       `json:"rating"`
	Feedback  string    `json:"feedback,omitempty"`
}

// Document lifecycle states.
const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Document is the stored metadata for an uploaded file. UserID/SessionID
// scope retrieval so one caller never sees another caller's content.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	SourceFile  string    `db:"source_file" json:"source_file"`
	StorageURL  string    `db:"storage_url" json:"storage_url"`
	ContentType string    `db:"content_type" json:"content_type"`
	Status      string    `db:"status" json:"status"` // uploaded | processing | ready | failed
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentChunk is one indexed text chunk of an ingested document.
type DocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	SourceFile string    `db:"source_file" json:"source_file"`
	UserID     string    `db:"user_id" json:"user_id"`
	SessionID  string    `db:"session_id" json:"session_id"`
	ChunkIndex int       `db:"chunk_index" json:"chunk_index"`
	Content    string    `db:"content" json:"content"`
	Embedding  []float32 `db:"embedding" json:"-"`
	TokenCount int       `db:"token_count" json:"token_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
