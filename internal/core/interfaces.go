package core

import (
	"context"
	"io"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

// MessagePart is one piece of a chat message: plain text or inline image
// bytes. Exactly one of Text or ImageData is set.
type MessagePart struct {
	Text        string
	ImageFormat string // mime subtype, e.g. "png"
	ImageData   []byte
}

// ChatMessage is one turn handed to the completion model.
// Role is "user" or "model".
type ChatMessage struct {
	Role  string
	Parts []MessagePart
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Parts: []MessagePart{{Text: text}}}
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	Temperature  *float32
	PremiumTier  bool // selects the premium model deployment
}

// TokenUsage reports token counts for one completion call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResult is the outcome of a single-shot completion.
// Blocked marks a content-policy rejection; it is data, not an error.
type CompletionResult struct {
	Answer               string
	Usage                TokenUsage
	ModelDeploymentName  string
	DurationMilliseconds int64
	Blocked              bool
}

// CompletionStream is a lazy, finite, non-restartable sequence of text
// deltas. Next returns io.EOF when the model is done; cancellation is
// observed between deltas. Result is valid only after exhaustion.
type CompletionStream interface {
	Next() (string, error)
	Result() *CompletionResult
}

// CompletionClient wraps a chat-completion model invocation.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
	Stream(ctx context.Context, req CompletionRequest) (CompletionStream, error)
}

// EmbeddingProvider computes vector embeddings for texts.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenCounter estimates the token cost of a text for the target model.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// IndexDocument is one ranked hit from the vector index, carrying the
// ownership metadata the retrieval filter needs.
type IndexDocument struct {
	SourceFile string
	Content    string
	ChunkIndex int
	UserID     string
	SessionID  string
	Score      float64
}

// SearchFilter restricts index hits to the caller's own selected documents.
// An empty SelectedFiles slice means no selection filter; UserID/SessionID
// are always enforced when set.
type SearchFilter struct {
	SelectedFiles []string
	UserID        string
	SessionID     string
}

// SearchQuery is one KNN query against the vector index.
type SearchQuery struct {
	IndexName         string
	Vector            []float32
	Top               int
	KNearestNeighbors int
	Filter            *SearchFilter
}

// SearchIndex answers vector similarity queries.
type SearchIndex interface {
	Search(ctx context.Context, q SearchQuery) ([]IndexDocument, error)
}

// HistoryRecorder persists answered turns and their ratings. The chat
// pipeline writes through it and never reads it mid-request.
type HistoryRecorder interface {
	RecordTurn(ctx context.Context, user models.UserInformation, req *models.ChatRequest, resp *models.ApproachResponse) error
	RecordRating(ctx context.Context, user models.UserInformation, rating *models.ChatRatingRequest) error
}

// DocumentStore persists uploaded-document metadata and indexed chunks.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// TextExtractor turns an uploaded file payload into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}
