package services

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

// Enqueuer schedules an uploaded document for background ingestion.
type Enqueuer interface {
	Enqueue(docID string)
}

// DocumentService stores uploaded files in object storage, records their
// metadata and hands them to the ingestion pipeline.
type DocumentService struct {
	store    core.DocumentStore
	storage  core.ObjectClient
	ingestor Enqueuer
	bucket   string
}

func NewDocumentService(store core.DocumentStore, storage core.ObjectClient, ingestor Enqueuer, bucket string) *DocumentService {
	return &DocumentService{store: store, storage: storage, ingestor: ingestor, bucket: bucket}
}

// Upload stores the file, records its metadata scoped to the uploading
// caller and queues it for ingestion.
func (s *DocumentService) Upload(ctx context.Context, user models.UserInformation, filename, contentType string, data []byte) (*models.Document, error) {
	docID := uuid.NewString()
	key := s.objectKey(user.UserID, docID, filename)

	url, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          docID,
		UserID:      user.UserID,
		SessionID:   user.SessionID,
		SourceFile:  filename,
		StorageURL:  url,
		ContentType: contentType,
		Status:      models.DocumentStatusUploaded,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.ingestor.Enqueue(doc.ID)
	return doc, nil
}

// List returns the caller's own documents.
func (s *DocumentService) List(ctx context.Context, user models.UserInformation) ([]models.Document, error) {
	return s.store.ListDocumentsByUser(ctx, user.UserID)
}

// objectKey creates a consistent object storage key layout.
func (s *DocumentService) objectKey(userID, docID, filename string) string {
	filename = strings.ReplaceAll(strings.TrimSpace(path.Base(filename)), " ", "_")
	return path.Join("users", userID, "documents", docID, filename)
}
