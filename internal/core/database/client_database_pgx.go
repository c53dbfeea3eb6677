package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rutzsco/custom-chat-copilot-go/internal/config"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

// DatabaseClient implements the history recorder, document store and
// vector search index over Postgres + pgvector.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// History recorder

func (c *DatabaseClient) RecordTurn(ctx context.Context, user models.UserInformation, req *models.ChatRequest, resp *models.ApproachResponse) error {
	if req == nil || resp == nil {
		return errors.New("nil chat request or response")
	}
	const q = `
		INSERT INTO chat_history
			(chat_id, message_id, user_id, profile, prompt, answer, model_deployment_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`
	modelName := ""
	if resp.Diagnostics != nil {
		modelName = resp.Diagnostics.ModelDeploymentName
	}
	_, err := c.db.ExecContext(ctx, q,
		req.ChatID, req.ChatTurnID, user.UserID, string(req.Approach), req.Question(), resp.Answer, modelName)
	return err
}

func (c *DatabaseClient) RecordRating(ctx context.Context, user models.UserInformation, rating *models.ChatRatingRequest) error {
	if rating == nil {
		return errors.New("nil rating")
	}
	const q = `
		UPDATE chat_history
		SET rating = $4, feedback = $5
		WHERE chat_id = $1 AND message_id = $2 AND user_id = $3
	`
	res, err := c.db.ExecContext(ctx, q,
		rating.ChatID, rating.MessageID, user.UserID, rating.Rating, rating.Feedback)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("chat turn not found: %s/%s", rating.ChatID, rating.MessageID)
	}
	return nil
}

// Document store

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, session_id, source_file, storage_url, content_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.UserID, doc.SessionID, doc.SourceFile, doc.StorageURL, doc.ContentType, doc.Status)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, user_id, session_id, source_file, storage_url, content_type, status, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.UserID, &d.SessionID, &d.SourceFile, &d.StorageURL, &d.ContentType, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	const q = `
		SELECT id, user_id, session_id, source_file, storage_url, content_type, status, created_at, updated_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.SessionID, &d.SourceFile, &d.StorageURL, &d.ContentType, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// InsertDocumentChunks inserts chunks in a single transaction.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, source_file, user_id, session_id, chunk_index, content, embedding, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.SourceFile, ch.UserID, ch.SessionID, ch.ChunkIndex, ch.Content, vec, ch.TokenCount,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Search index

// Search runs a cosine-ordered KNN query. The ownership filter is applied
// in SQL so unauthorized rows never leave the database.
func (c *DatabaseClient) Search(ctx context.Context, q core.SearchQuery) ([]core.IndexDocument, error) {
	vec := pgvector.NewVector(q.Vector)
	limit := q.Top
	if limit < 1 {
		limit = 1
	}
	// KNearestNeighbors caps the candidate pool per query vector before the
	// final cut to Top results.
	candidates := q.KNearestNeighbors
	if candidates < limit {
		candidates = limit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if f := q.Filter; f != nil {
		const filtered = `
			SELECT source_file, content, chunk_index, user_id, session_id, embedding <=> $1 AS score
			FROM document_chunks
			WHERE source_file = ANY($2) AND user_id = $3 AND session_id = $4
			ORDER BY embedding <=> $1
			LIMIT $5
		`
		rows, err = c.db.QueryContext(ctx, filtered, vec, f.SelectedFiles, f.UserID, f.SessionID, candidates)
	} else {
		const unfiltered = `
			SELECT source_file, content, chunk_index, user_id, session_id, embedding <=> $1 AS score
			FROM document_chunks
			ORDER BY embedding <=> $1
			LIMIT $2
		`
		rows, err = c.db.QueryContext(ctx, unfiltered, vec, candidates)
	}
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []core.IndexDocument
	for rows.Next() {
		var d core.IndexDocument
		if err := rows.Scan(&d.SourceFile, &d.Content, &d.ChunkIndex, &d.UserID, &d.SessionID, &d.Score); err != nil {
			return nil, err
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

var (
	_ core.HistoryRecorder = (*DatabaseClient)(nil)
	_ core.DocumentStore   = (*DatabaseClient)(nil)
	_ core.SearchIndex     = (*DatabaseClient)(nil)
)
