package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

// embedAndPersist consumes chunks, embeds them in batches and writes
// them to the document store. Each row carries the document's ownership
// metadata so retrieval can filter to the uploading caller.
func (i *DocumentIngestor) embedAndPersist(
	ctx context.Context,
	doc *models.Document,
	in <-chan chunk,
	batchSize int,
) error {
	if batchSize < 1 {
		batchSize = 1
	}
	batch := make([]chunk, 0, batchSize)

	flush := func(items []chunk) error {
		if len(items) == 0 {
			return nil
		}

		texts := make([]string, len(items))
		for idx := range items {
			texts[idx] = items[idx].Text
		}

		vecs, err := i.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(vecs) != len(items) {
			return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(items))
		}

		rows := make([]models.DocumentChunk, len(items))
		for k := range items {
			rows[k] = models.DocumentChunk{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				SourceFile: doc.SourceFile,
				UserID:     doc.UserID,
				SessionID:  doc.SessionID,
				ChunkIndex: items[k].Pos,
				Content:    items[k].Text,
				Embedding:  vecs[k],
				TokenCount: items[k].TokenCnt,
			}
		}
		if err := i.store.InsertDocumentChunks(ctx, rows); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	}

	for c := range in {
		batch = append(batch, c)
		if len(batch) == batchSize {
			if err := flush(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	return flush(batch)
}
