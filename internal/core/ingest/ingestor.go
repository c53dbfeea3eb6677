package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

// Config tunes the streaming ingestion pipeline.
//
// TargetTokens:  approximate tokens per chunk.
// OverlapTokens: tokens retained from the previous chunk as seed of the next.
// BatchSize:     how many chunks to embed and write per database batch.
type Config struct {
	TargetTokens  int
	OverlapTokens int
	BatchSize     int
}

// DefaultConfig returns the tuning used when the caller passes nil.
func DefaultConfig() *Config {
	return &Config{TargetTokens: 500, OverlapTokens: 50, BatchSize: 32}
}

// chunk is the internal unit passed between pipeline stages.
type chunk struct {
	Pos      int
	Text     string
	TokenCnt int
}

// DocumentIngestor runs the background pipeline that turns an uploaded
// file into searchable chunks: fetch from object storage, extract text,
// chunk with overlap, embed in batches, persist.
//
// Jobs arrive on an in-memory bounded queue of document IDs; Enqueue
// blocks when the queue is full.
type DocumentIngestor struct {
	store     core.DocumentStore
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.TextExtractor
	bucket    string
	cfg       *Config
	logger    *slog.Logger
	jobs      chan string
}

func NewDocumentIngestor(store core.DocumentStore, obj core.ObjectClient, emb core.EmbeddingProvider, ext core.TextExtractor, bucket string, cfg *Config, logger *slog.Logger) *DocumentIngestor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &DocumentIngestor{
		store: store, obj: obj, embedder: emb, extractor: ext,
		bucket: bucket, cfg: cfg, logger: logger,
		jobs: make(chan string, 64),
	}
}

// Start launches numWorkers goroutines reading from the job queue.
// Workers exit when ctx is cancelled.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					i.logger.Info("ingest worker shutting down", "worker", w)
					return
				case docID := <-i.jobs:
					started := time.Now()
					if err := i.ProcessOne(ctx, docID); err != nil {
						i.logger.Error("ingest failed", "worker", w, "document_id", docID, "error", err)
						continue
					}
					i.logger.Info("ingest complete", "worker", w, "document_id", docID,
						"duration_ms", time.Since(started).Milliseconds())
				}
			}
		}(w)
	}
}

// Enqueue schedules a document ID for ingestion.
func (i *DocumentIngestor) Enqueue(docID string) {
	i.jobs <- docID
}

// ProcessOne runs the full pipeline for a single document ID. The
// document's status moves uploaded -> processing -> ready, or failed on
// any stage error.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, docID string) error {
	proctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	doc, err := i.store.GetDocumentByID(proctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", docID)
	}

	if err := i.store.UpdateDocumentStatus(proctx, docID, models.DocumentStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := i.runPipeline(proctx, doc); err != nil {
		_ = i.store.UpdateDocumentStatus(proctx, docID, models.DocumentStatusFailed)
		return err
	}

	return i.store.UpdateDocumentStatus(proctx, docID, models.DocumentStatusReady)
}

func (i *DocumentIngestor) runPipeline(ctx context.Context, doc *models.Document) error {
	_, key := parseObjectURL(doc.StorageURL)
	if key == "" {
		key = doc.SourceFile
	}

	data, err := i.obj.GetFile(ctx, i.bucket, key)
	if err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}

	text, err := i.extractor.ExtractText(ctx, data, doc.ContentType)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	fragCh := streamFragments(gctx, g, text)
	chunkCh := streamChunk(gctx, g, fragCh, i.cfg.TargetTokens, i.cfg.OverlapTokens)

	g.Go(func() error {
		return i.embedAndPersist(gctx, doc, chunkCh, i.cfg.BatchSize)
	})

	return g.Wait()
}

// streamFragments splits extracted text into non-empty lines and feeds
// them to the chunker. Backpressure applies on the channel send.
func streamFragments(ctx context.Context, g *errgroup.Group, text string) <-chan string {
	out := make(chan string, 32)

	g.Go(func() error {
		defer close(out)
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return out
}

// parseObjectURL extracts the bucket and key from a virtual-hosted-style
// object URL, e.g. https://my-bucket.s3.us-east-2.amazonaws.com/path/file.pdf.
func parseObjectURL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	if idx := strings.Index(host, "."); idx > 0 {
		bucket = host[:idx]
	}
	return bucket, key
}
