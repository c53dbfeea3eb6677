package extract

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
)

var _ core.TextExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor converts uploaded file payloads (PDF, DOCX, HTML, ...)
// to plain text via sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv convert %q: %w", contentType, err)
	}
	if res.Body == "" {
		return "", fmt.Errorf("docconv convert %q: empty text", contentType)
	}
	return res.Body, nil
}
