package retrieval

import (
	"fmt"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
)

// KnowledgeSource is one retrieved snippet with its citation identity.
// Index schemas differ slightly in how they present a citation; the closed
// set of variants below unifies them behind this interface.
type KnowledgeSource interface {
	FormatAsCitationText() string
	Filepath() string
	Content() string
}

// Index schema names recognized in profile RAG settings.
const (
	SchemaDocument = "document"
	SchemaChunk    = "chunk"
)

// documentSource cites the whole source file.
type documentSource struct {
	sourceFile string
	content    string
}

func (s documentSource) Filepath() string { return s.sourceFile }
func (s documentSource) Content() string  { return s.content }

func (s documentSource) FormatAsCitationText() string {
	return fmt.Sprintf("[%s]\n%s", s.sourceFile, s.content)
}

// chunkSource cites a specific chunk within the source file so the UI can
// deep-link into the document.
type chunkSource struct {
	sourceFile string
	content    string
	chunkIndex int
}

func (s chunkSource) Filepath() string { return s.sourceFile }
func (s chunkSource) Content() string  { return s.content }

func (s chunkSource) FormatAsCitationText() string {
	return fmt.Sprintf("[%s#%d]\n%s", s.sourceFile, s.chunkIndex, s.content)
}

// newSource maps an index hit to the schema variant configured for the
// profile's index. Unknown schemas fall back to the document variant.
func newSource(schema string, doc core.IndexDocument) KnowledgeSource {
	switch schema {
	case SchemaChunk:
		return chunkSource{sourceFile: doc.SourceFile, content: doc.Content, chunkIndex: doc.ChunkIndex}
	default:
		return documentSource{sourceFile: doc.SourceFile, content: doc.Content}
	}
}
