package prompt

import (
	"embed"
	"fmt"
	"strings"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Template names shipped with the service. A profile may name its own
// chat-system template; these are the built-in defaults.
const (
	SimpleChatSystem  = "simple-chat-system"
	RAGChatSystem     = "rag-chat-system"
	RAGChatUser       = "rag-chat-user"
	SearchQuerySystem = "search-query-system"
	SearchQueryUser   = "search-query-user"
)

// Resolver loads named prompt templates and renders them against a
// variable map. It is pure: no state beyond the static template store.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Get returns the named template or an error if the resource is absent.
func (r *Resolver) Get(name string) (string, error) {
	raw, err := templateFS.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("prompt template %q not found: %w", name, err)
	}
	return string(raw), nil
}

// Render substitutes every {{key}} placeholder present in vars. Unresolved
// placeholders are left as-is; missing variables are not an error.
func (r *Resolver) Render(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

// GetAndRender is the common load-then-render path.
func (r *Resolver) GetAndRender(name string, vars map[string]string) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return r.Render(t, vars), nil
}

// HistoryText serializes prior turns for injection into a template.
// The unanswered current turn is excluded.
func HistoryText(history []models.ChatTurn) string {
	var b strings.Builder
	for _, t := range history {
		if t.Assistant == nil {
			continue
		}
		b.WriteString("user: ")
		b.WriteString(t.User)
		b.WriteString("\nassistant: ")
		b.WriteString(*t.Assistant)
		b.WriteString("\n")
	}
	return b.String()
}
