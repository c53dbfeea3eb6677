package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrNotAuthorized = errors.New("user is not authorized for profile")
)

// RAGSettings configures the retrieval step of a retrieval-augmented
// profile.
type RAGSettings struct {
	IndexName              string `json:"index_name"`
	IndexSchema            string `json:"index_schema,omitempty"`
	KNearestNeighborsCount int    `json:"k_nearest_neighbors_count"`
	DocumentFilesCount     int    `json:"document_files_count"`
	MaxSourceTokens        int    `json:"max_source_tokens"`
	CitationBaseURL        string `json:"citation_base_url,omitempty"`
}

// AssistantEndpointSettings configures an external-endpoint profile.
// APIKeyEnvName names the environment variable holding the key so the
// catalog file itself never carries secrets.
type AssistantEndpointSettings struct {
	APIEndpoint   string `json:"api_endpoint"`
	APIKeyEnvName string `json:"api_key_env_name,omitempty"`
}

// Definition is one named approach configuration, loaded once at startup
// and read-only thereafter.
type Definition struct {
	Name                  string                     `json:"name"`
	Approach              models.Approach            `json:"approach"`
	SecurityModelGroups   []string                   `json:"security_model_groups,omitempty"`
	RAGSettings           *RAGSettings               `json:"rag_settings,omitempty"`
	AssistantEndpoint     *AssistantEndpointSettings `json:"assistant_endpoint,omitempty"`
	SampleQuestions       []string                   `json:"sample_questions,omitempty"`
	ChatSystemMessageFile string                     `json:"chat_system_message_file,omitempty"`
}

// requiresRetrieval reports whether the approach runs the retrieval steps.
func requiresRetrieval(a models.Approach) bool {
	return a == models.ApproachRAGChat
}

func requiresEndpoint(a models.Approach) bool {
	return a == models.ApproachEndpointAssistant || a == models.ApproachEndpointAssistantV2
}

// validate enforces the structural invariants of one definition.
func (d *Definition) validate() error {
	if d.Name == "" {
		return errors.New("profile name is required")
	}
	switch d.Approach {
	case models.ApproachChat, models.ApproachRAGChat,
		models.ApproachEndpointAssistant, models.ApproachEndpointAssistantV2:
	default:
		return fmt.Errorf("profile %q: unknown approach %q", d.Name, d.Approach)
	}
	if requiresRetrieval(d.Approach) {
		if d.RAGSettings == nil {
			return fmt.Errorf("profile %q: approach %s requires rag_settings", d.Name, d.Approach)
		}
		if d.RAGSettings.KNearestNeighborsCount < 1 {
			return fmt.Errorf("profile %q: k_nearest_neighbors_count must be >= 1", d.Name)
		}
		if d.RAGSettings.DocumentFilesCount < 1 {
			return fmt.Errorf("profile %q: document_files_count must be >= 1", d.Name)
		}
	} else if d.RAGSettings != nil {
		return fmt.Errorf("profile %q: approach %s must not carry rag_settings", d.Name, d.Approach)
	}
	if requiresEndpoint(d.Approach) {
		if d.AssistantEndpoint == nil || d.AssistantEndpoint.APIEndpoint == "" {
			return fmt.Errorf("profile %q: approach %s requires assistant_endpoint", d.Name, d.Approach)
		}
	}
	return nil
}

// APIKey resolves the endpoint key from the environment.
func (s *AssistantEndpointSettings) APIKey() string {
	if s.APIKeyEnvName == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnvName)
}

// Catalog holds all profile definitions, keyed by name.
type Catalog struct {
	profiles []Definition
	byName   map[string]*Definition
}

// Load reads and validates the profile catalog file. Any malformed profile
// is a startup error; we never serve requests with a half-valid catalog.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile catalog: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalog from raw JSON.
func Parse(raw []byte) (*Catalog, error) {
	var defs []Definition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("decode profile catalog: %w", err)
	}
	if len(defs) == 0 {
		return nil, errors.New("profile catalog is empty")
	}

	c := &Catalog{profiles: defs, byName: make(map[string]*Definition, len(defs))}
	for i := range c.profiles {
		d := &c.profiles[i]
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate profile name %q", d.Name)
		}
		c.byName[d.Name] = d
	}
	return c, nil
}

// All returns every profile in the catalog.
func (c *Catalog) All() []Definition {
	return c.profiles
}

// SetDefaultCitationBaseURL fills the citation base for retrieval
// profiles that did not set their own.
func (c *Catalog) SetDefaultCitationBaseURL(base string) {
	if base == "" {
		return
	}
	for i := range c.profiles {
		if rs := c.profiles[i].RAGSettings; rs != nil && rs.CitationBaseURL == "" {
			rs.CitationBaseURL = base
		}
	}
}

// Default returns the first profile in the catalog.
func (c *Catalog) Default() *Definition {
	return &c.profiles[0]
}

// ListFor returns the profiles the given user may use.
func (c *Catalog) ListFor(user models.UserInformation) []Definition {
	out := make([]Definition, 0, len(c.profiles))
	for _, d := range c.profiles {
		if d.allows(user) {
			out = append(out, d)
		}
	}
	return out
}

// Resolve returns the named profile, enforcing group-based authorization.
// An empty name resolves to the catalog default.
func (c *Catalog) Resolve(name string, user models.UserInformation) (*Definition, error) {
	var d *Definition
	if name == "" {
		d = c.Default()
	} else {
		var ok bool
		d, ok = c.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
	}
	if !d.allows(user) {
		return nil, fmt.Errorf("%w: %q", ErrNotAuthorized, d.Name)
	}
	return d, nil
}

// allows checks group membership. A profile with no groups is open to all.
func (d *Definition) allows(user models.UserInformation) bool {
	if len(d.SecurityModelGroups) == 0 {
		return true
	}
	for _, need := range d.SecurityModelGroups {
		for _, have := range user.Groups {
			if need == have {
				return true
			}
		}
	}
	return false
}
