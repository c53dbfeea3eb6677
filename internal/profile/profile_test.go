package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

const validCatalog = `[
	{"name": "General", "approach": "Chat"},
	{"name": "Search", "approach": "RAGChat",
	 "rag_settings": {"index_name": "chunks", "k_nearest_neighbors_count": 3, "document_files_count": 2}},
	{"name": "Ops", "approach": "EndpointAssistant", "security_model_groups": ["ops"],
	 "assistant_endpoint": {"api_endpoint": "http://localhost:9000"}}
]`

func TestParseValidCatalog(t *testing.T) {
	c, err := Parse([]byte(validCatalog))
	require.NoError(t, err)
	assert.Len(t, c.All(), 3)
	assert.Equal(t, "General", c.Default().Name)
}

func TestParseRejectsUnknownApproach(t *testing.T) {
	_, err := Parse([]byte(`[{"name": "Weird", "approach": "Telepathy"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown approach")
}

func TestParseRAGSettingsRequiredForRAGChat(t *testing.T) {
	_, err := Parse([]byte(`[{"name": "Search", "approach": "RAGChat"}]`))
	assert.Error(t, err)
}

func TestParseRAGSettingsForbiddenElsewhere(t *testing.T) {
	_, err := Parse([]byte(`[{"name": "General", "approach": "Chat",
		"rag_settings": {"index_name": "chunks", "k_nearest_neighbors_count": 3, "document_files_count": 2}}]`))
	assert.Error(t, err)
}

func TestParseEndpointRequiredForAssistants(t *testing.T) {
	_, err := Parse([]byte(`[{"name": "Ops", "approach": "EndpointAssistant"}]`))
	assert.Error(t, err)
	_, err = Parse([]byte(`[{"name": "Ops", "approach": "EndpointAssistantV2"}]`))
	assert.Error(t, err)
}

func TestParseRejectsDuplicateNames(t *testing.T) {
	_, err := Parse([]byte(`[
		{"name": "General", "approach": "Chat"},
		{"name": "General", "approach": "Chat"}
	]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestParseRejectsEmptyCatalog(t *testing.T) {
	_, err := Parse([]byte(`[]`))
	assert.Error(t, err)
}

func TestResolveEmptyNameReturnsDefault(t *testing.T) {
	c, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	d, err := c.Resolve("", models.UserInformation{})
	require.NoError(t, err)
	assert.Equal(t, "General", d.Name)
}

func TestResolveUnknownName(t *testing.T) {
	c, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	_, err = c.Resolve("Nope", models.UserInformation{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveEnforcesGroups(t *testing.T) {
	c, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	_, err = c.Resolve("Ops", models.UserInformation{Groups: []string{"dev"}})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	d, err := c.Resolve("Ops", models.UserInformation{Groups: []string{"ops"}})
	require.NoError(t, err)
	assert.Equal(t, "Ops", d.Name)
}

func TestListForFiltersByGroup(t *testing.T) {
	c, err := Parse([]byte(validCatalog))
	require.NoError(t, err)

	open := c.ListFor(models.UserInformation{})
	assert.Len(t, open, 2)

	ops := c.ListFor(models.UserInformation{Groups: []string{"ops"}})
	assert.Len(t, ops, 3)
}

func TestSetDefaultCitationBaseURLFillsOnlyEmpty(t *testing.T) {
	c, err := Parse([]byte(`[
		{"name": "A", "approach": "RAGChat",
		 "rag_settings": {"index_name": "chunks", "k_nearest_neighbors_count": 3, "document_files_count": 2}},
		{"name": "B", "approach": "RAGChat",
		 "rag_settings": {"index_name": "chunks", "k_nearest_neighbors_count": 3, "document_files_count": 2,
		                  "citation_base_url": "https://own.example.com"}}
	]`))
	require.NoError(t, err)

	c.SetDefaultCitationBaseURL("https://default.example.com")

	a, _ := c.Resolve("A", models.UserInformation{})
	b, _ := c.Resolve("B", models.UserInformation{})
	assert.Equal(t, "https://default.example.com", a.RAGSettings.CitationBaseURL)
	assert.Equal(t, "https://own.example.com", b.RAGSettings.CitationBaseURL)
}
