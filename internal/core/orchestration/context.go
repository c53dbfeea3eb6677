package orchestration

import (
	"time"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/retrieval"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
)

// PipelineContext carries one request through the pipeline steps. Every
// value a step reads or writes has a named field here; steps never share
// state through anything else.
type PipelineContext struct {
	User    models.UserInformation
	Profile *profile.Definition
	Request *models.ChatRequest

	Question        string
	SearchQuery     string
	SourceText      string
	Sources         []retrieval.KnowledgeSource
	SystemPrompt    string
	UserMessage     string
	PolicyViolation bool

	WorkflowStart time.Time
}

// NewPipelineContext seeds the context from the resolved user, profile and
// request.
func NewPipelineContext(user models.UserInformation, p *profile.Definition, req *models.ChatRequest) *PipelineContext {
	return &PipelineContext{
		User:          user,
		Profile:       p,
		Request:       req,
		Question:      req.Question(),
		WorkflowStart: time.Now(),
	}
}

// WorkflowElapsed returns milliseconds since the pipeline started.
func (pc *PipelineContext) WorkflowElapsed() int64 {
	return time.Since(pc.WorkflowStart).Milliseconds()
}
