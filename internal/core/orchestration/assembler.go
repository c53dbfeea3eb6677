package orchestration

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rutzsco/custom-chat-copilot-go/internal/core"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/retrieval"
)

var (
	followupPattern = regexp.MustCompile(`<<.*?>>`)
	citationPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)
)

// AssembleInput is everything the response assembler needs for one turn.
// Usage may be nil (external-endpoint strategies have no token counts);
// Diagnostics are then omitted rather than fabricated.
type AssembleInput struct {
	Context  *PipelineContext
	Answer   string
	Thoughts string
	Sources  []retrieval.KnowledgeSource
	Usage    *core.TokenUsage

	ModelDeploymentName        string
	AnswerDurationMilliseconds int64
}

// Assemble builds the final immutable response. MessageID and ChatID always
// come from the request; they are never regenerated here. Deterministic
// given its inputs.
func Assemble(in AssembleInput) *models.ApproachResponse {
	req := in.Context.Request

	// Follow-up markers must go before citation parsing so a question that
	// happens to contain brackets is never numbered. Turns without retrieved
	// sources have nothing to cite; their bracketed text passes through.
	answer := followupPattern.ReplaceAllString(in.Answer, "")
	answer = strings.TrimSpace(answer)
	if len(in.Sources) > 0 {
		answer = numberCitations(answer)
	}
	answer = strings.ReplaceAll(answer, "\n", "<br>")

	resp := &models.ApproachResponse{
		Answer:          answer,
		Thoughts:        in.Thoughts,
		CitationBaseURL: citationBaseURL(in.Context),
		MessageID:       req.ChatTurnID,
		ChatID:          req.ChatID,
	}
	for _, src := range in.Sources {
		resp.DataPoints = append(resp.DataPoints, models.DataPoint{
			Title:   src.Filepath(),
			Content: src.Content(),
		})
	}
	if in.Usage != nil {
		resp.Diagnostics = &models.Diagnostics{
			CompletionTokens:             in.Usage.CompletionTokens,
			PromptTokens:                 in.Usage.PromptTokens,
			TotalTokens:                  in.Usage.TotalTokens,
			AnswerDurationMilliseconds:   in.AnswerDurationMilliseconds,
			ModelDeploymentName:          in.ModelDeploymentName,
			WorkflowDurationMilliseconds: in.Context.WorkflowElapsed(),
		}
	}
	return resp
}

// numberCitations replaces every [filename] marker with a numbered
// reference. Numbers are assigned in first-occurrence order and are stable:
// a repeated file resolves to its original number.
func numberCitations(answer string) string {
	numbers := make(map[string]int)
	return citationPattern.ReplaceAllStringFunc(answer, func(marker string) string {
		name := marker[1 : len(marker)-1]
		n, seen := numbers[name]
		if !seen {
			n = len(numbers) + 1
			numbers[name] = n
		}
		return fmt.Sprintf("<sup>%d</sup>", n)
	})
}

func citationBaseURL(pc *PipelineContext) string {
	if pc.Profile != nil && pc.Profile.RAGSettings != nil {
		return pc.Profile.RAGSettings.CitationBaseURL
	}
	return ""
}
