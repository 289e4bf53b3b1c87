package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Reviewer = (*OpenAIReviewer)(nil)

// OpenAIReviewer implements the review capability using OpenAI's chat
// completion API. The model is asked for a structured verdict: a suggested
// translation, a list of typed issues and category scores.
type OpenAIReviewer struct {
	client *openai.Client
	model  string
}

// NewOpenAIReviewer creates a new OpenAI-backed reviewer.
func NewOpenAIReviewer(apiKey, model, baseURL string) *OpenAIReviewer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &OpenAIReviewer{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// reviewVerdict is the JSON contract the model is asked to follow.
type reviewVerdict struct {
	SuggestedTranslation string         `json:"suggested_translation"`
	Issues               []reviewIssue  `json:"issues"`
	Scores               map[string]int `json:"scores"`
}

type reviewIssue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Start       *int   `json:"start,omitempty"`
	End         *int   `json:"end,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Review evaluates one translated segment.
func (r *OpenAIReviewer) Review(ctx context.Context, req driven.ReviewRequest) (*driven.ReviewResult, error) {
	model := req.Model
	if model == "" {
		model = r.model
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildReviewInstruction(req)},
			{Role: openai.ChatMessageRoleUser, Content: buildReviewMessage(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &domain.CapabilityError{
			Provider:  string(domain.AIProviderOpenAI),
			Message:   "review call failed",
			Retryable: isRetryableError(err),
			Cause:     err,
		}
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.CapabilityError{
			Provider:  string(domain.AIProviderOpenAI),
			Message:   "empty completion",
			Retryable: true,
		}
	}

	var verdict reviewVerdict
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &verdict); err != nil {
		return nil, &domain.CapabilityError{
			Provider:  string(domain.AIProviderOpenAI),
			Message:   "unparseable review response",
			Retryable: false,
			Cause:     err,
		}
	}

	return &driven.ReviewResult{
		SuggestedTranslation: verdict.SuggestedTranslation,
		Issues:               convertIssues(verdict.Issues),
		Scores:               verdict.Scores,
		Model:                resp.Model,
		TokenCount: domain.TokenCount{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

func buildReviewInstruction(req driven.ReviewRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a translation quality reviewer for %s to %s translations.\n",
		req.SourceLanguage, req.TargetLanguage)
	b.WriteString("Evaluate the translation for accuracy, fluency, terminology, grammar, style, consistency and formatting.\n")
	if req.CustomPrompt != "" {
		b.WriteString(req.CustomPrompt)
		b.WriteString("\n")
	}
	b.WriteString(`Respond with a JSON object:
{
  "suggested_translation": "<your improved translation, or the original if it needs no change>",
  "issues": [{"type": "accuracy|fluency|terminology|grammar|style|consistency|formatting|other", "severity": "low|medium|high", "description": "...", "start": 0, "end": 0, "suggestion": "..."}],
  "scores": {"accuracy": 0-100, "fluency": 0-100}
}
Report no issues as an empty array. No markdown.`)
	return b.String()
}

func buildReviewMessage(req driven.ReviewRequest) string {
	payload := map[string]any{
		"source":      req.OriginalContent,
		"translation": req.TranslatedContent,
	}
	if len(req.ContextSegments) > 0 {
		payload["context"] = req.ContextSegments
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// convertIssues maps the wire verdict onto domain issues. Severity and type
// fall back to sane defaults when the model strays from the vocabulary;
// status is always forced to open.
func convertIssues(in []reviewIssue) []domain.Issue {
	issues := make([]domain.Issue, 0, len(in))
	for _, ri := range in {
		issue := domain.Issue{
			Type:        normalizeIssueType(ri.Type),
			Severity:    normalizeSeverity(ri.Severity),
			Description: ri.Description,
			Suggestion:  ri.Suggestion,
			Status:      domain.IssueStatusOpen,
		}
		if ri.Start != nil && ri.End != nil && *ri.End >= *ri.Start {
			issue.Position = &domain.Position{Start: *ri.Start, End: *ri.End}
		}
		issues = append(issues, issue)
	}
	return issues
}

func normalizeIssueType(t string) domain.IssueType {
	switch domain.IssueType(strings.ToLower(t)) {
	case domain.IssueTypeAccuracy, domain.IssueTypeFluency, domain.IssueTypeTerminology,
		domain.IssueTypeGrammar, domain.IssueTypeStyle, domain.IssueTypeConsistency,
		domain.IssueTypeFormatting:
		return domain.IssueType(strings.ToLower(t))
	default:
		return domain.IssueTypeOther
	}
}

func normalizeSeverity(s string) domain.IssueSeverity {
	switch domain.IssueSeverity(strings.ToLower(s)) {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh:
		return domain.IssueSeverity(strings.ToLower(s))
	default:
		return domain.SeverityMedium
	}
}
