package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Translator = (*OpenAITranslator)(nil)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
)

// OpenAITranslator implements the translation capability using OpenAI's
// chat completion API with a JSON response contract.
type OpenAITranslator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAITranslator creates a new OpenAI-backed translator.
func NewOpenAITranslator(apiKey, model, baseURL string, temperature float32) *OpenAITranslator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}
	if temperature == 0 {
		temperature = defaultTemperature
	}
	return &OpenAITranslator{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// Translate translates one segment.
func (t *OpenAITranslator) Translate(ctx context.Context, req driven.TranslationRequest) (*driven.TranslationResult, error) {
	model := req.Model
	if model == "" {
		model = t.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = t.temperature
	}

	system := req.SystemInstruction
	if system == "" {
		system = buildTranslationInstruction(req)
	}
	user := req.UserPrompt
	if user == "" {
		user = req.SourceText
	}

	start := time.Now()
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &domain.CapabilityError{
			Provider:  string(domain.AIProviderOpenAI),
			Message:   "translation call failed",
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

	translated, err := parseTranslation(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &driven.TranslationResult{
		TranslatedText: translated,
		Model:          resp.Model,
		TokenCount: domain.TokenCount{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

// buildTranslationInstruction assembles the default system instruction from
// the request's languages, domain and terminology.
func buildTranslationInstruction(req driven.TranslationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translator. Translate the user's text from %s to %s.\n",
		req.SourceLanguage, req.TargetLanguage)
	b.WriteString("Preserve inline markup, placeholders and formatting exactly as they appear in the source.\n")
	if req.Domain != "" {
		fmt.Fprintf(&b, "The text belongs to the %s domain; use the domain's established terminology.\n", req.Domain)
	}
	if len(req.Terminology) > 0 {
		b.WriteString("Use these term translations:\n")
		terms := make([]string, 0, len(req.Terminology))
		for source := range req.Terminology {
			terms = append(terms, source)
		}
		sort.Strings(terms)
		for _, source := range terms {
			fmt.Fprintf(&b, "- %q -> %q\n", source, req.Terminology[source])
		}
	}
	b.WriteString(`Respond with a JSON object: {"translation": "<translated text>"}. No other keys, no markdown.`)
	return b.String()
}

func parseTranslation(content string) (string, error) {
	var payload struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err == nil && payload.Translation != "" {
		return payload.Translation, nil
	}

	// Some models answer with a bare string despite the contract.
	var bare string
	if err := json.Unmarshal([]byte(content), &bare); err == nil && bare != "" {
		return bare, nil
	}

	return "", &domain.CapabilityError{
		Provider:  string(domain.AIProviderOpenAI),
		Message:   "unparseable translation response",
		Retryable: false,
	}
}

// isRetryableError classifies transport and rate-limit failures as worth
// retrying at the job level.
func isRetryableError(err error) bool {
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"temporary",
		"503",
		"502",
		"429",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
