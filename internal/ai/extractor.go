package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/rules"
)

// lowConfidence is the classification confidence below which the caller
// should ask the member to pick the form themselves
const lowConfidence = 0.6

// Extractor classifies free-form messages and extracts form fields from
// them. It holds no conversation state; every call is independent.
type Extractor struct {
	client ChatCompleter
	rules  *rules.Store
	model  string
	temp   float32
	logger *zap.Logger
	now    func() time.Time
}

// NewExtractor creates an extractor using the given chat client
func NewExtractor(client ChatCompleter, ruleStore *rules.Store, model string, temperature float32, logger *zap.Logger) *Extractor {
	return &Extractor{
		client: client,
		rules:  ruleStore,
		model:  model,
		temp:   temperature,
		logger: logger,
		now:    time.Now,
	}
}

// Classification is the form type the model picked for a message
type Classification struct {
	FormType   entity.FormType `json:"form_type"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// NeedsConfirmation reports whether the pick is too uncertain to act on
// without asking the member
func (c Classification) NeedsConfirmation() bool {
	return c.Confidence < lowConfidence
}

// Extraction is the combined result of classifying a message and pulling
// the form's fields out of it
type Extraction struct {
	Classification Classification
	Fields         map[string]any
	Details        entity.FormDetails
}

// Classify decides which finance form a message calls for
func (e *Extractor) Classify(ctx context.Context, message string) (Classification, error) {
	content, err := e.complete(ctx, classifySystemPrompt, buildClassifyPrompt(message))
	if err != nil {
		return Classification{}, fmt.Errorf("classify message: %w", err)
	}

	var classification Classification
	if err := decodeJSONResponse(content, &classification); err != nil {
		e.logger.Error("Could not parse classification response",
			zap.String("content", content),
			zap.Error(err))
		return Classification{}, fmt.Errorf("parse classification: %w", err)
	}

	if !classification.FormType.IsValid() {
		return Classification{}, fmt.Errorf("%w: model picked %q",
			entity.ErrUnknownFormType, classification.FormType)
	}

	e.logger.Info("Classified message",
		zap.String("form_type", string(classification.FormType)),
		zap.Float64("confidence", classification.Confidence))

	return classification, nil
}

// ExtractFields pulls the fields of one form type out of a message.
// Fields the message does not mention come back absent, never invented.
func (e *Extractor) ExtractFields(ctx context.Context, formType entity.FormType, message string) (map[string]any, error) {
	schema, ok := e.rules.Schema(formType)
	if !ok {
		return nil, fmt.Errorf("%w: no schema for %q", entity.ErrUnknownFormType, formType)
	}

	prompt := buildExtractPrompt(formType, schema, message, e.now())
	content, err := e.complete(ctx, extractSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("extract %s fields: %w", formType, err)
	}

	var fields map[string]any
	if err := decodeJSONResponse(content, &fields); err != nil {
		e.logger.Error("Could not parse extraction response",
			zap.String("form_type", string(formType)),
			zap.String("content", content),
			zap.Error(err))
		return nil, fmt.Errorf("parse extracted fields: %w", err)
	}

	// Drop nulls and empty strings so absent fields stay absent
	for name, value := range fields {
		if value == nil {
			delete(fields, name)
			continue
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			delete(fields, name)
		}
	}

	e.logger.Info("Extracted fields",
		zap.String("form_type", string(formType)),
		zap.Int("fields", len(fields)))

	return fields, nil
}

// Extract runs classification and field extraction over one message and
// builds the typed details for the picked form.
func (e *Extractor) Extract(ctx context.Context, message string) (*Extraction, error) {
	classification, err := e.Classify(ctx, message)
	if err != nil {
		return nil, err
	}

	fields, err := e.ExtractFields(ctx, classification.FormType, message)
	if err != nil {
		return nil, err
	}

	details, err := entity.DetailsFromFields(classification.FormType, fields)
	if err != nil {
		return nil, err
	}

	return &Extraction{
		Classification: classification,
		Fields:         fields,
		Details:        details,
	}, nil
}

func (e *Extractor) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// decodeJSONResponse parses a model response that should be a bare JSON
// object but may arrive wrapped in markdown fences or prose.
func decodeJSONResponse(content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return fmt.Errorf("no JSON object in response")
	}
	end := matchingBrace(content, start)
	if end < 0 {
		return fmt.Errorf("unbalanced JSON object in response")
	}
	return json.Unmarshal([]byte(content[start:end]), out)
}

// matchingBrace returns the index just past the brace matching the one at
// start, tracking strings and escapes.
func matchingBrace(content string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
	}
	return -1
}
