// Package service holds the use cases the HTTP layer calls: taking a
// member's request in, and working the treasurer's review queue.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/ai"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/rules"
)

// FieldExtractor turns a free-form message into typed form details
type FieldExtractor interface {
	Extract(ctx context.Context, message string) (*ai.Extraction, error)
}

// Validator evaluates form details against the club's rules
type Validator interface {
	Validate(ctx context.Context, details entity.FormDetails) (*entity.ValidationResult, error)
}

// RequestWriter persists new requests
type RequestWriter interface {
	Create(ctx context.Context, member entity.Member, details entity.FormDetails, validation *entity.ValidationResult) (*entity.Request, error)
}

// EventCodeSuggester proposes an event code for requests that arrive
// without one
type EventCodeSuggester interface {
	Suggest(clubName, eventName string) (rules.Suggestion, bool)
}

// IntakeService runs the submission pipeline: extract, validate, persist.
// A failed validation still persists the request; the verdict travels with
// it for the treasurer to see.
type IntakeService struct {
	extractor FieldExtractor
	validator Validator
	store     RequestWriter
	suggester EventCodeSuggester
	logger    *zap.Logger
}

// NewIntakeService creates the intake service
func NewIntakeService(extractor FieldExtractor, validator Validator, store RequestWriter, suggester EventCodeSuggester, logger *zap.Logger) *IntakeService {
	return &IntakeService{
		extractor: extractor,
		validator: validator,
		store:     store,
		suggester: suggester,
		logger:    logger,
	}
}

// IntakeResult is the outcome of one submission attempt. When the form
// classification is too uncertain, Request is nil and the extraction is
// returned for the member to confirm and resubmit as a structured request.
type IntakeResult struct {
	Request           *entity.Request
	FormType          entity.FormType
	Confidence        float64
	Fields            map[string]any
	NeedsConfirmation bool

	// SuggestedEventCode is set when the message named no event code but
	// the member's club has codes in the directory
	SuggestedEventCode *rules.Suggestion
}

// Submit takes a member's free-form message through the full pipeline
func (s *IntakeService) Submit(ctx context.Context, member entity.Member, message string) (*IntakeResult, error) {
	if message == "" {
		return nil, fmt.Errorf("empty message")
	}

	extraction, err := s.extractor.Extract(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("understanding message: %w", err)
	}

	if extraction.Classification.NeedsConfirmation() {
		s.logger.Info("Classification too uncertain, asking member to confirm",
			zap.String("form_type", string(extraction.Classification.FormType)),
			zap.Float64("confidence", extraction.Classification.Confidence))
		return &IntakeResult{
			FormType:           extraction.Classification.FormType,
			Confidence:         extraction.Classification.Confidence,
			Fields:             extraction.Fields,
			NeedsConfirmation:  true,
			SuggestedEventCode: s.suggestEventCode(member, extraction.Details),
		}, nil
	}

	request, err := s.validateAndStore(ctx, member, extraction.Details)
	if err != nil {
		return nil, err
	}

	return &IntakeResult{
		Request:            request,
		FormType:           extraction.Classification.FormType,
		Confidence:         extraction.Classification.Confidence,
		Fields:             extraction.Fields,
		SuggestedEventCode: s.suggestEventCode(member, extraction.Details),
	}, nil
}

// suggestEventCode proposes a code when the member gave none
func (s *IntakeService) suggestEventCode(member entity.Member, details entity.FormDetails) *rules.Suggestion {
	if details == nil || details.EventCode() != "" || member.Club == "" {
		return nil
	}
	suggestion, ok := s.suggester.Suggest(member.Club, details.Description())
	if !ok {
		return nil
	}
	return &suggestion
}

// SubmitStructured takes an already-typed field set, e.g. a member
// confirming or correcting what extraction proposed.
func (s *IntakeService) SubmitStructured(ctx context.Context, member entity.Member, formType entity.FormType, fields map[string]any) (*entity.Request, error) {
	details, err := entity.DetailsFromFields(formType, fields)
	if err != nil {
		return nil, err
	}
	return s.validateAndStore(ctx, member, details)
}

func (s *IntakeService) validateAndStore(ctx context.Context, member entity.Member, details entity.FormDetails) (*entity.Request, error) {
	validation, err := s.validator.Validate(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("validating request: %w", err)
	}

	request, err := s.store.Create(ctx, member, details, validation)
	if err != nil {
		return nil, fmt.Errorf("storing request: %w", err)
	}

	s.logger.Info("Request submitted",
		zap.String("request_id", request.Metadata.RequestID),
		zap.String("form_type", string(details.FormType())),
		zap.Bool("validation_passed", validation.Passed))

	return request, nil
}
