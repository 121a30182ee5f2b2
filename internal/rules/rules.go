// Package rules loads the budget and policy configuration the validation
// engine evaluates requests against. The rule set is read once at startup
// and treated as immutable; Reload swaps in a complete new snapshot so
// readers never observe a half-updated configuration.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
)

// ConfigurationError reports a missing or malformed rule or schema input
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("configuration error: %s", e.Source)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// AmountLimit caps a single transaction for one form type. Amounts above
// ReviewOver but at or below MaxSingle raise a warning rather than a
// violation.
type AmountLimit struct {
	MaxSingle  decimal.Decimal `json:"max_single"`
	ReviewOver decimal.Decimal `json:"review_over"`
}

// BudgetLine is a named allocation bucket with a fixed total
type BudgetLine struct {
	Allocated decimal.Decimal `json:"allocated"`
}

// FieldDef describes one form field in the schema
type FieldDef struct {
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// FormSchema is the field set definition for one form type
type FormSchema struct {
	Fields map[string]FieldDef `json:"fields"`
}

// RequiredFields returns the names of all required fields
func (s FormSchema) RequiredFields() []string {
	var required []string
	for name, def := range s.Fields {
		if def.Required {
			required = append(required, name)
		}
	}
	return required
}

type ruleFile struct {
	ReceiptRequiredOver decimal.Decimal                 `json:"receipt_required_over"`
	MaxRequestAgeDays   int                             `json:"max_request_age_days"`
	AmountLimits        map[entity.FormType]AmountLimit `json:"amount_limits"`
	BudgetLines         map[string]BudgetLine           `json:"budget_lines"`
}

type snapshot struct {
	rules      ruleFile
	schemas    map[entity.FormType]FormSchema
	eventCodes *EventCodeDirectory
}

// Store holds the loaded rule configuration behind an atomic pointer
type Store struct {
	rulesPath      string
	schemaPath     string
	eventCodesPath string
	logger         *zap.Logger

	current atomic.Pointer[snapshot]
}

// Load reads the rule definitions, form schemas and event code directory.
// The event code path may be empty; suggestion and event code checks are
// then disabled.
func Load(rulesPath, schemaPath, eventCodesPath string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		rulesPath:      rulesPath,
		schemaPath:     schemaPath,
		eventCodesPath: eventCodesPath,
		logger:         logger,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads all configuration inputs and atomically replaces the
// active snapshot. On error the previous snapshot stays in effect.
func (s *Store) Reload() error {
	var rules ruleFile
	if err := readJSON(s.rulesPath, &rules); err != nil {
		return &ConfigurationError{Source: s.rulesPath, Err: err}
	}

	var schemas map[entity.FormType]FormSchema
	if err := readJSON(s.schemaPath, &schemas); err != nil {
		return &ConfigurationError{Source: s.schemaPath, Err: err}
	}
	if len(schemas) == 0 {
		return &ConfigurationError{Source: s.schemaPath, Err: fmt.Errorf("no form schemas defined")}
	}

	codes := emptyEventCodeDirectory()
	if s.eventCodesPath != "" {
		loaded, err := loadEventCodes(s.eventCodesPath)
		if err != nil {
			// The directory is an aid, not a gate; run without it
			s.logger.Warn("Could not load event code directory",
				zap.String("path", s.eventCodesPath),
				zap.Error(err))
		} else {
			codes = loaded
		}
	}

	s.current.Store(&snapshot{rules: rules, schemas: schemas, eventCodes: codes})

	s.logger.Info("Rule configuration loaded",
		zap.Int("form_schemas", len(schemas)),
		zap.Int("budget_lines", len(rules.BudgetLines)),
		zap.Int("event_codes", codes.Len()))

	return nil
}

// Limit returns the amount limit configured for a form type
func (s *Store) Limit(formType entity.FormType) (AmountLimit, bool) {
	limit, ok := s.current.Load().rules.AmountLimits[formType]
	return limit, ok
}

// BudgetLine returns a budget line by name
func (s *Store) BudgetLine(name string) (BudgetLine, bool) {
	line, ok := s.current.Load().rules.BudgetLines[name]
	return line, ok
}

// BudgetLineNames returns all configured budget line names
func (s *Store) BudgetLineNames() []string {
	lines := s.current.Load().rules.BudgetLines
	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	return names
}

// Schema returns the form schema for a form type
func (s *Store) Schema(formType entity.FormType) (FormSchema, bool) {
	schema, ok := s.current.Load().schemas[formType]
	return schema, ok
}

// ReceiptThreshold returns the amount above which a receipt is required
func (s *Store) ReceiptThreshold() decimal.Decimal {
	return s.current.Load().rules.ReceiptRequiredOver
}

// MaxRequestAgeDays returns how old a request date may be
func (s *Store) MaxRequestAgeDays() int {
	return s.current.Load().rules.MaxRequestAgeDays
}

// EventCodes returns the loaded event code directory
func (s *Store) EventCodes() *EventCodeDirectory {
	return s.current.Load().eventCodes
}

// Suggest proposes an event code from the current directory snapshot
func (s *Store) Suggest(clubName, eventName string) (Suggestion, bool) {
	return s.current.Load().eventCodes.Suggest(clubName, eventName)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
