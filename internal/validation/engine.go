// Package validation evaluates a finance request's extracted fields
// against the club's rule configuration and produces the verdict attached
// to the stored record.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/rules"
)

// totalChecks is the fixed check count the confidence score is computed
// against. Violations subtract a full point, warnings half a point.
const totalChecks = 8

// dateLayouts are the date formats accepted on extracted fields. The
// extraction prompt asks for ISO dates; the others tolerate members who
// typed the date themselves.
var dateLayouts = []string{"2006-01-02", "2006/01/02", "02/01/2006", "02 Jan 2006"}

// Ledger exposes how much of a budget line approved requests have already
// consumed. The request store implements it.
type Ledger interface {
	ConsumedFor(ctx context.Context, budgetLine string) (decimal.Decimal, error)
}

// Engine runs every configured check over one request's fields. Checks
// never short-circuit: the result lists all findings so the treasurer and
// the member see the full picture at once.
type Engine struct {
	rules  *rules.Store
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a validation engine
func NewEngine(ruleStore *rules.Store, ledger Ledger, logger *zap.Logger) *Engine {
	return &Engine{
		rules:  ruleStore,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// Validate evaluates a request's details against the active rule set. The
// returned result is a pure function of the fields, the rules and the
// ledger state at call time; it carries no hidden state and is recomputed
// from scratch whenever the fields change. A non-nil error means a check
// could not run at all, not that the request failed.
func (e *Engine) Validate(ctx context.Context, details entity.FormDetails) (*entity.ValidationResult, error) {
	schema, ok := e.rules.Schema(details.FormType())
	if !ok {
		return nil, &rules.ConfigurationError{
			Source: string(details.FormType()),
			Err:    fmt.Errorf("no form schema defined"),
		}
	}

	result := &entity.ValidationResult{
		Violations:  []entity.Issue{},
		Warnings:    []entity.Issue{},
		TotalChecks: totalChecks,
	}

	e.checkRequiredFields(schema, details, result)
	e.checkAmount(details, result)
	e.checkReceipt(schema, details, result)
	e.checkDate(details, result)
	if err := e.checkBudget(ctx, details, result); err != nil {
		return nil, err
	}
	e.checkEventCode(details, result)

	result.Passed = len(result.Violations) == 0
	result.Score = confidenceScore(len(result.Violations), len(result.Warnings))

	e.logger.Debug("Validation completed",
		zap.String("form_type", string(details.FormType())),
		zap.Bool("passed", result.Passed),
		zap.Int("violations", len(result.Violations)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Float64("score", result.Score))

	return result, nil
}

func (e *Engine) checkRequiredFields(schema rules.FormSchema, details entity.FormDetails, result *entity.ValidationResult) {
	fields := details.Fields()
	var missing []string
	for _, name := range schema.RequiredFields() {
		value, present := fields[name]
		if !present || isEmptyValue(value) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		addViolation(result, "required_fields",
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}
}

func (e *Engine) checkAmount(details entity.FormDetails, result *entity.ValidationResult) {
	amount := details.Amount()
	if amount.LessThanOrEqual(decimal.Zero) {
		addViolation(result, "amount_positive", "amount must be greater than zero")
		return
	}

	limit, ok := e.rules.Limit(details.FormType())
	if !ok {
		return
	}
	if amount.GreaterThan(limit.MaxSingle) {
		addViolation(result, "amount_cap",
			fmt.Sprintf("amount %s exceeds the %s single-transaction cap of %s",
				formatGBP(amount), details.FormType().DisplayName(), formatGBP(limit.MaxSingle)))
		return
	}
	if amount.GreaterThan(limit.ReviewOver) {
		addWarning(result, "amount_review",
			fmt.Sprintf("amount %s is above the %s review threshold, treasurer attention advised",
				formatGBP(amount), formatGBP(limit.ReviewOver)))
	}
}

func (e *Engine) checkReceipt(schema rules.FormSchema, details entity.FormDetails, result *entity.ValidationResult) {
	// Only forms that define an attachment field require one
	hasAttachmentField := false
	for name := range schema.Fields {
		if name == "receipt" || name == "invoice_file" {
			hasAttachmentField = true
			break
		}
	}
	if !hasAttachmentField {
		return
	}

	threshold := e.rules.ReceiptThreshold()
	if details.Amount().GreaterThan(threshold) && details.FileRef() == "" {
		addViolation(result, "receipt_required",
			fmt.Sprintf("a receipt or invoice is required for amounts over %s", formatGBP(threshold)))
	}
}

func (e *Engine) checkDate(details entity.FormDetails, result *entity.ValidationResult) {
	raw := strings.TrimSpace(details.Date())
	if raw == "" {
		// completeness check reports missing dates
		return
	}

	date, err := parseDate(raw)
	if err != nil {
		addViolation(result, "date_valid",
			fmt.Sprintf("could not parse date %q, expected a format like 2025-08-28", raw))
		return
	}

	today := e.now().Truncate(24 * time.Hour)
	if date.After(today) {
		addViolation(result, "date_not_future",
			fmt.Sprintf("date %s is in the future", date.Format("2006-01-02")))
		return
	}

	maxAge := e.rules.MaxRequestAgeDays()
	if maxAge > 0 {
		cutoff := today.AddDate(0, 0, -maxAge)
		if date.Before(cutoff) {
			addViolation(result, "date_too_old",
				fmt.Sprintf("date %s is more than %d days old", date.Format("2006-01-02"), maxAge))
		}
	}
}

func (e *Engine) checkBudget(ctx context.Context, details entity.FormDetails, result *entity.ValidationResult) error {
	name := strings.TrimSpace(details.BudgetLine())
	if name == "" {
		return nil
	}

	line, ok := e.rules.BudgetLine(name)
	if !ok {
		addViolation(result, "budget_line",
			fmt.Sprintf("unknown budget line %q, expected one of: %s",
				name, strings.Join(e.rules.BudgetLineNames(), ", ")))
		return nil
	}

	consumed, err := e.ledger.ConsumedFor(ctx, name)
	if err != nil {
		return fmt.Errorf("reading consumed amount for %q: %w", name, err)
	}

	remaining := line.Allocated.Sub(consumed)
	amount := details.Amount()
	if amount.GreaterThan(remaining) {
		addViolation(result, "budget_remaining",
			fmt.Sprintf("amount %s exceeds the %s left in budget line %q",
				formatGBP(amount), formatGBP(remaining), name))
		return nil
	}

	if line.Allocated.IsPositive() {
		usageAfter := consumed.Add(amount).Div(line.Allocated)
		if usageAfter.GreaterThan(decimal.NewFromFloat(0.75)) {
			addWarning(result, "budget_usage",
				fmt.Sprintf("approving this would take budget line %q past 75%% of its allocation", name))
		}
	}
	return nil
}

func (e *Engine) checkEventCode(details entity.FormDetails, result *entity.ValidationResult) {
	code := strings.TrimSpace(details.EventCode())
	if code == "" {
		return
	}

	directory := e.rules.EventCodes()
	if directory.Len() == 0 {
		return
	}
	if _, ok := directory.Lookup(code); !ok {
		addViolation(result, "event_code",
			fmt.Sprintf("event code %q is not in the event code directory", code))
	}
}

func addViolation(result *entity.ValidationResult, rule, message string) {
	result.Violations = append(result.Violations, entity.Issue{
		Rule:     rule,
		Severity: entity.SeverityError,
		Message:  message,
	})
}

func addWarning(result *entity.ValidationResult, rule, message string) {
	result.Warnings = append(result.Warnings, entity.Issue{
		Rule:     rule,
		Severity: entity.SeverityWarning,
		Message:  message,
	})
}

// confidenceScore maps the issue counts onto [0, 1]. Each violation costs
// a full check, each warning half of one.
func confidenceScore(violations, warnings int) float64 {
	score := (float64(totalChecks) - float64(violations) - 0.5*float64(warnings)) / float64(totalChecks)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// isEmptyValue reports whether a flattened field value counts as absent.
// Zero amounts are left to the amount check so they raise one finding,
// not two.
func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, raw); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}

func formatGBP(amount decimal.Decimal) string {
	return "£" + amount.StringFixed(2)
}
