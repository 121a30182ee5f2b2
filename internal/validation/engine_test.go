package validation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/rules"
)

const testRules = `{
  "receipt_required_over": 50,
  "max_request_age_days": 30,
  "amount_limits": {
    "expense_reimbursement": {"max_single": 500, "review_over": 250},
    "supplier_payment": {"max_single": 8000, "review_over": 2000}
  },
  "budget_lines": {
    "events": {"allocated": 1000},
    "speaker_events": {"allocated": 200}
  }
}`

const testSchemas = `{
  "expense_reimbursement": {
    "fields": {
      "amount": {"description": "Total claim amount", "required": true},
      "date": {"description": "Expense date", "required": true},
      "description": {"description": "What the expense was for", "required": true},
      "merchant_name": {"description": "Where it was purchased", "required": true},
      "budget_line": {"description": "Budget line to charge", "required": true},
      "event_code": {"description": "Event code", "required": false},
      "receipt": {"description": "Receipt reference", "required": false}
    }
  },
  "internal_transfer": {
    "fields": {
      "amount": {"description": "Transfer amount", "required": true},
      "recipient_club": {"description": "Receiving club", "required": true},
      "description": {"description": "Transfer purpose", "required": true}
    }
  }
}`

const testEventCodes = `event_code,club_name,event_name
E001,Data and AI Club,Operating Costs
E042,Data and AI Club,AI Hackathon
`

// fixedNow keeps the date checks deterministic
var fixedNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

type mockLedger struct {
	consumedForFn func(ctx context.Context, budgetLine string) (decimal.Decimal, error)
}

func (m *mockLedger) ConsumedFor(ctx context.Context, budgetLine string) (decimal.Decimal, error) {
	if m.consumedForFn != nil {
		return m.consumedForFn(ctx, budgetLine)
	}
	return decimal.Zero, nil
}

func newTestEngine(t *testing.T, ledger Ledger) *Engine {
	t.Helper()
	dir := t.TempDir()

	rulesPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(rulesPath, []byte(testRules), 0644))
	schemaPath := filepath.Join(dir, "forms_schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchemas), 0644))
	codesPath := filepath.Join(dir, "event_codes.csv")
	require.NoError(t, os.WriteFile(codesPath, []byte(testEventCodes), 0644))

	store, err := rules.Load(rulesPath, schemaPath, codesPath, zap.NewNop())
	require.NoError(t, err)

	if ledger == nil {
		ledger = &mockLedger{}
	}
	engine := NewEngine(store, ledger, zap.NewNop())
	engine.now = func() time.Time { return fixedNow }
	return engine
}

func completeClaim(amount string) *entity.ReimbursementDetails {
	return &entity.ReimbursementDetails{
		ClaimAmount: decimal.RequireFromString(amount),
		ExpenseDate: "2025-08-28",
		Summary:     "Pizza for welcome drinks",
		Merchant:    "Franco Manca",
		Budget:      "events",
		Event:       "E042",
		ReceiptRef:  "receipt_0042.jpg",
	}
}

func issueRules(issues []entity.Issue) []string {
	names := make([]string, len(issues))
	for i, issue := range issues {
		names[i] = issue.Rule
	}
	return names
}

func TestValidate_CleanRequestPasses(t *testing.T) {
	ledger := &mockLedger{
		consumedForFn: func(ctx context.Context, line string) (decimal.Decimal, error) {
			return decimal.NewFromInt(180), nil
		},
	}
	engine := newTestEngine(t, ledger)

	result, err := engine.Validate(context.Background(), completeClaim("180.00"))
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Warnings)
	assert.InDelta(t, 1.0, result.Score, 0.001)
	assert.Equal(t, 8, result.TotalChecks)
}

func TestValidate_AmountOverCapFails(t *testing.T) {
	engine := newTestEngine(t, nil)

	claim := completeClaim("900.00")
	result, err := engine.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Contains(t, issueRules(result.Violations), "amount_cap")
	require.NotEmpty(t, result.Violations)
	assert.Contains(t, result.Violations[0].Message, "£500.00")
}

func TestValidate_AmountAboveReviewThresholdWarns(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Validate(context.Background(), completeClaim("300.00"))
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Contains(t, issueRules(result.Warnings), "amount_review")
	assert.InDelta(t, (8.0-0.5)/8.0, result.Score, 0.001)
}

func TestValidate_NonPositiveAmount(t *testing.T) {
	engine := newTestEngine(t, nil)

	claim := completeClaim("180.00")
	claim.ClaimAmount = decimal.Zero

	result, err := engine.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Contains(t, issueRules(result.Violations), "amount_positive")
}

func TestValidate_ReceiptRequiredOverThreshold(t *testing.T) {
	engine := newTestEngine(t, nil)

	claim := completeClaim("180.00")
	claim.ReceiptRef = ""

	result, err := engine.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Contains(t, issueRules(result.Violations), "receipt_required")
}

func TestValidate_SmallAmountNeedsNoReceipt(t *testing.T) {
	engine := newTestEngine(t, nil)

	claim := completeClaim("42.00")
	claim.ReceiptRef = ""

	result, err := engine.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.True(t, result.Passed)
}

func TestValidate_TransferNeedsNoReceipt(t *testing.T) {
	engine := newTestEngine(t, nil)

	transfer := &entity.TransferDetails{
		TransferAmount: decimal.NewFromInt(150),
		TransferDate:   "2025-08-28",
		Purpose:        "Joint event cost share",
		RecipientClub:  "Finance Club",
	}

	result, err := engine.Validate(context.Background(), transfer)
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.NotContains(t, issueRules(result.Violations), "receipt_required")
}

func TestValidate_DateChecks(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		wantRule string
		severity entity.Severity
	}{
		{"unparseable", "next tuesday", "date_valid", entity.SeverityError},
		{"future", "2025-09-15", "date_not_future", entity.SeverityError},
		{"too old", "2025-06-01", "date_too_old", entity.SeverityError},
		{"uk format accepted", "28/08/2025", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, nil)
			claim := completeClaim("42.00")
			claim.ExpenseDate = tt.date

			result, err := engine.Validate(context.Background(), claim)
			require.NoError(t, err)

			switch tt.severity {
			case entity.SeverityError:
				assert.Contains(t, issueRules(result.Violations), tt.wantRule)
				assert.False(t, result.Passed)
			case entity.SeverityWarning:
				assert.Contains(t, issueRules(result.Warnings), tt.wantRule)
			default:
				assert.Empty(t, result.Violations)
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	engine := newTestEngine(t, nil)

	claim := completeClaim("42.00")
	claim.Merchant = ""
	claim.Summary = ""

	result, err := engine.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	require.Contains(t, issueRules(result.Violations), "required_fields")
	for _, issue := range result.Violations {
		if issue.Rule == "required_fields" {
			assert.Contains(t, issue.Message, "merchant_name")
			assert.Contains(t, issue.Message, "description")
		}
	}
}

func TestValidate_MissingSchemaIsConfigurationError(t *testing.T) {
	engine := newTestEngine(t, nil)

	// refund_request has no schema in the test fixtures
	refund := &entity.RefundDetails{RefundAmount: decimal.NewFromInt(45)}

	_, err := engine.Validate(context.Background(), refund)
	require.Error(t, err)

	var cfgErr *rules.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_UnknownBudgetLine(t *testing.T) {
	engine := newTestEngine(t, nil)

	claim := completeClaim("42.00")
	claim.Budget = "merchandise"

	result, err := engine.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Contains(t, issueRules(result.Violations), "budget_line")
}

func TestValidate_BudgetExhausted(t *testing.T) {
	ledger := &mockLedger{
		consumedForFn: func(ctx context.Context, line string) (decimal.Decimal, error) {
			return decimal.NewFromInt(950), nil
		},
	}
	engine := newTestEngine(t, ledger)

	result, err := engine.Validate(context.Background(), completeClaim("180.00"))
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Contains(t, issueRules(result.Violations), "budget_remaining")
}

func TestValidate_HighBudgetUsageWarns(t *testing.T) {
	ledger := &mockLedger{
		consumedForFn: func(ctx context.Context, line string) (decimal.Decimal, error) {
			return decimal.NewFromInt(700), nil
		},
	}
	engine := newTestEngine(t, ledger)

	result, err := engine.Validate(context.Background(), completeClaim("180.00"))
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Contains(t, issueRules(result.Warnings), "budget_usage")
}

func TestValidate_LedgerErrorPropagates(t *testing.T) {
	ledgerErr := errors.New("audit log unreadable")
	ledger := &mockLedger{
		consumedForFn: func(ctx context.Context, line string) (decimal.Decimal, error) {
			return decimal.Zero, ledgerErr
		},
	}
	engine := newTestEngine(t, ledger)

	_, err := engine.Validate(context.Background(), completeClaim("180.00"))
	assert.ErrorIs(t, err, ledgerErr)
}

func TestValidate_UnknownEventCodeFails(t *testing.T) {
	engine := newTestEngine(t, nil)

	claim := completeClaim("42.00")
	claim.Event = "E999"

	result, err := engine.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Contains(t, issueRules(result.Violations), "event_code")
}

func TestValidate_AllFindingsReported(t *testing.T) {
	engine := newTestEngine(t, nil)

	// several independent problems at once, all must surface
	claim := &entity.ReimbursementDetails{
		ClaimAmount: decimal.NewFromInt(120),
		ExpenseDate: "someday",
		Budget:      "merchandise",
	}

	result, err := engine.Validate(context.Background(), claim)
	require.NoError(t, err)

	violated := issueRules(result.Violations)
	assert.Contains(t, violated, "required_fields")
	assert.Contains(t, violated, "receipt_required")
	assert.Contains(t, violated, "date_valid")
	assert.Contains(t, violated, "budget_line")
	assert.False(t, result.Passed)
	assert.Less(t, result.Score, 0.6)
}
