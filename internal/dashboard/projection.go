// Package dashboard builds the read-side views the treasurer's screen
// shows: queue summary counts, budget line positions, and the exportable
// ledger. Everything here is derived from the stored records on demand.
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/rules"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/store"
)

// RequestSource is the slice of the request store the projections read
type RequestSource interface {
	List(ctx context.Context) ([]*entity.Request, error)
	ConsumedFor(ctx context.Context, budgetLine string) (decimal.Decimal, error)
	AuditRecords(ctx context.Context) ([]store.AuditRecord, error)
}

// Projection computes the dashboard views
type Projection struct {
	source RequestSource
	rules  *rules.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewProjection creates the dashboard projection
func NewProjection(source RequestSource, ruleStore *rules.Store, logger *zap.Logger) *Projection {
	return &Projection{
		source: source,
		rules:  ruleStore,
		logger: logger,
		now:    time.Now,
	}
}

// Summary is the headline numbers at the top of the dashboard
type Summary struct {
	Pending        int            `json:"pending"`
	SubmittedToday int            `json:"submitted_today"`
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
}

// Summarize counts the queue as it stands
func (p *Projection) Summarize(ctx context.Context) (*Summary, error) {
	requests, err := p.source.List(ctx)
	if err != nil {
		return nil, err
	}

	today := p.now().Truncate(24 * time.Hour)
	summary := &Summary{ByStatus: map[string]int{}}
	for _, request := range requests {
		summary.Total++
		summary.ByStatus[string(request.Metadata.Status)]++
		if request.Metadata.Status == entity.StatusPending {
			summary.Pending++
		}
		if !request.Metadata.CreatedAt.Before(today) {
			summary.SubmittedToday++
		}
	}
	return summary, nil
}

// BudgetPosition is one budget line's standing: what was allocated, what
// approved requests have consumed, and what is left.
type BudgetPosition struct {
	Name      string          `json:"name"`
	Allocated decimal.Decimal `json:"allocated"`
	Consumed  decimal.Decimal `json:"consumed"`
	Remaining decimal.Decimal `json:"remaining"`
	UsagePct  float64         `json:"usage_pct"`
}

// Budgets reports every configured budget line, alphabetically
func (p *Projection) Budgets(ctx context.Context) ([]BudgetPosition, error) {
	names := p.rules.BudgetLineNames()
	sort.Strings(names)

	positions := make([]BudgetPosition, 0, len(names))
	for _, name := range names {
		line, ok := p.rules.BudgetLine(name)
		if !ok {
			continue
		}
		consumed, err := p.source.ConsumedFor(ctx, name)
		if err != nil {
			return nil, err
		}

		position := BudgetPosition{
			Name:      name,
			Allocated: line.Allocated,
			Consumed:  consumed,
			Remaining: line.Allocated.Sub(consumed),
		}
		if line.Allocated.IsPositive() {
			usage, _ := consumed.Div(line.Allocated).Mul(decimal.NewFromInt(100)).Round(1).Float64()
			position.UsagePct = usage
		}
		positions = append(positions, position)
	}
	return positions, nil
}
