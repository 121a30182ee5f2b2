// Package store persists finance requests as one JSON document each and
// mirrors every status-changing event into an append-only CSV audit log.
// The JSON records are the source of truth; the CSV is derived and can be
// rebuilt from them.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
	"github.com/gtpooniwala/LBSClubTreasurer/pkg/utils"
)

// automationPending marks audit rows whose downstream automation (form
// filling in the finance portal) has not run. The automation module is
// out of scope; every row carries this value.
const automationPending = "pending"

// RequestStore reads and writes request documents under a single
// directory. A store-level mutex serializes writers so two concurrent
// reviews cannot interleave the JSON write and the CSV append.
type RequestStore struct {
	dir    string
	audit  *AuditLog
	logger *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New creates a RequestStore rooted at dir, creating it if needed
func New(dir string, audit *AuditLog, logger *zap.Logger) (*RequestStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &PersistenceError{Op: "create requests directory", Err: err}
	}
	return &RequestStore{
		dir:    dir,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Create persists a new request with status pending. The validation
// result is attached before the first write, so a stored record is never
// observed without its verdict.
func (s *RequestStore) Create(ctx context.Context, member entity.Member, details entity.FormDetails, validation *entity.ValidationResult) (*entity.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	request := &entity.Request{
		Metadata: entity.Metadata{
			RequestID: utils.NewRequestID(now),
			CreatedAt: now,
			UpdatedAt: now,
			Status:    entity.StatusPending,
		},
		Member: member,
		Body: entity.RequestBody{
			Type:    details.FormType(),
			Details: details,
		},
		Validation: validation,
		AuditTrail: []entity.AuditEvent{
			{Timestamp: now, Action: "request_created", Actor: member.Name},
		},
	}
	if validation != nil {
		result := "failed"
		if validation.Passed {
			result = "passed"
		}
		request.AuditTrail = append(request.AuditTrail, entity.AuditEvent{
			Timestamp: now,
			Action:    "validation_completed",
			Actor:     "system",
			Notes:     result,
		})
	}

	if err := s.writeRequest(request); err != nil {
		return nil, err
	}
	if err := s.audit.Append(s.auditRecord(request, "", "")); err != nil {
		return nil, err
	}

	s.logger.Info("Created request",
		zap.String("request_id", request.Metadata.RequestID),
		zap.String("form_type", string(request.Body.Type)),
		zap.String("member", member.Name))

	return request, nil
}

// Load reads a request by id
func (s *RequestStore) Load(ctx context.Context, id string) (*entity.Request, error) {
	data, err := os.ReadFile(s.requestPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, &PersistenceError{Op: "read request " + id, Err: err}
	}

	var request entity.Request
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, &PersistenceError{Op: "decode request " + id, Err: err}
	}
	// A document without its request section decodes without error but
	// leaves Details nil; treat it as corrupt rather than let callers
	// dereference it
	if request.Body.Details == nil {
		return nil, &PersistenceError{Op: "decode request " + id, Err: fmt.Errorf("missing request section")}
	}
	return &request, nil
}

// List returns every stored request, newest first. Callers filter
// client-side. Corrupt documents are skipped with a warning.
func (s *RequestStore) List(ctx context.Context) ([]*entity.Request, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &PersistenceError{Op: "scan requests directory", Err: err}
	}

	var requests []*entity.Request
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		request, err := s.Load(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping unreadable request document",
				zap.String("file", entry.Name()),
				zap.Error(err))
			continue
		}
		requests = append(requests, request)
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].Metadata.CreatedAt.After(requests[j].Metadata.CreatedAt)
	})
	return requests, nil
}

// UpdateStatus transitions a request to newStatus, recording who decided
// and why. Returns ErrNotFound for unknown ids and ErrInvalidTransition
// for moves the lifecycle does not permit. Prior audit rows are never
// touched; one new row is appended per transition.
func (s *RequestStore) UpdateStatus(ctx context.Context, id string, newStatus entity.Status, actor, note string) (*entity.Request, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", entity.ErrInvalidTransition, newStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	request, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	current := request.Metadata.Status
	if !current.CanTransition(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", entity.ErrInvalidTransition, current, newStatus)
	}

	now := s.now()
	request.Metadata.Status = newStatus
	request.Metadata.UpdatedAt = now
	request.Treasurer = &entity.TreasurerAction{
		Decision:   newStatus,
		ReviewedBy: actor,
		ReviewedAt: now,
		Notes:      note,
	}
	request.AuditTrail = append(request.AuditTrail, entity.AuditEvent{
		Timestamp: now,
		Action:    string(newStatus),
		Actor:     actor,
		Notes:     note,
	})

	if err := s.writeRequest(request); err != nil {
		return nil, err
	}
	if err := s.audit.Append(s.auditRecord(request, actor, note)); err != nil {
		return nil, err
	}

	s.logger.Info("Updated request status",
		zap.String("request_id", id),
		zap.String("from", string(current)),
		zap.String("to", string(newStatus)),
		zap.String("actor", actor))

	return request, nil
}

// ConsumedFor sums the amounts of all approved requests charged to a
// budget line. Validation reads this at check time, so a verdict depends
// on the then-current ledger state, not on the single request alone.
func (s *RequestStore) ConsumedFor(ctx context.Context, budgetLine string) (decimal.Decimal, error) {
	requests, err := s.List(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	consumed := decimal.Zero
	for _, request := range requests {
		if request.Metadata.Status != entity.StatusApproved {
			continue
		}
		if request.Body.Details.BudgetLine() != budgetLine {
			continue
		}
		consumed = consumed.Add(request.Body.Details.Amount())
	}
	return consumed, nil
}

// AuditRecords returns the audit ledger in append order
func (s *RequestStore) AuditRecords(ctx context.Context) ([]AuditRecord, error) {
	return s.audit.Records()
}

// RebuildAudit regenerates the derived CSV ledger from the JSON records,
// e.g. after the two representations have drifted apart.
func (s *RequestStore) RebuildAudit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests, err := s.List(ctx)
	if err != nil {
		return err
	}

	// Oldest first so rebuilt rows keep append order
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].Metadata.CreatedAt.Before(requests[j].Metadata.CreatedAt)
	})

	var records []AuditRecord
	for _, request := range requests {
		for _, event := range request.AuditTrail {
			record, ok := recordForEvent(request, event)
			if ok {
				records = append(records, record)
			}
		}
	}

	if err := s.audit.Rewrite(records); err != nil {
		return err
	}

	s.logger.Info("Rebuilt audit log",
		zap.Int("requests", len(requests)),
		zap.Int("rows", len(records)))
	return nil
}

func (s *RequestStore) requestPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *RequestStore) writeRequest(request *entity.Request) error {
	data, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode request " + request.Metadata.RequestID, Err: err}
	}
	if err := os.WriteFile(s.requestPath(request.Metadata.RequestID), data, 0644); err != nil {
		return &PersistenceError{Op: "write request " + request.Metadata.RequestID, Err: err}
	}
	return nil
}

func (s *RequestStore) auditRecord(request *entity.Request, actor, note string) AuditRecord {
	details := request.Body.Details
	return AuditRecord{
		RequestID:        request.Metadata.RequestID,
		Date:             details.Date(),
		MemberName:       request.Member.Name,
		FormType:         request.Body.Type,
		Amount:           details.Amount(),
		Description:      details.Description(),
		BudgetLine:       details.BudgetLine(),
		Status:           request.Metadata.Status,
		Actor:            actor,
		RecordedAt:       s.now(),
		AutomationStatus: automationPending,
		Notes:            note,
	}
}

// recordForEvent maps an audit trail entry back to a ledger row. Only
// status-changing events produce rows.
func recordForEvent(request *entity.Request, event entity.AuditEvent) (AuditRecord, bool) {
	var status entity.Status
	switch {
	case event.Action == "request_created":
		status = entity.StatusPending
	case entity.Status(event.Action).IsValid():
		status = entity.Status(event.Action)
	default:
		return AuditRecord{}, false
	}

	details := request.Body.Details
	actor := event.Actor
	if event.Action == "request_created" {
		actor = ""
	}
	return AuditRecord{
		RequestID:        request.Metadata.RequestID,
		Date:             details.Date(),
		MemberName:       request.Member.Name,
		FormType:         request.Body.Type,
		Amount:           details.Amount(),
		Description:      details.Description(),
		BudgetLine:       details.BudgetLine(),
		Status:           status,
		Actor:            actor,
		RecordedAt:       event.Timestamp,
		AutomationStatus: automationPending,
		Notes:            event.Notes,
	}, true
}
