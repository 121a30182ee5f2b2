package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
)

var auditColumns = []string{
	"request_id", "date", "member_name", "type", "amount",
	"description", "budget_line", "status", "treasurer",
	"recorded_at", "automation_status", "notes",
}

// AuditRecord is one flattened row of the audit log: a write-once record
// of a single status-changing event.
type AuditRecord struct {
	RequestID        string
	Date             string
	MemberName       string
	FormType         entity.FormType
	Amount           decimal.Decimal
	Description      string
	BudgetLine       string
	Status           entity.Status
	Actor            string
	RecordedAt       time.Time
	AutomationStatus string
	Notes            string
}

func (r AuditRecord) row() []string {
	return []string{
		r.RequestID,
		r.Date,
		r.MemberName,
		string(r.FormType),
		r.Amount.String(),
		r.Description,
		r.BudgetLine,
		string(r.Status),
		r.Actor,
		r.RecordedAt.Format(time.RFC3339),
		r.AutomationStatus,
		r.Notes,
	}
}

func recordFromRow(row []string) (AuditRecord, error) {
	if len(row) != len(auditColumns) {
		return AuditRecord{}, fmt.Errorf("expected %d columns, got %d", len(auditColumns), len(row))
	}
	amount, err := decimal.NewFromString(row[4])
	if err != nil {
		return AuditRecord{}, fmt.Errorf("invalid amount %q: %w", row[4], err)
	}
	recordedAt, err := time.Parse(time.RFC3339, row[9])
	if err != nil {
		return AuditRecord{}, fmt.Errorf("invalid timestamp %q: %w", row[9], err)
	}
	return AuditRecord{
		RequestID:        row[0],
		Date:             row[1],
		MemberName:       row[2],
		FormType:         entity.FormType(row[3]),
		Amount:           amount,
		Description:      row[5],
		BudgetLine:       row[6],
		Status:           entity.Status(row[7]),
		Actor:            row[8],
		RecordedAt:       recordedAt,
		AutomationStatus: row[10],
		Notes:            row[11],
	}, nil
}

// AuditLog is the append-only CSV ledger of status-changing events. Rows
// are never mutated after being written; the JSON records are the source
// of truth and the whole log can be rebuilt from them.
type AuditLog struct {
	path   string
	logger *zap.Logger
}

// NewAuditLog opens the audit log, creating the file with its header row
// if it does not exist yet.
func NewAuditLog(path string, logger *zap.Logger) (*AuditLog, error) {
	l := &AuditLog{path: path, logger: logger}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &PersistenceError{Op: "create audit log directory", Err: err}
		}
		if err := l.writeAll(nil); err != nil {
			return nil, err
		}
		logger.Info("Initialized audit log", zap.String("path", path))
	}

	return l, nil
}

// Append adds one record to the end of the log
func (l *AuditLog) Append(record AuditRecord) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return &PersistenceError{Op: "open audit log", Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(record.row()); err != nil {
		return &PersistenceError{Op: "append audit row", Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &PersistenceError{Op: "flush audit row", Err: err}
	}
	return nil
}

// Records reads every row of the log in append order. Rows that fail to
// parse are skipped with a warning so one bad row cannot hide the rest.
func (l *AuditLog) Records() ([]AuditRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, &PersistenceError{Op: "open audit log", Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &PersistenceError{Op: "read audit log", Err: err}
	}

	var records []AuditRecord
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		record, err := recordFromRow(row)
		if err != nil {
			l.logger.Warn("Skipping malformed audit row",
				zap.Int("line", i+1),
				zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Rewrite replaces the whole log with the given records. Used only when
// rebuilding the derived CSV from the JSON records; normal operation only
// ever appends. The replacement is done via a temp file and rename so a
// crash cannot leave a truncated log.
func (l *AuditLog) Rewrite(records []AuditRecord) error {
	return l.writeAll(records)
}

func (l *AuditLog) writeAll(records []AuditRecord) error {
	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &PersistenceError{Op: "create audit log", Err: err}
	}

	w := csv.NewWriter(f)
	if err := w.Write(auditColumns); err != nil {
		f.Close()
		return &PersistenceError{Op: "write audit header", Err: err}
	}
	for _, record := range records {
		if err := w.Write(record.row()); err != nil {
			f.Close()
			return &PersistenceError{Op: "write audit row", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return &PersistenceError{Op: "flush audit log", Err: err}
	}
	if err := f.Close(); err != nil {
		return &PersistenceError{Op: "close audit log", Err: err}
	}

	if err := os.Rename(tmp, l.path); err != nil {
		return &PersistenceError{Op: "replace audit log", Err: err}
	}
	return nil
}
