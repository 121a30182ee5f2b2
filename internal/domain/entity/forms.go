package entity

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// FormType identifies which finance form a request uses
type FormType string

const (
	FormExpenseReimbursement FormType = "expense_reimbursement"
	FormSupplierPayment      FormType = "supplier_payment"
	FormInternalTransfer     FormType = "internal_transfer"
	FormRefundRequest        FormType = "refund_request"
	FormBudgetApproval       FormType = "budget_approval"
)

// ErrUnknownFormType is returned when a form type is not one of the fixed set
var ErrUnknownFormType = errors.New("unknown form type")

var formDisplayNames = map[FormType]string{
	FormExpenseReimbursement: "Expense Reimbursement",
	FormSupplierPayment:      "Supplier Payment",
	FormInternalTransfer:     "Internal Transfer",
	FormRefundRequest:        "Member Refund",
	FormBudgetApproval:       "Budget Approval",
}

// IsValid returns true if the form type is one of the fixed set
func (t FormType) IsValid() bool {
	_, ok := formDisplayNames[t]
	return ok
}

// DisplayName returns the human-readable form name
func (t FormType) DisplayName() string {
	if name, ok := formDisplayNames[t]; ok {
		return name
	}
	return string(t)
}

// FormDetails is the tagged variant carrying one form type's field set.
// Each form type has its own struct; the type tag selects the variant when
// decoding, so no caller ever dispatches on field names by hand.
type FormDetails interface {
	FormType() FormType

	// Amount is the monetary value the request turns on, whatever the
	// form calls it (claim total, invoice total, transfer amount, ...)
	Amount() decimal.Decimal

	Date() string
	Description() string
	BudgetLine() string
	EventCode() string

	// FileRef is the attached receipt or invoice reference, if any
	FileRef() string

	// Fields returns the flattened field map used for schema
	// completeness checks and serialization
	Fields() map[string]any
}

// ReimbursementDetails holds the field set for out-of-pocket expense claims
type ReimbursementDetails struct {
	ClaimAmount decimal.Decimal `json:"amount"`
	ExpenseDate string          `json:"date,omitempty"`
	Summary     string          `json:"description,omitempty"`
	Merchant    string          `json:"merchant_name,omitempty"`
	Budget      string          `json:"budget_line,omitempty"`
	Event       string          `json:"event_code,omitempty"`
	ReceiptRef  string          `json:"receipt,omitempty"`
}

func (d *ReimbursementDetails) FormType() FormType      { return FormExpenseReimbursement }
func (d *ReimbursementDetails) Amount() decimal.Decimal { return d.ClaimAmount }
func (d *ReimbursementDetails) Date() string            { return d.ExpenseDate }
func (d *ReimbursementDetails) Description() string     { return d.Summary }
func (d *ReimbursementDetails) BudgetLine() string      { return d.Budget }
func (d *ReimbursementDetails) EventCode() string       { return d.Event }
func (d *ReimbursementDetails) FileRef() string         { return d.ReceiptRef }
func (d *ReimbursementDetails) Fields() map[string]any  { return fieldMap(d) }

// SupplierPaymentDetails holds the field set for unpaid vendor invoices
type SupplierPaymentDetails struct {
	InvoiceAmount decimal.Decimal `json:"amount"`
	InvoiceDate   string          `json:"date,omitempty"`
	Summary       string          `json:"description,omitempty"`
	Vendor        string          `json:"vendor_name,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Budget        string          `json:"budget_line,omitempty"`
	Event         string          `json:"event_code,omitempty"`
	InvoiceRef    string          `json:"invoice_file,omitempty"`
}

func (d *SupplierPaymentDetails) FormType() FormType      { return FormSupplierPayment }
func (d *SupplierPaymentDetails) Amount() decimal.Decimal { return d.InvoiceAmount }
func (d *SupplierPaymentDetails) Date() string            { return d.InvoiceDate }
func (d *SupplierPaymentDetails) Description() string     { return d.Summary }
func (d *SupplierPaymentDetails) BudgetLine() string      { return d.Budget }
func (d *SupplierPaymentDetails) EventCode() string       { return d.Event }
func (d *SupplierPaymentDetails) FileRef() string         { return d.InvoiceRef }
func (d *SupplierPaymentDetails) Fields() map[string]any  { return fieldMap(d) }

// TransferDetails holds the field set for moving funds between clubs
type TransferDetails struct {
	TransferAmount decimal.Decimal `json:"amount"`
	TransferDate   string          `json:"date,omitempty"`
	Purpose        string          `json:"description,omitempty"`
	RecipientClub  string          `json:"recipient_club,omitempty"`
	Budget         string          `json:"budget_line,omitempty"`
	Event          string          `json:"event_code,omitempty"`
}

func (d *TransferDetails) FormType() FormType      { return FormInternalTransfer }
func (d *TransferDetails) Amount() decimal.Decimal { return d.TransferAmount }
func (d *TransferDetails) Date() string            { return d.TransferDate }
func (d *TransferDetails) Description() string     { return d.Purpose }
func (d *TransferDetails) BudgetLine() string      { return d.Budget }
func (d *TransferDetails) EventCode() string       { return d.Event }
func (d *TransferDetails) FileRef() string         { return "" }
func (d *TransferDetails) Fields() map[string]any  { return fieldMap(d) }

// RefundDetails holds the field set for member refunds (tickets, fees)
type RefundDetails struct {
	RefundAmount        decimal.Decimal `json:"amount"`
	OriginalPaymentDate string          `json:"date,omitempty"`
	Reason              string          `json:"description,omitempty"`
	Budget              string          `json:"budget_line,omitempty"`
	Event               string          `json:"event_code,omitempty"`
}

func (d *RefundDetails) FormType() FormType      { return FormRefundRequest }
func (d *RefundDetails) Amount() decimal.Decimal { return d.RefundAmount }
func (d *RefundDetails) Date() string            { return d.OriginalPaymentDate }
func (d *RefundDetails) Description() string     { return d.Reason }
func (d *RefundDetails) BudgetLine() string      { return d.Budget }
func (d *RefundDetails) EventCode() string       { return d.Event }
func (d *RefundDetails) FileRef() string         { return "" }
func (d *RefundDetails) Fields() map[string]any  { return fieldMap(d) }

// BudgetApprovalDetails holds the field set for pre-spend budget sign-off
type BudgetApprovalDetails struct {
	RequestedAmount decimal.Decimal `json:"amount"`
	NeededBy        string          `json:"date,omitempty"`
	Justification   string          `json:"description,omitempty"`
	Budget          string          `json:"budget_line,omitempty"`
	Event           string          `json:"event_code,omitempty"`
}

func (d *BudgetApprovalDetails) FormType() FormType      { return FormBudgetApproval }
func (d *BudgetApprovalDetails) Amount() decimal.Decimal { return d.RequestedAmount }
func (d *BudgetApprovalDetails) Date() string            { return d.NeededBy }
func (d *BudgetApprovalDetails) Description() string     { return d.Justification }
func (d *BudgetApprovalDetails) BudgetLine() string      { return d.Budget }
func (d *BudgetApprovalDetails) EventCode() string       { return d.Event }
func (d *BudgetApprovalDetails) FileRef() string         { return "" }
func (d *BudgetApprovalDetails) Fields() map[string]any  { return fieldMap(d) }

// RequestBody is the type-tagged "request" section of a stored document.
// On the wire the tag and the variant's fields are flattened into a single
// object: {"type": "expense_reimbursement", "amount": 180, ...}
type RequestBody struct {
	Type    FormType
	Details FormDetails
}

// MarshalJSON flattens the type tag and the variant fields into one object
func (b RequestBody) MarshalJSON() ([]byte, error) {
	if b.Details == nil {
		return nil, fmt.Errorf("request body has no details")
	}
	m := b.Details.Fields()
	m["type"] = string(b.Type)
	return json.Marshal(m)
}

// UnmarshalJSON reads the type tag and decodes into the matching variant
func (b *RequestBody) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type FormType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	details, err := newDetails(probe.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, details); err != nil {
		return fmt.Errorf("decode %s fields: %w", probe.Type, err)
	}

	b.Type = probe.Type
	b.Details = details
	return nil
}

// DetailsFromFields builds the typed variant for a form type from a loose
// field map, e.g. the output of LLM extraction. Unknown keys are dropped.
func DetailsFromFields(formType FormType, fields map[string]any) (FormDetails, error) {
	details, err := newDetails(formType)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode field map: %w", err)
	}
	if err := json.Unmarshal(raw, details); err != nil {
		return nil, fmt.Errorf("decode %s fields: %w", formType, err)
	}

	return details, nil
}

func newDetails(formType FormType) (FormDetails, error) {
	switch formType {
	case FormExpenseReimbursement:
		return &ReimbursementDetails{}, nil
	case FormSupplierPayment:
		return &SupplierPaymentDetails{}, nil
	case FormInternalTransfer:
		return &TransferDetails{}, nil
	case FormRefundRequest:
		return &RefundDetails{}, nil
	case FormBudgetApproval:
		return &BudgetApprovalDetails{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormType, formType)
	}
}

func fieldMap(details any) map[string]any {
	raw, err := json.Marshal(details)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
