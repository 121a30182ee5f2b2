package entity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRequestBody_RoundTrip(t *testing.T) {
	body := RequestBody{
		Type: FormExpenseReimbursement,
		Details: &ReimbursementDetails{
			ClaimAmount: decimal.RequireFromString("180.00"),
			ExpenseDate: "2025-08-20",
			Summary:     "Team dinner after the AI hackathon",
			Merchant:    "Dishoom",
			Budget:      "events",
			Event:       "E042",
			ReceiptRef:  "receipts/REQ-1.pdf",
		},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	var decoded RequestBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	if decoded.Type != FormExpenseReimbursement {
		t.Errorf("Type = %v, want %v", decoded.Type, FormExpenseReimbursement)
	}

	details, ok := decoded.Details.(*ReimbursementDetails)
	if !ok {
		t.Fatalf("Details decoded as %T, want *ReimbursementDetails", decoded.Details)
	}
	if !details.ClaimAmount.Equal(decimal.RequireFromString("180.00")) {
		t.Errorf("ClaimAmount = %s, want 180.00", details.ClaimAmount)
	}
	if details.Merchant != "Dishoom" {
		t.Errorf("Merchant = %q, want %q", details.Merchant, "Dishoom")
	}
	if details.ReceiptRef != "receipts/REQ-1.pdf" {
		t.Errorf("ReceiptRef = %q, want %q", details.ReceiptRef, "receipts/REQ-1.pdf")
	}
}

func TestRequestBody_UnmarshalSelectsVariant(t *testing.T) {
	tests := []struct {
		formType FormType
		want     any
	}{
		{FormExpenseReimbursement, &ReimbursementDetails{}},
		{FormSupplierPayment, &SupplierPaymentDetails{}},
		{FormInternalTransfer, &TransferDetails{}},
		{FormRefundRequest, &RefundDetails{}},
		{FormBudgetApproval, &BudgetApprovalDetails{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.formType), func(t *testing.T) {
			raw := []byte(`{"type":"` + string(tt.formType) + `","amount":25.5}`)

			var body RequestBody
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("Unmarshal() failed: %v", err)
			}

			if body.Details.FormType() != tt.formType {
				t.Errorf("FormType() = %v, want %v", body.Details.FormType(), tt.formType)
			}
			if !body.Details.Amount().Equal(decimal.RequireFromString("25.5")) {
				t.Errorf("Amount() = %s, want 25.5", body.Details.Amount())
			}
		})
	}
}

func TestRequestBody_UnmarshalUnknownType(t *testing.T) {
	var body RequestBody
	err := json.Unmarshal([]byte(`{"type":"petty_cash","amount":10}`), &body)
	if err == nil {
		t.Fatal("Unmarshal() should fail for an unknown form type")
	}
	if !errors.Is(err, ErrUnknownFormType) {
		t.Errorf("error = %v, want ErrUnknownFormType", err)
	}
}

func TestDetailsFromFields(t *testing.T) {
	fields := map[string]any{
		"amount":        900.0,
		"date":          "2025-08-28",
		"description":   "Venue deposit",
		"vendor_name":   "Kings Place",
		"invoice_number": "INV-7741",
		"budget_line":   "speaker_events",
		"unknown_field": "ignored",
	}

	details, err := DetailsFromFields(FormSupplierPayment, fields)
	if err != nil {
		t.Fatalf("DetailsFromFields() failed: %v", err)
	}

	payment, ok := details.(*SupplierPaymentDetails)
	if !ok {
		t.Fatalf("details decoded as %T, want *SupplierPaymentDetails", details)
	}
	if !payment.InvoiceAmount.Equal(decimal.RequireFromString("900")) {
		t.Errorf("InvoiceAmount = %s, want 900", payment.InvoiceAmount)
	}
	if payment.Vendor != "Kings Place" {
		t.Errorf("Vendor = %q, want %q", payment.Vendor, "Kings Place")
	}
	if payment.InvoiceNumber != "INV-7741" {
		t.Errorf("InvoiceNumber = %q, want %q", payment.InvoiceNumber, "INV-7741")
	}
}

func TestDetailsFromFields_UnknownType(t *testing.T) {
	_, err := DetailsFromFields(FormType("lottery"), map[string]any{})
	if !errors.Is(err, ErrUnknownFormType) {
		t.Errorf("error = %v, want ErrUnknownFormType", err)
	}
}

func TestFormType_DisplayName(t *testing.T) {
	if got := FormRefundRequest.DisplayName(); got != "Member Refund" {
		t.Errorf("DisplayName() = %q, want %q", got, "Member Refund")
	}
	if got := FormType("mystery").DisplayName(); got != "mystery" {
		t.Errorf("DisplayName() = %q, want %q", got, "mystery")
	}
}
