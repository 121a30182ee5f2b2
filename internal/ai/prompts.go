package ai

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/rules"
)

const classifySystemPrompt = "You are the intake assistant for a student club treasury. " +
	"Members describe money matters in plain English and you decide which finance form applies. " +
	"Always respond with a single valid JSON object and nothing else."

const extractSystemPrompt = "You extract finance form fields from a club member's message. " +
	"Only report values the message actually states; never guess or invent a value. " +
	"Always respond with a single valid JSON object and nothing else."

func buildClassifyPrompt(message string) string {
	var b strings.Builder
	b.WriteString("Decide which finance form this message calls for.\n\nForm types:\n")
	for _, formType := range []entity.FormType{
		entity.FormExpenseReimbursement,
		entity.FormSupplierPayment,
		entity.FormInternalTransfer,
		entity.FormRefundRequest,
		entity.FormBudgetApproval,
	} {
		fmt.Fprintf(&b, "- %s: %s\n", formType, formTypeHint(formType))
	}

	fmt.Fprintf(&b, `
Message:
%q

Respond with ONLY this JSON structure:
{
  "form_type": one of the form type identifiers above,
  "confidence": number between 0.0 and 1.0,
  "reasoning": one sentence explaining the pick
}`, message)

	return b.String()
}

func buildExtractPrompt(formType entity.FormType, schema rules.FormSchema, message string, now time.Time) string {
	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Extract the %s form fields from this message.\n\nFields:\n", formType.DisplayName())
	for _, name := range names {
		def := schema.Fields[name]
		required := "optional"
		if def.Required {
			required = "required"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", name, required, def.Description)
	}

	fmt.Fprintf(&b, `
Today is %s. Write dates as YYYY-MM-DD, resolving relative expressions
like "yesterday" or "last Friday" against today. Write amounts as plain
numbers without currency symbols.

Message:
%q

Respond with ONLY a JSON object mapping field names to extracted values.
Omit any field the message does not state a value for. Do not invent
values.`, now.Format("Monday 2006-01-02"), message)

	return b.String()
}

func formTypeHint(formType entity.FormType) string {
	switch formType {
	case entity.FormExpenseReimbursement:
		return "a member paid out of pocket and wants the money back"
	case entity.FormSupplierPayment:
		return "an unpaid vendor invoice the club should pay directly"
	case entity.FormInternalTransfer:
		return "moving funds between this club and another club"
	case entity.FormRefundRequest:
		return "refunding a member for a ticket or fee they paid the club"
	case entity.FormBudgetApproval:
		return "sign-off for planned spending before any money moves"
	default:
		return ""
	}
}
