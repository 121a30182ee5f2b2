package entity

import "time"

// Request is the structured record persisted for every finance request,
// one JSON document per request.
type Request struct {
	Metadata   Metadata          `json:"metadata"`
	Member     Member            `json:"member"`
	Body       RequestBody       `json:"request"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Treasurer  *TreasurerAction  `json:"treasurer_action,omitempty"`
	AuditTrail []AuditEvent      `json:"audit_trail"`
}

// Metadata holds the identifying and lifecycle fields of a request
type Metadata struct {
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Status    Status    `json:"status"`
}

// Member identifies the submitting club member
type Member struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Club  string `json:"club,omitempty"`
}

// TreasurerAction records the most recent review decision
type TreasurerAction struct {
	Decision   Status    `json:"decision"`
	ReviewedBy string    `json:"reviewed_by"`
	ReviewedAt time.Time `json:"reviewed_at"`
	Notes      string    `json:"notes,omitempty"`
}

// AuditEvent is one entry in a request's free-form audit history
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Notes     string    `json:"notes,omitempty"`
}

// Severity classifies a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single rule violation or warning
type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ValidationResult is the derived verdict attached to a request before it
// is first persisted. It is recomputed whenever the input fields change,
// never edited in place.
type ValidationResult struct {
	Passed      bool    `json:"passed"`
	Violations  []Issue `json:"violations"`
	Warnings    []Issue `json:"warnings"`
	Score       float64 `json:"score"`
	TotalChecks int     `json:"total_checks"`
}
