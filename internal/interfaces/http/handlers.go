package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/dashboard"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/rules"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/service"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/store"
)

// IntakeService accepts new requests, free-form or structured
type IntakeService interface {
	Submit(ctx context.Context, member entity.Member, message string) (*service.IntakeResult, error)
	SubmitStructured(ctx context.Context, member entity.Member, formType entity.FormType, fields map[string]any) (*entity.Request, error)
}

// ReviewService reads the queue and records decisions
type ReviewService interface {
	Get(ctx context.Context, id string) (*entity.Request, error)
	List(ctx context.Context, status entity.Status) ([]*entity.Request, error)
	Approve(ctx context.Context, id, treasurer, note string) (*entity.Request, error)
	Reject(ctx context.Context, id, treasurer, note string) (*entity.Request, error)
	Hold(ctx context.Context, id, treasurer, note string) (*entity.Request, error)
	Reopen(ctx context.Context, id, treasurer, note string) (*entity.Request, error)
}

// DashboardService computes the summary and budget views
type DashboardService interface {
	Summarize(ctx context.Context) (*dashboard.Summary, error)
	Budgets(ctx context.Context) ([]dashboard.BudgetPosition, error)
}

// LedgerExporter writes the audit ledger as a spreadsheet
type LedgerExporter interface {
	WriteLedger(ctx context.Context, w io.Writer) error
}

// Admin covers the maintenance operations behind /api/admin
type Admin interface {
	ReloadRules() error
	RebuildAudit(ctx context.Context) error
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	intake    IntakeService
	review    ReviewService
	dashboard DashboardService
	exporter  LedgerExporter
	admin     Admin
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(intake IntakeService, review ReviewService, dash DashboardService, exporter LedgerExporter, admin Admin, logger *zap.Logger) *Handlers {
	return &Handlers{
		intake:    intake,
		review:    review,
		dashboard: dash,
		exporter:  exporter,
		admin:     admin,
		logger:    logger,
	}
}

// Response is the standard JSON envelope
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// IntakeRequest is the body of POST /api/intake
type IntakeRequest struct {
	Member  MemberPayload `json:"member" binding:"required"`
	Message string        `json:"message" binding:"required"`
}

// MemberPayload identifies the submitting member
type MemberPayload struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Club  string `json:"club"`
}

// IntakeResponse is the body returned by POST /api/intake
type IntakeResponse struct {
	NeedsConfirmation  bool              `json:"needs_confirmation"`
	FormType           entity.FormType   `json:"form_type"`
	Confidence         float64           `json:"confidence"`
	Fields             map[string]any    `json:"fields,omitempty"`
	Request            *entity.Request   `json:"request,omitempty"`
	SuggestedEventCode *rules.Suggestion `json:"suggested_event_code,omitempty"`
}

// Intake handles POST /api/intake
func (h *Handlers) Intake(c *gin.Context) {
	var req IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "member name and message are required")
		return
	}

	result, err := h.intake.Submit(c.Request.Context(),
		entity.Member{Name: req.Member.Name, Email: req.Member.Email, Club: req.Member.Club}, req.Message)
	if err != nil {
		h.fail(c, "intake failed", err)
		return
	}

	status := http.StatusCreated
	if result.NeedsConfirmation {
		status = http.StatusOK
	}
	c.JSON(status, Response{
		Success: true,
		Data: IntakeResponse{
			NeedsConfirmation:  result.NeedsConfirmation,
			FormType:           result.FormType,
			Confidence:         result.Confidence,
			Fields:             result.Fields,
			Request:            result.Request,
			SuggestedEventCode: result.SuggestedEventCode,
		},
	})
}

// CreateRequestBody is the body of POST /api/requests
type CreateRequestBody struct {
	Member MemberPayload   `json:"member" binding:"required"`
	Type   entity.FormType `json:"type" binding:"required"`
	Fields map[string]any  `json:"fields" binding:"required"`
}

// CreateRequest handles POST /api/requests, the structured submission
// path used after the member confirms or corrects the extracted fields.
func (h *Handlers) CreateRequest(c *gin.Context) {
	var req CreateRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "member, type and fields are required")
		return
	}

	request, err := h.intake.SubmitStructured(c.Request.Context(),
		entity.Member{Name: req.Member.Name, Email: req.Member.Email, Club: req.Member.Club}, req.Type, req.Fields)
	if err != nil {
		h.fail(c, "create request failed", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: request})
}

// ListRequests handles GET /api/requests with an optional status filter
func (h *Handlers) ListRequests(c *gin.Context) {
	status := entity.Status(c.Query("status"))
	if status != "" && !status.IsValid() {
		badRequest(c, fmt.Sprintf("unknown status %q", status))
		return
	}

	requests, err := h.review.List(c.Request.Context(), status)
	if err != nil {
		h.fail(c, "list requests failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	request, err := h.review.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get request failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: request})
}

// DecisionRequest is the body of the review decision endpoints
type DecisionRequest struct {
	Treasurer string `json:"treasurer" binding:"required"`
	Notes     string `json:"notes"`
}

// Approve handles POST /api/requests/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.decide(c, h.review.Approve)
}

// Reject handles POST /api/requests/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	h.decide(c, h.review.Reject)
}

// Hold handles POST /api/requests/:id/hold
func (h *Handlers) Hold(c *gin.Context) {
	h.decide(c, h.review.Hold)
}

// Reopen handles POST /api/requests/:id/reopen
func (h *Handlers) Reopen(c *gin.Context) {
	h.decide(c, h.review.Reopen)
}

func (h *Handlers) decide(c *gin.Context, decision func(ctx context.Context, id, treasurer, note string) (*entity.Request, error)) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "treasurer is required")
		return
	}

	request, err := decision(c.Request.Context(), c.Param("id"), req.Treasurer, req.Notes)
	if err != nil {
		h.fail(c, "decision failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: request})
}

// Summary handles GET /api/summary
func (h *Handlers) Summary(c *gin.Context) {
	summary, err := h.dashboard.Summarize(c.Request.Context())
	if err != nil {
		h.fail(c, "summary failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// Budgets handles GET /api/budgets
func (h *Handlers) Budgets(c *gin.Context) {
	budgets, err := h.dashboard.Budgets(c.Request.Context())
	if err != nil {
		h.fail(c, "budgets failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: budgets})
}

// ExportLedger handles GET /api/export/ledger
func (h *Handlers) ExportLedger(c *gin.Context) {
	filename := fmt.Sprintf("audit_ledger_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.exporter.WriteLedger(c.Request.Context(), c.Writer); err != nil {
		h.logger.Error("Ledger export failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}

// ReloadRules handles POST /api/admin/rules/reload
func (h *Handlers) ReloadRules(c *gin.Context) {
	if err := h.admin.ReloadRules(); err != nil {
		h.fail(c, "rules reload failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// RebuildAudit handles POST /api/admin/audit/rebuild
func (h *Handlers) RebuildAudit(c *gin.Context) {
	if err := h.admin.RebuildAudit(c.Request.Context()); err != nil {
		h.fail(c, "audit rebuild failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// fail translates a service error into the right status code
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "request not found"})
	case errors.Is(err, entity.ErrInvalidTransition):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, entity.ErrUnknownFormType):
		badRequest(c, err.Error())
	default:
		h.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: msg})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
