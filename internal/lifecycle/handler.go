package lifecycle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/shared/server/middleware"
	"assessment-backend/internal/shared/server/respond"
)

// Handler exposes assessment status and the respondent/payment write paths.
type Handler struct {
	Ctl *Controller
}

// NewHandler constructs a Handler.
func NewHandler(ctl *Controller) *Handler {
	return &Handler{Ctl: ctl}
}

// RegisterRoutes attaches respondent routes; the group must carry Identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/assessments", h.create)
	rg.GET("/assessments/:id", h.get)
	rg.GET("/assessments/:id/progress", h.progress)
	rg.GET("/assessments/:id/domains", h.domains)
	rg.GET("/assessments/:id/deliverables", h.deliverables)
	rg.POST("/assessments/:id/responses", h.recordResponse)
	rg.POST("/assessments/:id/cancel", h.cancel)
}

// RegisterWebhooks attaches provider callbacks; the group must carry
// WebhookSecret.
func (h *Handler) RegisterWebhooks(rg *gin.RouterGroup) {
	rg.POST("/webhooks/payment", h.paymentSettled)
}

type createRequest struct {
	Industry string `json:"industry"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	a, err := h.Ctl.Create(c.Request.Context(), CreateInput{
		UserID:   middleware.UserIDFromContext(c),
		Industry: req.Industry,
	})
	if err != nil {
		h.fail(c, err, "failed to create assessment")
		return
	}
	c.Set("assessmentId", a.ID)
	respond.Created(c, a)
}

func (h *Handler) get(c *gin.Context) {
	a, ok := h.owned(c)
	if !ok {
		return
	}
	respond.OK(c, a)
}

func (h *Handler) progress(c *gin.Context) {
	a, ok := h.owned(c)
	if !ok {
		return
	}
	snap, err := h.Ctl.Progress(c.Request.Context(), a.ID)
	if err != nil {
		h.fail(c, err, "failed to compute progress")
		return
	}
	respond.OK(c, gin.H{
		"assessmentId": a.ID,
		"status":       a.Status,
		"progress":     snap,
	})
}

func (h *Handler) domains(c *gin.Context) {
	a, ok := h.owned(c)
	if !ok {
		return
	}
	domains, err := h.Ctl.Domains(c.Request.Context(), a.ID)
	if err != nil {
		h.fail(c, err, "failed to list domains")
		return
	}
	respond.OK(c, gin.H{"assessmentId": a.ID, "domains": domains})
}

func (h *Handler) deliverables(c *gin.Context) {
	a, ok := h.owned(c)
	if !ok {
		return
	}
	list, err := h.Ctl.Deliverables(c.Request.Context(), a.ID)
	if err != nil {
		h.fail(c, err, "failed to list deliverables")
		return
	}
	respond.OK(c, gin.H{
		"assessmentId":          a.ID,
		"status":                a.Status,
		"executiveSummaryPath":  a.ExecutiveSummaryPath,
		"detailedAnalysisPath":  a.DetailedAnalysisPath,
		"implementationKitPath": a.ImplementationKitPath,
		"deliverables":          list,
	})
}

type responseRequest struct {
	QuestionID string   `json:"questionId"`
	Text       string   `json:"text"`
	Score      *float64 `json:"score"`
}

func (h *Handler) recordResponse(c *gin.Context) {
	a, ok := h.owned(c)
	if !ok {
		return
	}
	var req responseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.QuestionID) == "" {
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "questionId is required", nil)
		return
	}
	updated, snap, err := h.Ctl.RecordResponse(c.Request.Context(), a.ID, ResponseInput{
		QuestionID: req.QuestionID,
		Text:       req.Text,
		Score:      req.Score,
	})
	if err != nil {
		h.fail(c, err, "failed to record response")
		return
	}
	if updated.Status != a.Status {
		c.Set("statusTransition", a.Status+"->"+updated.Status)
	}
	respond.OK(c, gin.H{
		"assessmentId": updated.ID,
		"status":       updated.Status,
		"progress":     snap,
	})
}

func (h *Handler) cancel(c *gin.Context) {
	a, ok := h.owned(c)
	if !ok {
		return
	}
	updated, err := h.Ctl.Cancel(c.Request.Context(), a.ID)
	if err != nil {
		h.fail(c, err, "failed to cancel assessment")
		return
	}
	c.Set("statusTransition", a.Status+"->"+updated.Status)
	respond.OK(c, updated)
}

type paymentRequest struct {
	AssessmentID string `json:"assessmentId"`
	PaymentRef   string `json:"paymentRef"`
	AmountCents  int64  `json:"amountCents"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// paymentSettled accepts only settled events; anything else is acknowledged
// and ignored so the provider stops retrying.
func (h *Handler) paymentSettled(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.AssessmentID) == "" {
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "assessmentId is required", nil)
		return
	}
	if _, err := uuid.Parse(req.AssessmentID); err != nil {
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "assessmentId must be a UUID", nil)
		return
	}
	c.Set("assessmentId", req.AssessmentID)
	if !strings.EqualFold(strings.TrimSpace(req.Status), "settled") {
		respond.Accepted(c, gin.H{"assessmentId": req.AssessmentID, "ignored": true})
		return
	}
	a, err := h.Ctl.ConfirmPayment(c.Request.Context(), req.AssessmentID, Payment{
		Reference:   req.PaymentRef,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
	if err != nil {
		h.fail(c, err, "failed to confirm payment")
		return
	}
	respond.Accepted(c, gin.H{"assessmentId": a.ID, "status": a.Status})
}

// owned loads the :id assessment and hides other users' assessments as 404.
func (h *Handler) owned(c *gin.Context) (assessments.Assessment, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "assessment not found", nil)
		return assessments.Assessment{}, false
	}
	c.Set("assessmentId", id)
	a, err := h.Ctl.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to load assessment")
		return assessments.Assessment{}, false
	}
	if a.UserID != middleware.UserIDFromContext(c) {
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "assessment not found", nil)
		return assessments.Assessment{}, false
	}
	return a, true
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, assessments.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "NOT_FOUND", "assessment not found", nil)
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrUnknownQuestion):
		respond.Error(c, http.StatusUnprocessableEntity, "UNKNOWN_QUESTION", "question is not part of this assessment", nil)
	case errors.Is(err, ErrInvalidResponse), errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrInvalidState):
		respond.Error(c, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback, nil)
	}
}
