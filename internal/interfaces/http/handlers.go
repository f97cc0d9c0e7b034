package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/application/service"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/domain/lifecycle"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/worker"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	reportService    *service.ReportService
	lifecycleService *service.LifecycleService
	appealService    *service.AppealService
	feedbackService  *service.FeedbackService
	reportQueue      port.ReportQueue
	reportWorker     *worker.ReportWorker
	slaWorker        *worker.SLAWorker
	workerManager    *worker.Manager
	logger           *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	reportService *service.ReportService,
	lifecycleService *service.LifecycleService,
	appealService *service.AppealService,
	feedbackService *service.FeedbackService,
	reportQueue port.ReportQueue,
	reportWorker *worker.ReportWorker,
	slaWorker *worker.SLAWorker,
	workerManager *worker.Manager,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		reportService:    reportService,
		lifecycleService: lifecycleService,
		appealService:    appealService,
		feedbackService:  feedbackService,
		reportQueue:      reportQueue,
		reportWorker:     reportWorker,
		slaWorker:        slaWorker,
		workerManager:    workerManager,
		logger:           logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// fail maps domain errors onto status codes. Unknown errors are 500 with a
// generic message; details stay in the log.
func (h *Handlers) fail(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: ve.Error()})
	case errors.Is(err, lifecycle.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.Is(err, port.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "not found"})
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, port.ErrFeedbackExists):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrAppealNotReviewable):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"workers": gin.H{
			"running":    h.workerManager.IsRunning(),
			"registered": h.workerManager.Names(),
			"report":     h.reportWorker.Status(),
			"sla":        h.slaWorker.Status(),
		},
	}

	stats, err := h.reportQueue.Stats(c.Request.Context())
	if err != nil {
		health["status"] = "degraded"
		health["queue_error"] = err.Error()
	} else {
		health["queue"] = stats
	}

	status := http.StatusOK
	if !h.workerManager.IsRunning() {
		health["status"] = "degraded"
	}
	c.JSON(status, health)
}

// CreateReportRequest is the submission payload
type CreateReportRequest struct {
	Title             string  `json:"title" binding:"required"`
	Description       string  `json:"description" binding:"required"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Address           string  `json:"address"`
	SubmittedByUserID int64   `json:"submitted_by_user_id" binding:"required"`
}

// CreateReport handles POST /api/v1/reports
func (h *Handlers) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	report, err := h.reportService.Create(c.Request.Context(), service.CreateReportInput{
		Title:             req.Title,
		Description:       req.Description,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		Address:           req.Address,
		SubmittedByUserID: req.SubmittedByUserID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, report)
}

// GetReport handles GET /api/v1/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	report, history, err := h.reportService.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"report": report, "history": history})
}

// ReprocessReport handles POST /api/v1/reports/:id/reprocess
func (h *Handlers) ReprocessReport(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	force := c.Query("force") == "true"
	if err := h.reportService.Reprocess(c.Request.Context(), id, force); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusAccepted, gin.H{"report_id": id, "force": force})
}

// ManualClassificationRequest carries an operator's classification override
type ManualClassificationRequest struct {
	Category string `json:"category" binding:"required"`
	Severity string `json:"severity"`
}

// SetManualClassification handles PUT /api/v1/reports/:id/classification
func (h *Handlers) SetManualClassification(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req ManualClassificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	if err := h.reportService.SetManualClassification(c.Request.Context(), id, req.Category, req.Severity); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"report_id": id})
}

// ActionRequest is the shared payload for lifecycle actions
type ActionRequest struct {
	Actor string `json:"actor" binding:"required"`
	Notes string `json:"notes"`
}

func (h *Handlers) lifecycleAction(c *gin.Context, fn func(id int64, req ActionRequest) error) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	if err := fn(id, req); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"report_id": id})
}

// Acknowledge handles POST /api/v1/reports/:id/acknowledge
func (h *Handlers) Acknowledge(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.Acknowledge(c.Request.Context(), id, req.Actor)
	})
}

// StartWork handles POST /api/v1/reports/:id/start
func (h *Handlers) StartWork(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.StartWork(c.Request.Context(), id, req.Actor)
	})
}

// SubmitForVerification handles POST /api/v1/reports/:id/submit-verification
func (h *Handlers) SubmitForVerification(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.SubmitForVerification(c.Request.Context(), id, req.Actor, req.Notes)
	})
}

// ApproveResolution handles POST /api/v1/reports/:id/approve
func (h *Handlers) ApproveResolution(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.ApproveResolution(c.Request.Context(), id, req.Actor, req.Notes)
	})
}

// RejectVerification handles POST /api/v1/reports/:id/reject-verification
func (h *Handlers) RejectVerification(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.RejectVerification(c.Request.Context(), id, req.Actor, req.Notes)
	})
}

// RejectReport handles POST /api/v1/reports/:id/reject
func (h *Handlers) RejectReport(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.RejectReport(c.Request.Context(), id, req.Actor, req.Notes)
	})
}

// Hold handles POST /api/v1/reports/:id/hold
func (h *Handlers) Hold(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.Hold(c.Request.Context(), id, req.Actor, req.Notes)
	})
}

// Resume handles POST /api/v1/reports/:id/resume
func (h *Handlers) Resume(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.Resume(c.Request.Context(), id, req.Actor)
	})
}

// RejectAssignment handles POST /api/v1/reports/:id/reject-assignment
func (h *Handlers) RejectAssignment(c *gin.Context) {
	h.lifecycleAction(c, func(id int64, req ActionRequest) error {
		return h.lifecycleService.RejectAssignment(c.Request.Context(), id, req.Actor, req.Notes)
	})
}

// AssignOfficerRequest carries a manual officer assignment
type AssignOfficerRequest struct {
	OfficerID int64  `json:"officer_id" binding:"required"`
	Actor     string `json:"actor" binding:"required"`
}

// AssignOfficer handles POST /api/v1/reports/:id/assign
func (h *Handlers) AssignOfficer(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req AssignOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	// Manual assignments carry no match confidence.
	if err := h.lifecycleService.AssignOfficer(c.Request.Context(), id, req.OfficerID, 0, req.Actor); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"report_id": id, "officer_id": req.OfficerID})
}

// EscalateRequest carries a manual escalation
type EscalateRequest struct {
	RaisedByUserID *int64 `json:"raised_by_user_id"`
	Reason         string `json:"reason" binding:"required"`
	Notes          string `json:"notes"`
}

// Escalate handles POST /api/v1/reports/:id/escalate
func (h *Handlers) Escalate(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	if err := h.lifecycleService.Escalate(c.Request.Context(), id, req.RaisedByUserID, req.Reason, req.Notes); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"report_id": id})
}

// SubmitAppealRequest carries a new appeal
type SubmitAppealRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Type   string `json:"type" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// SubmitAppeal handles POST /api/v1/reports/:id/appeals
func (h *Handlers) SubmitAppeal(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req SubmitAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	appeal, err := h.appealService.Submit(c.Request.Context(), id, req.UserID, req.Type, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, appeal)
}

// ReviewAppealRequest identifies the reviewer
type ReviewAppealRequest struct {
	ReviewerUserID int64 `json:"reviewer_user_id" binding:"required"`
}

// StartAppealReview handles POST /api/v1/appeals/:id/review
func (h *Handlers) StartAppealReview(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req ReviewAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	if err := h.appealService.StartReview(c.Request.Context(), id, req.ReviewerUserID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"appeal_id": id})
}

// ResolveAppealRequest carries the review decision
type ResolveAppealRequest struct {
	ReviewerUserID  int64  `json:"reviewer_user_id" binding:"required"`
	Approve         bool   `json:"approve"`
	RequiresRework  bool   `json:"requires_rework"`
	ReworkOfficerID int64  `json:"rework_officer_id"`
	Notes           string `json:"notes"`
}

// ResolveAppeal handles POST /api/v1/appeals/:id/resolve
func (h *Handlers) ResolveAppeal(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req ResolveAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	err := h.appealService.Resolve(c.Request.Context(), id, req.ReviewerUserID,
		req.Approve, req.RequiresRework, req.ReworkOfficerID, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"appeal_id": id})
}

// WithdrawAppealRequest identifies the withdrawing citizen
type WithdrawAppealRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// WithdrawAppeal handles POST /api/v1/appeals/:id/withdraw
func (h *Handlers) WithdrawAppeal(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req WithdrawAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	if err := h.appealService.Withdraw(c.Request.Context(), id, req.UserID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"appeal_id": id})
}

// CompleteRework handles POST /api/v1/appeals/:id/complete-rework
func (h *Handlers) CompleteRework(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	if err := h.appealService.CompleteRework(c.Request.Context(), id, req.Actor); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"appeal_id": id})
}

// SubmitFeedbackRequest carries citizen feedback on a resolution
type SubmitFeedbackRequest struct {
	UserID            int64  `json:"user_id" binding:"required"`
	Rating            int    `json:"rating" binding:"required"`
	SatisfactionLevel string `json:"satisfaction_level" binding:"required"`
	Comment           string `json:"comment"`
	IssueResolved     bool   `json:"issue_resolved"`
	WorkQualityOK     bool   `json:"work_quality_ok"`
	RequiresFollowup  bool   `json:"requires_followup"`
}

// SubmitFeedback handles POST /api/v1/reports/:id/feedback
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	fb := &entity.Feedback{
		ReportID:          id,
		SubmittedByUserID: req.UserID,
		Rating:            req.Rating,
		SatisfactionLevel: req.SatisfactionLevel,
		Comment:           req.Comment,
		IssueResolved:     req.IssueResolved,
		WorkQualityOK:     req.WorkQualityOK,
		RequiresFollowup:  req.RequiresFollowup,
	}
	if err := h.feedbackService.Submit(c.Request.Context(), fb); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, fb)
}

// GetFeedback handles GET /api/v1/reports/:id/feedback
func (h *Handlers) GetFeedback(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	fb, err := h.feedbackService.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, fb)
}
