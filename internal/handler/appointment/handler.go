package appointment

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/middleware"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/lifecycle"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/sweep"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/verification"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/httputil"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

type Handler struct {
	lifecycle *lifecycle.Service
	verifier  *verification.Service
	sweeper   *sweep.Service
}

func NewHandler(lc *lifecycle.Service, verifier *verification.Service, sweeper *sweep.Service) *Handler {
	return &Handler{lifecycle: lc, verifier: verifier, sweeper: sweeper}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("/:id", h.GetAppointment)
		appointments.GET("/:id/logs", h.ListLogs)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/check-in", h.CheckInAppointment)
		appointments.POST("/:id/check-in/priority", h.CheckInWithPriority)
		appointments.POST("/:id/complete", h.CompleteAppointment)
		appointments.GET("/sweep/pending", h.SweepPending)
		appointments.POST("/sweep", h.RunSweep)
	}
}

func appointmentID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequest("invalid appointment ID", err)
	}
	return id, nil
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := appointmentID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appointment, err := h.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", appointment)
}

func (h *Handler) ListLogs(c *gin.Context) {
	id, err := appointmentID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	logs, err := h.lifecycle.Logs(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", logs)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := appointmentID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	appointment, err := h.lifecycle.Cancel(c.Request.Context(), middleware.PrincipalFrom(c), id, lifecycle.CancelInput{
		Reason:      req.CancelReason,
		OtherReason: req.OtherReason,
		Password:    req.EmployeePassword,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment cancelled successfully", appointment)
}

// CheckInAppointment is the legacy check-in path: identity is operator
// attested and the patient is admitted at the normal priority tier.
func (h *Handler) CheckInAppointment(c *gin.Context) {
	id, err := appointmentID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.lifecycle.CheckIn(c.Request.Context(), middleware.PrincipalFrom(c), id, lifecycle.CheckInOptions{
		Priority: model.PriorityInputStandard,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Patient checked in successfully", model.CheckInResponse{
		Message:          "Patient checked in successfully",
		VisitID:          result.Visit.ID,
		QueueEntryID:     result.QueueEntry.ID,
		AttendanceStatus: string(result.Attendance),
	})
}

// CheckInWithPriority is the verification-gated path: the request must carry
// a QR token or a manually entered verification code, and the operator picks
// the priority tier and special categories.
func (h *Handler) CheckInWithPriority(c *gin.Context) {
	id, err := appointmentID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.PriorityCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	var verified *verification.Result
	switch {
	case req.QRToken != "":
		verified, err = h.verifier.VerifyQRToken(c.Request.Context(), id, req.QRToken)
	case req.VerificationCode != "":
		verified, err = h.verifier.VerifyCode(c.Request.Context(), id, req.VerificationCode)
	default:
		err = apperrors.BadRequest("a QR token or verification code is required", nil)
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	categories := make([]model.SpecialCategory, 0, len(req.SpecialCategories))
	for _, raw := range req.SpecialCategories {
		category, err := model.ParseSpecialCategory(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
			return
		}
		categories = append(categories, category)
	}

	result, err := h.lifecycle.CheckIn(c.Request.Context(), middleware.PrincipalFrom(c), id, lifecycle.CheckInOptions{
		Verified:          verified,
		Priority:          model.PriorityInput(req.Priority),
		SpecialCategories: categories,
		Notes:             req.Notes,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	message := fmt.Sprintf("Patient checked in successfully. Queue number: %s", result.QueueEntry.QueueNumber())
	httputil.RespondWithSuccess(c, message, model.CheckInResponse{
		Message:          message,
		VisitID:          result.Visit.ID,
		QueueEntryID:     result.QueueEntry.ID,
		QueueNumber:      result.QueueEntry.QueueNumber(),
		AttendanceStatus: string(result.Attendance),
	})
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, err := appointmentID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appointment, err := h.lifecycle.Complete(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment completed successfully", appointment)
}

// SweepPending reports how many late appointments would be cancelled by a
// sweep run right now.
func (h *Handler) SweepPending(c *gin.Context) {
	count, err := h.sweeper.PendingCount(c.Request.Context(), timeNow())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, fmt.Sprintf("%d late appointments detected", count), gin.H{
		"pending_count": count,
	})
}

func (h *Handler) RunSweep(c *gin.Context) {
	result, err := h.sweeper.Run(c.Request.Context(), timeNow())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, fmt.Sprintf("%d appointments cancelled", result.CancelledCount), result)
}
