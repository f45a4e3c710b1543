package verification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/verification"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/httputil"
)

type Handler struct {
	verifier *verification.Service
}

func NewHandler(verifier *verification.Service) *Handler {
	return &Handler{verifier: verifier}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("/:id/verify-qr", h.VerifyQRToken)
		appointments.POST("/:id/verify-code", h.VerifyCode)
	}
}

type qrRequest struct {
	QRToken string `json:"qr_token" binding:"required"`
}

type codeRequest struct {
	VerificationCode string `json:"verification_code" binding:"required"`
}

// respond renders the verifier's {success, message} contract. Rejections are
// 200s with success=false so kiosks can show the reason inline; only lookup
// and infrastructure errors surface as HTTP errors.
func respond(c *gin.Context, result *verification.Result, err error) {
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrVerification) {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
			return
		}
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "identity verified", "data": result})
}

func (h *Handler) VerifyQRToken(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	var req qrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	result, err := h.verifier.VerifyQRToken(c.Request.Context(), id, req.QRToken)
	respond(c, result, err)
}

func (h *Handler) VerifyCode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	result, err := h.verifier.VerifyCode(c.Request.Context(), id, req.VerificationCode)
	respond(c, result, err)
}
