package laborder

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/laborder"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/httputil"
)

type Handler struct {
	service *laborder.Service
}

func NewHandler(service *laborder.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/lab-orders")
	{
		orders.POST("/:id/items/:item_id/complete", h.CompleteItem)
	}
}

// CompleteItem marks a test item done and rolls the parent order's overall
// status up in the same transaction.
func (h *Handler) CompleteItem(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid lab order ID", err))
		return
	}

	itemID, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid lab order item ID", err))
		return
	}

	order, err := h.service.CompleteItem(c.Request.Context(), orderID, itemID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Lab order item completed", order)
}
