package handler

import (
	"net/http"

	"estatebot_backend/internal/booking/service"
	"estatebot_backend/internal/booking/transport"
	"estatebot_backend/platform/httpkit"
	"estatebot_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for bookings
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new bookings handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the booking routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.FindAndBook)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/reschedule", h.Reschedule)
	rg.POST("/:id/cancel", h.Cancel)
}

// FindAndBook handles POST /api/v1/bookings
func (h *Handler) FindAndBook(c *gin.Context) {
	var req transport.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.FindAndBook(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	if result.Success {
		httpkit.JSON(c, http.StatusCreated, result)
		return
	}
	httpkit.OK(c, result)
}

// GetByID handles GET /api/v1/bookings/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.GetAppointment(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Reschedule handles POST /api/v1/bookings/:id/reschedule
func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Reschedule(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Cancel handles POST /api/v1/bookings/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.Cancel(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
