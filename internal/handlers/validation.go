package handlers

import (
	"net/http"

	"ticketera/internal/models"

	"github.com/gin-gonic/gin"
)

// Validation handlers

// Scan - POST /api/validation/scan
// Разобрать QR-код и открыть продажу
func (h *Handlers) Scan(c *gin.Context) {
	var req models.ScanBody
	if !bindJSON(c, &req) {
		return
	}

	state, err := h.services.Scans.Scan(c.Request.Context(), req.QR)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// CurrentSale - GET /api/validation
// Текущая продажа, остатки и сводка
func (h *Handlers) CurrentSale(c *gin.Context) {
	state, err := h.services.Flow.State()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// ClearSale - DELETE /api/validation
// Закрыть текущую продажу
func (h *Handlers) ClearSale(c *gin.Context) {
	h.services.Scans.Clear()
	c.Status(http.StatusNoContent)
}

// RefreshSale - POST /api/validation/refresh
// Перечитать продажу с сервера
func (h *Handlers) RefreshSale(c *gin.Context) {
	state, err := h.services.Scans.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// CheckIn - POST /api/validation/checkin
// Отметить вход участников
func (h *Handlers) CheckIn(c *gin.Context) {
	var req models.CheckInBody
	if !bindJSON(c, &req) {
		return
	}

	outcome, err := h.services.Reconciler.CheckIn(c.Request.Context(), req.AttendeeIndexes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// RedeemProducts - POST /api/validation/products/redeem
// Выдать еду и напитки
func (h *Handlers) RedeemProducts(c *gin.Context) {
	var req models.RedeemBody
	if !bindJSON(c, &req) {
		return
	}

	outcome, err := h.services.Reconciler.RedeemProducts(c.Request.Context(), req.Redemptions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// RedeemActivities - POST /api/validation/activities/redeem
// Погасить активности
func (h *Handlers) RedeemActivities(c *gin.Context) {
	var req models.RedeemBody
	if !bindJSON(c, &req) {
		return
	}

	outcome, err := h.services.Reconciler.RedeemActivities(c.Request.Context(), req.Redemptions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}
