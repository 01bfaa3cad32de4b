package handlers

import (
	"net/http"

	"ticketera/internal/models"

	"github.com/gin-gonic/gin"
)

// Events handlers

// ListEvents - GET /api/events
// Получить события, назначенные валидатору
func (h *Handlers) ListEvents(c *gin.Context) {
	events, err := h.services.Events.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}

	c.JSON(http.StatusOK, events)
}

// SelectedEvent - GET /api/events/selected
// Событие, для которого сейчас идет валидация
func (h *Handlers) SelectedEvent(c *gin.Context) {
	event, err := h.services.Events.Selected(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// SelectEvent - PUT /api/events/selected
// Выбрать событие для валидации
func (h *Handlers) SelectEvent(c *gin.Context) {
	var req models.SelectEventBody
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.services.Events.Select(c.Request.Context(), req.EventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}
