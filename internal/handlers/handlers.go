package handlers

import (
	apperrors "ticketera/internal/errors"
	"ticketera/internal/logger"
	"ticketera/internal/models"
	"ticketera/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// respondError отдает ошибку в виде {"error", "code"} со статусом ее вида
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	log := logger.WithContext(c.Request.Context())
	if status >= 500 && apperrors.KindOf(err) == nil {
		log.Error("Request failed", "error", err)
		_ = c.Error(err)
	} else {
		log.Info("Request refused", "code", apperrors.Code(err), "error", err)
	}

	c.JSON(status, models.ErrorResponse{
		Error:     apperrors.Message(err),
		Code:      apperrors.Code(err),
		Retryable: apperrors.Retryable(err),
	})
}

// bindJSON разбирает тело запроса; ошибка разбора отдается как INVALID_REQUEST
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, apperrors.Wrap(apperrors.ErrInvalidRequest, "Solicitud inválida: "+err.Error(), err))
		return false
	}
	return true
}
