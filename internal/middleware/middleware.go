package middleware

import (
	"net/http"
	"time"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/logger"
	"ticketera/internal/metrics"
	"ticketera/internal/models"
	"ticketera/internal/storage"

	"github.com/gin-gonic/gin"
)

const requestIDHeader = "X-Request-Id"

// CORS middleware для обработки CORS запросов
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// RequestID присваивает запросу идентификатор и кладет его в контекст логгера
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = logger.NewRequestID()
		}

		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// Logger middleware для структурированного логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		log := logger.WithContext(c.Request.Context())

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if c.Writer.Status() >= 500 {
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			log.Error("Request completed with error", logFields...)
			return
		}
		if c.Writer.Status() >= 400 {
			log.Warn("Request rejected", logFields...)
			return
		}
		log.Debug("Request completed", logFields...)
	}
}

// Recovery middleware для восстановления после паники с детальным логированием
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithContext(c.Request.Context()).Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: "Internal server error",
				Code:  "INTERNAL",
			})
		}
	})
}

// Metrics записывает количество и длительность запросов по маршруту
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// RequireSession пропускает запрос только при сохраненной действующей сессии валидатора
func RequireSession(store *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.IsLoggedIn(c.Request.Context()) {
			err := apperrors.New(apperrors.ErrNotLoggedIn, "Debes iniciar sesión para continuar")
			c.AbortWithStatusJSON(apperrors.HTTPStatus(err), models.ErrorResponse{
				Error: apperrors.Message(err),
				Code:  apperrors.Code(err),
			})
			return
		}

		c.Next()
	}
}
