package handlers

import (
	"net/http"

	"ticketera/internal/models"

	"github.com/gin-gonic/gin"
)

// Login - POST /api/auth/login
// Войти валидатором и сохранить сессию на устройстве
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginBody
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.services.Auth.Login(c.Request.Context(), req.Email, req.Password, req.RememberMe.Bool())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Logout - POST /api/auth/logout
// Удалить сохраненную сессию и текущую продажу
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.services.Auth.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Me - GET /api/auth/me
// Профиль вошедшего валидатора
func (h *Handlers) Me(c *gin.Context) {
	profile, err := h.services.Auth.Profile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":    profile,
		"rememberMe": h.services.Auth.RememberMe(c.Request.Context()),
	})
}
