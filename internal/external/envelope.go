package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/models"
)

const (
	timeoutMessage = "Connection timeout - Please check your internet connection"
	networkMessage = "Network error - Please check your internet connection"
	sessionMessage = "Sesión expirada. Por favor, inicia sesión nuevamente."
)

// Envelope codes the backend uses for a validator not assigned to the event.
var permissionCodes = map[string]bool{
	"EVENT_PERMISSION_DENIED": true,
	"VALIDATOR_NOT_ASSIGNED":  true,
	"FORBIDDEN_EVENT":         true,
}

// Last resort when the backend sends neither a code nor a 403. Only event-scoped
// wording counts; a bare "permiso" also shows up in invalid-token messages.
var permissionPhrases = []string{
	"no autorizado para este evento",
	"no asignado a este evento",
	"permiso para este evento",
	"permiso para validar este evento",
	"not assigned to this event",
	"permission for this event",
	"not authorized for this event",
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.Wrap(apperrors.ErrTimeout, timeoutMessage, err)
	}
	return apperrors.Wrap(apperrors.ErrNetwork, networkMessage, err)
}

func decodeEnvelope(statusCode int, raw []byte) (*models.APIResponse, error) {
	var env models.APIResponse
	decodeErr := json.Unmarshal(raw, &env)

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return nil, authError(statusCode, &env)
	}

	if statusCode < 200 || statusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP Error %d", statusCode)
		}
		return nil, apperrors.FromResponse(apperrors.ErrRejected, statusCode, msg)
	}

	if decodeErr != nil {
		return nil, &apperrors.Error{
			Kind:       apperrors.ErrRejected,
			Message:    "Respuesta inválida del servidor",
			StatusCode: statusCode,
			Err:        decodeErr,
		}
	}

	if !env.Succeeded() {
		msg := env.Message
		if msg == "" {
			msg = "La operación no fue aceptada por el servidor"
		}
		return nil, apperrors.FromResponse(apperrors.ErrRejected, statusCode, msg)
	}

	return &env, nil
}

// authError tells an invalid token apart from a validator lacking access to the event.
func authError(statusCode int, env *models.APIResponse) error {
	msg := env.Message

	if isPermissionDenied(statusCode, env) {
		if msg == "" {
			msg = "No tienes permiso para validar este evento"
		}
		return apperrors.FromResponse(apperrors.ErrEventPermission, statusCode, msg)
	}

	if msg == "" {
		msg = sessionMessage
	}
	return apperrors.FromResponse(apperrors.ErrAuthentication, statusCode, msg)
}

func isPermissionDenied(statusCode int, env *models.APIResponse) bool {
	if env.Code != "" {
		return permissionCodes[strings.ToUpper(env.Code)]
	}
	if statusCode == http.StatusForbidden {
		return true
	}

	lower := strings.ToLower(env.Message)
	for _, phrase := range permissionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
