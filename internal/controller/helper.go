package controller

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/pkg/rest"
	"github.com/sharetube/watchroom/pkg/validator"
)

const (
	headerPrefix    = "St-"
	guestIdHeader   = "Guest-Id"
	requestIdHeader = "Request-Id"
)

var guestIdRe = regexp.MustCompile(`^guest_[0-9A-Za-z]{8,64}$`)

func (c controller) mustHeader(r *http.Request, key string) (string, error) {
	value := r.Header.Get(headerPrefix + key)
	if value == "" {
		return "", fmt.Errorf("%s was not provided", key)
	}

	return value, nil
}

var codeStatuses = map[string]int{
	domain.CodeKicked:              http.StatusForbidden,
	domain.CodePermissionDenied:    http.StatusForbidden,
	domain.CodeOwnerNotKickable:    http.StatusConflict,
	domain.CodeParticipantOffline:  http.StatusConflict,
	domain.CodeRoomNotFound:        http.StatusNotFound,
	domain.CodeParticipantNotFound: http.StatusNotFound,
	domain.CodeUnauthenticated:     http.StatusUnauthorized,
	domain.CodeUnsupportedMedia:    http.StatusBadRequest,
	domain.CodeValidation:          http.StatusBadRequest,
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status, ok := codeStatuses[code]
	if !ok {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{
			"error": "internal server error",
			"code":  domain.CodeInternal,
		})
		return
	}

	c.logger.InfoContext(r.Context(), "request rejected", "code", code, "error", err)
	rest.WriteJSON(w, status, rest.Envelope{
		"error": err.Error(),
		"code":  code,
	})
}

func (c controller) writeValidationErrors(w http.ResponseWriter, r *http.Request, validationErrors []validator.ValidationError) {
	c.logger.InfoContext(r.Context(), "validation failed", "errors", validationErrors)
	rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{
		"error":  "validation failed",
		"code":   domain.CodeValidation,
		"errors": validationErrors,
	})
}

// readAndValidate decodes the body into dst and runs struct validation. It
// writes the error response itself and reports whether the handler may go on.
func (c controller) readAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.writeValidationErrors(w, r, validationErrors)
		return false
	}

	return true
}
