package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

// respondDomainError maps the failure class to a status. Only validation
// messages reach the client verbatim.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entities.ErrValidation):
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, entities.ErrExtraction):
		respondError(c, http.StatusUnprocessableEntity, "extraction_failed", "document could not be processed")
	case errors.Is(err, entities.ErrGeneration):
		respondError(c, http.StatusBadGateway, "generation_failed", "language model backend unavailable")
	case errors.Is(err, entities.ErrStore):
		respondError(c, http.StatusInternalServerError, "store_failed", "document store unavailable")
	default:
		respondError(c, http.StatusInternalServerError, "internal", "internal error")
	}
	_ = c.Error(err)
}
