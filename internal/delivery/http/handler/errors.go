package handler

import (
	"errors"
	"net/http"

	"github.com/Pesokrava/review_engine/internal/delivery/http/response"
	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
)

// writeServiceError maps service layer errors to HTTP responses.
// notFound is the message returned for domain.ErrNotFound.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, notFound string) {
	var verr *domain.ValidationError

	switch {
	case errors.As(err, &verr):
		response.ValidationError(w, verr.Fields)
	case errors.Is(err, domain.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, domain.ErrNotFound):
		response.Error(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrForbidden):
		response.Error(w, http.StatusForbidden, "Operation not permitted")
	case errors.Is(err, domain.ErrAlreadyExists):
		response.Error(w, http.StatusConflict, "You have already reviewed this product")
	case errors.Is(err, domain.ErrConflict):
		response.Error(w, http.StatusConflict, "Conflict - resource was modified by another request")
	default:
		log.Error("Internal error in HTTP handler", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
