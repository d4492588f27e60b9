package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"studyai-backend/internal/middleware"
	"studyai-backend/internal/models"
	"studyai-backend/internal/repository"
	"studyai-backend/internal/services"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

// handleServiceError maps the extraction and generation error classes onto
// status codes. ErrEmptyContent and ErrContentTooLong are checked before the
// generic GenerationError case since they are caller mistakes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unsupported *services.UnsupportedFormatError
		extraction  *services.ExtractionError
		generation  *services.GenerationError
		tooLarge    *http.MaxBytesError
	)

	switch {
	case errors.Is(err, services.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{
			"content": "content is empty",
		}, r))
	case errors.Is(err, services.ErrContentTooLong):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{
			"content": generationReason(err),
		}, r))
	case errors.Is(err, services.ErrMalformedEnvelope):
		writeJSON(w, http.StatusBadRequest, errorResp("MALFORMED_ENVELOPE", err.Error(), r))
	case errors.As(err, &unsupported):
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", fmt.Sprintf("Unsupported file type: %s", unsupported.Tag), r))
	case errors.As(err, &extraction):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EXTRACTION_FAILED", fmt.Sprintf("Could not extract text: %s", extraction.Reason), r))
	case errors.As(err, &generation):
		writeJSON(w, http.StatusBadGateway, errorResp("GENERATION_FAILED", fmt.Sprintf("Failed to generate study materials: %s", generation.Reason), r))
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("PAYLOAD_TOO_LARGE", fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), r))
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study set not found", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

func generationReason(err error) string {
	var generation *services.GenerationError
	if errors.As(err, &generation) {
		return generation.Reason
	}
	return err.Error()
}

// decodeJSONBody rejects unknown shapes with VALIDATION_ERROR and oversized
// bodies with PAYLOAD_TOO_LARGE. It reports whether the handler should go on.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleServiceError(w, r, err)
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return false
	}
	return true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
