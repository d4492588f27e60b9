package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyai-backend/internal/middleware"
	"studyai-backend/internal/models"
)

type StudySetHandler struct {
	sets studySetRepository
}

func NewStudySetHandler(sets studySetRepository) *StudySetHandler {
	return &StudySetHandler{sets: sets}
}

func (h *StudySetHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetOwner(r.Context())
	limit, offset := parsePagination(r)

	sets, total, err := h.sets.ListByOwner(r.Context(), owner, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"study_sets": sets,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

func (h *StudySetHandler) Get(w http.ResponseWriter, r *http.Request) {
	set, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *StudySetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	set, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := h.sets.Delete(r.Context(), set.ID, set.Owner); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadOwned fetches the set named in the URL and checks that the caller owns it.
func (h *StudySetHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.StudySet, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid study set ID", r))
		return nil, false
	}

	set, err := h.sets.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}

	if set.Owner != middleware.GetOwner(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "You do not have access to this study set", r))
		return nil, false
	}
	return set, true
}
