package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/models"
)

type studyGenerator interface {
	Generate(ctx context.Context, content string) (*models.StudyMaterials, error)
	ExtractConcepts(ctx context.Context, content string) ([]string, error)
}

type studySetRepository interface {
	Create(ctx context.Context, s *models.StudySet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudySet, error)
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*models.StudySet, int, error)
	Delete(ctx context.Context, id uuid.UUID, owner string) error
}

// maxTextBodyBytes bounds JSON bodies carrying raw content.
const maxTextBodyBytes = 8 << 20

type StudyHandler struct {
	generator studyGenerator
	sets      studySetRepository
	log       *logger.Logger
}

// NewStudyHandler takes a nil sets when persistence is not configured.
func NewStudyHandler(generator studyGenerator, sets studySetRepository, log *logger.Logger) *StudyHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &StudyHandler{generator: generator, sets: sets, log: log}
}

func (h *StudyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateStudyMaterialsRequest
	if !decodeJSONBody(w, r, maxTextBodyBytes, &req) {
		return
	}

	if req.Save && h.sets == nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{
			"save": "saving study sets is not enabled on this server",
		}, r))
		return
	}

	materials, err := h.generator.Generate(r.Context(), req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := models.GenerateStudyMaterialsResponse{StudyMaterials: *materials}

	if req.Save {
		set := &models.StudySet{
			Owner:     middleware.GetOwner(r.Context()),
			Title:     studySetTitle(req.Title, materials.Summary),
			Materials: *materials,
		}
		if err := h.sets.Create(r.Context(), set); err != nil {
			h.log.Error("failed to save study set", "owner", set.Owner, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save study set", r))
			return
		}
		resp.StudySetID = &set.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StudyHandler) ExtractConcepts(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractConceptsRequest
	if !decodeJSONBody(w, r, maxTextBodyBytes, &req) {
		return
	}

	concepts, err := h.generator.ExtractConcepts(r.Context(), req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ExtractConceptsResponse{KeyConcepts: concepts})
}

// studySetTitle falls back to the opening of the summary.
func studySetTitle(title, summary string) string {
	title = strings.TrimSpace(title)
	if title != "" {
		return title
	}
	runes := []rune(strings.TrimSpace(summary))
	if len(runes) > 60 {
		return strings.TrimSpace(string(runes[:60])) + "..."
	}
	return string(runes)
}
