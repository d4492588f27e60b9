package models

import (
	"time"

	"github.com/google/uuid"
)

// StudyMaterials is the validated result of one generation request.
type StudyMaterials struct {
	Summary     string      `json:"summary" yaml:"summary"`
	KeyConcepts []string    `json:"keyConcepts" yaml:"key_concepts"`
	Flashcards  []Flashcard `json:"flashcards" yaml:"flashcards"`
}

type Flashcard struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

type StudySet struct {
	ID        uuid.UUID      `json:"id"`
	Owner     string         `json:"owner"`
	Title     string         `json:"title"`
	Materials StudyMaterials `json:"materials"`
	CreatedAt time.Time      `json:"created_at"`
}

type ExtractTextRequest struct {
	FileDataURI string `json:"file_data_uri"`
}

type ExtractTextResponse struct {
	Text   string `json:"text" yaml:"text"`
	Format string `json:"format" yaml:"format"`
}

type GenerateStudyMaterialsRequest struct {
	Content string `json:"content"`
	Save    bool   `json:"save"`
	Title   string `json:"title"`
}

type GenerateStudyMaterialsResponse struct {
	StudyMaterials
	StudySetID *uuid.UUID `json:"study_set_id,omitempty"`
}

type ExtractConceptsRequest struct {
	Content string `json:"content"`
}

type ExtractConceptsResponse struct {
	KeyConcepts []string `json:"keyConcepts" yaml:"key_concepts"`
}

type SupportedFormat struct {
	Extension   string `json:"extension"`
	MimeType    string `json:"mime_type"`
	Description string `json:"description"`
}
