package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyai-backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type StudySetRepo struct {
	pool *pgxpool.Pool
}

func NewStudySetRepo(pool *pgxpool.Pool) *StudySetRepo {
	return &StudySetRepo{pool: pool}
}

func (r *StudySetRepo) Create(ctx context.Context, s *models.StudySet) error {
	s.ID = uuid.New()
	conceptsJSON, err := json.Marshal(s.Materials.KeyConcepts)
	if err != nil {
		return fmt.Errorf("encode key concepts: %w", err)
	}
	flashcardsJSON, err := json.Marshal(s.Materials.Flashcards)
	if err != nil {
		return fmt.Errorf("encode flashcards: %w", err)
	}

	query := `INSERT INTO study_sets (id, owner, title, summary, key_concepts, flashcards)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.Owner, s.Title, s.Materials.Summary, conceptsJSON, flashcardsJSON,
	).Scan(&s.CreatedAt)
}

func (r *StudySetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySet, error) {
	query := `SELECT id, owner, title, summary, key_concepts, flashcards, created_at
		FROM study_sets WHERE id = $1`

	s, err := scanStudySet(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *StudySetRepo) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*models.StudySet, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM study_sets WHERE owner = $1", owner).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, owner, title, summary, key_concepts, flashcards, created_at
		FROM study_sets WHERE owner = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, owner, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sets := []*models.StudySet{}
	for rows.Next() {
		s, err := scanStudySet(rows)
		if err != nil {
			return nil, 0, err
		}
		sets = append(sets, s)
	}
	return sets, total, rows.Err()
}

// Delete removes the set only when owner matches.
func (r *StudySetRepo) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM study_sets WHERE id = $1 AND owner = $2", id, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanStudySet(row pgx.Row) (*models.StudySet, error) {
	s := &models.StudySet{}
	var conceptsJSON, flashcardsJSON []byte
	if err := row.Scan(&s.ID, &s.Owner, &s.Title, &s.Materials.Summary, &conceptsJSON, &flashcardsJSON, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conceptsJSON, &s.Materials.KeyConcepts); err != nil {
		return nil, fmt.Errorf("decode key concepts: %w", err)
	}
	if err := json.Unmarshal(flashcardsJSON, &s.Materials.Flashcards); err != nil {
		return nil, fmt.Errorf("decode flashcards: %w", err)
	}
	return s, nil
}
