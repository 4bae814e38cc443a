package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edinai/classhub/internal/hub"
	"github.com/edinai/classhub/internal/models"
)

type LectureStore struct {
	pool *pgxpool.Pool
}

func NewLectureStore(pool *pgxpool.Pool) *LectureStore {
	return &LectureStore{pool: pool}
}

func (s *LectureStore) Lecture(ctx context.Context, lectureID string) (*models.Lecture, error) {
	id, err := uuid.Parse(lectureID)
	if err != nil {
		// Malformed ids behave like missing ones; the hub maps both to
		// the same "Lecture not found" reply.
		return nil, fmt.Errorf("lecture id %q: %w", lectureID, hub.ErrNotFound)
	}

	query := `
		SELECT id, title, COALESCE(language, 'English'), COALESCE(context, ''), created_at
		FROM lectures
		WHERE id = $1`

	var lecture models.Lecture
	err = s.pool.QueryRow(ctx, query, id).Scan(
		&lecture.ID,
		&lecture.Title,
		&lecture.Language,
		&lecture.Context,
		&lecture.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lecture %s: %w", lectureID, hub.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query lecture: %w", err)
	}
	return &lecture, nil
}

func (s *LectureStore) SaveInteraction(ctx context.Context, lectureID, question, answer, audioURL, language string) error {
	id, err := uuid.Parse(lectureID)
	if err != nil {
		return fmt.Errorf("lecture id %q: %w", lectureID, hub.ErrNotFound)
	}

	query := `
		INSERT INTO lecture_interactions (lecture_id, question, answer, audio_url, language, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), now())`

	if _, err := s.pool.Exec(ctx, query, id, question, answer, audioURL, language); err != nil {
		return fmt.Errorf("insert lecture interaction: %w", err)
	}
	return nil
}
