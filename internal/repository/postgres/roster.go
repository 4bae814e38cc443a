package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edinai/classhub/internal/hub"
	"github.com/edinai/classhub/internal/models"
)

type RosterStore struct {
	pool *pgxpool.Pool
}

func NewRosterStore(pool *pgxpool.Pool) *RosterStore {
	return &RosterStore{pool: pool}
}

func (s *RosterStore) RosterContext(ctx context.Context, identity string) (models.RosterContext, error) {
	query := `
		SELECT admin_id, grade, COALESCE(section, '')
		FROM students
		WHERE lower(identity) = lower($1)`

	var rc models.RosterContext
	err := s.pool.QueryRow(ctx, query, identity).Scan(
		&rc.TenantID,
		&rc.Grade,
		&rc.Section,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RosterContext{}, fmt.Errorf("roster context for %s: %w", identity, hub.ErrNotFound)
	}
	if err != nil {
		return models.RosterContext{}, fmt.Errorf("query roster context: %w", err)
	}
	return rc, nil
}

// Classmate fetches the peer's roster context and checks it against
// the caller's. A missing peer and a peer in another scope both come
// back as forbidden so the response never reveals which it was.
func (s *RosterStore) Classmate(ctx context.Context, caller models.RosterContext, peerIdentity string) (models.RosterContext, error) {
	peerCtx, err := s.RosterContext(ctx, peerIdentity)
	if errors.Is(err, hub.ErrNotFound) {
		return models.RosterContext{}, fmt.Errorf("peer scope: %w", hub.ErrForbidden)
	}
	if err != nil {
		return models.RosterContext{}, err
	}

	if peerCtx.TenantID != caller.TenantID ||
		!strings.EqualFold(peerCtx.Grade, caller.Grade) ||
		!strings.EqualFold(peerCtx.Section, caller.Section) {
		return models.RosterContext{}, fmt.Errorf("peer scope: %w", hub.ErrForbidden)
	}
	return peerCtx, nil
}
