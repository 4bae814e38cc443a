package repository

import (
	"context"
	"encoding/json"

	"github.com/edinai/classhub/internal/models"
)

// Every method takes ctx first: all of these hit the network, and a
// cancelled socket handler should cancel its queries too. Tenant
// scoping is enforced at the query level — the stores never trust the
// caller to have filtered.

// RosterRepository resolves roster context and validates peer scope.
// The postgres implementation doubles as the hub's RosterService.
type RosterRepository interface {
	// RosterContext returns the tenant/grade/section tuple for an
	// identity. Missing identities are a not-found failure — at
	// handshake time that refuses the connection.
	RosterContext(ctx context.Context, identity string) (models.RosterContext, error)

	// Classmate validates that peerIdentity shares the caller's
	// tenant, grade and section, and returns the peer's context.
	// Any mismatch or absence is a forbidden failure; the two cases
	// are deliberately indistinguishable to the caller.
	Classmate(ctx context.Context, caller models.RosterContext, peerIdentity string) (models.RosterContext, error)
}

// ChatRepository persists and lists 1:1 chat messages.
type ChatRepository interface {
	// SaveMessage inserts the durable record and returns it with ID
	// and CreatedAt populated. Called before any broadcast.
	SaveMessage(ctx context.Context, tenantID int64, sender, recipient, body string, shareMetadata json.RawMessage) (*models.ChatMessage, error)

	// ListThread returns messages between two identities, newest
	// first, cursor-paginated on message ID (before=0 means latest).
	ListThread(ctx context.Context, tenantID int64, a, b string, before int64, limit int) ([]models.ChatMessage, error)
}

// LectureRepository loads lecture records and stores Q&A interactions.
type LectureRepository interface {
	// Lecture returns a lecture by its opaque string id. Missing or
	// malformed ids are a not-found failure.
	Lecture(ctx context.Context, lectureID string) (*models.Lecture, error)

	// SaveInteraction records one Q&A exchange after the reply was
	// served. Failures are the caller's to log and swallow.
	SaveInteraction(ctx context.Context, lectureID, question, answer, audioURL, language string) error
}

// UserRepository handles staff accounts for login.
type UserRepository interface {
	// GetByEmail returns nil, nil when no such user exists.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
