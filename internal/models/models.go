package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RosterContext is the tenant/grade/section tuple attached to every
// authenticated portal identity. It is resolved once at handshake time
// and is the sole input to room derivation and scope validation.
type RosterContext struct {
	TenantID int64  `json:"tenant_id"`
	Grade    string `json:"grade"`
	Section  string `json:"section"`
}

// Student is one roster entry within a tenant. Identity is the
// enrollment number, unique per tenant, and is the key presence and
// personal rooms are derived from.
type Student struct {
	ID        uuid.UUID `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Identity  string    `json:"identity"`
	FullName  string    `json:"full_name"`
	Grade     string    `json:"grade"`
	Section   string    `json:"section"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a staff account (admin or member) that may attach to the
// lecture channel and the REST surface.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatMessage is a persisted 1:1 message between two identities in the
// same tenant. ShareMetadata carries opaque attachment/share context
// the hub relays without interpreting.
//
// Messages use bigserial: highest-volume table, and the monotonic ID
// doubles as the pagination cursor.
type ChatMessage struct {
	ID            int64           `json:"id"`
	TenantID      int64           `json:"tenant_id"`
	Sender        string          `json:"sender"`
	Recipient     string          `json:"recipient"`
	Body          string          `json:"body"`
	ShareMetadata json.RawMessage `json:"share_metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Lecture is a generated lecture record. Context is the narration text
// the Q&A collaborator answers against; Language drives prompt
// localization and speech synthesis.
type Lecture struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	Context   string    `json:"context"`
	CreatedAt time.Time `json:"created_at"`
}

// LectureInteraction is one Q&A exchange on a lecture, persisted after
// the reply has been served.
type LectureInteraction struct {
	ID        int64     `json:"id"`
	LectureID uuid.UUID `json:"lecture_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
