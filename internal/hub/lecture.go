package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/edinai/classhub/internal/metrics"
	"github.com/edinai/classhub/internal/models"
)

// Lecture channel wire events.
const (
	EventPausePrompt = "pause_prompt"
	EventLectureChat = "chat"
	EventPrompt      = "prompt"
	EventReply       = "reply"
	EventError       = "error"
)

// LectureSession is the session shape of the lecture channel.
type LectureSession struct {
	Role   string
	UserID string
}

// RoleIdentity is what a staff token resolves to.
type RoleIdentity struct {
	Role   string
	UserID string
}

// StaffAuthenticator resolves a staff token into a role identity.
type StaffAuthenticator interface {
	ResolveRole(token string) (RoleIdentity, error)
}

// LectureService loads lecture records and persists Q&A interactions.
// Lecture returns ErrNotFound (wrapped or not) for missing records.
type LectureService interface {
	Lecture(ctx context.Context, lectureID string) (*models.Lecture, error)
	SaveInteraction(ctx context.Context, lectureID, question, answer, audioURL, language string) error
}

// AnswerService generates an answer for a question against a lecture's
// stored context. Failures map to ErrUnavailable.
type AnswerService interface {
	Answer(ctx context.Context, question, lectureContext, language, answerType string) (*models.QAAnswer, error)
}

// SpeechService synthesizes speech for a text. It fails silently: an
// empty URL means no audio, never an aborted request.
type SpeechService interface {
	Synthesize(ctx context.Context, text, language string) (string, error)
}

type pausePromptPayload struct {
	LectureID string `json:"lecture_id"`
}

type promptReply struct {
	LectureID string `json:"lecture_id"`
	Message   string `json:"message"`
	Language  string `json:"language"`
	AudioURL  string `json:"audio_url,omitempty"`
}

type lectureChatPayload struct {
	LectureID  string `json:"lecture_id"`
	Question   string `json:"question"`
	AnswerType string `json:"answer_type,omitempty"`
}

type lectureReply struct {
	LectureID   string `json:"lecture_id"`
	Answer      string `json:"answer,omitempty"`
	DisplayText string `json:"display_text,omitempty"`
	Message     string `json:"message,omitempty"`
	Content     string `json:"content,omitempty"`
	Language    string `json:"language,omitempty"`
	AudioURL    string `json:"audio_url,omitempty"`
}

type lectureError struct {
	Error     string `json:"error"`
	LectureID string `json:"lecture_id,omitempty"`
}

// Localized pause prompts, keyed by normalized language. Unrecognized
// languages fall back to english.
var pausePrompts = map[string]string{
	"english":  "Please get ready to continue. Let me know when you want to resume.",
	"hindi":    "कृपया आगे बढ़ने के लिए तैयार हों। क्या आप अगले भाग के लिए तैयार हैं?",
	"gujarati": "મહેરબાની કરીને આગળનો ભાગ શરૂ કરવા તૈયાર રહો. શું તમે તૈયાર છો?",
}

func pausePromptMessage(language string) string {
	normalized := strings.ToLower(strings.TrimSpace(language))
	if msg, ok := pausePrompts[normalized]; ok {
		return msg
	}
	return pausePrompts["english"]
}

// LectureHub is the event dispatcher for the lecture Q&A channel. It
// is fully isolated from the portal channel: separate registry,
// separate session shape, request/response-shaped replies addressed
// only to the requesting connection.
type LectureHub struct {
	registry *Registry[LectureSession]
	auth     StaffAuthenticator
	lectures LectureService
	qa       AnswerService
	speech   SpeechService
	logger   *zap.Logger
}

func NewLectureHub(auth StaffAuthenticator, lectures LectureService, qa AnswerService, speech SpeechService, logger *zap.Logger) *LectureHub {
	return &LectureHub{
		registry: NewRegistry[LectureSession](),
		auth:     auth,
		lectures: lectures,
		qa:       qa,
		speech:   speech,
		logger:   logger,
	}
}

// Connect performs the lecture-channel handshake. Only admin and
// member roles may attach; anything else refuses the connection.
func (h *LectureHub) Connect(ctx context.Context, conn Conn, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	identity, err := h.auth.ResolveRole(token)
	if err != nil {
		h.logger.Warn("lecture handshake failed", zap.Error(err))
		return ErrUnauthorized
	}
	if identity.Role != "admin" && identity.Role != "member" {
		h.logger.Warn("lecture handshake refused",
			zap.String("role", identity.Role),
			zap.String("user_id", identity.UserID),
		)
		return ErrForbidden
	}

	h.registry.Register(conn, LectureSession{Role: identity.Role, UserID: identity.UserID})
	metrics.Connections.WithLabelValues("lecture").Inc()
	h.logger.Info("lecture connection established",
		zap.String("role", identity.Role),
		zap.String("user_id", identity.UserID),
		zap.String("conn_id", conn.ID()),
	)
	return nil
}

func (h *LectureHub) Disconnect(connID string) {
	if session, ok := h.registry.Unregister(connID); ok {
		metrics.Connections.WithLabelValues("lecture").Dec()
		h.logger.Info("lecture connection closed",
			zap.String("user_id", session.UserID),
			zap.String("conn_id", connID),
		)
	}
}

// Dispatch routes one inbound lecture event. A handler fault is
// converted to a generic error reply rather than crashing the loop.
func (h *LectureHub) Dispatch(ctx context.Context, connID, event string, data json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("lecture handler panic",
				zap.String("event", event),
				zap.Any("panic", rec),
			)
			if event == EventLectureChat {
				h.registry.Emit(connID, EventError, lectureError{Error: "Unable to process request"})
			}
		}
	}()

	metrics.EventsTotal.WithLabelValues("lecture", event).Inc()

	switch event {
	case EventPausePrompt:
		h.handlePausePrompt(ctx, connID, data)
	case EventLectureChat:
		h.handleChat(ctx, connID, data)
	default:
		metrics.EventsDropped.WithLabelValues("lecture", event).Inc()
		h.logger.Debug("lecture event dropped", zap.String("event", event))
	}
}

// ConnectionCount reports live connections for diagnostics.
func (h *LectureHub) ConnectionCount() int {
	return h.registry.Size()
}

// handlePausePrompt is advisory and fire-and-forget: every failure is
// logged and no reply is sent.
func (h *LectureHub) handlePausePrompt(ctx context.Context, connID string, data json.RawMessage) {
	if _, ok := h.registry.Lookup(connID); !ok {
		return
	}

	var payload pausePromptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Debug("pause prompt payload malformed", zap.Error(err))
		return
	}
	lectureID := strings.TrimSpace(payload.LectureID)
	if lectureID == "" {
		return
	}

	lecture, err := h.lectures.Lecture(ctx, lectureID)
	if err != nil {
		h.logger.Warn("pause prompt failed",
			zap.String("lecture_id", lectureID), zap.Error(err))
		return
	}

	language := lecture.Language
	if language == "" {
		language = "English"
	}
	message := pausePromptMessage(language)

	reply := promptReply{
		LectureID: lectureID,
		Message:   message,
		Language:  language,
	}
	if audioURL, err := h.speech.Synthesize(ctx, message, language); err == nil && audioURL != "" {
		reply.AudioURL = audioURL
	} else if err != nil {
		h.logger.Warn("pause prompt audio failed",
			zap.String("lecture_id", lectureID), zap.Error(err))
	}

	h.registry.Emit(connID, EventPrompt, reply)
}

// handleChat emits exactly one reply or one error per request.
func (h *LectureHub) handleChat(ctx context.Context, connID string, data json.RawMessage) {
	if _, ok := h.registry.Lookup(connID); !ok {
		h.registry.Emit(connID, EventError, lectureError{Error: "Unauthorized session"})
		return
	}

	var payload lectureChatPayload
	_ = json.Unmarshal(data, &payload)
	lectureID := strings.TrimSpace(payload.LectureID)
	question := strings.TrimSpace(payload.Question)
	if lectureID == "" || question == "" {
		h.registry.Emit(connID, EventError, lectureError{Error: "Lecture ID and question are required"})
		return
	}

	lecture, err := h.lectures.Lecture(ctx, lectureID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.registry.Emit(connID, EventError, lectureError{Error: "Lecture not found", LectureID: lectureID})
		} else {
			h.logger.Error("lecture lookup failed",
				zap.String("lecture_id", lectureID), zap.Error(err))
			h.registry.Emit(connID, EventError, lectureError{Error: "Unable to process request"})
		}
		return
	}

	answer, err := h.qa.Answer(ctx, question, lecture.Context, lecture.Language, payload.AnswerType)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			h.registry.Emit(connID, EventError, lectureError{Error: err.Error()})
		} else {
			h.logger.Error("answer generation failed",
				zap.String("lecture_id", lectureID), zap.Error(err))
			h.registry.Emit(connID, EventError, lectureError{Error: "Unable to process request"})
		}
		return
	}

	language := answer.Language
	if language == "" {
		language = lecture.Language
	}

	reply := lectureReply{
		LectureID:   lectureID,
		Answer:      answer.Answer,
		DisplayText: answer.DisplayText,
		Message:     answer.Message,
		Content:     answer.Content,
		Language:    language,
	}

	text := answer.Text()
	if text != "" {
		if audioURL, err := h.speech.Synthesize(ctx, text, language); err == nil && audioURL != "" {
			reply.AudioURL = audioURL
		} else if err != nil {
			h.logger.Warn("answer audio failed",
				zap.String("lecture_id", lectureID), zap.Error(err))
		}
	}

	// The reply has priority over the interaction log: persistence
	// failures here are recorded but never surfaced to the viewer.
	if err := h.lectures.SaveInteraction(ctx, lectureID, question, text, reply.AudioURL, language); err != nil {
		h.logger.Warn("persist lecture interaction failed",
			zap.String("lecture_id", lectureID), zap.Error(err))
	}

	h.registry.Emit(connID, EventReply, reply)
}
