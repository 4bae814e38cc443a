package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edinai/classhub/internal/auth"
	"github.com/edinai/classhub/internal/repository"
)

// ChatHandler serves chat thread history to portal clients. The portal
// loads history over REST and stays realtime over the socket, so this
// endpoint authenticates with the portal token, not the staff token.
type ChatHandler struct {
	chatRepo   repository.ChatRepository
	rosterRepo repository.RosterRepository
	tokens     *auth.Service
	logger     *zap.Logger
}

func NewChatHandler(chatRepo repository.ChatRepository, rosterRepo repository.RosterRepository, tokens *auth.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatRepo:   chatRepo,
		rosterRepo: rosterRepo,
		tokens:     tokens,
		logger:     logger,
	}
}

// ListThread handles GET /v1/chat/threads/:peer?before=123&limit=50.
func (h *ChatHandler) ListThread(c *gin.Context) {
	token := bearerToken(c)
	identity, err := h.tokens.ResolveIdentity(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	identity = strings.ToLower(identity)

	callerCtx, err := h.rosterRepo.RosterContext(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown identity"})
		return
	}

	peer := c.Param("peer")
	// Same scope rule as the socket: a thread with a non-classmate
	// does not exist as far as the caller can tell.
	if _, err := h.rosterRepo.Classmate(c.Request.Context(), callerCtx, peer); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}

	var before int64
	if b := c.Query("before"); b != "" {
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > 100 {
			limit = 100
		}
	}

	messages, err := h.chatRepo.ListThread(c.Request.Context(), callerCtx.TenantID, identity, peer, before, limit)
	if err != nil {
		h.logger.Error("failed to list chat thread", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
