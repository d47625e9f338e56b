package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"promptcoach/internal/auth"
	"promptcoach/internal/broker"
	"promptcoach/internal/models"
	"promptcoach/internal/worker"
)

const (
	chatSessionCookie = "chat_session"
	chatSessionHeader = "X-Chat-Session"
	chatSessionMaxAge = 30 * 24 * 60 * 60
)

type chatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language"`
	Image    bool   `json:"image"`
}

type imageRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

type sessionSettingsRequest struct {
	UseAPI   *bool  `json:"use_api"`
	Language string `json:"language"`
}

// sessionView is the public part of a chat session.
type sessionView struct {
	SessionID       string          `json:"session_id"`
	Language        models.Language `json:"language"`
	Remaining       int             `json:"remaining"`
	UseAPI          bool            `json:"use_api"`
	RemoteAvailable bool            `json:"remote_available"`
}

func newSessionView(s models.ChatSession) sessionView {
	return sessionView{
		SessionID:       s.ID,
		Language:        s.Language,
		Remaining:       s.Remaining,
		UseAPI:          s.Enabled,
		RemoteAvailable: s.RemoteAvailable,
	}
}

// chatSessionID returns the caller's chat session handle, issuing a new one when it is missing or malformed.
func (h *Handler) chatSessionID(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(chatSessionHeader))
	if raw == "" {
		if v, err := c.Cookie(chatSessionCookie); err == nil {
			raw = v
		}
	}
	if id, err := uuid.Parse(raw); err == nil {
		c.Header(chatSessionHeader, id.String())
		return id.String()
	}
	id := uuid.NewString()
	setCookie(c, &http.Cookie{
		Name:     chatSessionCookie,
		Value:    id,
		MaxAge:   chatSessionMaxAge,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Header(chatSessionHeader, id)
	return id
}

// turnLanguage picks the request language, then the user's preferred language.
func (h *Handler) turnLanguage(c *gin.Context, requested string) string {
	if lang, ok := models.ParseLanguage(requested); ok {
		return string(lang)
	}
	if userID, ok := auth.UserIDFromContext(c); ok {
		if user, err := h.assistant.GetUser(c.Request.Context(), userID); err == nil {
			return string(user.PreferredLanguage)
		}
	}
	return ""
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	h.runTurn(c, worker.Request{
		Message:    req.Message,
		Language:   h.turnLanguage(c, req.Language),
		ForceImage: req.Image,
	})
}

func (h *Handler) generateImage(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	h.runTurn(c, worker.Request{
		Message:    req.Prompt,
		Language:   h.turnLanguage(c, req.Language),
		ForceImage: true,
	})
}

func (h *Handler) runTurn(c *gin.Context, req worker.Request) {
	req.Context = c.Request.Context()
	req.SessionID = h.chatSessionID(c)
	res, err := h.workers.Turn(req)
	if err != nil {
		h.respondWorkerError(c, err, req.Language)
		return
	}
	if res.Reply == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "empty reply"})
		return
	}
	reply := *res.Reply
	if userID, ok := auth.UserIDFromContext(c); ok {
		h.persistTurn(c.Request.Context(), userID, req.Message, reply, res.Session.Language)
	}
	c.JSON(http.StatusOK, gin.H{
		"type":      reply.Kind,
		"content":   reply.Content,
		"image_url": reply.ImageURL,
		"source":    reply.Source,
		"session":   newSessionView(res.Session),
	})
}

// persistTurn stores the exchange for the user's history; a failed write does not fail the turn.
func (h *Handler) persistTurn(ctx context.Context, userID int64, message string, reply broker.Reply, lang models.Language) {
	_, err := h.assistant.SaveChatMessage(ctx, models.ChatMessage{
		UserID:   userID,
		Message:  message,
		Response: reply.Content,
		Kind:     string(reply.Kind),
		ImageURL: reply.ImageURL,
		Language: lang,
	})
	if err != nil {
		logrus.WithError(err).WithField("user", userID).Warn("save chat message")
	}
}

// respondWorkerError maps worker errors to status codes. Busy and timed-out turns also carry
// the localized chat-failure reply so clients can show it in the conversation.
func (h *Handler) respondWorkerError(c *gin.Context, err error, lang string) {
	failure := broker.ChatFailure(models.LanguageOr(lang, h.defaultLang))
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry", "reply": failure})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out", "reply": failure})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request cancelled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) getChatSession(c *gin.Context) {
	res, err := h.workers.Snapshot(worker.Request{
		Context:   c.Request.Context(),
		SessionID: h.chatSessionID(c),
		Language:  h.turnLanguage(c, c.Query("language")),
	})
	if err != nil {
		h.respondWorkerError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, newSessionView(res.Session))
}

func (h *Handler) resetChatSession(c *gin.Context) {
	res, err := h.workers.ResetQuota(worker.Request{
		Context:   c.Request.Context(),
		SessionID: h.chatSessionID(c),
	})
	if err != nil {
		h.respondWorkerError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, newSessionView(res.Session))
}

func (h *Handler) updateChatSession(c *gin.Context) {
	var req sessionSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Language != "" {
		if _, ok := models.ParseLanguage(req.Language); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported language"})
			return
		}
	}
	res, err := h.workers.UpdateSettings(worker.Request{
		Context:   c.Request.Context(),
		SessionID: h.chatSessionID(c),
		Language:  req.Language,
		UseAPI:    req.UseAPI,
	})
	if err != nil {
		h.respondWorkerError(c, err, req.Language)
		return
	}
	c.JSON(http.StatusOK, newSessionView(res.Session))
}

// deleteChatSession forgets the caller's chat session, including queued turns and the cached copy.
func (h *Handler) deleteChatSession(c *gin.Context) {
	raw := strings.TrimSpace(c.GetHeader(chatSessionHeader))
	if raw == "" {
		raw, _ = c.Cookie(chatSessionCookie)
	}
	if id, err := uuid.Parse(raw); err == nil {
		h.workers.Purge(id.String())
	}
	setCookie(c, &http.Cookie{
		Name:     chatSessionCookie,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Status(http.StatusNoContent)
}

func (h *Handler) chatHistory(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	history, err := h.assistant.ChatHistory(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) validateCredential(c *gin.Context) {
	if h.credentials == nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "message": "No API key found in environment variables"})
		return
	}
	status := h.credentials.CheckCredential(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"valid": status.Valid, "message": status.Message})
}
