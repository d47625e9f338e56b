package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"promptcoach/internal/auth"
	"promptcoach/internal/broker"
	"promptcoach/internal/models"
	"promptcoach/internal/service/assistant"
	"promptcoach/internal/worker"
)

// TurnManager runs chat jobs against per-session broker state.
type TurnManager interface {
	Turn(worker.Request) (worker.Result, error)
	ResetQuota(worker.Request) (worker.Result, error)
	UpdateSettings(worker.Request) (worker.Result, error)
	Snapshot(worker.Request) (worker.Result, error)
	Purge(sessionID string)
}

// CredentialChecker reports whether the remote AI credential is usable.
type CredentialChecker interface {
	CheckCredential(ctx context.Context) broker.CredentialStatus
}

type Options struct {
	ResourcesDir       string
	RateLimitPerMinute int
	DefaultLanguage    models.Language
}

// Handler wires HTTP routes to the assistant service and the chat workers.
type Handler struct {
	assistant    *assistant.Service
	auth         *auth.Service
	workers      TurnManager
	credentials  CredentialChecker
	resourcesDir string
	limiter      *ipRateLimiter
	defaultLang  models.Language
}

// NewHandler constructs a Handler instance.
func NewHandler(service *assistant.Service, authService *auth.Service, workers TurnManager, credentials CredentialChecker, opts Options) *Handler {
	return &Handler{
		assistant:    service,
		auth:         authService,
		workers:      workers,
		credentials:  credentials,
		resourcesDir: opts.ResourcesDir,
		limiter:      newIPRateLimiter(opts.RateLimitPerMinute),
		defaultLang:  models.LanguageOr(string(opts.DefaultLanguage), models.LanguageES),
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/auth/register", h.registerUser)
	api.POST("/auth/login", h.loginUser)

	authMW := h.auth.Middleware()
	userRoutes := api.Group("/users/me")
	userRoutes.Use(authMW, h.auth.CSRFMiddleware())
	userRoutes.GET("", h.getProfile)
	userRoutes.PATCH("/language", h.updateLanguage)
	userRoutes.POST("/logout", h.logoutUser)
	userRoutes.DELETE("", h.deleteUser)

	api.GET("/modules", h.listModules)
	api.GET("/modules/:id", h.getModule)
	api.GET("/modules/:id/lessons", h.listLessons)
	api.GET("/modules/:id/lessons/:lesson_id", h.getLesson)
	api.GET("/resources", h.listResources)
	api.GET("/resources/:id", h.getResource)
	api.GET("/resources/files/:filename", h.downloadResource)

	chat := api.Group("")
	chat.Use(h.auth.OptionalMiddleware(), h.auth.CSRFMiddleware())
	chat.POST("/chat", h.limiter.middleware(), h.chat)
	chat.POST("/images/generate", h.limiter.middleware(), h.generateImage)
	chat.GET("/chat/session", h.getChatSession)
	chat.POST("/chat/session/reset", h.resetChatSession)
	chat.PATCH("/chat/session", h.updateChatSession)
	chat.DELETE("/chat/session", h.deleteChatSession)

	api.GET("/chat/history", authMW, h.chatHistory)
	api.GET("/openai/validate", h.validateCredential)
}

// User create&login interface
type registerRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	PreferredLanguage string `json:"preferred_language"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	lang := models.LanguageOr(req.PreferredLanguage, h.defaultLang)
	user, err := h.assistant.RegisterUser(c.Request.Context(), req.Username, req.Password, lang)
	if err != nil {
		if errors.Is(err, assistant.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) loginUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.assistant.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":                 user.ID,
		"username":           user.Username,
		"preferred_language": user.PreferredLanguage,
		"created_at":         user.CreatedAt,
		"auth_token":         authToken,
	})
}

func (h *Handler) getProfile(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	user, err := h.assistant.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) updateLanguage(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req struct {
		PreferredLanguage string `json:"preferred_language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	lang, ok := models.ParseLanguage(req.PreferredLanguage)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported language"})
		return
	}
	if err := h.assistant.UpdateUserLanguage(c.Request.Context(), userID, lang); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferred_language": lang})
}

func (h *Handler) logoutUser(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.auth.RevokeUserTokens(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.assistant.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
