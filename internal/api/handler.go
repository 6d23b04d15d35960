package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/RichardoC/talkback/internal/chat"
	"github.com/RichardoC/talkback/internal/models"
	"github.com/RichardoC/talkback/internal/settings"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the chat session over HTTP. There is one session per
// process; requests touching it are serialized. Settings changes never wait
// for a running submission: when the session is busy they mark it stale and
// the next request reloads it.
type Handler struct {
	orch     *chat.Orchestrator
	settings *settings.Store
	logger   *zap.Logger

	mu    sync.Mutex
	sess  *chat.Session
	stale atomic.Bool
}

func NewHandler(orch *chat.Orchestrator, settingsStore *settings.Store, logger *zap.Logger) *Handler {
	return &Handler{
		orch:     orch,
		settings: settingsStore,
		logger:   logger,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api")
	g.GET("/threads", h.ListThreads)
	g.POST("/threads", h.CreateThread)
	g.GET("/threads/:id", h.GetThread)
	g.DELETE("/threads/:id", h.DeleteThread)
	g.POST("/threads/:id/select", h.SelectThread)
	g.GET("/session", h.GetSession)
	g.POST("/message", h.HandleMessage)
	g.POST("/speech", h.HandleSpeech)
	g.POST("/speech/start", h.StartRecording)
	g.POST("/speech/stop", h.StopRecording)
	g.GET("/models", h.ListModels)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
	g.PUT("/settings/credentials/:provider", h.SetCredential)
}

type MessageRequest struct {
	Content string `json:"content"`
}

type ExchangeResponse struct {
	User  *models.Message `json:"user,omitempty"`
	Reply models.Message  `json:"reply"`

	// Error describes why Reply is an error message.
	Error string `json:"error,omitempty"`
	// SaveError is set when the exchange could not be stored.
	SaveError string `json:"saveError,omitempty"`
}

type SessionResponse struct {
	Model      models.ModelID   `json:"model"`
	Language   models.Language  `json:"language"`
	ThreadID   string           `json:"threadId"`
	Title      string           `json:"title"`
	State      string           `json:"state"`
	Warning    string           `json:"warning,omitempty"`
	Recording  bool             `json:"recording"`
	Transcript string           `json:"transcript,omitempty"`
	Messages   []models.Message `json:"messages"`
}

type SpeechResponse struct {
	Recording  bool              `json:"recording"`
	Transcript string            `json:"transcript,omitempty"`
	Exchange   *ExchangeResponse `json:"exchange,omitempty"`
}

type SettingsRequest struct {
	Model    *models.ModelID  `json:"model,omitempty"`
	Language *models.Language `json:"language,omitempty"`
	Toggles  map[string]bool  `json:"toggles,omitempty"`
}

type CredentialRequest struct {
	APIKey string `json:"apiKey"`
}

type CatalogResponse struct {
	Models    []models.ModelInfo    `json:"models"`
	Languages []models.LanguageInfo `json:"languages"`
	Default   models.ModelID        `json:"default"`
}

// session returns the process session, opening it on first use. Callers
// must hold h.mu.
func (h *Handler) session(ctx context.Context) *chat.Session {
	if h.sess == nil {
		h.stale.Store(false)
		sess, err := h.orch.Open(ctx)
		if err != nil {
			h.logger.Warn("session opened with storage errors", zap.Error(err))
		}
		h.sess = sess
	} else if h.stale.CompareAndSwap(true, false) {
		h.resumeLocked(ctx)
	}
	return h.sess
}

func (h *Handler) fail(c *gin.Context, status int, msg string, err error) {
	h.logger.Error(msg,
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path))
	c.JSON(status, gin.H{"error": msg})
}

func toExchangeResponse(ex *chat.Exchange) *ExchangeResponse {
	if ex == nil {
		return nil
	}
	resp := &ExchangeResponse{User: ex.User, Reply: ex.Reply}
	if ex.Failed != nil {
		resp.Error = ex.Failed.Error()
	}
	if ex.Persist != nil {
		resp.SaveError = ex.Persist.Error()
	}
	return resp
}

func toSessionResponse(sess *chat.Session) SessionResponse {
	resp := SessionResponse{
		Model:      sess.Model,
		Language:   sess.Language,
		ThreadID:   sess.ThreadID,
		State:      sess.State.String(),
		Warning:    sess.Warning,
		Recording:  sess.Recording,
		Transcript: sess.Transcript,
		Messages:   sess.Messages,
	}
	if sess.Thread != nil {
		resp.Title = sess.Thread.Title
	}
	if resp.Messages == nil {
		resp.Messages = []models.Message{}
	}
	return resp
}

func (h *Handler) ListThreads(c *gin.Context) {
	threads, err := h.orch.ListThreads(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to list threads", err)
		return
	}
	h.logger.Debug("listed threads", zap.Int("count", len(threads)))
	c.JSON(http.StatusOK, threads)
}

func (h *Handler) CreateThread(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := c.Request.Context()
	sess := h.session(ctx)
	thread, err := h.orch.NewThread(ctx, sess)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to create thread", err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

func (h *Handler) GetThread(c *gin.Context) {
	thread, err := h.orch.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to get thread", err)
		return
	}
	if thread == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *Handler) DeleteThread(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := c.Request.Context()
	sess := h.session(ctx)
	if err := h.orch.DeleteThread(ctx, sess, c.Param("id")); err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to delete thread", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SelectThread(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := c.Request.Context()
	id := c.Param("id")
	existing, err := h.orch.Thread(ctx, id)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to get thread", err)
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}

	sess := h.session(ctx)
	if _, err := h.orch.SelectThread(ctx, sess, id); err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to select thread", err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) GetSession(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.JSON(http.StatusOK, toSessionResponse(h.session(c.Request.Context())))
}

func (h *Handler) HandleMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := c.Request.Context()
	ex, err := h.orch.Submit(ctx, h.session(ctx), req.Content)
	if err != nil {
		h.logger.Error("failed to save message", zap.Error(err))
	}
	if ex == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, toExchangeResponse(ex))
}

func (h *Handler) HandleSpeech(c *gin.Context) {
	var ev chat.SpeechEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch ev.Type {
	case chat.SpeechStart, chat.SpeechResult, chat.SpeechError:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown speech event type"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := c.Request.Context()
	sess := h.session(ctx)
	ex, err := h.orch.HandleSpeech(ctx, sess, ev)
	if err != nil {
		h.logger.Error("failed to save speech result", zap.Error(err))
	}
	c.JSON(http.StatusOK, SpeechResponse{
		Recording:  sess.Recording,
		Transcript: sess.Transcript,
		Exchange:   toExchangeResponse(ex),
	})
}

func (h *Handler) StartRecording(c *gin.Context) {
	h.recording(c, h.orch.StartRecording)
}

func (h *Handler) StopRecording(c *gin.Context) {
	h.recording(c, h.orch.StopRecording)
}

func (h *Handler) recording(c *gin.Context, op func(context.Context, *chat.Session) (*chat.Exchange, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := c.Request.Context()
	sess := h.session(ctx)
	ex, err := op(ctx, sess)
	if err != nil {
		h.logger.Error("failed to save speech message", zap.Error(err))
	}
	c.JSON(http.StatusOK, SpeechResponse{
		Recording:  sess.Recording,
		Transcript: sess.Transcript,
		Exchange:   toExchangeResponse(ex),
	})
}

func (h *Handler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, CatalogResponse{
		Models:    models.Catalog,
		Languages: models.Languages,
		Default:   models.DefaultModel,
	})
}

func (h *Handler) GetSettings(c *gin.Context) {
	snap, err := h.settings.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to get settings", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if req.Model != nil {
		if err := h.settings.SetModel(ctx, *req.Model); err != nil {
			h.settingsError(c, err)
			return
		}
	}
	if req.Language != nil {
		if err := h.settings.SetLanguage(ctx, *req.Language); err != nil {
			h.settingsError(c, err)
			return
		}
	}
	for name, value := range req.Toggles {
		if err := h.settings.SetToggle(ctx, name, value); err != nil {
			h.settingsError(c, err)
			return
		}
	}

	h.resume(ctx)
	h.GetSettings(c)
}

func (h *Handler) SetCredential(c *gin.Context) {
	provider, ok := models.ParseProvider(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if err := h.settings.SetCredential(ctx, provider, req.APIKey); err != nil {
		h.settingsError(c, err)
		return
	}
	h.logger.Info("updated API key", zap.String("provider", string(provider)))
	h.resume(ctx)
	c.Status(http.StatusNoContent)
}

func (h *Handler) settingsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, settings.ErrUnknownModel),
		errors.Is(err, settings.ErrUnknownLanguage),
		errors.Is(err, settings.ErrUnknownProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.fail(c, http.StatusInternalServerError, "failed to save settings", err)
	}
}

// resume applies changed settings to an open session, or defers them to the
// next request when another one holds the session.
func (h *Handler) resume(ctx context.Context) {
	if !h.mu.TryLock() {
		h.stale.Store(true)
		h.logger.Debug("session busy, deferring settings reload")
		return
	}
	defer h.mu.Unlock()

	if h.sess == nil {
		return
	}
	h.stale.Store(false)
	h.resumeLocked(ctx)
}

func (h *Handler) resumeLocked(ctx context.Context) {
	if _, err := h.orch.Resume(ctx, h.sess); err != nil {
		h.logger.Warn("session resumed with storage errors", zap.Error(err))
	}
}
