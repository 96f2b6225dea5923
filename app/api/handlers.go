package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lysyi3m/prompt-comb/app/cache"
	"github.com/lysyi3m/prompt-comb/app/content"
	"github.com/lysyi3m/prompt-comb/app/prompt"
	"github.com/lysyi3m/prompt-comb/app/workflow"
)

func NewHandler(service WorkflowService, settings SettingsStore, importer FeedImporter,
	cacheHealth cache.HealthReporter, counters map[string]Counter) *Handler {
	return &Handler{
		service:  service,
		settings: settings,
		importer: importer,
		cache:    cacheHealth,
		counters: counters,
	}
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func failure(c *gin.Context, status int, message string, extra gin.H) {
	data := gin.H{"message": message}
	for k, v := range extra {
		data[k] = v
	}
	c.JSON(status, gin.H{"success": false, "data": data})
}

// respondError maps workflow errors to HTTP statuses and user-facing messages.
func respondError(c *gin.Context, operation string, err error) {
	var fetchErr *content.FetchError

	switch {
	case errors.As(err, &fetchErr):
		slog.Warn("Post fetch failed", "operation", operation, "url", fetchErr.URL, "reason", fetchErr.Kind(), "error", err)
		failure(c, http.StatusUnprocessableEntity, fetchErr.UserMessage(), gin.H{
			"error_type":   fetchErr.Kind(),
			"allow_manual": true,
		})
	case errors.Is(err, content.ErrInvalidURL):
		failure(c, http.StatusBadRequest, "Please enter a valid post URL.", nil)
	case errors.Is(err, workflow.ErrPostNotFound):
		failure(c, http.StatusNotFound, "Session expired or invalid.", nil)
	case errors.Is(err, workflow.ErrEmptyMarkdown):
		failure(c, http.StatusBadRequest, "Please paste the post content.", nil)
	case errors.Is(err, workflow.ErrNoSnippets):
		failure(c, http.StatusBadRequest, "No code snippets available.", nil)
	case errors.Is(err, workflow.ErrNoSnippetsProvided):
		failure(c, http.StatusBadRequest, "No code snippets provided.", nil)
	case errors.Is(err, prompt.ErrNoTemplate):
		failure(c, http.StatusBadRequest, "No prompt template found. Please configure the template in the plugin settings.", nil)
	default:
		slog.Error("Request failed", "operation", operation, "error", err)
		failure(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func postIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		failure(c, http.StatusBadRequest, "Invalid post ID.", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) FetchPost(c *gin.Context) {
	var req fetchPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Please enter a valid post URL.", nil)
		return
	}

	res, err := h.service.FetchPost(c.Request.Context(), req.PostURL)
	if err != nil {
		respondError(c, "fetch_post", err)
		return
	}

	success(c, http.StatusOK, newFetchPostResponse(res))
}

func (h *Handler) StoreMarkdown(c *gin.Context) {
	var req storeMarkdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Please enter a valid post URL.", nil)
		return
	}

	res, err := h.service.StoreMarkdown(c.Request.Context(), req.PostURL, req.Markdown)
	if err != nil {
		respondError(c, "store_markdown", err)
		return
	}

	success(c, http.StatusOK, newFetchPostResponse(res))
}

func (h *Handler) GetPost(c *gin.Context) {
	id, ok := postIDParam(c)
	if !ok {
		return
	}

	data, err := h.service.GetPostData(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get_post", err)
		return
	}

	success(c, http.StatusOK, newPostDataView(data))
}

func (h *Handler) ProcessSnippets(c *gin.Context) {
	id, ok := postIDParam(c)
	if !ok {
		return
	}

	var req processSnippetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "No code snippets provided.", nil)
		return
	}

	var inputs []workflow.SnippetInput
	if req.Snippets != nil {
		inputs = make([]workflow.SnippetInput, 0, len(req.Snippets))
		for _, s := range req.Snippets {
			inputs = append(inputs, workflow.SnippetInput{ID: s.ID, URL: s.URL})
		}
	}

	res, err := h.service.ProcessSnippets(c.Request.Context(), id, inputs)
	if err != nil {
		respondError(c, "process_snippets", err)
		return
	}

	snippets := make([]gin.H, 0, len(res.Snippets))
	for _, s := range res.Snippets {
		snippets = append(snippets, gin.H{
			"id":          s.ID,
			"url":         s.URL,
			"type":        s.Type,
			"has_content": s.HasContent,
		})
	}

	success(c, http.StatusOK, gin.H{
		"snippets": snippets,
		"errors":   res.Errors,
	})
}

func (h *Handler) GeneratePrompt(c *gin.Context) {
	id, ok := postIDParam(c)
	if !ok {
		return
	}

	res, err := h.service.GeneratePrompt(c.Request.Context(), id)
	if err != nil {
		respondError(c, "generate_prompt", err)
		return
	}

	success(c, http.StatusOK, gin.H{
		"prompt":              res.Content,
		"prompt_id":           res.PromptID,
		"is_duplicate_prompt": res.IsDuplicatePrompt,
	})
}

func (h *Handler) GetSettings(c *gin.Context) {
	success(c, http.StatusOK, h.settings.Get().Masked())
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	settings := h.settings.Get()
	if err := c.ShouldBindJSON(&settings); err != nil {
		failure(c, http.StatusBadRequest, "Invalid settings payload.", gin.H{"error": err.Error()})
		return
	}

	if missing := prompt.ValidateTemplate(settings.PromptTemplate); len(missing) > 0 {
		failure(c, http.StatusBadRequest, "The prompt template is missing required placeholders.", gin.H{"missing": missing})
		return
	}

	updated, err := h.settings.Update(settings)
	if err != nil {
		slog.Error("Failed to save settings", "operation", "update_settings", "error", err)
		failure(c, http.StatusInternalServerError, "Failed to save settings.", nil)
		return
	}

	slog.Info("Settings updated", "fetch_strategy", updated.FetchStrategy, "debug_mode", updated.DebugMode, "expiry_minutes", updated.ExpiryMinutes)

	success(c, http.StatusOK, updated.Masked())
}

func (h *Handler) ValidateTemplate(c *gin.Context) {
	var req validateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid request body.", nil)
		return
	}

	missing := prompt.ValidateTemplate(req.Template)
	if missing == nil {
		missing = []string{}
	}

	success(c, http.StatusOK, gin.H{
		"valid":   len(missing) == 0,
		"missing": missing,
	})
}

func (h *Handler) ImportFeed(c *gin.Context) {
	var req importFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Please enter a valid feed URL.", nil)
		return
	}

	feedURL, err := content.ValidateURL(req.FeedURL)
	if err != nil {
		failure(c, http.StatusBadRequest, "Please enter a valid feed URL.", nil)
		return
	}

	taskID, err := h.importer.ImportFeed(feedURL.String())
	if err != nil {
		slog.Error("Failed to enqueue feed import", "operation", "import_feed", "feed", feedURL.String(), "error", err)
		failure(c, http.StatusServiceUnavailable, "Failed to queue feed import.", gin.H{"error": err.Error()})
		return
	}

	success(c, http.StatusAccepted, gin.H{
		"task_id":  taskID,
		"feed_url": feedURL.String(),
	})
}

func (h *Handler) VerifySession(c *gin.Context) {
	var req verifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid session ID.", nil)
		return
	}

	data, err := h.service.GetPostData(c.Request.Context(), req.PostID)
	if err != nil {
		respondError(c, "verify_session", err)
		return
	}

	if data.Post.ExpiresAt.Before(time.Now()) {
		failure(c, http.StatusNotFound, "Session expired or invalid.", nil)
		return
	}

	success(c, http.StatusOK, gin.H{
		"valid":      true,
		"session_id": uuid.NewString(),
		"post_id":    data.Post.ID,
		"expires_at": data.Post.ExpiresAt,
		"message":    "Session is valid.",
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	for name, counter := range h.counters {
		if count, err := counter.Count(); err == nil {
			health[name] = count
		} else {
			slog.Error("Database error", "operation", "count_"+name, "error", err)
			health["status"] = "degraded"
		}
	}

	if h.cache != nil {
		cacheHealth := h.cache.Health(c.Request.Context())
		health["cache"] = cacheHealth
		if cacheHealth["status"] != "healthy" {
			health["status"] = "degraded"
		}
	}

	health["fetch_strategy"] = string(h.settings.Get().FetchStrategy)

	c.JSON(http.StatusOK, health)
}
