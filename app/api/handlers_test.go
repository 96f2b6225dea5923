package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/prompt-comb/app/cache"
	"github.com/lysyi3m/prompt-comb/app/config"
	"github.com/lysyi3m/prompt-comb/app/content"
	"github.com/lysyi3m/prompt-comb/app/database"
	"github.com/lysyi3m/prompt-comb/app/prompt"
	"github.com/lysyi3m/prompt-comb/app/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "secret"

type fakeWorkflow struct {
	fetchErr   error
	data       *database.PostData
	lastInputs []workflow.SnippetInput
	promptErr  error
}

func (f *fakeWorkflow) FetchPost(_ context.Context, url string) (*workflow.FetchResult, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &workflow.FetchResult{
		PostID:      1,
		Title:       "Hide the Level Price",
		Strategy:    content.StrategyCookieFree,
		GitHubLinks: []string{"https://github.com/a/b/blob/main/x.php"},
		Data:        f.data,
	}, nil
}

func (f *fakeWorkflow) StoreMarkdown(_ context.Context, url, markdown string) (*workflow.FetchResult, error) {
	if markdown == "" {
		return nil, workflow.ErrEmptyMarkdown
	}
	return &workflow.FetchResult{PostID: 2, Title: "Manual", IsDuplicatePost: true}, nil
}

func (f *fakeWorkflow) ProcessSnippets(_ context.Context, postID int64, inputs []workflow.SnippetInput) (*workflow.ProcessResult, error) {
	f.lastInputs = inputs
	if inputs == nil {
		return nil, workflow.ErrNoSnippetsProvided
	}
	return &workflow.ProcessResult{
		Snippets: []workflow.SnippetSummary{{ID: 5, URL: inputs[0].URL, Type: "repo", HasContent: true}},
		Errors:   []string{"Invalid GitHub URL: https://example.com"},
	}, nil
}

func (f *fakeWorkflow) GeneratePrompt(_ context.Context, postID int64) (*workflow.PromptResult, error) {
	if f.promptErr != nil {
		return nil, f.promptErr
	}
	return &workflow.PromptResult{PromptID: 9, Content: "prompt text", IsDuplicatePrompt: true}, nil
}

func (f *fakeWorkflow) GetPostData(_ context.Context, postID int64) (*database.PostData, error) {
	if f.data == nil || f.data.Post.ID != postID {
		return nil, workflow.ErrPostNotFound
	}
	return f.data, nil
}

type memorySettings struct {
	settings config.Settings
	updated  int
}

func (m *memorySettings) Get() config.Settings { return m.settings }

func (m *memorySettings) Update(s config.Settings) (config.Settings, error) {
	m.updated++
	m.settings = s
	return s, nil
}

type fakeImporter struct {
	feeds []string
	err   error
}

func (f *fakeImporter) ImportFeed(feedURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.feeds = append(f.feeds, feedURL)
	return "task-1", nil
}

type fixedCounter int

func (c fixedCounter) Count() (int, error) { return int(c), nil }

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
}

type testServer struct {
	engine   *gin.Engine
	workflow *fakeWorkflow
	settings *memorySettings
	importer *fakeImporter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings := config.Defaults()
	settings.GitHubToken = "ghp_abcdef1234"

	now := time.Now()
	ts := &testServer{
		workflow: &fakeWorkflow{data: &database.PostData{
			Post: database.Post{ID: 1, URL: "https://example.com/p/", Title: "Hide the Level Price",
				ContentMarkdown: "body", ExpiresAt: now.Add(time.Hour)},
			Snippets:    []database.Snippet{{ID: 5, URL: "https://github.com/a/b/blob/main/x.php", Type: "repo"}},
			HasMarkdown: true,
			HasSnippets: true,
		}},
		settings: &memorySettings{settings: settings},
		importer: &fakeImporter{},
	}

	handler := NewHandler(ts.workflow, ts.settings, ts.importer, cache.NewMemoryCache(),
		map[string]Counter{"posts": fixedCounter(3), "snippets": fixedCounter(4)})
	ts.engine = NewServer(handler, testKey)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)

	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Security check failed.")

	req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(&fakeWorkflow{}, &memorySettings{settings: config.Defaults()}, &fakeImporter{}, nil, nil)
	engine := NewServer(handler, "")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/posts/fetch", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFetchPost(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/posts/fetch", gin.H{"post_url": "https://example.com/p/"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, float64(1), env.Data["post_id"])
	assert.Equal(t, "cookie_free", env.Data["strategy"])
	assert.Equal(t, []any{"https://github.com/a/b/blob/main/x.php"}, env.Data["github_links"])
	assert.Equal(t, []any{}, env.Data["duplicate_snippets"])
	assert.Equal(t, "body", env.Data["markdown"])
	assert.Len(t, env.Data["snippets"], 1)
}

func TestFetchPost_Failures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType any
	}{
		{"paywall", &content.FetchError{Reason: content.ErrPaywall}, http.StatusUnprocessableEntity, "paywall"},
		{"insufficient", &content.FetchError{Reason: content.ErrInsufficientContent}, http.StatusUnprocessableEntity, "insufficient_content"},
		{"failed", &content.FetchError{Reason: content.ErrFetchFailed}, http.StatusUnprocessableEntity, "fetch_failed"},
		{"invalid url", content.ErrInvalidURL, http.StatusBadRequest, nil},
		{"internal", errors.New("disk full"), http.StatusInternalServerError, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.workflow.fetchErr = tt.err

			w, env := ts.do(t, http.MethodPost, "/api/posts/fetch", gin.H{"post_url": "https://example.com/p/"})
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Data["message"])
			assert.Equal(t, tt.errorType, env.Data["error_type"])
			if tt.errorType != nil {
				assert.Equal(t, true, env.Data["allow_manual"])
			}
		})
	}
}

func TestFetchPost_PaywallMessage(t *testing.T) {
	ts := newTestServer(t)
	ts.workflow.fetchErr = &content.FetchError{Reason: content.ErrPaywall}

	_, env := ts.do(t, http.MethodPost, "/api/posts/fetch", gin.H{"post_url": "https://example.com/p/"})
	assert.Contains(t, env.Data["message"], "membership restriction")
}

func TestFetchPost_MissingURL(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/posts/fetch", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please enter a valid post URL.", env.Data["message"])
}

func TestStoreMarkdown(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/posts/markdown", gin.H{"post_url": "https://example.com/p/", "markdown": "# T"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, env.Data["is_duplicate_post"])
	assert.Equal(t, []any{}, env.Data["github_links"])

	w, env = ts.do(t, http.MethodPost, "/api/posts/markdown", gin.H{"post_url": "https://example.com/p/"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please paste the post content.", env.Data["message"])
}

func TestGetPost(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/posts/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	post := env.Data["post"].(map[string]any)
	assert.Equal(t, "Hide the Level Price", post["post_title"])
	assert.Equal(t, true, env.Data["has_snippets"])
	assert.Nil(t, env.Data["prompt"])

	w, _ = ts.do(t, http.MethodGet, "/api/posts/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/posts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessSnippets(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/posts/1/snippets", gin.H{
		"snippets": []gin.H{{"id": 5, "url": "https://github.com/a/b/blob/main/x.php"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []workflow.SnippetInput{{ID: 5, URL: "https://github.com/a/b/blob/main/x.php"}}, ts.workflow.lastInputs)
	assert.Len(t, env.Data["snippets"], 1)
	assert.Equal(t, []any{"Invalid GitHub URL: https://example.com"}, env.Data["errors"])

	w, env = ts.do(t, http.MethodPost, "/api/posts/1/snippets", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No code snippets provided.", env.Data["message"])
}

func TestGeneratePrompt(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/posts/1/prompt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prompt text", env.Data["prompt"])
	assert.Equal(t, true, env.Data["is_duplicate_prompt"])

	ts.workflow.promptErr = prompt.ErrNoTemplate
	w, env = ts.do(t, http.MethodPost, "/api/posts/1/prompt", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No prompt template found. Please configure the template in the plugin settings.", env.Data["message"])

	ts.workflow.promptErr = workflow.ErrNoSnippets
	_, env = ts.do(t, http.MethodPost, "/api/posts/1/prompt", nil)
	assert.Equal(t, "No code snippets available.", env.Data["message"])
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "****1234", env.Data["github_token"])

	w, env = ts.do(t, http.MethodPut, "/api/settings", gin.H{"expiry_minutes": 120})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(120), env.Data["expiry_minutes"])
	assert.Equal(t, "ghp_abcdef1234", ts.settings.settings.GitHubToken)
	assert.Equal(t, config.DefaultPromptTemplate, ts.settings.settings.PromptTemplate)

	w, env = ts.do(t, http.MethodPut, "/api/settings", gin.H{"prompt_template": "only [post_title]"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"[existing_post_content]", "[link_code_recipe]"}, env.Data["missing"])
	assert.Equal(t, 1, ts.settings.updated)
}

func TestValidateTemplate(t *testing.T) {
	ts := newTestServer(t)

	_, env := ts.do(t, http.MethodPost, "/api/settings/validate-template", gin.H{"template": config.DefaultPromptTemplate})
	assert.Equal(t, true, env.Data["valid"])
	assert.Equal(t, []any{}, env.Data["missing"])

	_, env = ts.do(t, http.MethodPost, "/api/settings/validate-template", gin.H{"template": "[post_title]"})
	assert.Equal(t, false, env.Data["valid"])
}

func TestImportFeed(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/feeds/import", gin.H{"feed_url": "https://example.com/feed/"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "task-1", env.Data["task_id"])
	assert.Equal(t, []string{"https://example.com/feed/"}, ts.importer.feeds)

	w, _ = ts.do(t, http.MethodPost, "/api/feeds/import", gin.H{"feed_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.importer.err = errors.New("task queue is full")
	w, _ = ts.do(t, http.MethodPost, "/api/feeds/import", gin.H{"feed_url": "https://example.com/feed/"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestVerifySession(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/session/verify", gin.H{"post_id": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, env.Data["valid"])
	assert.NotEmpty(t, env.Data["session_id"])

	w, _ = ts.do(t, http.MethodPost, "/api/session/verify", gin.H{"post_id": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.workflow.data.Post.ExpiresAt = time.Now().Add(-time.Minute)
	w, _ = ts.do(t, http.MethodPost, "/api/session/verify", gin.H{"post_id": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t)

	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(3), health["posts"])
	assert.Equal(t, "memory", health["cache"].(map[string]any)["type"])

	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Prompt Comb")
}
