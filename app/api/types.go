package api

import (
	"context"
	"time"

	"github.com/lysyi3m/prompt-comb/app/cache"
	"github.com/lysyi3m/prompt-comb/app/config"
	"github.com/lysyi3m/prompt-comb/app/database"
	"github.com/lysyi3m/prompt-comb/app/tasks"
	"github.com/lysyi3m/prompt-comb/app/workflow"
)

type WorkflowService interface {
	FetchPost(ctx context.Context, url string) (*workflow.FetchResult, error)
	StoreMarkdown(ctx context.Context, url, markdown string) (*workflow.FetchResult, error)
	ProcessSnippets(ctx context.Context, postID int64, inputs []workflow.SnippetInput) (*workflow.ProcessResult, error)
	GeneratePrompt(ctx context.Context, postID int64) (*workflow.PromptResult, error)
	GetPostData(ctx context.Context, postID int64) (*database.PostData, error)
}

type SettingsStore interface {
	Get() config.Settings
	Update(settings config.Settings) (config.Settings, error)
}

type FeedImporter interface {
	ImportFeed(feedURL string) (string, error)
}

type Counter interface {
	Count() (int, error)
}

var (
	_ WorkflowService = (*workflow.Service)(nil)
	_ SettingsStore   = (*config.Store)(nil)
	_ FeedImporter    = (*tasks.Scheduler)(nil)
	_ Counter         = (*database.PostStore)(nil)
)

type Handler struct {
	service  WorkflowService
	settings SettingsStore
	importer FeedImporter
	cache    cache.HealthReporter
	counters map[string]Counter
}

// Request bodies

type fetchPostRequest struct {
	PostURL string `json:"post_url" binding:"required"`
}

type storeMarkdownRequest struct {
	PostURL  string `json:"post_url" binding:"required"`
	Markdown string `json:"markdown"`
}

type snippetInput struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type processSnippetsRequest struct {
	Snippets []snippetInput `json:"snippets"`
}

type validateTemplateRequest struct {
	Template string `json:"template"`
}

type importFeedRequest struct {
	FeedURL string `json:"feed_url" binding:"required"`
}

type verifySessionRequest struct {
	PostID int64 `json:"post_id" binding:"required"`
}

// Response views

type postView struct {
	ID              int64     `json:"post_id"`
	URL             string    `json:"post_url"`
	Title           string    `json:"post_title"`
	ContentMarkdown string    `json:"post_content_markdown"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type snippetView struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	Type         string `json:"type"`
	HasContent   bool   `json:"has_content"`
	IsUserEdited bool   `json:"is_user_edited"`
}

type promptView struct {
	ID        int64     `json:"prompt_id"`
	Content   string    `json:"prompt_content"`
	Hash      string    `json:"prompt_hash"`
	CreatedAt time.Time `json:"created_at"`
}

type postDataView struct {
	Post        postView      `json:"post"`
	Snippets    []snippetView `json:"snippets"`
	Prompt      *promptView   `json:"prompt"`
	HasMarkdown bool          `json:"has_markdown"`
	HasSnippets bool          `json:"has_snippets"`
	HasPrompt   bool          `json:"has_prompt"`
}

type fetchPostResponse struct {
	PostID            int64         `json:"post_id"`
	PostTitle         string        `json:"post_title"`
	IsDuplicatePost   bool          `json:"is_duplicate_post"`
	Strategy          string        `json:"strategy,omitempty"`
	GitHubLinks       []string      `json:"github_links"`
	DuplicateSnippets []string      `json:"duplicate_snippets"`
	Markdown          string        `json:"markdown"`
	Snippets          []snippetView `json:"snippets"`
	Prompt            *promptView   `json:"prompt"`
}

func newSnippetViews(snippets []database.Snippet) []snippetView {
	views := make([]snippetView, 0, len(snippets))
	for _, s := range snippets {
		views = append(views, snippetView{
			ID:           s.ID,
			URL:          s.URL,
			Type:         s.Type,
			HasContent:   s.HasContent(),
			IsUserEdited: s.IsUserEdited,
		})
	}
	return views
}

func newPromptView(p *database.Prompt) *promptView {
	if p == nil {
		return nil
	}
	return &promptView{ID: p.ID, Content: p.Content, Hash: p.Hash, CreatedAt: p.CreatedAt}
}

func newPostDataView(data *database.PostData) postDataView {
	return postDataView{
		Post: postView{
			ID:              data.Post.ID,
			URL:             data.Post.URL,
			Title:           data.Post.Title,
			ContentMarkdown: data.Post.ContentMarkdown,
			CreatedAt:       data.Post.CreatedAt,
			UpdatedAt:       data.Post.UpdatedAt,
			ExpiresAt:       data.Post.ExpiresAt,
		},
		Snippets:    newSnippetViews(data.Snippets),
		Prompt:      newPromptView(data.Prompt),
		HasMarkdown: data.HasMarkdown,
		HasSnippets: data.HasSnippets,
		HasPrompt:   data.HasPrompt,
	}
}

func newFetchPostResponse(res *workflow.FetchResult) fetchPostResponse {
	links := res.GitHubLinks
	if links == nil {
		links = []string{}
	}

	resp := fetchPostResponse{
		PostID:            res.PostID,
		PostTitle:         res.Title,
		IsDuplicatePost:   res.IsDuplicatePost,
		Strategy:          string(res.Strategy),
		GitHubLinks:       links,
		DuplicateSnippets: res.DuplicateSnippets,
		Snippets:          []snippetView{},
	}
	if resp.DuplicateSnippets == nil {
		resp.DuplicateSnippets = []string{}
	}

	if res.Data != nil {
		resp.Markdown = res.Data.Post.ContentMarkdown
		resp.Snippets = newSnippetViews(res.Data.Snippets)
		resp.Prompt = newPromptView(res.Data.Prompt)
	}

	return resp
}
