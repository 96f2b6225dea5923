package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/prompt-comb/app/config"
	"github.com/lysyi3m/prompt-comb/app/content"
	"github.com/lysyi3m/prompt-comb/app/database"
	"github.com/lysyi3m/prompt-comb/app/prompt"
	"github.com/lysyi3m/prompt-comb/app/snippet"
)

var (
	ErrPostNotFound       = errors.New("post not found")
	ErrNoSnippets         = errors.New("no code snippets available")
	ErrNoSnippetsProvided = errors.New("no code snippets provided")
	ErrEmptyMarkdown      = errors.New("post content is empty")
)

const untitledPost = "Untitled Post"

type PostFetcher interface {
	Fetch(ctx context.Context, url string, opts content.Options) (*content.Document, error)
}

type CodeFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type SettingsSource interface {
	Get() config.Settings
}

// Service runs the post to prompt workflow: fetch, convert, extract links,
// fetch snippet code and render the prompt.
type Service struct {
	posts    database.PostRepository
	snippets database.SnippetRepository
	prompts  database.PromptRepository
	fetcher  PostFetcher
	code     CodeFetcher
	settings SettingsSource
	timeout  time.Duration
}

func NewService(
	posts database.PostRepository,
	snippets database.SnippetRepository,
	prompts database.PromptRepository,
	fetcher PostFetcher,
	code CodeFetcher,
	settings SettingsSource,
) *Service {
	return &Service{
		posts:    posts,
		snippets: snippets,
		prompts:  prompts,
		fetcher:  fetcher,
		code:     code,
		settings: settings,
	}
}

// WithTimeout bounds the total time FetchPost and ProcessSnippets may spend on
// remote requests. Zero means no bound beyond the caller's context.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

func (s *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

type FetchResult struct {
	PostID            int64
	Title             string
	IsDuplicatePost   bool
	Strategy          content.Strategy
	GitHubLinks       []string
	DuplicateSnippets []string
	Data              *database.PostData
}

type SnippetInput struct {
	ID  int64
	URL string
}

type SnippetSummary struct {
	ID         int64
	URL        string
	Type       string
	HasContent bool
}

type ProcessResult struct {
	Snippets []SnippetSummary
	Errors   []string
}

type PromptResult struct {
	PromptID          int64
	Content           string
	IsDuplicatePrompt bool
}

func (s *Service) fetchOptions(settings config.Settings) content.Options {
	return content.Options{
		Mode:             settings.FetchStrategy,
		InternalHosts:    settings.InternalHosts,
		MinContentLength: settings.MinContentLength,
	}
}

func expiry(settings config.Settings) time.Duration {
	return time.Duration(settings.ExpirySeconds()) * time.Second
}

// FetchPost downloads a post, stores it with its snippet links and returns
// everything known about it.
func (s *Service) FetchPost(ctx context.Context, url string) (*FetchResult, error) {
	settings := s.settings.Get()

	fetchCtx, cancel := s.withDeadline(ctx)
	defer cancel()

	doc, err := s.fetcher.Fetch(fetchCtx, url, s.fetchOptions(settings))
	if err != nil {
		return nil, err
	}

	stored, err := s.posts.Store(doc.URL, doc.Title, doc.HTML, doc.Markdown, expiry(settings))
	if err != nil {
		return nil, fmt.Errorf("failed to store post: %w", err)
	}

	links := snippet.ExtractLinks(doc.HTML)
	duplicates := s.storeLinks(stored.ID, links)

	slog.Info("Post stored", "operation", "fetch_post", "post_id", stored.ID, "url", doc.URL,
		"strategy", doc.Strategy, "is_duplicate", stored.IsDuplicate, "links", len(links))

	data, err := s.GetPostData(ctx, stored.ID)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		PostID:            stored.ID,
		Title:             doc.Title,
		IsDuplicatePost:   stored.IsDuplicate,
		Strategy:          doc.Strategy,
		GitHubLinks:       links,
		DuplicateSnippets: duplicates,
		Data:              data,
	}, nil
}

// StoreMarkdown stores post content pasted by the user when fetching failed.
func (s *Service) StoreMarkdown(ctx context.Context, url, markdown string) (*FetchResult, error) {
	parsed, err := content.ValidateURL(url)
	if err != nil {
		return nil, err
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, ErrEmptyMarkdown
	}

	pageURL := parsed.String()
	existing, err := s.posts.GetByURL(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to look up post: %w", err)
	}

	var title, html string
	if existing != nil {
		title, html = existing.Title, existing.Content
	}
	if title == "" {
		title = content.TitleFromMarkdown(markdown)
	}
	if title == "" {
		title = untitledPost
	}

	stored, err := s.posts.Store(pageURL, title, html, markdown, expiry(s.settings.Get()))
	if err != nil {
		return nil, fmt.Errorf("failed to store post: %w", err)
	}

	links := snippet.ExtractLinksFromMarkdown(markdown)
	duplicates := s.storeLinks(stored.ID, links)

	slog.Info("Manual post content stored", "operation", "store_markdown", "post_id", stored.ID, "url", pageURL, "links", len(links))

	data, err := s.GetPostData(ctx, stored.ID)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		PostID:            stored.ID,
		Title:             title,
		IsDuplicatePost:   stored.IsDuplicate,
		GitHubLinks:       links,
		DuplicateSnippets: duplicates,
		Data:              data,
	}, nil
}

// storeLinks records each link as an empty snippet and returns the links that
// were already known.
func (s *Service) storeLinks(postID int64, links []string) []string {
	duplicates := []string{}
	for _, link := range links {
		snippetType := snippet.TypeOf(link)
		if snippetType == "" {
			continue
		}

		res, err := s.snippets.Store(postID, link, string(snippetType), "", false)
		if err != nil {
			slog.Error("Failed to store snippet", "operation", "store_snippet", "post_id", postID, "url", link, "error", err)
			continue
		}
		if res.IsDuplicate {
			duplicates = append(duplicates, link)
		}
	}
	return duplicates
}

// ProcessSnippets replaces the post's snippets with the submitted list,
// fetching code for each. Failures for single URLs are reported, not fatal.
func (s *Service) ProcessSnippets(ctx context.Context, postID int64, inputs []SnippetInput) (*ProcessResult, error) {
	post, err := s.posts.GetByID(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if inputs == nil {
		return nil, ErrNoSnippetsProvided
	}

	existing, err := s.snippets.ListByPost(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snippets: %w", err)
	}
	existingIDs := make([]int64, 0, len(existing))
	for _, sn := range existing {
		existingIDs = append(existingIDs, sn.ID)
	}

	fetchCtx, cancel := s.withDeadline(ctx)
	defer cancel()

	var processed []int64
	errs := []string{}

	// keep protects a submitted snippet from the deletion pass below.
	keep := func(id int64) {
		if id != 0 && slices.Contains(existingIDs, id) {
			processed = append(processed, id)
		}
	}

	for _, input := range inputs {
		url := strings.TrimSpace(input.URL)
		if url == "" {
			continue
		}

		if err := fetchCtx.Err(); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to fetch code from %s: %s", url, err))
			keep(input.ID)
			continue
		}

		snippetType := snippet.TypeOf(url)
		if snippetType == "" {
			errs = append(errs, fmt.Sprintf("Invalid GitHub URL: %s", url))
			continue
		}

		code, err := s.code.Fetch(fetchCtx, url)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Failed to fetch code from %s: %s", url, err))
			if fetchCtx.Err() != nil {
				keep(input.ID)
			}
			continue
		}

		if input.ID != 0 && slices.Contains(existingIDs, input.ID) {
			if err := s.snippets.Update(input.ID, url, string(snippetType), code); err != nil {
				errs = append(errs, fmt.Sprintf("Failed to save snippet %s: %s", url, err))
			}
			keep(input.ID)
			continue
		}

		res, err := s.snippets.Store(postID, url, string(snippetType), code, true)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Failed to save snippet %s: %s", url, err))
			continue
		}
		processed = append(processed, res.ID)
	}

	for _, id := range existingIDs {
		if slices.Contains(processed, id) {
			continue
		}
		if err := s.snippets.Delete(id); err != nil {
			return nil, fmt.Errorf("failed to delete snippet %d: %w", id, err)
		}
	}

	updated, err := s.snippets.ListByPost(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snippets: %w", err)
	}

	summaries := make([]SnippetSummary, 0, len(updated))
	for _, sn := range updated {
		summaries = append(summaries, SnippetSummary{
			ID:         sn.ID,
			URL:        sn.URL,
			Type:       sn.Type,
			HasContent: sn.HasContent(),
		})
	}

	slog.Info("Snippets processed", "operation", "process_snippets", "post_id", postID,
		"submitted", len(inputs), "stored", len(summaries), "errors", len(errs))

	return &ProcessResult{Snippets: summaries, Errors: errs}, nil
}

// GeneratePrompt renders the configured template for a post and stores the
// result.
func (s *Service) GeneratePrompt(ctx context.Context, postID int64) (*PromptResult, error) {
	post, err := s.posts.GetByID(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	snippets, err := s.snippets.ListByPost(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snippets: %w", err)
	}
	if len(snippets) == 0 {
		return nil, ErrNoSnippets
	}

	text, err := prompt.Generate(s.settings.Get().PromptTemplate, post.Title, post.ContentMarkdown, snippets)
	if err != nil {
		return nil, err
	}

	stored, err := s.prompts.Store(postID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to store prompt: %w", err)
	}

	slog.Info("Prompt generated", "operation", "generate_prompt", "post_id", postID,
		"prompt_id", stored.ID, "is_duplicate", stored.IsDuplicate)

	return &PromptResult{PromptID: stored.ID, Content: text, IsDuplicatePrompt: stored.IsDuplicate}, nil
}

func (s *Service) GetPostData(_ context.Context, postID int64) (*database.PostData, error) {
	data, err := database.LoadPostData(s.posts, s.snippets, s.prompts, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post data: %w", err)
	}
	if data == nil {
		return nil, ErrPostNotFound
	}
	return data, nil
}

// CleanupExpired removes posts past their expiry along with their snippets
// and prompts.
func (s *Service) CleanupExpired(_ context.Context) (int64, error) {
	removed, err := s.posts.DeleteExpired(time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired posts: %w", err)
	}
	return removed, nil
}
