package snippet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/prompt-comb/app/cache"
)

const (
	DefaultAPIBaseURL = "https://api.github.com"
	DefaultRawBaseURL = "https://raw.githubusercontent.com"
)

// ClientOptions configures a Client. Token is consulted on every request so
// settings changes apply without a restart.
type ClientOptions struct {
	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration
	Token      func() string
	Cache      cache.Cache
	CacheTTL   time.Duration
	APIBaseURL string
	RawBaseURL string
}

// Client fetches code snippet sources from the GitHub API and raw CDN.
type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	token      func() string
	cache      cache.Cache
	cacheTTL   time.Duration
	apiBaseURL string
	rawBaseURL string
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		httpClient: opts.HTTPClient,
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
		token:      opts.Token,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		apiBaseURL: strings.TrimRight(opts.APIBaseURL, "/"),
		rawBaseURL: strings.TrimRight(opts.RawBaseURL, "/"),
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout == 0 {
		c.timeout = 15 * time.Second
	}
	if c.token == nil {
		c.token = func() string { return "" }
	}
	if c.apiBaseURL == "" {
		c.apiBaseURL = DefaultAPIBaseURL
	}
	if c.rawBaseURL == "" {
		c.rawBaseURL = DefaultRawBaseURL
	}
	if c.cacheTTL == 0 {
		c.cacheTTL = 10 * time.Minute
	}

	return c
}

// Fetch returns the source code behind a repo, gist or raw URL.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	ref, err := ParseURL(url)
	if err != nil {
		return "", err
	}

	key := cache.SnippetKey(url)
	if c.cache != nil {
		if content, ok, err := c.cache.Get(ctx, key); err != nil {
			slog.Warn("Snippet cache read failed", "url", url, "error", err)
		} else if ok {
			slog.Debug("Snippet cache hit", "url", url)
			return content, nil
		}
	}

	var content string
	switch ref.Type {
	case TypeRepo:
		content, err = c.fetchRepoFile(ctx, ref)
	case TypeGist:
		content, err = c.fetchGistFile(ctx, ref.GistID)
	case TypeRaw:
		content, err = c.fetchRaw(ctx, c.rawURL(ref))
	default:
		err = fmt.Errorf("unknown GitHub URL type: %s", ref.Type)
	}
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, content, c.cacheTTL); err != nil {
			slog.Warn("Snippet cache write failed", "url", url, "error", err)
		}
	}

	return content, nil
}

func (c *Client) rawURL(ref Ref) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", c.rawBaseURL, ref.Owner, ref.Repo, ref.Ref, ref.Path)
}

func (c *Client) fetchRepoFile(ctx context.Context, ref Ref) (string, error) {
	content, err := c.fetchViaAPI(ctx, ref)
	if err == nil {
		return content, nil
	}

	slog.Debug("GitHub API fetch failed, falling back to raw file", "owner", ref.Owner, "repo", ref.Repo, "path", ref.Path, "error", err)

	return c.fetchRaw(ctx, c.rawURL(ref))
}

type contentsResponse struct {
	Content  *string `json:"content"`
	Encoding *string `json:"encoding"`
}

func (c *Client) fetchViaAPI(ctx context.Context, ref Ref) (string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", c.apiBaseURL, ref.Owner, ref.Repo, ref.Path, ref.Ref)

	body, err := c.get(ctx, apiURL, "GitHub API error")
	if err != nil {
		return "", err
	}

	var data contentsResponse
	if err := json.Unmarshal(body, &data); err != nil || data.Content == nil || data.Encoding == nil {
		return "", fmt.Errorf("invalid response from GitHub API")
	}

	if *data.Encoding == "base64" {
		cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(*data.Content)
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to decode GitHub content: %w", err)
		}
		return string(decoded), nil
	}

	return *data.Content, nil
}

type gistFile struct {
	Content *string `json:"content"`
	RawURL  string  `json:"raw_url"`
}

func (c *Client) fetchGistFile(ctx context.Context, gistID string) (string, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/gists/%s", c.apiBaseURL, gistID), "GitHub API error")
	if err != nil {
		return "", err
	}

	var data struct {
		Files json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(body, &data); err != nil || len(data.Files) == 0 {
		return "", fmt.Errorf("invalid response from GitHub API")
	}

	file, found, err := firstGistFile(data.Files)
	if err != nil {
		return "", fmt.Errorf("invalid response from GitHub API: %w", err)
	}
	if !found {
		return "", fmt.Errorf("no files found in the gist")
	}

	if file.Content != nil {
		return *file.Content, nil
	}
	if file.RawURL != "" {
		return c.fetchRaw(ctx, file.RawURL)
	}

	return "", fmt.Errorf("could not retrieve file content from gist")
}

// firstGistFile decodes the first entry of the gist "files" object in document order.
func firstGistFile(raw json.RawMessage) (gistFile, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return gistFile{}, false, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return gistFile{}, false, fmt.Errorf("files is not an object")
	}

	if !dec.More() {
		return gistFile{}, false, nil
	}

	if _, err := dec.Token(); err != nil {
		return gistFile{}, false, err
	}

	var file gistFile
	if err := dec.Decode(&file); err != nil {
		return gistFile{}, false, err
	}

	return file, true, nil
}

func (c *Client) fetchRaw(ctx context.Context, rawURL string) (string, error) {
	body, err := c.get(ctx, rawURL, "failed to fetch raw file")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, url, errPrefix string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %d - %s", errPrefix, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
