package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/prompt-comb/app/config"
)

type Strategy string

const (
	StrategyInternal   Strategy = "internal"
	StrategyCookieFree Strategy = "cookie_free"
	StrategyStandard   Strategy = "standard"
)

const (
	maxRedirects = 5
	maxBodySize  = 10 << 20
)

var errNotInternal = errors.New("host is not configured for internal lookup")

// StrategiesFor lists the strategies tried, in order, for a fetch mode.
func StrategiesFor(mode config.FetchStrategy) []Strategy {
	switch mode {
	case config.FetchCookieFreeOnly:
		return []Strategy{StrategyCookieFree}
	case config.FetchInternalOnly:
		return []Strategy{StrategyInternal}
	case config.FetchStandard:
		return []Strategy{StrategyStandard}
	default:
		return []Strategy{StrategyInternal, StrategyCookieFree, StrategyStandard}
	}
}

type Options struct {
	Mode             config.FetchStrategy
	InternalHosts    []string
	MinContentLength int
}

// Document is a fetched post ready for storage.
type Document struct {
	URL      string
	Title    string
	HTML     string
	Text     string
	Markdown string
	Strategy Strategy
}

type Fetcher struct {
	cookieFreeClient *http.Client
	extractor        *Extractor
	userAgent        string
	timeout          time.Duration
}

func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		cookieFreeClient: &http.Client{
			CheckRedirect: limitRedirects(true),
		},
		extractor: NewExtractor(),
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// standardClient keeps cookies for the redirect chain of a single fetch only.
func standardClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Jar:           jar,
		CheckRedirect: limitRedirects(false),
	}
}

func limitRedirects(stripCookies bool) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if stripCookies {
			req.Header.Del("Cookie")
		}
		return nil
	}
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	return parsed, nil
}

// Fetch runs the strategies for opts.Mode in order and returns the first
// document with enough readable content. Once ctx is done the remaining
// strategies are skipped and the attempts so far are reported as a
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Document, error) {
	pageURL, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	var attempts []AttemptError
	for _, strategy := range StrategiesFor(opts.Mode) {
		if err := ctx.Err(); err != nil {
			slog.Info("Fetch deadline reached", "url", rawURL, "strategy", strategy, "error", err)
			if len(attempts) == 0 {
				attempts = append(attempts, AttemptError{Strategy: strategy, Err: err})
			}
			break
		}

		doc, err := f.attempt(ctx, strategy, pageURL, opts)
		if err == nil {
			slog.Debug("Post fetched", "url", rawURL, "strategy", strategy, "title", doc.Title, "text_length", len(doc.Text))
			return doc, nil
		}

		if errors.Is(err, errNotInternal) && len(StrategiesFor(opts.Mode)) > 1 {
			continue
		}

		slog.Info("Fetch strategy failed", "url", rawURL, "strategy", strategy, "error", err)
		attempts = append(attempts, AttemptError{Strategy: strategy, Err: err})
	}

	return nil, newFetchError(rawURL, attempts)
}

func (f *Fetcher) attempt(ctx context.Context, strategy Strategy, pageURL *url.URL, opts Options) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var doc *Document
	var err error

	switch strategy {
	case StrategyInternal:
		doc, err = f.fetchInternal(ctx, pageURL, opts.InternalHosts)
	case StrategyCookieFree:
		doc, err = f.fetchExternal(ctx, f.cookieFreeClient, pageURL, true)
	case StrategyStandard:
		doc, err = f.fetchExternal(ctx, standardClient(), pageURL, false)
	default:
		err = fmt.Errorf("unknown fetch strategy: %s", strategy)
	}
	if err != nil {
		return nil, err
	}

	if n := utf8.RuneCountInString(doc.Text); n < opts.MinContentLength {
		return nil, fmt.Errorf("%w: %d characters of text", ErrInsufficientContent, n)
	}

	doc.URL = pageURL.String()
	doc.Strategy = strategy

	md, err := ToMarkdown(doc.HTML)
	if err != nil {
		slog.Warn("Markdown conversion failed, using plain text", "url", doc.URL, "error", err)
		md = doc.Text
	}
	doc.Markdown = md

	return doc, nil
}

func (f *Fetcher) fetchExternal(ctx context.Context, client *http.Client, pageURL *url.URL, cookieFree bool) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if cookieFree {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
		req.Header.Del("Cookie")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch post content, status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("received empty response from the server")
	}

	body, err = decodeBody(body, contentType)
	if err != nil {
		return nil, err
	}

	if indicator, found := DetectPaywall(string(body)); found {
		return nil, fmt.Errorf("%w: %q", ErrPaywall, indicator)
	}

	extracted, err := f.extractor.Run(body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	return &Document{Title: extracted.Title, HTML: extracted.HTML, Text: extracted.Text}, nil
}

type wpPost struct {
	Link  string `json:"link"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
}

// fetchInternal looks a post up through the WordPress REST API of a site we
// operate, bypassing the public page and its restrictions.
func (f *Fetcher) fetchInternal(ctx context.Context, pageURL *url.URL, internalHosts []string) (*Document, error) {
	if !slices.Contains(internalHosts, strings.ToLower(pageURL.Hostname())) {
		return nil, errNotInternal
	}

	slug := lastPathSegment(pageURL.Path)
	if slug == "" {
		return nil, fmt.Errorf("no post slug in URL path")
	}

	apiURL := url.URL{
		Scheme:   pageURL.Scheme,
		Host:     pageURL.Host,
		Path:     "/wp-json/wp/v2/posts",
		RawQuery: url.Values{"slug": {slug}, "_fields": {"link,title,content"}}.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.cookieFreeClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query internal API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("internal API returned status code: %d", resp.StatusCode)
	}

	var posts []wpPost
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&posts); err != nil {
		return nil, fmt.Errorf("failed to decode internal API response: %w", err)
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("post %q not found via internal API", slug)
	}

	post := posts[0]
	fragment := "<article>" + post.Content.Rendered + "</article>"

	return &Document{
		Title: html.UnescapeString(normalizeSpace(post.Title.Rendered)),
		HTML:  fragment,
		Text:  TextOf(fragment),
	}, nil
}

func lastPathSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	return segments[len(segments)-1]
}
