package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Parser reads RSS, Atom and JSON feeds and keeps the items that link to a post.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}

	seen := make(map[string]bool, len(feed.Items))
	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := normalizeLink(item.Link, feed.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		entries = append(entries, Entry{
			GUID:        cmp.Or(item.GUID, link),
			Title:       strings.TrimSpace(item.Title),
			Link:        link,
			PublishedAt: item.PublishedParsed,
		})
	}

	return metadata, entries, nil
}

// Links returns the post links of entries in feed order.
func Links(entries []Entry) []string {
	links := make([]string, 0, len(entries))
	for _, entry := range entries {
		links = append(links, entry.Link)
	}
	return links
}

// normalizeLink resolves relative item links against the feed's site link and
// drops anything that is not http(s).
func normalizeLink(link, base string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}

	if !parsed.IsAbs() && base != "" {
		baseURL, err := url.Parse(base)
		if err != nil {
			return ""
		}
		parsed = baseURL.ResolveReference(parsed)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}
