package snippet

import (
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const snippetsLibrary = "pmpro-snippets-library"

var (
	libraryURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://github\.com/strangerstudios/pmpro-snippets-library/blob/[^\s"'<>]+`),
		regexp.MustCompile(`(?i)https?://raw\.githubusercontent\.com/strangerstudios/pmpro-snippets-library/[^\s"'<>]+`),
		regexp.MustCompile(`(?i)https?://[^\s"'<>]*pmpro-snippets-library[^\s"'<>]*`),
	}

	codeURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`https?://github\.com/[^/\s]+/[^/\s]+/blob/[^/\s]+/[^\s)\]"'<>]+`),
		regexp.MustCompile(`https?://gist\.github\.com/[^/\s]+/[a-f0-9]+`),
		regexp.MustCompile(`https?://raw\.githubusercontent\.com/[^/\s]+/[^/\s]+/[^/\s]+/[^\s)\]"'<>]+`),
	}

	githubFileLink = regexp.MustCompile(`https?://github\.com/[^/\s]+/[^/\s]+/`)
	rawFileLink    = regexp.MustCompile(`https?://raw\.githubusercontent\.com/`)
	gistLink       = regexp.MustCompile(`https?://gist\.github\.com/`)

	membershipPostURL = regexp.MustCompile(`https://www\.paidmembershipspro\.com/([^/\s"'<>]+)/`)
)

var referenceIndicators = []string{
	"refer to",
	"see the",
	"check out",
	"view the",
	"documentation",
	"for more info",
	"full list",
	"defaults file",
}

var referenceFiles = []string{
	"/defaults.php",
	"/readme.md",
	"/documentation",
}

// ExtractLinks finds code snippet URLs in the HTML of a post. Structural
// matches win over free-text matches; when nothing is found a recipe URL is
// derived from a membership site post link.
func ExtractLinks(content string) []string {
	if urls := extractFromDOM(content); len(urls) > 0 {
		slog.Debug("Using DOM-based snippet URLs", "count", len(urls))
		return urls
	}

	urls := prioritize(matchCodeURLs(content), content)
	if len(urls) > 0 {
		return urls
	}

	if constructed := constructLibraryURLs(content); len(constructed) > 0 {
		slog.Debug("Constructed snippet URLs from post slug", "urls", constructed)
		return constructed
	}

	return nil
}

// ExtractLinksFromMarkdown applies the free-text pass only, for content that
// has no HTML structure left.
func ExtractLinksFromMarkdown(markdown string) []string {
	return prioritize(matchCodeURLs(markdown), markdown)
}

func extractFromDOM(content string) []string {
	if strings.Contains(content, snippetsLibrary) {
		if urls := extractLibraryURLs(content); len(urls) > 0 {
			return urls
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		slog.Debug("Failed to parse HTML for snippet links", "error", err)
		return nil
	}

	var urls []string

	doc.Find(`div[class*="file-meta"] a[href]`).Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if githubFileLink.MatchString(href) || rawFileLink.MatchString(href) {
			urls = append(urls, href)
		}
	})

	doc.Find(`div[class*="code-embed"] a[href], div[class*="gist"] a[href], div[class*="snippet"] a[href]`).Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if githubFileLink.MatchString(href) || rawFileLink.MatchString(href) || gistLink.MatchString(href) {
			urls = append(urls, href)
		}
	})

	library, other := partition(unique(urls), func(u string) bool {
		return strings.Contains(u, snippetsLibrary)
	})

	return append(library, other...)
}

func extractLibraryURLs(content string) []string {
	var urls []string

	for _, pattern := range libraryURLPatterns {
		for _, match := range pattern.FindAllString(content, -1) {
			match = strings.TrimRight(html.UnescapeString(match), `.,:;!?)"'>]`)

			if strings.Contains(match, "gist.paidmembershipspro.com/embed.js") {
				if target := embedTarget(match); target != "" {
					urls = append(urls, target)
					continue
				}
			}
			urls = append(urls, match)
		}
	}

	blob, rest := partition(unique(urls), func(u string) bool {
		return strings.Contains(u, "/blob/")
	})

	return append(blob, rest...)
}

// embedTarget decodes the target parameter of an embed.js script URL.
func embedTarget(embedURL string) string {
	parsed, err := url.Parse(embedURL)
	if err != nil {
		return ""
	}

	target := parsed.Query().Get("target")
	if strings.Contains(target, "github.com/strangerstudios/"+snippetsLibrary) {
		return target
	}

	return ""
}

func matchCodeURLs(content string) []string {
	var urls []string
	for _, pattern := range codeURLPatterns {
		urls = append(urls, pattern.FindAllString(content, -1)...)
	}
	return unique(urls)
}

func prioritize(urls []string, content string) []string {
	if len(urls) == 0 {
		return urls
	}

	library, other := partition(urls, func(u string) bool {
		return strings.Contains(u, snippetsLibrary)
	})
	if len(library) > 0 {
		return library
	}

	filtered := slices.DeleteFunc(slices.Clone(other), func(u string) bool {
		return isReferenceURL(u, content)
	})
	if len(filtered) > 0 {
		return filtered
	}

	return other
}

// isReferenceURL reports whether a link points at documentation rather than a recipe.
func isReferenceURL(link, content string) bool {
	if pos := strings.Index(content, link); pos >= 0 {
		start := max(0, pos-100)
		end := min(len(content), start+300)
		surrounding := strings.ToLower(content[start:end])

		for _, indicator := range referenceIndicators {
			if strings.Contains(surrounding, indicator) {
				return true
			}
		}
	}

	lower := strings.ToLower(link)
	for _, file := range referenceFiles {
		if strings.Contains(lower, file) {
			return true
		}
	}

	return false
}

func constructLibraryURLs(content string) []string {
	m := membershipPostURL.FindStringSubmatch(content)
	if m == nil {
		return nil
	}

	return []string{"https://github.com/strangerstudios/" + snippetsLibrary + "/blob/dev/misc/" + m[1] + ".php"}
}

func unique(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	result := make([]string, 0, len(urls))
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			result = append(result, u)
		}
	}
	return result
}

func partition(urls []string, pred func(string) bool) (matched, rest []string) {
	for _, u := range urls {
		if pred(u) {
			matched = append(matched, u)
		} else {
			rest = append(rest, u)
		}
	}
	return matched, rest
}
