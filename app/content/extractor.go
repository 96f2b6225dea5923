package content

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// contentSelectors are probed in order; the first non-empty match is the post body.
var contentSelectors = []string{
	"article",
	`div[class*="post-content"]`,
	`div[class*="entry-content"]`,
	`div[class*="content"]`,
	"main",
	`div[class*="main"]`,
}

type Extracted struct {
	Title  string
	HTML   string
	Text   string
	Method string
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Run(data []byte, pageURL *url.URL) (*Extracted, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := normalizeSpace(doc.Find("title").First().Text())
	if title == "" {
		title = normalizeSpace(doc.Find("h1").First().Text())
	}

	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		text := normalizeSpace(sel.Text())
		if text == "" {
			continue
		}

		outer, err := goquery.OuterHtml(sel)
		if err != nil {
			return nil, fmt.Errorf("failed to render content node: %w", err)
		}

		return &Extracted{Title: title, HTML: outer, Text: text, Method: selector}, nil
	}

	if extracted := e.readability(data, pageURL, title); extracted != nil {
		return extracted, nil
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("no content found in HTML")
	}

	outer, err := goquery.OuterHtml(body)
	if err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}

	return &Extracted{Title: title, HTML: outer, Text: normalizeSpace(body.Text()), Method: "body"}, nil
}

func (e *Extractor) readability(data []byte, pageURL *url.URL, title string) *Extracted {
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil || article.Node == nil {
		slog.Debug("Readability extraction failed", "error", err)
		return nil
	}

	var htmlBuf bytes.Buffer
	if err := html.Render(&htmlBuf, article.Node); err != nil {
		return nil
	}

	var textBuf bytes.Buffer
	if err := article.RenderText(&textBuf); err != nil {
		return nil
	}

	text := normalizeSpace(textBuf.String())
	if text == "" {
		return nil
	}

	if title == "" {
		title = normalizeSpace(article.Title())
	}

	return &Extracted{Title: title, HTML: htmlBuf.String(), Text: text, Method: "readability"}
}

// TextOf returns the whitespace-normalized text of an HTML fragment.
func TextOf(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeSpace(fragment)
	}
	return normalizeSpace(doc.Text())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
