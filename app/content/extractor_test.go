package content

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Selectors(t *testing.T) {
	pageURL, _ := url.Parse("https://example.com/post/")

	tests := []struct {
		name       string
		html       string
		wantMethod string
		wantText   string
		wantTitle  string
	}{
		{
			name:       "article wins over content div",
			html:       `<html><head><title>T</title></head><body><div class="content">Sidebar</div><article>Main body</article></body></html>`,
			wantMethod: "article",
			wantText:   "Main body",
			wantTitle:  "T",
		},
		{
			name:       "entry content",
			html:       `<html><body><h1>Heading</h1><div class="entry-content"><p>Entry   text</p></div></body></html>`,
			wantMethod: `div[class*="entry-content"]`,
			wantText:   "Entry text",
			wantTitle:  "Heading",
		},
		{
			name:       "empty article skipped",
			html:       `<html><body><article>   </article><main><p>Main text</p></main></body></html>`,
			wantMethod: "main",
			wantText:   "Main text",
		},
	}

	extractor := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractor.Run([]byte(tt.html), pageURL)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, got.Method)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantTitle, got.Title)
		})
	}
}

func TestExtractor_BodyFallback(t *testing.T) {
	pageURL, _ := url.Parse("https://example.com/post/")

	got, err := NewExtractor().Run([]byte(`<html><body><span>x</span></body></html>`), pageURL)
	require.NoError(t, err)
	assert.Contains(t, []string{"readability", "body"}, got.Method)
	assert.Contains(t, got.Text, "x")
}

func TestExtractor_EmptyInput(t *testing.T) {
	_, err := NewExtractor().Run(nil, nil)
	assert.Error(t, err)
}

func TestTextOf(t *testing.T) {
	assert.Equal(t, "Hello world", TextOf("<p>Hello</p>\n\n<p>  world</p>"))
	assert.Equal(t, "", TextOf(""))
}

func TestToMarkdown(t *testing.T) {
	md, err := ToMarkdown(`<h1>Title</h1><p>Hello <strong>world</strong></p>`)
	require.NoError(t, err)
	assert.Contains(t, md, "# Title")
	assert.Contains(t, md, "**world**")
}

func TestTitleFromMarkdown(t *testing.T) {
	assert.Equal(t, "My Post", TitleFromMarkdown("intro\n\n#  My Post \n\nbody"))
	assert.Equal(t, "", TitleFromMarkdown("## Sub only\ntext"))
}
