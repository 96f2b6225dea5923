package prompt

import (
	"errors"
	"strings"

	"github.com/lysyi3m/prompt-comb/app/database"
)

const (
	PlaceholderTitle   = "[post_title]"
	PlaceholderContent = "[existing_post_content]"
	PlaceholderCode    = "[link_code_recipe]"
)

const noSnippetsText = "[No code snippets found]"

var ErrNoTemplate = errors.New("no prompt template configured")

var requiredPlaceholders = []string{PlaceholderTitle, PlaceholderContent, PlaceholderCode}

// Generate fills template with the post title, its Markdown and the code of
// every snippet that has content.
func Generate(template, title, markdown string, snippets []database.Snippet) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", ErrNoTemplate
	}

	replacer := strings.NewReplacer(
		PlaceholderTitle, title,
		PlaceholderContent, markdown,
		PlaceholderCode, codeBlock(snippets),
	)

	return replacer.Replace(template), nil
}

func codeBlock(snippets []database.Snippet) string {
	var b strings.Builder
	for _, s := range snippets {
		if !s.HasContent() {
			continue
		}
		b.WriteString("// Source: ")
		b.WriteString(s.URL)
		b.WriteString("\n")
		b.WriteString(s.Content)
		b.WriteString("\n\n")
	}

	if b.Len() == 0 {
		return noSnippetsText
	}
	return b.String()
}

// ValidateTemplate returns the required placeholders missing from template.
func ValidateTemplate(template string) []string {
	var missing []string
	for _, placeholder := range requiredPlaceholders {
		if !strings.Contains(template, placeholder) {
			missing = append(missing, placeholder)
		}
	}
	return missing
}
