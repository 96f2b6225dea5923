package config

type FetchStrategy string

const (
	FetchEnhanced       FetchStrategy = "enhanced"
	FetchCookieFreeOnly FetchStrategy = "cookie_free_only"
	FetchInternalOnly   FetchStrategy = "internal_only"
	FetchStandard       FetchStrategy = "standard"
)

type DebugMode string

const (
	DebugProduction DebugMode = "production"
	DebugReview     DebugMode = "review"
	DebugVerbose    DebugMode = "debug"
)

const (
	DefaultExpiryMinutes    = 60
	MinExpiryMinutes        = 5
	DefaultMinContentLength = 200
)

const DefaultPromptTemplate = `Rewrite the following post so that it explains the code recipe step by step.

Title: [post_title]

Existing post content:
[existing_post_content]

Code recipe:
[link_code_recipe]`

// Settings are the runtime options editable through the API and persisted as YAML.
type Settings struct {
	PromptTemplate   string        `yaml:"prompt_template" json:"prompt_template"`
	GitHubToken      string        `yaml:"github_token" json:"github_token"`
	ExpiryMinutes    int           `yaml:"expiry_minutes" json:"expiry_minutes"`
	FetchStrategy    FetchStrategy `yaml:"fetch_strategy" json:"fetch_strategy"`
	DebugMode        DebugMode     `yaml:"debug_mode" json:"debug_mode"`
	InternalHosts    []string      `yaml:"internal_hosts" json:"internal_hosts"`
	MinContentLength int           `yaml:"min_content_length" json:"min_content_length"`
}

// ExpirySeconds is the lifetime applied to stored posts.
func (s Settings) ExpirySeconds() int {
	return s.ExpiryMinutes * 60
}

// Masked returns a copy safe to hand to API clients.
func (s Settings) Masked() Settings {
	masked := s
	masked.InternalHosts = append([]string(nil), s.InternalHosts...)
	if len(s.GitHubToken) > 4 {
		masked.GitHubToken = "****" + s.GitHubToken[len(s.GitHubToken)-4:]
	} else if s.GitHubToken != "" {
		masked.GitHubToken = "****"
	}
	return masked
}
