package database

import (
	"time"
)

type Post struct {
	ID              int64
	URL             string
	Title           string
	Content         string // HTML of the extracted article body
	ContentMarkdown string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

type Snippet struct {
	ID           int64
	PostID       int64
	URL          string
	Type         string // repo, gist or raw
	Content      string
	IsUserEdited bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s Snippet) HasContent() bool {
	return s.Content != ""
}

type Prompt struct {
	ID        int64
	PostID    int64
	Content   string
	Hash      string // MD5 of Content
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoreResult reports the row an upsert landed on and whether it already existed.
type StoreResult struct {
	ID          int64
	IsDuplicate bool
}

// PostData is everything known about a stored post.
type PostData struct {
	Post        Post
	Snippets    []Snippet
	Prompt      *Prompt
	HasMarkdown bool
	HasSnippets bool
	HasPrompt   bool
}
