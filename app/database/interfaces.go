package database

import (
	"time"
)

type PostRepository interface {
	Store(url, title, content, markdown string, expiresIn time.Duration) (StoreResult, error)
	GetByID(id int64) (*Post, error)
	GetByURL(url string) (*Post, error)
	DeleteExpired(now time.Time) (int64, error)
	Count() (int, error)
}

type SnippetRepository interface {
	Store(postID int64, url, snippetType, content string, userEdited bool) (StoreResult, error)
	GetByURL(url string) (*Snippet, error)
	ListByPost(postID int64) ([]Snippet, error)
	Update(id int64, url, snippetType, content string) error
	Delete(id int64) error
	Count() (int, error)
}

type PromptRepository interface {
	Store(postID int64, content string) (StoreResult, error)
	LatestForPost(postID int64) (*Prompt, error)
	Count() (int, error)
}

var (
	_ PostRepository    = (*PostStore)(nil)
	_ SnippetRepository = (*SnippetStore)(nil)
	_ PromptRepository  = (*PromptStore)(nil)
)
