package feed

import (
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// Entry is a feed item that points at a post to import.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	PublishedAt *time.Time
}
