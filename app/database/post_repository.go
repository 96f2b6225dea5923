package database

import (
	"database/sql"
	"fmt"
	"time"
)

// PostStore handles database operations for posts
type PostStore struct {
	db  *DB
	now func() time.Time
}

func NewPostStore(db *DB) *PostStore {
	return &PostStore{db: db, now: time.Now}
}

// Store inserts a post or, when the URL is already known, updates it in place.
func (r *PostStore) Store(url, title, content, markdown string, expiresIn time.Duration) (StoreResult, error) {
	existing, err := r.GetByURL(url)
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to check existing post: %w", err)
	}

	now := r.now()
	expiresAt := now.Add(expiresIn)

	if existing != nil {
		_, err = r.db.Exec(`
			UPDATE posts
			SET post_title = ?, post_content = ?, post_content_markdown = ?, updated_at = ?, expires_at = ?
			WHERE post_id = ?
		`, title, content, markdown, formatTime(now), formatTime(expiresAt), existing.ID)
		if err != nil {
			return StoreResult{}, fmt.Errorf("failed to update post: %w", err)
		}
		return StoreResult{ID: existing.ID, IsDuplicate: true}, nil
	}

	res, err := r.db.Exec(`
		INSERT INTO posts (post_url, post_title, post_content, post_content_markdown, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, url, title, content, markdown, formatTime(now), formatTime(now), formatTime(expiresAt))
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to get post id: %w", err)
	}

	return StoreResult{ID: id}, nil
}

func (r *PostStore) GetByID(id int64) (*Post, error) {
	return r.scanOne(`
		SELECT post_id, post_url, post_title, post_content, post_content_markdown, created_at, updated_at, expires_at
		FROM posts
		WHERE post_id = ?
	`, id)
}

func (r *PostStore) GetByURL(url string) (*Post, error) {
	return r.scanOne(`
		SELECT post_id, post_url, post_title, post_content, post_content_markdown, created_at, updated_at, expires_at
		FROM posts
		WHERE post_url = ?
		LIMIT 1
	`, url)
}

// DeleteExpired removes posts past their expiry; snippets and prompts follow by cascade.
func (r *PostStore) DeleteExpired(now time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM posts WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired posts: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted posts: %w", err)
	}

	return count, nil
}

func (r *PostStore) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func (r *PostStore) scanOne(query string, args ...any) (*Post, error) {
	var post Post
	var createdAt, updatedAt, expiresAt string

	err := r.db.QueryRow(query, args...).Scan(
		&post.ID, &post.URL, &post.Title, &post.Content, &post.ContentMarkdown,
		&createdAt, &updatedAt, &expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	post.CreatedAt = parseTime(createdAt)
	post.UpdatedAt = parseTime(updatedAt)
	post.ExpiresAt = parseTime(expiresAt)

	return &post, nil
}
