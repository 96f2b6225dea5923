package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SnippetStore handles database operations for code snippets
type SnippetStore struct {
	db  *DB
	now func() time.Time
}

func NewSnippetStore(db *DB) *SnippetStore {
	return &SnippetStore{db: db, now: time.Now}
}

// Store inserts a snippet keyed by URL. A known URL is only rewritten when the
// incoming snippet was edited by the user.
func (r *SnippetStore) Store(postID int64, url, snippetType, content string, userEdited bool) (StoreResult, error) {
	existing, err := r.GetByURL(url)
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to check existing snippet: %w", err)
	}

	now := formatTime(r.now())

	if existing != nil {
		if userEdited {
			_, err = r.db.Exec(`
				UPDATE snippets
				SET snippet_content = ?, is_user_edited = 1, updated_at = ?
				WHERE snippet_id = ?
			`, content, now, existing.ID)
			if err != nil {
				return StoreResult{}, fmt.Errorf("failed to update snippet: %w", err)
			}
		}
		return StoreResult{ID: existing.ID, IsDuplicate: true}, nil
	}

	res, err := r.db.Exec(`
		INSERT INTO snippets (post_id, snippet_url, snippet_type, snippet_content, is_user_edited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, postID, url, snippetType, content, userEdited, now, now)
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to insert snippet: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to get snippet id: %w", err)
	}

	return StoreResult{ID: id}, nil
}

func (r *SnippetStore) GetByURL(url string) (*Snippet, error) {
	var snippet Snippet
	var createdAt, updatedAt string

	err := r.db.QueryRow(`
		SELECT snippet_id, post_id, snippet_url, snippet_type, snippet_content, is_user_edited, created_at, updated_at
		FROM snippets
		WHERE snippet_url = ?
		LIMIT 1
	`, url).Scan(&snippet.ID, &snippet.PostID, &snippet.URL, &snippet.Type, &snippet.Content,
		&snippet.IsUserEdited, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet: %w", err)
	}

	snippet.CreatedAt = parseTime(createdAt)
	snippet.UpdatedAt = parseTime(updatedAt)

	return &snippet, nil
}

// ListByPost returns the snippets of a post, newest first.
func (r *SnippetStore) ListByPost(postID int64) ([]Snippet, error) {
	rows, err := r.db.Query(`
		SELECT snippet_id, post_id, snippet_url, snippet_type, snippet_content, is_user_edited, created_at, updated_at
		FROM snippets
		WHERE post_id = ?
		ORDER BY created_at DESC, snippet_id DESC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var snippet Snippet
		var createdAt, updatedAt string
		if err := rows.Scan(&snippet.ID, &snippet.PostID, &snippet.URL, &snippet.Type, &snippet.Content,
			&snippet.IsUserEdited, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		snippet.CreatedAt = parseTime(createdAt)
		snippet.UpdatedAt = parseTime(updatedAt)
		snippets = append(snippets, snippet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snippets: %w", err)
	}

	return snippets, nil
}

// Update rewrites a snippet and marks it as user edited.
func (r *SnippetStore) Update(id int64, url, snippetType, content string) error {
	res, err := r.db.Exec(`
		UPDATE snippets
		SET snippet_url = ?, snippet_type = ?, snippet_content = ?, is_user_edited = 1, updated_at = ?
		WHERE snippet_id = ?
	`, url, snippetType, content, formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update snippet: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated snippet: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snippet %d not found", id)
	}

	return nil
}

func (r *SnippetStore) Delete(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM snippets WHERE snippet_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}
	return nil
}

func (r *SnippetStore) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM snippets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snippets: %w", err)
	}
	return count, nil
}
