package database

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// PromptStore handles database operations for generated prompts
type PromptStore struct {
	db  *DB
	now func() time.Time
}

func NewPromptStore(db *DB) *PromptStore {
	return &PromptStore{db: db, now: time.Now}
}

func HashPrompt(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store saves a prompt unless identical text was stored before, in which case
// the existing row is reported as a duplicate.
func (r *PromptStore) Store(postID int64, content string) (StoreResult, error) {
	hash := HashPrompt(content)

	var existingID int64
	err := r.db.QueryRow(`SELECT prompt_id FROM prompts WHERE prompt_hash = ? LIMIT 1`, hash).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return StoreResult{}, fmt.Errorf("failed to check existing prompt: %w", err)
	}
	if err == nil {
		return StoreResult{ID: existingID, IsDuplicate: true}, nil
	}

	now := formatTime(r.now())
	res, err := r.db.Exec(`
		INSERT INTO prompts (post_id, prompt_content, prompt_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, postID, content, hash, now, now)
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to insert prompt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return StoreResult{}, fmt.Errorf("failed to get prompt id: %w", err)
	}

	return StoreResult{ID: id}, nil
}

func (r *PromptStore) LatestForPost(postID int64) (*Prompt, error) {
	var prompt Prompt
	var createdAt, updatedAt string

	err := r.db.QueryRow(`
		SELECT prompt_id, post_id, prompt_content, prompt_hash, created_at, updated_at
		FROM prompts
		WHERE post_id = ?
		ORDER BY created_at DESC, prompt_id DESC
		LIMIT 1
	`, postID).Scan(&prompt.ID, &prompt.PostID, &prompt.Content, &prompt.Hash, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest prompt: %w", err)
	}

	prompt.CreatedAt = parseTime(createdAt)
	prompt.UpdatedAt = parseTime(updatedAt)

	return &prompt, nil
}

func (r *PromptStore) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM prompts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prompts: %w", err)
	}
	return count, nil
}
