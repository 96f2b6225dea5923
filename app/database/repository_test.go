package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	return db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPostStore_StoreInsertsThenUpdates(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostStore(db)

	first, err := posts.Store("https://example.com/a", "Title A", "<p>a</p>", "a", time.Hour)
	require.NoError(t, err)
	assert.False(t, first.IsDuplicate)
	assert.NotZero(t, first.ID)

	second, err := posts.Store("https://example.com/a", "Title B", "<p>b</p>", "b", time.Hour)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.ID, second.ID)

	post, err := posts.GetByID(first.ID)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "Title B", post.Title)
	assert.Equal(t, "<p>b</p>", post.Content)
	assert.Equal(t, "b", post.ContentMarkdown)

	count, err := posts.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPostStore_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostStore(db)

	post, err := posts.GetByID(42)
	require.NoError(t, err)
	assert.Nil(t, post)

	post, err = posts.GetByURL("https://example.com/missing")
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestPostStore_DeleteExpiredCascades(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	posts := NewPostStore(db)
	posts.now = fixedClock(base)
	snippets := NewSnippetStore(db)
	prompts := NewPromptStore(db)

	old, err := posts.Store("https://example.com/old", "Old", "", "old", time.Hour)
	require.NoError(t, err)
	fresh, err := posts.Store("https://example.com/fresh", "Fresh", "", "fresh", 48*time.Hour)
	require.NoError(t, err)

	_, err = snippets.Store(old.ID, "https://github.com/o/r/blob/main/a.php", "repo", "", false)
	require.NoError(t, err)
	_, err = prompts.Store(old.ID, "prompt for old")
	require.NoError(t, err)
	_, err = snippets.Store(fresh.ID, "https://github.com/o/r/blob/main/b.php", "repo", "", false)
	require.NoError(t, err)

	deleted, err := posts.DeleteExpired(base.Add(2 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	gone, err := posts.GetByID(old.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	snippetCount, err := snippets.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, snippetCount)

	promptCount, err := prompts.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, promptCount)
}

func TestSnippetStore_DuplicateOnlyRewrittenWhenUserEdited(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostStore(db)
	snippets := NewSnippetStore(db)

	post, err := posts.Store("https://example.com/p", "P", "", "", time.Hour)
	require.NoError(t, err)

	url := "https://gist.github.com/someone/abc123"
	first, err := snippets.Store(post.ID, url, "gist", "original", false)
	require.NoError(t, err)
	assert.False(t, first.IsDuplicate)

	second, err := snippets.Store(post.ID, url, "gist", "ignored", false)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.ID, second.ID)

	snippet, err := snippets.GetByURL(url)
	require.NoError(t, err)
	assert.Equal(t, "original", snippet.Content)
	assert.False(t, snippet.IsUserEdited)

	third, err := snippets.Store(post.ID, url, "gist", "edited", true)
	require.NoError(t, err)
	assert.True(t, third.IsDuplicate)

	snippet, err = snippets.GetByURL(url)
	require.NoError(t, err)
	assert.Equal(t, "edited", snippet.Content)
	assert.True(t, snippet.IsUserEdited)
}

func TestSnippetStore_ListUpdateDelete(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostStore(db)
	snippets := NewSnippetStore(db)

	post, err := posts.Store("https://example.com/p", "P", "", "", time.Hour)
	require.NoError(t, err)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	snippets.now = fixedClock(base)
	a, err := snippets.Store(post.ID, "https://raw.githubusercontent.com/o/r/main/a.php", "raw", "a", false)
	require.NoError(t, err)
	snippets.now = fixedClock(base.Add(time.Minute))
	b, err := snippets.Store(post.ID, "https://raw.githubusercontent.com/o/r/main/b.php", "raw", "b", false)
	require.NoError(t, err)

	list, err := snippets.ListByPost(post.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)

	err = snippets.Update(a.ID, "https://github.com/o/r/blob/main/c.php", "repo", "c")
	require.NoError(t, err)

	updated, err := snippets.GetByURL("https://github.com/o/r/blob/main/c.php")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "repo", updated.Type)
	assert.Equal(t, "c", updated.Content)
	assert.True(t, updated.IsUserEdited)

	assert.Error(t, snippets.Update(9999, "https://example.com", "raw", ""))

	require.NoError(t, snippets.Delete(b.ID))
	list, err = snippets.ListByPost(post.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPromptStore_DeduplicatesByHash(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostStore(db)
	prompts := NewPromptStore(db)

	post, err := posts.Store("https://example.com/p", "P", "", "", time.Hour)
	require.NoError(t, err)

	first, err := prompts.Store(post.ID, "same text")
	require.NoError(t, err)
	assert.False(t, first.IsDuplicate)

	second, err := prompts.Store(post.ID, "same text")
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.ID, second.ID)

	third, err := prompts.Store(post.ID, "different text")
	require.NoError(t, err)
	assert.False(t, third.IsDuplicate)

	latest, err := prompts.LatestForPost(post.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "different text", latest.Content)
	assert.Equal(t, HashPrompt("different text"), latest.Hash)

	count, err := prompts.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHashPrompt(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", HashPrompt("hello"))
}

func TestLoadPostData(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostStore(db)
	snippets := NewSnippetStore(db)
	prompts := NewPromptStore(db)

	missing, err := LoadPostData(posts, snippets, prompts, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	post, err := posts.Store("https://example.com/p", "P", "<p>x</p>", "x", time.Hour)
	require.NoError(t, err)

	data, err := LoadPostData(posts, snippets, prompts, post.ID)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.True(t, data.HasMarkdown)
	assert.False(t, data.HasSnippets)
	assert.False(t, data.HasPrompt)

	_, err = snippets.Store(post.ID, "https://github.com/o/r/blob/main/a.php", "repo", "code", false)
	require.NoError(t, err)
	_, err = prompts.Store(post.ID, "the prompt")
	require.NoError(t, err)

	data, err = LoadPostData(posts, snippets, prompts, post.ID)
	require.NoError(t, err)
	assert.True(t, data.HasSnippets)
	assert.True(t, data.HasPrompt)
	assert.Equal(t, "the prompt", data.Prompt.Content)
}

func TestResetDatabase(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostStore(db)

	_, err := posts.Store("https://example.com/p", "P", "", "", time.Hour)
	require.NoError(t, err)

	require.NoError(t, ResetDatabase(db))

	count, err := posts.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
