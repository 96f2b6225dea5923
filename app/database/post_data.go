package database

import (
	"fmt"
)

// LoadPostData gathers a post with its snippets and latest prompt. It returns
// nil when the post does not exist.
func LoadPostData(posts PostRepository, snippets SnippetRepository, prompts PromptRepository, postID int64) (*PostData, error) {
	post, err := posts.GetByID(postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}

	postSnippets, err := snippets.ListByPost(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snippets for post %d: %w", postID, err)
	}

	prompt, err := prompts.LatestForPost(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt for post %d: %w", postID, err)
	}

	return &PostData{
		Post:        *post,
		Snippets:    postSnippets,
		Prompt:      prompt,
		HasMarkdown: post.ContentMarkdown != "",
		HasSnippets: len(postSnippets) > 0,
		HasPrompt:   prompt != nil,
	}, nil
}
