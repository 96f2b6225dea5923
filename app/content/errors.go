package content

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidURL          = errors.New("invalid URL format")
	ErrPaywall             = errors.New("paywall detected")
	ErrInsufficientContent = errors.New("insufficient content")
	ErrFetchFailed         = errors.New("fetch failed")
)

// AttemptError records why a single strategy did not produce content.
type AttemptError struct {
	Strategy Strategy
	Err      error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

// FetchError is returned once every strategy has failed. Reason is one of
// ErrPaywall, ErrInsufficientContent or ErrFetchFailed.
type FetchError struct {
	URL      string
	Reason   error
	Attempts []AttemptError
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, attempt.Error())
	}
	return fmt.Sprintf("%v for %s (%s)", e.Reason, e.URL, strings.Join(parts, "; "))
}

func (e *FetchError) Unwrap() error {
	return e.Reason
}

// Kind is the short machine-readable name of the failure reason.
func (e *FetchError) Kind() string {
	switch {
	case errors.Is(e.Reason, ErrPaywall):
		return "paywall"
	case errors.Is(e.Reason, ErrInsufficientContent):
		return "insufficient_content"
	default:
		return "fetch_failed"
	}
}

// UserMessage explains the failure and points at the manual-paste path.
func (e *FetchError) UserMessage() string {
	switch e.Kind() {
	case "paywall":
		return "This post appears to be behind a paywall or membership restriction. Please copy the post content and paste it manually."
	case "insufficient_content":
		return "Not enough readable content could be extracted from this post. Please paste the post content manually."
	default:
		return "Failed to fetch the post. Please check the URL or paste the post content manually."
	}
}

func newFetchError(url string, attempts []AttemptError) *FetchError {
	reason := ErrFetchFailed
	for _, attempt := range attempts {
		if errors.Is(attempt.Err, ErrPaywall) {
			reason = ErrPaywall
			break
		}
		if errors.Is(attempt.Err, ErrInsufficientContent) {
			reason = ErrInsufficientContent
		}
	}

	return &FetchError{URL: url, Reason: reason, Attempts: attempts}
}
