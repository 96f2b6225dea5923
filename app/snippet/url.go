package snippet

import (
	"errors"
	"fmt"
	"regexp"
)

type Type string

const (
	TypeRepo Type = "repo"
	TypeGist Type = "gist"
	TypeRaw  Type = "raw"
)

const defaultRef = "master"

var ErrInvalidURL = errors.New("invalid GitHub URL format")

var (
	repoURLPattern = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)(/blob/([^/]+)/(.+))?$`)
	gistURLPattern = regexp.MustCompile(`^https?://gist\.github\.com/([^/]+)/([a-f0-9]+)`)
	rawURLPattern  = regexp.MustCompile(`^https?://raw\.githubusercontent\.com/([^/]+)/([^/]+)/([^/]+)/(.+)$`)
)

// Ref is a parsed code location on GitHub.
type Ref struct {
	Type   Type
	URL    string
	Owner  string
	Repo   string
	Ref    string
	Path   string
	GistID string
}

func ParseURL(url string) (Ref, error) {
	if m := repoURLPattern.FindStringSubmatch(url); m != nil {
		ref := Ref{
			Type:  TypeRepo,
			URL:   url,
			Owner: m[1],
			Repo:  m[2],
			Ref:   defaultRef,
		}
		if m[3] != "" {
			ref.Ref = m[4]
			ref.Path = m[5]
		}
		return ref, nil
	}

	if m := gistURLPattern.FindStringSubmatch(url); m != nil {
		return Ref{
			Type:   TypeGist,
			URL:    url,
			Owner:  m[1],
			GistID: m[2],
		}, nil
	}

	if m := rawURLPattern.FindStringSubmatch(url); m != nil {
		return Ref{
			Type:  TypeRaw,
			URL:   url,
			Owner: m[1],
			Repo:  m[2],
			Ref:   m[3],
			Path:  m[4],
		}, nil
	}

	return Ref{}, fmt.Errorf("%w: %s", ErrInvalidURL, url)
}

// TypeOf returns the snippet type of url, or an empty string when url is not a GitHub code URL.
func TypeOf(url string) Type {
	ref, err := ParseURL(url)
	if err != nil {
		return ""
	}
	return ref.Type
}
