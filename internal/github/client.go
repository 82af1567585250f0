// Package github is a minimal authenticated GitHub API client used to
// enrich push notifications with the commits of a compare range. It
// keeps its own mutable request cache behind a mutex; the read-only
// routing and alias structures never depend on it.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.github.com"

type Commit struct {
	SHA     string
	Message string
	Author  string
	URL     string
}

type Client struct {
	user     string
	password string
	baseURL  string
	httpc    *http.Client

	// mu guards cache. Webhook handlers run concurrently and this is
	// the one mutable collaborator they share.
	mu    sync.Mutex
	cache map[string][]Commit
}

func NewClient(user, password string) *Client {
	return &Client{
		user:     user,
		password: password,
		baseURL:  defaultBaseURL,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		cache:    make(map[string][]Commit),
	}
}

// CompareCommits lists the commits between base and head of a
// repository, most recent last. Results are cached per range: GitHub
// redelivers webhooks, and a compare range is immutable once pushed.
func (c *Client) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]Commit, error) {
	key := owner + "/" + repo + "/" + base + "..." + head

	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	url := fmt.Sprintf("%s/repos/%s/%s/compare/%s...%s", c.baseURL, owner, repo, base, head)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github: build request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: compare %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github: compare %s: status %d: %s", key, resp.StatusCode, body)
	}

	var parsed struct {
		Commits []struct {
			SHA    string `json:"sha"`
			Commit struct {
				Message string `json:"message"`
				Author  struct {
					Name string `json:"name"`
				} `json:"author"`
			} `json:"commit"`
			HTMLURL string `json:"html_url"`
		} `json:"commits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("github: compare %s: decode: %w", key, err)
	}

	commits := make([]Commit, 0, len(parsed.Commits))
	for _, pc := range parsed.Commits {
		commits = append(commits, Commit{
			SHA:     pc.SHA,
			Message: pc.Commit.Message,
			Author:  pc.Commit.Author.Name,
			URL:     pc.HTMLURL,
		})
	}

	c.mu.Lock()
	c.cache[key] = commits
	c.mu.Unlock()
	return commits, nil
}
