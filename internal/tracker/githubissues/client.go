// Package githubissues implements the tracker interface on the GitHub
// REST issues API.
package githubissues

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/firehall/rigcheck/internal/tracker"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL = "https://api.github.com"
	maxRetries     = 3
	retryDelay     = time.Second
	maxPages       = 50
)

type Client struct {
	baseURL string
	token   string
	owner   string
	repo    string
	httpc   *http.Client
}

func New(baseURL, token, owner, repo string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		owner:   owner,
		repo:    repo,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithHTTPClient swaps the underlying HTTP client (tests).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpc = h
	return c
}

func (c *Client) issuesPath() string {
	return "/repos/" + c.owner + "/" + c.repo + "/issues"
}

func (c *Client) buildURL(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do performs one authenticated request with retry on 429/5xx. A context
// credential, when present, replaces the configured token so admin calls
// ride on the caller's identity.
func (c *Client) do(ctx context.Context, method, urlStr string, body any) ([]byte, http.Header, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, errors.Wrap(err, "marshal request")
		}
		payload = b
	}

	token := c.token
	if cred, ok := tracker.Credential(ctx); ok {
		token = cred
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, r)
		if err != nil {
			return nil, nil, errors.Wrap(err, "new request")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = errors.Wrap(err, "do request")
			continue
		}
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrap(err, "read response")
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, nil, tracker.ErrUnauthorized
		case resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") ||
			resp.StatusCode >= 500:
			delay := retryDelay * time.Duration(1<<attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			lastErr = errors.Errorf("github api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		case resp.StatusCode >= 300:
			return nil, nil, errors.Errorf("github api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}

		return respBody, resp.Header, nil
	}
	return nil, nil, errors.Wrapf(lastErr, "github: retries exhausted (%d)", maxRetries+1)
}

// ghIssue mirrors the REST wire shape.
type ghIssue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	User *struct {
		Login string `json:"login"`
	} `json:"user"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}

func (g *ghIssue) toIssue() tracker.Issue {
	out := tracker.Issue{
		Number:    g.Number,
		Title:     g.Title,
		Body:      g.Body,
		State:     g.State,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
		ClosedAt:  g.ClosedAt,
	}
	for _, l := range g.Labels {
		out.Labels = append(out.Labels, l.Name)
	}
	if g.User != nil {
		out.Author = g.User.Login
	}
	return out
}

var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

func nextPage(h http.Header) (string, bool) {
	link := h.Get("Link")
	if link == "" {
		return "", false
	}
	m := linkNextPattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

func (c *Client) ListIssues(ctx context.Context, f tracker.ListFilter) ([]tracker.Issue, error) {
	q := url.Values{}
	if f.State != "" {
		q.Set("state", f.State)
	} else {
		q.Set("state", "all")
	}
	if len(f.Labels) > 0 {
		q.Set("labels", strings.Join(f.Labels, ","))
	}
	if f.Since != nil {
		q.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	perPage := f.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}
	q.Set("per_page", strconv.Itoa(perPage))

	urlStr := c.buildURL(c.issuesPath(), q)
	var out []tracker.Issue
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, errors.Errorf("github: pagination limit exceeded after %d pages", maxPages)
		}
		body, headers, err := c.do(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, errors.Wrap(err, "list issues")
		}
		var issues []ghIssue
		if err := json.Unmarshal(body, &issues); err != nil {
			return nil, errors.Wrap(err, "parse issues")
		}
		for i := range issues {
			// The issues endpoint returns PRs too; skip them.
			if issues[i].PullRequest != nil {
				continue
			}
			out = append(out, issues[i].toIssue())
		}
		next, ok := nextPage(headers)
		if !ok {
			break
		}
		urlStr = next
	}
	return out, nil
}

func (c *Client) CreateIssue(ctx context.Context, in tracker.NewIssue) (*tracker.Issue, error) {
	req := map[string]any{
		"title": in.Title,
		"body":  in.Body,
	}
	if len(in.Labels) > 0 {
		req["labels"] = in.Labels
	}
	body, _, err := c.do(ctx, http.MethodPost, c.buildURL(c.issuesPath(), nil), req)
	if err != nil {
		return nil, errors.Wrap(err, "create issue")
	}
	var gi ghIssue
	if err := json.Unmarshal(body, &gi); err != nil {
		return nil, errors.Wrap(err, "parse create response")
	}
	issue := gi.toIssue()
	return &issue, nil
}

func (c *Client) AddComment(ctx context.Context, number int, body string) error {
	urlStr := c.buildURL(c.issuesPath()+"/"+strconv.Itoa(number)+"/comments", nil)
	_, _, err := c.do(ctx, http.MethodPost, urlStr, map[string]any{"body": body})
	return errors.Wrapf(err, "comment on issue #%d", number)
}

func (c *Client) PatchIssue(ctx context.Context, number int, p tracker.IssuePatch) error {
	req := map[string]any{}
	if p.State != nil {
		req["state"] = *p.State
	}
	if p.Labels != nil {
		req["labels"] = *p.Labels
	}
	if len(req) == 0 {
		return nil
	}
	urlStr := c.buildURL(c.issuesPath()+"/"+strconv.Itoa(number), nil)
	_, _, err := c.do(ctx, http.MethodPatch, urlStr, req)
	return errors.Wrapf(err, "patch issue #%d", number)
}

func (c *Client) GetIssue(ctx context.Context, number int) (*tracker.Issue, error) {
	urlStr := c.buildURL(c.issuesPath()+"/"+strconv.Itoa(number), nil)
	body, _, err := c.do(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "get issue #%d", number)
	}
	var gi ghIssue
	if err := json.Unmarshal(body, &gi); err != nil {
		return nil, errors.Wrap(err, "parse issue")
	}
	issue := gi.toIssue()
	return &issue, nil
}
