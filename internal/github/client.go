package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public GitHub REST endpoint
const DefaultBaseURL = "https://api.github.com"

const perPage = 100

// Client wraps the GitHub REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *ReviewCache
}

// NewClient creates a new GitHub API client.
// A zero timeout leaves requests unbounded; cancellation then comes only from ctx.
// cache may be nil.
func NewClient(baseURL, token string, timeout time.Duration, cache *ReviewCache) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache: cache,
	}
}

// doRequest makes an authenticated request to the GitHub API
func (c *Client) doRequest(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Add auth header if token is configured
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "review-stats")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	// Check rate limit
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining == "0" {
			resetTime := resp.Header.Get("X-RateLimit-Reset")
			resp.Body.Close()
			return nil, fmt.Errorf("rate limit exceeded, resets at: %s", resetTime)
		}
	}

	return resp, nil
}

// readAndClose reads the body and closes it. Use in paginated loops
// instead of defer resp.Body.Close() to avoid leaking connections.
func readAndClose(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// readErrorAndClose reads an error body and closes it.
func readErrorAndClose(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("github API error %d: %s", resp.StatusCode, string(body))
}

// getAllPages follows Link rel="next" from firstURL and decodes every page
// into a slice of T. An error on any page fails the whole listing.
func getAllPages[T any](ctx context.Context, c *Client, firstURL string) ([]T, error) {
	all := []T{}
	url := firstURL

	for url != "" {
		resp, err := c.doRequest(ctx, http.MethodGet, url)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			return nil, readErrorAndClose(resp)
		}

		rateLimit := GetRateLimitFromHeaders(resp.Header)
		slog.Debug("GitHub page fetched",
			"url", url,
			"rate_limit_remaining", rateLimit.Remaining,
		)

		var page []T
		linkHeader := resp.Header.Get("Link")
		if err := readAndClose(resp, &page); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		url = parseLinkNext(linkHeader)
	}

	return all, nil
}

// ListPullRequests fetches every PR (open and closed) of a repository.
// No date filtering happens here; the pulls API cannot filter by creation time.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=all&sort=created&direction=desc&per_page=%d",
		c.baseURL, owner, repo, perPage)

	prs, err := getAllPages[PullRequest](ctx, c, url)
	if err != nil {
		return nil, fmt.Errorf("list pull requests %s/%s: %w", owner, repo, err)
	}
	return prs, nil
}

// ListReviews fetches all reviews of one PR in the order GitHub returns them
// (chronological). Results are served from the cache when present and fresh.
func (c *Client) ListReviews(ctx context.Context, owner, repo string, number int) ([]Review, error) {
	ref := PRRef{Owner: owner, Repo: repo, Number: number}
	if c.cache != nil {
		if reviews, found := c.cache.Get(ref); found {
			return reviews, nil
		}
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews?per_page=%d",
		c.baseURL, owner, repo, number, perPage)

	reviews, err := getAllPages[Review](ctx, c, url)
	if err != nil {
		return nil, fmt.Errorf("list reviews %s/%s#%d: %w", owner, repo, number, err)
	}

	if c.cache != nil {
		c.cache.Put(ref, reviews)
	}

	return reviews, nil
}

// RateLimit holds GitHub rate limit info
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// GetRateLimit fetches current rate limit status
func (c *Client) GetRateLimit(ctx context.Context) (*RateLimit, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/rate_limit")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, readErrorAndClose(resp)
	}

	var result struct {
		Rate struct {
			Limit     int   `json:"limit"`
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"rate"`
	}

	if err := readAndClose(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &RateLimit{
		Limit:     result.Rate.Limit,
		Remaining: result.Rate.Remaining,
		Reset:     time.Unix(result.Rate.Reset, 0),
	}, nil
}

// GetRateLimitFromHeaders extracts rate limit info from response headers
func GetRateLimitFromHeaders(headers http.Header) *RateLimit {
	limit, _ := strconv.Atoi(headers.Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(headers.Get("X-RateLimit-Remaining"))
	reset, _ := strconv.ParseInt(headers.Get("X-RateLimit-Reset"), 10, 64)

	return &RateLimit{
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Unix(reset, 0),
	}
}

// parseLinkNext extracts the "next" URL from a GitHub Link header.
// Format: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkNext(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, `rel="next"`) {
			start := strings.Index(part, "<")
			end := strings.Index(part, ">")
			if start >= 0 && end > start {
				return part[start+1 : end]
			}
		}
	}
	return ""
}
