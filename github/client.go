package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"locrepos/logger"
	"locrepos/models"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 30 * time.Second

	// PerPage is the page size requested from every paginated endpoint.
	PerPage = 100

	acceptHeader = "application/vnd.github.v3+json"
	userAgent    = "locrepos"
)

// Client represents a GitHub API client
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	perPage    int
}

// NewClient builds a client for baseURL. A non-empty token is sent as a
// bearer token on every request.
func NewClient(token, baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := &http.Client{}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	} else {
		logger.Warn("No GitHub token configured, requests are unauthenticated")
	}
	httpClient.Timeout = timeout

	logger.Info("Initializing GitHub client",
		zap.String("base_url", parsed.String()),
		zap.Duration("timeout", timeout))

	return &Client{
		httpClient: httpClient,
		baseURL:    parsed,
		perPage:    PerPage,
	}, nil
}

// FetchUsersByLocation returns up to maxUsers logins whose profile location
// matches location, in the order the search API ranks them.
func (c *Client) FetchUsersByLocation(ctx context.Context, location string, maxUsers int) ([]string, error) {
	log := logger.With(zap.String("location", location))

	users, err := fetchBounded(ctx, maxUsers, c.perPage, func(ctx context.Context, page int) ([]*gh.User, error) {
		endpoint := c.endpoint(page, "search", "users")
		q := endpoint.Query()
		q.Set("q", locationQualifier(location))
		endpoint.RawQuery = q.Encode()

		log.Debug("Fetching users page", zap.Int("page", page), zap.String("url", endpoint.String()))

		var result gh.UsersSearchResult
		ok, err := c.getPage(ctx, endpoint, &result)
		if err != nil || !ok {
			return nil, err
		}
		return result.Users, nil
	})
	if err != nil {
		log.Error("Failed to fetch users", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch users for location %q: %w", location, err)
	}

	logins := make([]string, 0, len(users))
	for _, u := range users {
		logins = append(logins, u.GetLogin())
	}

	log.Info("Fetched users", zap.Int("count", len(logins)), zap.Int("max_users", maxUsers))
	return logins, nil
}

// FetchRepoDetails returns up to maxRepos repositories owned by username,
// projected into flat records.
func (c *Client) FetchRepoDetails(ctx context.Context, username string, maxRepos int) ([]models.Repository, error) {
	log := logger.With(zap.String("username", username))

	repos, err := fetchBounded(ctx, maxRepos, c.perPage, func(ctx context.Context, page int) ([]*repoPayload, error) {
		endpoint := c.endpoint(page, "users", username, "repos")

		log.Debug("Fetching repositories page", zap.Int("page", page), zap.String("url", endpoint.String()))

		var batch []*repoPayload
		ok, err := c.getPage(ctx, endpoint, &batch)
		if err != nil || !ok {
			return nil, err
		}
		return batch, nil
	})
	if err != nil {
		log.Error("Failed to fetch repositories", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch repositories for %s: %w", username, err)
	}

	records := make([]models.Repository, 0, len(repos))
	for _, repo := range repos {
		records = append(records, toRecord(username, repo))
	}

	log.Debug("Fetched repositories", zap.Int("count", len(records)), zap.Int("max_repos", maxRepos))
	return records, nil
}

// endpoint joins path segments onto the base URL and sets the paging query.
func (c *Client) endpoint(page int, segments ...string) *url.URL {
	u := c.baseURL.JoinPath(segments...)
	q := u.Query()
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u
}

// getPage issues one GET and decodes the body into out. It reports ok=false
// when the response must be read as an empty page: a non-2xx status or a
// body of the wrong JSON shape.
func (c *Client) getPage(ctx context.Context, endpoint *url.URL, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request to %s failed: %w", endpoint.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fields := []zap.Field{
			zap.Int("status_code", resp.StatusCode),
			zap.String("path", endpoint.Path),
		}
		if isRateLimited(resp) {
			rl := parseRateLimit(resp)
			fields = append(fields,
				zap.Int("rate_limit", rl.Limit),
				zap.Int("rate_remaining", rl.Remaining),
				zap.Time("rate_reset", rl.Reset))
		}
		logger.Warn("Non-success response, treating page as empty", fields...)
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			logger.Warn("Unexpected response shape, treating page as empty",
				zap.String("path", endpoint.Path),
				zap.Error(err))
			return false, nil
		}
		return false, fmt.Errorf("failed to decode response from %s: %w", endpoint.Path, err)
	}

	return true, nil
}

// locationQualifier quotes multi-word locations so the search API reads
// them as one qualifier value.
func locationQualifier(location string) string {
	location = strings.TrimSpace(location)
	if strings.ContainsAny(location, " \t") && !strings.HasPrefix(location, `"`) {
		location = `"` + location + `"`
	}
	return "location:" + location
}
