package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locrepos/logger"
	"locrepos/models"
)

func init() {
	// Initialize logger for tests
	_ = logger.Initialize("debug")
}

// pagedServer serves items with the GitHub per_page/page semantics and
// records every page that was requested.
type pagedServer struct {
	*httptest.Server
	mu    sync.Mutex
	pages []int
}

func (s *pagedServer) requestedPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pages...)
}

func newPagedServer(t *testing.T, path string, items []map[string]any, wrap func([]map[string]any) any) *pagedServer {
	t.Helper()
	s := &pagedServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Equal(t, path, r.URL.Path)

		perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
		assert.NoError(t, err)
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		assert.NoError(t, err)

		s.mu.Lock()
		s.pages = append(s.pages, page)
		s.mu.Unlock()

		start := min((page-1)*perPage, len(items))
		end := min(start+perPage, len(items))
		batch := items[start:end]

		w.Header().Set("Content-Type", "application/json")
		var body any = batch
		if wrap != nil {
			body = wrap(batch)
		}
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func searchWrap(total int) func([]map[string]any) any {
	return func(batch []map[string]any) any {
		return map[string]any{
			"total_count":        total,
			"incomplete_results": false,
			"items":              batch,
		}
	}
}

func makeUsers(n int) []map[string]any {
	users := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, map[string]any{"login": fmt.Sprintf("user%02d", i), "id": i + 1})
	}
	return users
}

func makeRepos(n int) []map[string]any {
	repos := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		repos = append(repos, map[string]any{
			"name":             fmt.Sprintf("repo%02d", i),
			"created_at":       "2021-03-04T05:06:07Z",
			"updated_at":       "2024-01-02T03:04:05Z",
			"stargazers_count": i * 10,
			"forks_count":      i,
			"description":      fmt.Sprintf("repository %d", i),
			"topics":           []string{"go", fmt.Sprintf("t%d", i)},
		})
	}
	return repos
}

func newTestClient(t *testing.T, serverURL string, perPage int) *Client {
	t.Helper()
	client, err := NewClient("test-token", serverURL, 5*time.Second)
	require.NoError(t, err)
	if perPage > 0 {
		client.perPage = perPage
	}
	return client
}

func TestNewClient(t *testing.T) {
	client, err := NewClient("test-token", "", 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL+"/", client.baseURL.String())
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, PerPage, client.perPage)
	assert.NotNil(t, client.httpClient.Transport, "token should install an oauth2 transport")

	anon, err := NewClient("", "https://ghe.example.com/api/v3", time.Second)
	require.NoError(t, err)
	assert.Nil(t, anon.httpClient.Transport)
	assert.Equal(t, time.Second, anon.httpClient.Timeout)
	assert.Equal(t, "https://ghe.example.com/api/v3/users/octo/repos?page=1&per_page=100",
		anon.endpoint(1, "users", "octo", "repos").String())

	_, err = NewClient("", "://bad", time.Second)
	assert.Error(t, err)
}

func TestFetchUsersByLocation(t *testing.T) {
	testCases := []struct {
		name       string
		upstream   int
		perPage    int
		maxUsers   int
		wantLogins []string
		wantPages  []int
	}{
		{
			name:       "three users fit in the first page",
			upstream:   3,
			maxUsers:   50,
			wantLogins: []string{"user00", "user01", "user02"},
			wantPages:  []int{1},
		},
		{
			name:       "quota truncates the page",
			upstream:   10,
			maxUsers:   2,
			wantLogins: []string{"user00", "user01"},
			wantPages:  []int{1},
		},
		{
			name:       "spans several pages",
			upstream:   7,
			perPage:    3,
			maxUsers:   5,
			wantLogins: []string{"user00", "user01", "user02", "user03", "user04"},
			wantPages:  []int{1, 2},
		},
		{
			name:       "fewer upstream than quota stops on the short page",
			upstream:   5,
			perPage:    2,
			maxUsers:   50,
			wantLogins: []string{"user00", "user01", "user02", "user03", "user04"},
			wantPages:  []int{1, 2, 3},
		},
		{
			name:       "zero quota makes no request",
			upstream:   5,
			maxUsers:   0,
			wantLogins: []string{},
			wantPages:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := newPagedServer(t, "/search/users", makeUsers(tc.upstream), searchWrap(tc.upstream))
			client := newTestClient(t, server.URL, tc.perPage)

			logins, err := client.FetchUsersByLocation(context.Background(), "Milan", tc.maxUsers)
			require.NoError(t, err)
			assert.Equal(t, tc.wantLogins, logins)
			assert.LessOrEqual(t, len(logins), tc.maxUsers)
			assert.Equal(t, tc.wantPages, server.requestedPages())
		})
	}
}

func TestFetchUsersByLocationQuery(t *testing.T) {
	testCases := []struct {
		location string
		wantQ    string
	}{
		{location: "Milan", wantQ: "location:Milan"},
		{location: "San Francisco", wantQ: `location:"San Francisco"`},
	}

	for _, tc := range testCases {
		t.Run(tc.location, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tc.wantQ, r.URL.Query().Get("q"))
				assert.Equal(t, "100", r.URL.Query().Get("per_page"))
				assert.Equal(t, "1", r.URL.Query().Get("page"))
				fmt.Fprint(w, `{"total_count":1,"items":[{"login":"octocat"}]}`)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 0)
			logins, err := client.FetchUsersByLocation(context.Background(), tc.location, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"octocat"}, logins)
		})
	}
}

func TestFetchRepoDetails(t *testing.T) {
	t.Run("fifteen repositories bounded to ten", func(t *testing.T) {
		server := newPagedServer(t, "/users/mario/repos", makeRepos(15), nil)
		client := newTestClient(t, server.URL, 0)

		repos, err := client.FetchRepoDetails(context.Background(), "mario", 10)
		require.NoError(t, err)
		require.Len(t, repos, 10)
		for i, repo := range repos {
			assert.Equal(t, fmt.Sprintf("repo%02d", i), repo.RepoName)
			assert.Equal(t, "mario", repo.Username)
		}
		assert.Equal(t, models.Repository{
			RepoName:     "repo03",
			Username:     "mario",
			CreationDate: "2021-03-04T05:06:07Z",
			Stars:        30,
			Forks:        3,
			LastUpdate:   "2024-01-02T03:04:05Z",
			Description:  models.StringPtr("repository 3"),
			Topics:       []string{"go", "t3"},
		}, repos[3])
		assert.Equal(t, []int{1}, server.requestedPages())
	})

	t.Run("multiple pages until empty", func(t *testing.T) {
		server := newPagedServer(t, "/users/mario/repos", makeRepos(4), nil)
		client := newTestClient(t, server.URL, 2)

		repos, err := client.FetchRepoDetails(context.Background(), "mario", 10)
		require.NoError(t, err)
		assert.Len(t, repos, 4)
		assert.Equal(t, []int{1, 2, 3}, server.requestedPages())
	})

	t.Run("missing fields get defaults", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"name":"bare"},{"topics":null},{}]`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		repos, err := client.FetchRepoDetails(context.Background(), "luigi", 10)
		require.NoError(t, err)
		require.Len(t, repos, 3)

		assert.Equal(t, models.Repository{
			RepoName:    "bare",
			Username:    "luigi",
			Description: models.StringPtr(""),
			Topics:      []string{},
		}, repos[0])
		for _, repo := range repos {
			require.NotNil(t, repo.Description)
			assert.Equal(t, "", *repo.Description)
			assert.NotNil(t, repo.Topics)
			assert.Empty(t, repo.Topics)
			assert.Zero(t, repo.Stars)
			assert.Zero(t, repo.Forks)
			assert.Equal(t, "", repo.CreationDate)
			assert.Equal(t, "", repo.LastUpdate)
		}
	})

	t.Run("null description differs from a missing one", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"name":"a","description":null},{"name":"b"},{"name":"c","description":"pasta"}]`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		repos, err := client.FetchRepoDetails(context.Background(), "luigi", 10)
		require.NoError(t, err)
		require.Len(t, repos, 3)

		assert.Nil(t, repos[0].Description)
		assert.Equal(t, models.NullText, repos[0].DescriptionText())
		require.NotNil(t, repos[1].Description)
		assert.Equal(t, "", *repos[1].Description)
		assert.Equal(t, "pasta", repos[2].DescriptionText())
	})

	t.Run("timestamps pass through unchanged", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[
				{"name":"a","created_at":"2021-03-04 05:06:07","updated_at":"yesterday","pushed_at":"soon"},
				{"name":"b","created_at":"2021-03-04T05:06:07+02:00"}
			]`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		repos, err := client.FetchRepoDetails(context.Background(), "luigi", 10)
		require.NoError(t, err)
		require.Len(t, repos, 2)

		assert.Equal(t, "2021-03-04 05:06:07", repos[0].CreationDate)
		assert.Equal(t, "yesterday", repos[0].LastUpdate)
		assert.Equal(t, "b", repos[1].RepoName)
		assert.Equal(t, "2021-03-04T05:06:07+02:00", repos[1].CreationDate)
		assert.Equal(t, "", repos[1].LastUpdate)
	})
}

func TestFetchTreatsFailuresAsEmpty(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"message":"Not Found"}`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Bad credentials"}`},
		{
			name:   "rate limited",
			status: http.StatusForbidden,
			headers: map[string]string{
				"X-RateLimit-Limit":     "60",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     "1700000000",
			},
			body: `{"message":"API rate limit exceeded"}`,
		},
		{name: "object instead of list", status: http.StatusOK, body: `{"message":"weird"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 0)
			repos, err := client.FetchRepoDetails(context.Background(), "mario", 10)
			assert.NoError(t, err)
			assert.Empty(t, repos)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestSearchUnexpectedShapeIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1, 2, 3]`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	logins, err := client.FetchUsersByLocation(context.Background(), "Turin", 10)
	assert.NoError(t, err)
	assert.Empty(t, logins)
}

func TestFetchErrors(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items": [`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)
		logins, err := client.FetchUsersByLocation(context.Background(), "Milan", 10)
		assert.Error(t, err)
		assert.Nil(t, logins)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := newTestClient(t, url, 0)
		repos, err := client.FetchRepoDetails(context.Background(), "mario", 10)
		assert.Error(t, err)
		assert.Nil(t, repos)
	})
}

func TestParseRateLimit(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusForbidden,
		Header:     http.Header{},
	}
	resp.Header.Set("X-RateLimit-Limit", "5000")
	resp.Header.Set("X-RateLimit-Remaining", "0")
	resp.Header.Set("X-RateLimit-Reset", "1700000000")

	rl := parseRateLimit(resp)
	assert.Equal(t, 5000, rl.Limit)
	assert.Equal(t, 0, rl.Remaining)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rl.Reset)
	assert.True(t, isRateLimited(resp))

	resp.Header.Set("X-RateLimit-Remaining", "12")
	assert.False(t, isRateLimited(resp))

	assert.True(t, isRateLimited(&http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}))
	assert.False(t, isRateLimited(&http.Response{StatusCode: http.StatusNotFound, Header: http.Header{}}))
}
