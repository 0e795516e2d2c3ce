package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())
	logger := log.New(io.Discard, "", 0)

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}

	return gateway, server
}

func TestGitHubGateway_FetchMergedPRs(t *testing.T) {
	mergedAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	testCases := []struct {
		name           string
		queryContains  string
		responseBody   string
		expectedMap    map[int]time.Time
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:          "happy path - returns merged PR numbers with merge times",
			queryContains: "repo:any-org/any-repo is:pr is:merged",
			responseBody:  `{"data":{"search":{"edges":[{"node":{"__typename":"PullRequest","number":12,"mergedAt":"2024-03-01T12:30:00Z"}},{"node":{"__typename":"Issue"}}]}}}`,
			expectedMap:   map[int]time.Time{12: mergedAt},
			expectError:   false,
		},
		{
			name:           "error case - GraphQL API returns an error",
			queryContains:  "repo:any-org/any-repo is:pr is:merged",
			responseBody:   `{"errors":[{"message":"Something went wrong"}]}`,
			expectError:    true,
			expectedErrMsg: "failed to execute GraphQL query",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), tc.queryContains)

				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			resultMap, err := gateway.FetchMergedPRs(context.Background(), "any-org", "any-repo")

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedMap, resultMap)
			}
		})
	}
}

func TestGitHubGateway_FetchClosedUnmergedPRs(t *testing.T) {
	testCases := []struct {
		name           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expectedMap    map[int]bool
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path - only unmerged closed PRs are returned",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.URL.Path, "/repos/any-org/any-repo/pulls")
				assert.Equal(t, "closed", r.URL.Query().Get("state"))
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `[{"number":1,"merged_at":"2024-03-01T12:30:00Z"},{"number":2},{"number":3}]`)
			},
			expectedMap: map[int]bool{2: true, 3: true},
			expectError: false,
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectError:    true,
			expectedErrMsg: "failed to list closed PRs with REST API",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()

			resultMap, err := gateway.FetchClosedUnmergedPRs(context.Background(), "any-org", "any-repo")

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedMap, resultMap)
			}
		})
	}
}
