// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

// Fetcher defines the behavior of a gateway for fetching pull request state
// from GitHub.
type Fetcher interface {
	// FetchMergedPRs returns the numbers of all merged pull requests in the
	// repository, mapped to their merge time.
	FetchMergedPRs(ctx context.Context, owner, repo string) (map[int]time.Time, error)
	// FetchClosedUnmergedPRs returns the numbers of pull requests that were
	// closed without being merged.
	FetchClosedUnmergedPRs(ctx context.Context, owner, repo string) (map[int]bool, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// mergedPRQuery fetches merged pull request numbers and merge times via the
// search API.
type mergedPRQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Edges []struct {
			Node struct {
				Typename    string `graphql:"__typename"`
				PullRequest struct {
					Number   int
					MergedAt githubv4.DateTime
				} `graphql:"... on PullRequest"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 100, after: $cursor)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

// FetchMergedPRs pages through the GraphQL search results for merged PRs.
func (g *GitHubGateway) FetchMergedPRs(ctx context.Context, owner, repo string) (map[int]time.Time, error) {
	g.logger.Println("[1/2] Fetching merged pull requests via GraphQL...")
	query := fmt.Sprintf("repo:%s/%s is:pr is:merged", owner, repo)

	variables := map[string]interface{}{
		"query":  githubv4.String(query),
		"cursor": (*githubv4.String)(nil),
	}

	merged := make(map[int]time.Time)
	for {
		var q mergedPRQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for merged PRs: %w", err)
		}
		for _, edge := range q.Search.Edges {
			if edge.Node.Typename != "PullRequest" {
				continue
			}
			pr := edge.Node.PullRequest
			merged[pr.Number] = pr.MergedAt.Time
		}
		if !q.Search.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Search.PageInfo.EndCursor)
		g.logger.Println("  Fetching next page of merged pull requests...")
	}
	g.logger.Printf("Completed fetching merged pull requests: %d found\n", len(merged))
	return merged, nil
}

// FetchClosedUnmergedPRs lists closed PRs with the REST API and keeps the
// ones that were never merged.
func (g *GitHubGateway) FetchClosedUnmergedPRs(ctx context.Context, owner, repo string) (map[int]bool, error) {
	g.logger.Println("[2/2] Fetching closed pull requests using REST API...")
	opts := &github.PullRequestListOptions{
		State:       "closed",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	closed := make(map[int]bool)
	for {
		prs, resp, err := g.restClient.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list closed PRs with REST API: %w", err)
		}
		for _, pr := range prs {
			if pr.MergedAt == nil {
				closed[pr.GetNumber()] = true
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of closed pull requests...")
	}
	g.logger.Printf("Completed fetching closed pull requests: %d unmerged\n", len(closed))
	return closed, nil
}
