package github

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	gh "github.com/google/go-github/v45/github"
	ghauth "github.com/jferrl/go-githubauth"
	log "github.com/sirupsen/logrus"
	"github.com/tcnksm/go-gitconfig"
	"golang.org/x/oauth2"

	"github.com/wabouhamad/nvidia-ci/pkg/util"
)

// if we have fewer than this threshold remaining we will report rate limited
const rateLimitThreshold = 100

// larger page size fewer requests counting against our api rate
const pageSize = 100

const (
	pageAttempts = 3
	pageInterval = 200 * time.Millisecond
)

type repoLocator struct {
	org  string
	repo string
	base string
}

type Client struct {
	ctx                 context.Context
	log                 log.FieldLogger
	closedCache         map[repoLocator][]int
	closedCacheLock     sync.Mutex
	pageInterval        time.Duration
	gitHubCoreRateFetch func() (*gh.Rate, error)
	gitHubListClosedPRs func(org, repo, base string, page int) ([]*gh.PullRequest, int, error)
}

func New(ctx context.Context, logger log.FieldLogger) *Client {
	if logger == nil {
		logger = log.StandardLogger()
	}
	client := &Client{
		ctx:          ctx,
		log:          logger,
		closedCache:  make(map[repoLocator][]int),
		pageInterval: pageInterval,
	}
	ghc := gh.NewClient(newGHAuthClient(client.ctx, client.log))

	client.gitHubCoreRateFetch = func() (*gh.Rate, error) {
		rateLimits, _, err := ghc.RateLimits(client.ctx)
		if err != nil {
			return nil, err
		}
		if rateLimits == nil {
			return nil, nil
		}
		return rateLimits.Core, nil
	}

	client.gitHubListClosedPRs = func(org, repo, base string, page int) ([]*gh.PullRequest, int, error) {
		prs, resp, err := ghc.PullRequests.List(client.ctx, org, repo, &gh.PullRequestListOptions{
			State:       "closed",
			Base:        base,
			ListOptions: gh.ListOptions{Page: page, PerPage: pageSize},
		})
		if err != nil {
			return nil, 0, err
		}
		return prs, resp.NextPage, nil
	}

	return client
}

func newGHAuthClient(ctx context.Context, logger log.FieldLogger) *http.Client {
	if tokenSource, installationID := newAppTokenSource(logger); tokenSource != nil {
		// create a self-renewing installation token source
		installationTokenSource := ghauth.NewInstallationTokenSource(installationID, tokenSource, ghauth.WithContext(ctx))
		logger.Infof("using GitHub App credentials for installation %d", installationID)
		return oauth2.NewClient(ctx, installationTokenSource)
	}

	// no app creds, try to use a personal access token
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		logger.Infof("No GitHub token environment variable, checking git config")
		var err error
		token, err = gitconfig.GithubToken()
		if err != nil {
			logger.WithError(err).Warningf("unable to retrieve GitHub token from git config")
		}
	}
	if token != "" {
		logger.Info("using GitHub access token")
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		return oauth2.NewClient(ctx, ts)
	}

	// make a no-auth client if no token is available
	logger.Warningf("using unauthenticated GitHub client, requests will be rate-limited")
	return nil
}

func newAppTokenSource(logger log.FieldLogger) (oauth2.TokenSource, int64) {
	privateKey := os.Getenv("GITHUB_APP_CLIENT_KEY")
	if privateKey == "" {
		logger.Debug("missing GITHUB_APP_CLIENT_KEY, will not authenticate as GitHub App")
		return nil, 0
	}
	appID, err := strconv.ParseInt(os.Getenv("GITHUB_APP_ID"), 10, 64)
	if err != nil {
		logger.WithError(err).Error("GITHUB_APP_ID must be set to a numeric app id")
		return nil, 0
	}
	installationID, err := strconv.ParseInt(os.Getenv("GITHUB_APP_INSTALLATION_ID"), 10, 64)
	if err != nil {
		logger.WithError(err).Error("GITHUB_APP_INSTALLATION_ID must be set to a numeric installation id")
		return nil, 0
	}
	// create top-level token source for the application
	appTokenSource, err := ghauth.NewApplicationTokenSource(appID, []byte(privateKey))
	if err != nil {
		logger.Errorf("Error creating application token source: %s", err)
		return nil, 0
	}
	return appTokenSource, installationID
}

// ClosedPRNumbers returns the numbers of all closed pull requests against
// base, in ascending order. Results are cached per repository and branch. On
// error the numbers fetched so far are returned along with the error.
func (c *Client) ClosedPRNumbers(org, repo, base string) ([]int, error) {
	c.closedCacheLock.Lock()
	defer c.closedCacheLock.Unlock()

	loc := repoLocator{org: org, repo: repo, base: base}
	if numbers, ok := c.closedCache[loc]; ok {
		return numbers, nil
	}

	limiter := util.NewRateLimiter(c.pageInterval)
	defer limiter.Close()

	var numbers []int
	for page := 1; page != 0; {
		prs, next, err := c.listPage(limiter, org, repo, base, page)
		if err != nil {
			c.log.WithError(err).Errorf("Error fetching closed PRs for %s/%s", org, repo)
			sort.Ints(numbers)
			return numbers, err
		}
		for _, pr := range prs {
			if pr != nil && pr.Number != nil {
				numbers = append(numbers, *pr.Number)
			}
		}
		page = next
	}

	sort.Ints(numbers)
	c.closedCache[loc] = numbers
	c.log.Infof("found %d closed PRs against %s/%s:%s", len(numbers), org, repo, base)
	return numbers, nil
}

// listPage fetches one page, retrying with a growing delay when GitHub fails.
func (c *Client) listPage(limiter *util.RateLimiter, org, repo, base string, page int) ([]*gh.PullRequest, int, error) {
	var err error
	for attempt := 1; attempt <= pageAttempts; attempt++ {
		limiter.Tick()
		prs, next, listErr := c.gitHubListClosedPRs(org, repo, base, page)
		limiter.UpdateRate(listErr != nil)
		if listErr == nil {
			return prs, next, nil
		}
		err = listErr
		c.log.WithError(err).Debugf("listing page %d of closed PRs failed (attempt %d)", page, attempt)
	}
	return nil, 0, err
}

// IsWithinRateLimitThreshold reports whether we are close to, or unable to
// determine, the core API rate limit.
func (c *Client) IsWithinRateLimitThreshold() bool {
	rate, err := c.gitHubCoreRateFetch()

	if err != nil {
		// presume we are rate limited if we can't even get the rate limit...
		return true
	}

	if rate == nil {
		// for now assume rate limited if we can't get the rate
		return true
	}

	c.log.Infof("Github Limit:%d, Remaining:%d", rate.Limit, rate.Remaining)

	return rate.Remaining < rateLimitThreshold
}
