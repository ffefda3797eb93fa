package main

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	resultsv1 "github.com/wabouhamad/nvidia-ci/pkg/apis/results/v1"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/loaderwithmetrics"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/prowloader"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/prowloader/gcs"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/prowloader/github"
	"github.com/wabouhamad/nvidia-ci/pkg/flags"
	"github.com/wabouhamad/nvidia-ci/pkg/flags/configflags"
	"github.com/wabouhamad/nvidia-ci/pkg/results"
	"github.com/wabouhamad/nvidia-ci/pkg/statefile"
)

type FetchResultsFlags struct {
	ConfigFlags      *configflags.ConfigFlags
	GoogleCloudFlags *flags.GoogleCloudFlags
	CacheFlags       *flags.CacheFlags
	ProwFlags        *flags.ProwFlags
	GitHubFlags      *flags.GitHubFlags

	PR             string
	BaselineFile   string
	OutputFile     string
	CreateBaseline bool
	LoaderTimeout  time.Duration
}

func NewFetchResultsFlags() *FetchResultsFlags {
	return &FetchResultsFlags{
		ConfigFlags:      configflags.NewConfigFlags(),
		GoogleCloudFlags: flags.NewGoogleCloudFlags(),
		CacheFlags:       flags.NewCacheFlags(),
		ProwFlags:        flags.NewProwFlags(),
		GitHubFlags:      flags.NewGitHubFlags(),
		PR:               prowloader.AllPRs,
		LoaderTimeout:    4 * time.Hour,
	}
}

func (f *FetchResultsFlags) BindFlags(fs *pflag.FlagSet) {
	f.ConfigFlags.BindFlags(fs)
	f.GoogleCloudFlags.BindFlags(fs)
	f.CacheFlags.BindFlags(fs)
	f.ProwFlags.BindFlags(fs)
	f.GitHubFlags.BindFlags(fs)

	fs.StringVar(&f.PR, "pr", f.PR, "Pull request number to fetch, or 'all' for every closed pull request")
	fs.StringVar(&f.BaselineFile, "baseline-file", f.BaselineFile, "Results file to merge the fetched results into")
	fs.StringVar(&f.OutputFile, "output-file", f.OutputFile, "Where the merged results are written (defaults to --baseline-file)")
	fs.BoolVar(&f.CreateBaseline, "create-baseline", f.CreateBaseline, "Start from an empty baseline when --baseline-file does not exist")
	fs.DurationVar(&f.LoaderTimeout, "loader-timeout", f.LoaderTimeout, "Time limit for fetching results")
}

func (f *FetchResultsFlags) Validate() error {
	if f.BaselineFile == "" {
		return errors.New("--baseline-file is required")
	}
	if f.PR != prowloader.AllPRs {
		if n, err := strconv.Atoi(f.PR); err != nil || n <= 0 {
			return errors.Errorf("--pr must be a pull request number or %q, got %q", prowloader.AllPRs, f.PR)
		}
	}
	if f.OutputFile == "" {
		f.OutputFile = f.BaselineFile
	}
	return f.ProwFlags.Validate()
}

func NewFetchResultsCommand() *cobra.Command {
	f := NewFetchResultsFlags()

	cmd := &cobra.Command{
		Use:   "fetch-results",
		Short: "Fetch GPU operator e2e results from CI artifacts and merge them into a results file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return err
			}

			config, err := f.ConfigFlags.GetConfig()
			if err != nil {
				return err
			}
			f.GitHubFlags.Resolve(config)

			ctx, cancel := context.WithTimeout(context.Background(), f.LoaderTimeout)
			defer cancel()

			gcsClient, err := f.GoogleCloudFlags.GetStorageClient(ctx)
			if err != nil {
				return errors.WithMessage(err, "could not get GCS client")
			}
			defer gcsClient.Close()

			cacheClient, err := f.CacheFlags.GetCacheClient(log.StandardLogger())
			if err != nil {
				return errors.WithMessage(err, "could not get cache client")
			}

			bucket := gcs.NewBucket(gcsClient, f.GoogleCloudFlags.StorageBucket, cacheClient, log.StandardLogger())
			ghClient := github.New(ctx, log.StandardLogger())
			warnIfRateLimited(ghClient, f.PR, log.StandardLogger())

			loader := prowloader.New(ctx, bucket, ghClient, prowloader.Options{
				PR:         f.PR,
				Org:        f.GitHubFlags.Org,
				Repo:       f.GitHubFlags.Repo,
				BaseBranch: f.GitHubFlags.BaseBranch,
				BucketName: f.GoogleCloudFlags.StorageBucket,
				ProwURL:    f.ProwFlags.URL,
			}, log.StandardLogger())

			_, err = fetchResults(f, loader, log.StandardLogger())
			return err
		},
	}
	f.BindFlags(cmd.Flags())

	return cmd
}

type rateLimitChecker interface {
	IsWithinRateLimitThreshold() bool
}

// warnIfRateLimited warns when listing every pull request is likely to run
// out of GitHub API quota. A single pull request needs no listing.
func warnIfRateLimited(client rateLimitChecker, pr string, logger log.FieldLogger) bool {
	if pr != prowloader.AllPRs || !client.IsWithinRateLimitThreshold() {
		return false
	}
	logger.Warn("GitHub rate limit is nearly exhausted, listing pull requests may fail")
	return true
}

type resultsFetcher interface {
	dataloader.DataLoader
	Results() resultsv1.ResultStore
}

// fetchResults loads results and merges them into the baseline. Loader
// errors are reported, but whatever was fetched is still merged so that a
// single broken build does not hold back the rest.
func fetchResults(f *FetchResultsFlags, fetcher resultsFetcher, logger log.FieldLogger) (resultsv1.ResultStore, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}

	load := statefile.LoadResults
	if f.CreateBaseline {
		load = statefile.LoadResultsOrEmpty
	}
	baseline, err := load(f.BaselineFile)
	if err != nil {
		return nil, err
	}

	loader := loaderwithmetrics.New([]dataloader.DataLoader{fetcher}, logger)
	loader.Load()
	loaderErrs := loader.Errors()
	for _, err := range loaderErrs {
		logger.WithError(err).Warn("error fetching results")
	}

	merged := results.NewMerger(logger).Merge(baseline, fetcher.Results())
	if err := statefile.SaveResults(f.OutputFile, merged); err != nil {
		return nil, err
	}
	logger.WithField("file", f.OutputFile).Infof("results saved with %d errors", len(loaderErrs))
	return merged, nil
}
