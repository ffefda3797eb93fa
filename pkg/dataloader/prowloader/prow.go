package prowloader

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/wabouhamad/nvidia-ci/pkg/apis/prow"
	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/results/v1"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/prowloader/gcs"
)

// AllPRs selects every closed pull request instead of a single one.
const AllPRs = "all"

const (
	finishedGlob    = "**/finished.json"
	ocpVersionGlob  = "**/gpu-operator-e2e/artifacts/ocp.version"
	gpuVersionGlob  = "**/gpu-operator-e2e/artifacts/operator.version"
	e2eJobMarker    = "nvidia-gpu-operator-e2e"
	finishedFile    = "/finished.json"
	defaultMaxConns = 5

	// pr-logs/pull/{org}_{repo}/{pr}/{job}/{build}/finished.json
	finishedSlashCount = 6
	buildIDIndex       = 5
)

var ignoredBuildIDs = map[string]bool{
	"latest-build.txt": true,
	"latest-build":     true,
}

var prowLoaderResultsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "nvci_prow_results_fetched",
	Help: "The number of GPU operator e2e results fetched from CI artifacts",
})

// Bucket is the read access to the CI artifacts bucket.
type Bucket interface {
	List(ctx context.Context, prefix, glob string) ([]string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// PRLister lists closed pull requests of a repository.
type PRLister interface {
	ClosedPRNumbers(org, repo, base string) ([]int, error)
}

type Options struct {
	// PR is a pull request number, or AllPRs.
	PR         string
	Org        string
	Repo       string
	BaseBranch string
	BucketName string
	ProwURL    string
}

type ProwLoader struct {
	ctx            context.Context
	bucket         Bucket
	prLister       PRLister
	opts           Options
	jobPathRegex   *regexp.Regexp
	maxConcurrency int
	log            log.FieldLogger

	results         v1.ResultStore
	errors          []error
	buildsProcessed atomic.Int32
}

func New(ctx context.Context, bucket Bucket, prLister PRLister, opts Options, logger log.FieldLogger) *ProwLoader {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ProwLoader{
		ctx:            ctx,
		bucket:         bucket,
		prLister:       prLister,
		opts:           opts,
		jobPathRegex:   jobPathRegex(opts.Org, opts.Repo, opts.BaseBranch),
		maxConcurrency: defaultMaxConns,
		log:            logger.WithField("loader", dataloader.ProwLoaderName),
	}
}

// jobPathRegex matches the job directory of a GPU operator e2e presubmit and
// captures its OCP minor and GPU operator suffix.
func jobPathRegex(org, repo, base string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`^pr-logs/pull/%s_%s/\d+/pull-ci-%s-%s-%s-(\d+\.\d+)-stable-nvidia-gpu-operator-e2e-(\d+-\d+-x|master)/`,
		regexp.QuoteMeta(org), regexp.QuoteMeta(repo),
		regexp.QuoteMeta(org), regexp.QuoteMeta(repo), regexp.QuoteMeta(base)))
}

func (pl *ProwLoader) Name() string {
	return dataloader.ProwLoaderName
}

func (pl *ProwLoader) Errors() []error {
	return pl.errors
}

// Results returns everything fetched by Load, keyed by OCP minor. It may be
// partial when Errors is not empty.
func (pl *ProwLoader) Results() v1.ResultStore {
	return pl.results
}

func (pl *ProwLoader) Load() {
	start := time.Now()
	pl.results = v1.ResultStore{}

	prs, err := pl.pullRequests()
	if err != nil {
		pl.errors = append(pl.errors, err)
	}
	if len(prs) == 0 {
		return
	}

	type fragment struct {
		pr      int
		results v1.ResultStore
	}

	queue := make(chan int)
	fragmentsCh := make(chan fragment, len(prs))
	errsCh := make(chan error, len(prs))

	go prProducer(pl.ctx, queue, prs)

	var wg sync.WaitGroup
	for i := 0; i < pl.maxConcurrency; i++ {
		wg.Add(1)
		go func(ctx context.Context) {
			defer wg.Done()
			for pr := range queue {
				if err := ctx.Err(); err != nil {
					errsCh <- err
					pl.log.WithError(err).Warningf("consumer exiting, got error")
					break
				}
				results, err := pl.FetchPR(ctx, pr)
				if err != nil {
					errsCh <- errors.WithMessagef(err, "pr %d", pr)
					pl.log.WithError(err).WithField("pr", pr).Warning("couldn't fetch all results, continuing")
				}
				fragmentsCh <- fragment{pr: pr, results: results}
			}
		}(pl.ctx)
	}

	wg.Wait()
	close(errsCh)
	close(fragmentsCh)
	for err := range errsCh {
		pl.errors = append(pl.errors, err)
	}

	fragments := make([]fragment, 0, len(prs))
	for f := range fragmentsCh {
		fragments = append(fragments, f)
	}
	sort.Slice(fragments, func(i, j int) bool { return fragments[i].pr < fragments[j].pr })

	total := 0
	for _, f := range fragments {
		for ocp, results := range f.results {
			pl.results[ocp] = append(pl.results[ocp], results...)
			total += len(results)
		}
	}
	prowLoaderResultsGauge.Set(float64(total))

	if len(pl.errors) > 0 {
		pl.log.Warningf("encountered %d errors while fetching results", len(pl.errors))
	}
	pl.log.Infof("fetched %d results from %d builds of %d PRs in %+v", total, pl.buildsProcessed.Load(), len(prs), time.Since(start))
}

func prProducer(ctx context.Context, queue chan int, prs []int) {
	defer close(queue)
	for _, pr := range prs {
		select {
		case queue <- pr:
		case <-ctx.Done():
			return
		}
	}
}

func (pl *ProwLoader) pullRequests() ([]int, error) {
	if strings.EqualFold(pl.opts.PR, AllPRs) {
		pl.log.Info("retrieving PR history...")
		prs, err := pl.prLister.ClosedPRNumbers(pl.opts.Org, pl.opts.Repo, pl.opts.BaseBranch)
		return prs, errors.WithMessage(err, "error listing closed PRs")
	}
	pr, err := strconv.Atoi(pl.opts.PR)
	if err != nil || pr <= 0 {
		return nil, errors.Errorf("invalid PR number %q", pl.opts.PR)
	}
	return []int{pr}, nil
}

type buildKey struct {
	jobPath string
	buildID string
}

// FetchPR returns the results of every GPU operator e2e build of a pull
// request, keyed by OCP minor. Whatever could be fetched is returned even when
// an error is.
func (pl *ProwLoader) FetchPR(ctx context.Context, pr int) (v1.ResultStore, error) {
	logger := pl.log.WithField("pr", pr)
	prefix := fmt.Sprintf("pr-logs/pull/%s_%s/%d/", pl.opts.Org, pl.opts.Repo, pr)

	allFinished, err := pl.bucket.List(ctx, prefix, finishedGlob)
	if err != nil {
		return v1.ResultStore{}, err
	}
	ocpFiles, err := pl.bucket.List(ctx, prefix, ocpVersionGlob)
	if err != nil {
		return v1.ResultStore{}, err
	}
	gpuFiles, err := pl.bucket.List(ctx, prefix, gpuVersionGlob)
	if err != nil {
		return v1.ResultStore{}, err
	}

	builds := map[buildKey]bool{}
	finished := pl.lookup(filterFinished(allFinished), builds)
	ocpVersions := pl.lookup(ocpFiles, builds)
	gpuVersions := pl.lookup(gpuFiles, builds)
	logger.Infof("found %d job/build combinations", len(builds))

	keys := make([]buildKey, 0, len(builds))
	for k := range builds {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].jobPath != keys[j].jobPath {
			return keys[i].jobPath < keys[j].jobPath
		}
		return keys[i].buildID < keys[j].buildID
	})

	results := v1.ResultStore{}
	var errs []string
	for _, key := range keys {
		finishedPath, ok := finished[key]
		if !ok {
			logger.Warningf("build %s of %s has no finished.json, skipping", key.buildID, key.jobPath)
			continue
		}
		ocpMinor, result, err := pl.processBuild(ctx, pr, key, finishedPath, ocpVersions[key], gpuVersions[key])
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		pl.buildsProcessed.Add(1)
		results[ocpMinor] = append(results[ocpMinor], result)
		logger.Debugf("added result for build %s: %s", key.buildID, result.TestStatus)
	}

	if len(errs) > 0 {
		return results, errors.Errorf("%d builds failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return results, nil
}

// filterFinished keeps the top level finished.json of GPU operator e2e builds,
// dropping those of individual steps nested under artifacts.
func filterFinished(paths []string) []string {
	var out []string
	for _, p := range paths {
		if strings.Contains(p, e2eJobMarker) &&
			strings.Count(p, "/") == finishedSlashCount &&
			strings.HasSuffix(p, finishedFile) {
			out = append(out, p)
		}
	}
	return out
}

// lookup indexes artifact paths by job and build, recording every build seen.
func (pl *ProwLoader) lookup(paths []string, builds map[buildKey]bool) map[buildKey]string {
	out := map[buildKey]string{}
	for _, p := range paths {
		if !pl.jobPathRegex.MatchString(p) {
			continue
		}
		parts := strings.Split(p, "/")
		if len(parts) <= buildIDIndex {
			continue
		}
		buildID := parts[buildIDIndex]
		if ignoredBuildIDs[buildID] {
			continue
		}
		key := buildKey{jobPath: strings.Join(parts[:buildIDIndex], "/") + "/", buildID: buildID}
		out[key] = p
		builds[key] = true
	}
	return out
}

func (pl *ProwLoader) processBuild(ctx context.Context, pr int, key buildKey, finishedPath, ocpVersionPath, gpuVersionPath string) (string, v1.TestResult, error) {
	m := pl.jobPathRegex.FindStringSubmatch(key.jobPath)
	if m == nil {
		return "", v1.TestResult{}, errors.Errorf("invalid job path format: %s", key.jobPath)
	}
	ocpMinor, gpuSuffix := m[1], m[2]

	content, err := pl.bucket.Read(ctx, finishedPath)
	if err != nil {
		return "", v1.TestResult{}, err
	}
	status, timestamp, err := parseFinished(content)
	if err != nil {
		return "", v1.TestResult{}, errors.WithMessagef(err, "invalid %s", finishedPath)
	}

	result := v1.TestResult{
		OCPFullVersion:     ocpMinor,
		GPUOperatorVersion: gpuSuffix,
		TestStatus:         status,
		ProwJobURL:         pl.jobURL(pr, ocpMinor, gpuSuffix, key.buildID),
		JobTimestamp:       timestamp,
	}

	if status == v1.StatusSuccess && ocpVersionPath != "" && gpuVersionPath != "" {
		ocpVersion, err := pl.bucket.Read(ctx, ocpVersionPath)
		if err != nil {
			return "", v1.TestResult{}, err
		}
		gpuVersion, err := pl.bucket.Read(ctx, gpuVersionPath)
		if err != nil {
			return "", v1.TestResult{}, err
		}
		result.OCPFullVersion = strings.TrimSpace(string(ocpVersion))
		result.GPUOperatorVersion = strings.TrimSpace(string(gpuVersion))
	}
	return ocpMinor, result, nil
}

func parseFinished(content []byte) (string, v1.Timestamp, error) {
	var finished prow.Finished
	if err := json.Unmarshal(content, &finished); err != nil {
		return "", v1.Timestamp{}, err
	}
	if finished.Result == "" {
		return "", v1.Timestamp{}, errors.New("no result recorded")
	}
	var ts v1.Timestamp
	if len(finished.Timestamp) > 0 {
		if err := json.Unmarshal(finished.Timestamp, &ts); err != nil {
			return "", v1.Timestamp{}, err
		}
	}
	return string(finished.Result), ts, nil
}

func (pl *ProwLoader) jobURL(pr int, ocpMinor, gpuSuffix, buildID string) string {
	return fmt.Sprintf("%s/view/gs/%s/pr-logs/pull/%s_%s/%d/pull-ci-%s-%s-%s-%s-stable-nvidia-gpu-operator-e2e-%s/%s",
		strings.TrimSuffix(pl.opts.ProwURL, "/"), pl.opts.BucketName,
		pl.opts.Org, pl.opts.Repo, pr,
		pl.opts.Org, pl.opts.Repo, pl.opts.BaseBranch, ocpMinor, gpuSuffix, buildID)
}

var _ Bucket = &gcs.Bucket{}
