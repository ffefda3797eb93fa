// Package microshiftloader collects the latest results of the periodic jobs
// validating the NVIDIA device plugin on MicroShift.
package microshiftloader

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wabouhamad/nvidia-ci/pkg/apis/prow"
	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/results/v1"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader"
)

const (
	DefaultJobLimit = 15

	firstMinor = 14
	lastMinor  = 99
)

// From 4.19 on the AI model serving job covers the device plugin. Older
// releases have dedicated jobs, named inconsistently.
const defaultJobName = "periodics-e2e-aws-ai-model-serving-nightly"

var jobNames = map[string]string{
	"4.14": "e2e-aws-nvidia-device-plugin-nightly",
	"4.15": "e2e-aws-nvidia-device-plugin-nightly",
	"4.16": "e2e-aws-nvidia-device-plugin-nightly",
	"4.17": "e2e-aws-nvidia-device-plugin-nightly",
	"4.18": "periodics-e2e-aws-nvidia-device-plugin-nightly",
}

// Bucket is the read access to the CI artifacts bucket.
type Bucket interface {
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

type MicroShiftLoader struct {
	ctx        context.Context
	bucket     Bucket
	bucketName string
	prowURL    string
	jobLimit   int
	log        log.FieldLogger

	results v1.MicroShiftResults
	errors  []error
}

func New(ctx context.Context, bucket Bucket, bucketName, prowURL string, jobLimit int, logger log.FieldLogger) *MicroShiftLoader {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if jobLimit <= 0 {
		jobLimit = DefaultJobLimit
	}
	return &MicroShiftLoader{
		ctx:        ctx,
		bucket:     bucket,
		bucketName: bucketName,
		prowURL:    strings.TrimSuffix(prowURL, "/"),
		jobLimit:   jobLimit,
		log:        logger.WithField("loader", dataloader.MicroShiftLoaderName),
	}
}

func (l *MicroShiftLoader) Name() string {
	return dataloader.MicroShiftLoaderName
}

func (l *MicroShiftLoader) Errors() []error {
	return l.errors
}

func (l *MicroShiftLoader) Results() v1.MicroShiftResults {
	return l.results
}

// JobName returns the periodic job covering the device plugin on a MicroShift version.
func JobName(version string) string {
	name, ok := jobNames[version]
	if !ok {
		name = defaultJobName
	}
	return fmt.Sprintf("periodic-ci-openshift-microshift-release-%s-%s", version, name)
}

// Load walks MicroShift versions upwards from 4.14 and stops at the first one
// without any job run, which is taken to be a release not developed yet.
func (l *MicroShiftLoader) Load() {
	l.results = v1.MicroShiftResults{}
	for minor := firstMinor; minor <= lastMinor; minor++ {
		version := fmt.Sprintf("4.%d", minor)
		runs, err := l.jobRuns(version)
		if err != nil {
			l.errors = append(l.errors, errors.WithMessagef(err, "microshift %s", version))
			return
		}
		l.log.Infof("found %d job runs for version %s", len(runs), version)
		if len(runs) == 0 {
			l.log.Infof("assuming %s is not being developed yet, stopping", version)
			return
		}

		results := make([]v1.MicroShiftResult, 0, len(runs))
		for _, run := range runs {
			result, err := l.jobResult(run)
			if err != nil {
				l.errors = append(l.errors, errors.WithMessagef(err, "microshift %s run %d", version, run.num))
				continue
			}
			results = append(results, result)
		}
		l.results[version] = results
	}
}

type jobRun struct {
	path string
	num  int64
}

// jobRuns returns the jobLimit most recent runs of the version's job.
func (l *MicroShiftLoader) jobRuns(version string) ([]jobRun, error) {
	prefixes, err := l.bucket.ListPrefixes(l.ctx, fmt.Sprintf("logs/%s/", JobName(version)))
	if err != nil {
		return nil, err
	}

	runs := make([]jobRun, 0, len(prefixes))
	for _, p := range prefixes {
		parts := strings.Split(strings.TrimSuffix(p, "/"), "/")
		num, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
		if err != nil {
			l.log.WithField("prefix", p).Debug("ignoring non numeric job run")
			continue
		}
		runs = append(runs, jobRun{path: p, num: num})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].num < runs[j].num })

	if len(runs) > l.jobLimit {
		runs = runs[len(runs)-l.jobLimit:]
	}
	return runs, nil
}

func (l *MicroShiftLoader) jobResult(run jobRun) (v1.MicroShiftResult, error) {
	content, err := l.bucket.Read(l.ctx, run.path+"finished.json")
	if err != nil {
		return v1.MicroShiftResult{}, err
	}
	var finished prow.Finished
	if err := json.Unmarshal(content, &finished); err != nil {
		return v1.MicroShiftResult{}, errors.Wrap(err, "invalid finished.json")
	}
	var ts v1.Timestamp
	if len(finished.Timestamp) > 0 {
		if err := json.Unmarshal(finished.Timestamp, &ts); err != nil {
			return v1.MicroShiftResult{}, errors.Wrap(err, "invalid finished.json timestamp")
		}
	}
	return v1.MicroShiftResult{
		Num:       run.num,
		Timestamp: ts,
		Status:    string(finished.Result),
		URL:       fmt.Sprintf("%s/view/gs/%s/%s", l.prowURL, l.bucketName, run.path),
	}, nil
}
