// Package testmatrix turns version changes into the set of OCP x GPU operator
// e2e jobs that have to be re-run, and renders them as prow trigger commands.
package testmatrix

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
)

// Entry is one cell of the test matrix.
type Entry struct {
	OCP string
	GPU string
}

// MainBranchPolicy selects which OCP releases are tested against a new main
// branch build of the GPU operator.
type MainBranchPolicy string

const (
	// PolicyAllReleases tests every OCP release.
	PolicyAllReleases MainBranchPolicy = "all"
	// PolicyLatestRelease tests only the newest OCP release.
	PolicyLatestRelease MainBranchPolicy = "latest"
	// PolicyLatestAndEarliest tests the newest and the oldest OCP release.
	PolicyLatestAndEarliest MainBranchPolicy = "latest-and-earliest"

	DefaultMainBranchPolicy = PolicyLatestAndEarliest
)

// ParseMainBranchPolicy validates a policy name. The empty string selects the default.
func ParseMainBranchPolicy(s string) (MainBranchPolicy, error) {
	switch p := MainBranchPolicy(s); p {
	case "":
		return DefaultMainBranchPolicy, nil
	case PolicyAllReleases, PolicyLatestRelease, PolicyLatestAndEarliest:
		return p, nil
	default:
		return "", errors.Errorf("unknown main branch policy %q, expected one of %q, %q, %q",
			s, PolicyAllReleases, PolicyLatestRelease, PolicyLatestAndEarliest)
	}
}

type Expander struct {
	Policy MainBranchPolicy
	Log    log.FieldLogger
}

func NewExpander(policy MainBranchPolicy, logger log.FieldLogger) *Expander {
	return &Expander{Policy: policy, Log: orDiscard(logger)}
}

// Expand computes the jobs to re-run for a version diff.
//
// A changed OCP minor is paired with every GPU release even when it is not in
// ocpReleases yet. A changed GPU operator minor is only tested when it is one
// of gpuReleases; older operator lines are not part of the matrix.
func (e *Expander) Expand(diff v1.Map, ocpReleases, gpuReleases []string) sets.Set[Entry] {
	logger := orDiscard(e.Log)
	matrix := sets.New[Entry]()

	if diff.Has(v1.KeyGPUMainLatest) {
		for _, ocp := range e.mainBranchReleases(ocpReleases) {
			matrix.Insert(Entry{OCP: ocp, GPU: MasterGPUVersion})
		}
	}

	knownOCP := sets.New(ocpReleases...)
	for _, ocp := range changedMinors(diff, v1.KeyOCP, logger) {
		if !knownOCP.Has(ocp) {
			logger.Warningf("OCP %s changed but is not in the tracked releases %v, testing it anyway", ocp, ocpReleases)
		}
		for _, gpu := range gpuReleases {
			matrix.Insert(Entry{OCP: ocp, GPU: gpu})
		}
	}

	knownGPU := sets.New(gpuReleases...)
	for _, gpu := range changedMinors(diff, v1.KeyGPUOperator, logger) {
		if !knownGPU.Has(gpu) {
			logger.Warningf("GPU operator %s changed but is not in the releases under test %v, skipping", gpu, gpuReleases)
			continue
		}
		for _, ocp := range ocpReleases {
			matrix.Insert(Entry{OCP: ocp, GPU: gpu})
		}
	}

	return matrix
}

func (e *Expander) mainBranchReleases(ocpReleases []string) []string {
	policy := e.Policy
	if policy == "" {
		policy = DefaultMainBranchPolicy
	}
	if policy == PolicyAllReleases {
		return ocpReleases
	}

	sorted := SortVersions(ocpReleases, e.Log)
	if len(sorted) == 0 {
		return nil
	}
	latest := sorted[len(sorted)-1]
	if policy == PolicyLatestRelease {
		return []string{latest}
	}
	return []string{sorted[0], latest}
}

func changedMinors(diff v1.Map, key string, logger log.FieldLogger) []string {
	v, ok := diff[key]
	if !ok {
		return nil
	}
	if !v.IsNested() {
		logger.Warningf("expected %q to map minor versions, got %q", key, v.Scalar())
		return nil
	}
	return diff.Minors(key)
}

func orDiscard(logger log.FieldLogger) log.FieldLogger {
	if logger != nil {
		return logger
	}
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}
