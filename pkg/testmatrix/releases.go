package testmatrix

import (
	"sort"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
)

// MasterGPUVersion stands for the unversioned main branch build of the GPU operator.
const MasterGPUVersion = "master"

// DefaultGPUReleaseCount is how many GPU operator minors are kept under test.
const DefaultGPUReleaseCount = 2

// CurrentReleases returns the releases under test for a versions snapshot:
// every OCP minor, and the gpuLimit highest GPU operator minors followed by
// the main branch.
func CurrentReleases(store v1.Map, gpuLimit int, logger log.FieldLogger) (ocp []string, gpu []string) {
	logger = orDiscard(logger)

	ocp = SortVersions(store.Minors(v1.KeyOCP), logger)

	gpu = SortVersions(store.Minors(v1.KeyGPUOperator), logger)
	if gpuLimit >= 0 && len(gpu) > gpuLimit {
		gpu = gpu[len(gpu)-gpuLimit:]
	}
	gpu = append(gpu, MasterGPUVersion)

	return ocp, gpu
}

// SortVersions returns the parseable versions in ascending semantic order.
// Entries that are not versions are logged and dropped.
func SortVersions(in []string, logger log.FieldLogger) []string {
	type parsed struct {
		raw string
		v   *version.Version
	}

	vs := make([]parsed, 0, len(in))
	for _, raw := range in {
		v, err := version.NewVersion(raw)
		if err != nil {
			orDiscard(logger).WithError(err).Warningf("ignoring unparseable release %q", raw)
			continue
		}
		vs = append(vs, parsed{raw: raw, v: v})
	}

	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].v.Equal(vs[j].v) {
			return vs[i].raw < vs[j].raw
		}
		return vs[i].v.LessThan(vs[j].v)
	})

	out := make([]string, 0, len(vs))
	for _, p := range vs {
		out = append(out, p.raw)
	}
	return out
}

// MaxVersion returns the higher of two version strings. An unparseable
// candidate never replaces a parseable current value.
func MaxVersion(current, candidate string) string {
	if current == "" {
		return candidate
	}
	cur, err := version.NewVersion(current)
	if err != nil {
		return candidate
	}
	cand, err := version.NewVersion(candidate)
	if err != nil {
		return current
	}
	if cand.GreaterThan(cur) {
		return candidate
	}
	return current
}
