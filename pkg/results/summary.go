package results

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/results/v1"
)

type pair struct {
	ocp string
	gpu string
}

// LatestSuccessful keeps, for every (OCP full version, GPU operator version)
// pair, only the successful result with the latest timestamp. Failed and
// aborted runs are left out. The input is not modified.
//
// Results are ordered by OCP version and then GPU operator version, newest first.
func LatestSuccessful(in []v1.TestResult) []v1.TestResult {
	latest := map[pair]v1.TestResult{}
	for _, r := range in {
		if r.TestStatus != v1.StatusSuccess {
			continue
		}
		p := pair{ocp: r.OCPFullVersion, gpu: r.GPUOperatorVersion}
		if cur, ok := latest[p]; !ok || cur.JobTimestamp.Less(r.JobTimestamp) {
			latest[p] = r
		}
	}

	out := make([]v1.TestResult, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OCPFullVersion != out[j].OCPFullVersion {
			return versionGreater(out[i].OCPFullVersion, out[j].OCPFullVersion)
		}
		return versionGreater(out[i].GPUOperatorVersion, out[j].GPUOperatorVersion)
	})
	return out
}

// IsCatalogResult reports whether r is a successful run of a released GPU
// operator. Runs of main builds, reported as "master" or as a bundle version,
// are not.
func IsCatalogResult(r v1.TestResult) bool {
	gpu := strings.ToLower(r.GPUOperatorVersion)
	return r.TestStatus == v1.StatusSuccess &&
		!strings.Contains(gpu, "master") &&
		!strings.Contains(gpu, "bundle")
}

// BundleHistory returns every result that is not a catalog result, whatever
// its status, newest first.
func BundleHistory(in []v1.TestResult) []v1.TestResult {
	out := []v1.TestResult{}
	for _, r := range in {
		if !IsCatalogResult(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].JobTimestamp.Less(out[i].JobTimestamp)
	})
	return out
}

// Summarize splits the results of every OCP minor into the catalog of
// latest successful runs and the main build history.
func Summarize(store v1.ResultStore) v1.Summary {
	summary := make(v1.Summary, len(store))
	for ocp, results := range store {
		var catalog []v1.TestResult
		for _, r := range results {
			if IsCatalogResult(r) {
				catalog = append(catalog, r)
			}
		}
		summary[ocp] = v1.OCPSummary{
			Catalog: LatestSuccessful(catalog),
			Bundles: BundleHistory(results),
		}
	}
	return summary
}

// versionGreater compares versions such as "4.14.12" or "24.9.2(bundle)",
// falling back to string order for anything unparseable.
func versionGreater(a, b string) bool {
	va, errA := version.NewVersion(strings.SplitN(a, "(", 2)[0])
	vb, errB := version.NewVersion(strings.SplitN(b, "(", 2)[0])
	if errA != nil || errB != nil {
		return a > b
	}
	if va.Equal(vb) {
		return a > b
	}
	return va.GreaterThan(vb)
}
