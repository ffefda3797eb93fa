package results

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/results/v1"
)

func result(ocp, gpu, status, url string, ts int64) v1.TestResult {
	return v1.TestResult{
		OCPFullVersion:     ocp,
		GPUOperatorVersion: gpu,
		TestStatus:         status,
		ProwJobURL:         url,
		JobTimestamp:       v1.NumericTimestamp(ts),
	}
}

var timestampCmp = cmp.Comparer(func(a, b v1.Timestamp) bool {
	return a.String() == b.String()
})

func TestMerge(t *testing.T) {
	job1 := result("4.14.1", "23.9.0", "SUCCESS", "https://example.com/job1", 1712345678)
	job2 := result("4.14.2", "24.3.0", "SUCCESS", "https://example.com/job2", 1712345679)
	job3 := result("4.13.5", "23.9.0", "SUCCESS", "https://example.com/job3", 1712345679)
	job1Failed := job1
	job1Failed.TestStatus = "FAILURE"

	tests := []struct {
		name     string
		existing v1.ResultStore
		incoming v1.ResultStore
		want     v1.ResultStore
	}{
		{
			name:     "new data into empty store",
			existing: v1.ResultStore{},
			incoming: v1.ResultStore{"4.14": {job1}},
			want:     v1.ResultStore{"4.14": {job1}},
		},
		{
			name:     "no duplicates",
			existing: v1.ResultStore{"4.14": {job2}},
			incoming: v1.ResultStore{"4.14": {job1}},
			want:     v1.ResultStore{"4.14": {job2, job1}},
		},
		{
			name:     "exact duplicate is not added",
			existing: v1.ResultStore{"4.14": {job1}},
			incoming: v1.ResultStore{"4.14": {job1}},
			want:     v1.ResultStore{"4.14": {job1}},
		},
		{
			name:     "duplicates within incoming collapse",
			existing: v1.ResultStore{},
			incoming: v1.ResultStore{"4.14": {job1, job2, job1}},
			want:     v1.ResultStore{"4.14": {job1, job2}},
		},
		{
			name:     "different ocp keys",
			existing: v1.ResultStore{"4.13": {job3}},
			incoming: v1.ResultStore{"4.14": {job1}},
			want:     v1.ResultStore{"4.13": {job3}, "4.14": {job1}},
		},
		{
			name:     "status difference is a different observation",
			existing: v1.ResultStore{"4.14": {job1}},
			incoming: v1.ResultStore{"4.14": {job1Failed}},
			want:     v1.ResultStore{"4.14": {job1, job1Failed}},
		},
		{
			name:     "incoming key without results",
			existing: v1.ResultStore{"4.13": {job3}},
			incoming: v1.ResultStore{"4.15": {}},
			want:     v1.ResultStore{"4.13": {job3}, "4.15": {}},
		},
		{
			name:     "empty incoming",
			existing: v1.ResultStore{"4.13": {job3}, "4.14": {job1, job2}},
			incoming: v1.ResultStore{},
			want:     v1.ResultStore{"4.13": {job3}, "4.14": {job1, job2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMerger(nil).Merge(tt.existing, tt.incoming)
			if diff := cmp.Diff(tt.want, got, timestampCmp); diff != "" {
				t.Errorf("merge mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	existing := v1.ResultStore{
		"4.14": {result("4.14.1", "23.9.0", "SUCCESS", "https://example.com/job1", 1)},
	}
	incoming := v1.ResultStore{
		"4.14": {
			result("4.14.1", "23.9.0", "SUCCESS", "https://example.com/job1", 1),
			result("4.14.2", "master", "FAILURE", "https://example.com/job2", 2),
		},
		"4.16": {result("4.16.0", "25.3.0", "SUCCESS", "https://example.com/job3", 3)},
	}

	m := NewMerger(nil)
	once := m.Merge(existing, incoming)
	twice := m.Merge(once, incoming)

	if diff := cmp.Diff(once, twice, timestampCmp); diff != "" {
		t.Errorf("second merge changed the store (-once +twice):\n%s", diff)
	}
}

func TestMergeTreatsTimestampEncodingsAlike(t *testing.T) {
	stored := result("4.14.1", "23.9.0", "SUCCESS", "https://example.com/job1", 1712345678)
	fetched := stored
	fetched.JobTimestamp = v1.StringTimestamp("1712345678")

	got := NewMerger(nil).Merge(v1.ResultStore{"4.14": {stored}}, v1.ResultStore{"4.14": {fetched}})

	require.Len(t, got["4.14"], 1)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	existing := v1.ResultStore{"4.14": make([]v1.TestResult, 1, 4)}
	existing["4.14"][0] = result("4.14.1", "23.9.0", "SUCCESS", "https://example.com/job1", 1)
	incoming := v1.ResultStore{"4.14": {result("4.14.2", "23.9.0", "SUCCESS", "https://example.com/job2", 2)}}

	got := NewMerger(nil).Merge(existing, incoming)
	got["4.14"][0].TestStatus = "changed"

	assert.Len(t, existing["4.14"], 1)
	assert.Equal(t, "SUCCESS", existing["4.14"][0].TestStatus)
	// spare capacity of the recorded slice must not be written through
	assert.Empty(t, existing["4.14"][:2][1].ProwJobURL)
	assert.Len(t, incoming["4.14"], 1)
}

func TestLatestSuccessful(t *testing.T) {
	in := []v1.TestResult{
		result("4.14.1", "23.9.0", "SUCCESS", "https://example.com/old", 1),
		result("4.14.1", "23.9.0", "SUCCESS", "https://example.com/new", 5),
		result("4.14.1", "23.9.0", "FAILURE", "https://example.com/newest", 9),
		result("4.14.10", "24.3.0", "SUCCESS", "https://example.com/a", 2),
		result("4.14.2", "24.3.0", "SUCCESS", "https://example.com/b", 2),
		result("4.14.2", "23.9.0", "SUCCESS", "https://example.com/c", 2),
		result("4.14.2", "master", "FAILURE", "https://example.com/d", 3),
	}

	got := LatestSuccessful(in)

	urls := make([]string, 0, len(got))
	for _, r := range got {
		urls = append(urls, r.ProwJobURL)
	}
	assert.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
		"https://example.com/new",
	}, urls)
	assert.Len(t, in, 7)
}

func TestSummarize(t *testing.T) {
	store := v1.ResultStore{
		"4.14": {result("4.14.1", "23.9.0", "FAILURE", "https://example.com/a", 1)},
		"4.16": {
			result("4.16.3", "25.3.0", "SUCCESS", "https://example.com/b", 1),
			result("4.16.3", "master", "SUCCESS", "https://example.com/c", 2),
			result("4.16.3", "25.10.0(bundle)", "FAILURE", "https://example.com/d", 4),
			result("4.16.3", "25.3.0", "FAILURE", "https://example.com/e", 3),
		},
	}

	got := Summarize(store)

	tests := []struct {
		name        string
		ocp         string
		wantCatalog []string
		wantBundles []string
	}{
		{
			name:        "failures of released versions stay in the history",
			ocp:         "4.14",
			wantCatalog: []string{},
			wantBundles: []string{"https://example.com/a"},
		},
		{
			name:        "main builds are kept apart with every status",
			ocp:         "4.16",
			wantCatalog: []string{"https://example.com/b"},
			wantBundles: []string{"https://example.com/d", "https://example.com/e", "https://example.com/c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, ok := got[tt.ocp]
			require.True(t, ok)
			assert.Equal(t, tt.wantCatalog, urls(summary.Catalog))
			assert.Equal(t, tt.wantBundles, urls(summary.Bundles))
		})
	}
}

func TestIsCatalogResult(t *testing.T) {
	assert.True(t, IsCatalogResult(result("4.16.3", "25.3.0", "SUCCESS", "", 1)))
	assert.False(t, IsCatalogResult(result("4.16.3", "25.3.0", "FAILURE", "", 1)))
	assert.False(t, IsCatalogResult(result("4.16.3", "Master", "SUCCESS", "", 1)))
	assert.False(t, IsCatalogResult(result("4.16.3", "25.10.0(Bundle)", "SUCCESS", "", 1)))
}

func urls(results []v1.TestResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ProwJobURL)
	}
	return out
}
