package testmatrix

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name        string
		policy      MainBranchPolicy
		diff        v1.Map
		ocpReleases []string
		gpuReleases []string
		want        []Entry
	}{
		{
			name:        "bundle changed tests latest and earliest",
			diff:        v1.Map{v1.KeyGPUMainLatest: v1.Scalar("B")},
			ocpReleases: []string{"4.14", "4.10", "4.11", "4.13"},
			gpuReleases: []string{"21.3", "22.3"},
			want:        []Entry{{"4.10", "master"}, {"4.14", "master"}},
		},
		{
			name:        "bundle changed orders releases semantically",
			diff:        v1.Map{v1.KeyGPUMainLatest: v1.Scalar("B")},
			ocpReleases: []string{"4.9", "4.10", "4.12"},
			gpuReleases: []string{"25.1"},
			want:        []Entry{{"4.9", "master"}, {"4.12", "master"}},
		},
		{
			name:        "bundle changed with a single release",
			diff:        v1.Map{v1.KeyGPUMainLatest: v1.Scalar("B")},
			ocpReleases: []string{"4.16"},
			gpuReleases: []string{"25.1"},
			want:        []Entry{{"4.16", "master"}},
		},
		{
			name:        "bundle changed with latest policy",
			policy:      PolicyLatestRelease,
			diff:        v1.Map{v1.KeyGPUMainLatest: v1.Scalar("B")},
			ocpReleases: []string{"4.14", "4.10", "4.11", "4.13"},
			want:        []Entry{{"4.14", "master"}},
		},
		{
			name:        "bundle changed with all releases policy",
			policy:      PolicyAllReleases,
			diff:        v1.Map{v1.KeyGPUMainLatest: v1.Scalar("B")},
			ocpReleases: []string{"4.14", "4.10", "4.11"},
			want:        []Entry{{"4.10", "master"}, {"4.11", "master"}, {"4.14", "master"}},
		},
		{
			name:        "bundle changed without releases",
			diff:        v1.Map{v1.KeyGPUMainLatest: v1.Scalar("B")},
			gpuReleases: []string{"25.1"},
			want:        nil,
		},
		{
			name:        "gpu version changed",
			diff:        v1.Map{v1.KeyGPUOperator: v1.Nested(v1.Map{"25.1": v1.Scalar("25.1.1")})},
			ocpReleases: []string{"4.11", "4.13"},
			gpuReleases: []string{"24.3", "25.1"},
			want:        []Entry{{"4.11", "25.1"}, {"4.13", "25.1"}},
		},
		{
			name:        "gpu version added",
			diff:        v1.Map{v1.KeyGPUOperator: v1.Nested(v1.Map{"25.3": v1.Scalar("25.3.0")})},
			ocpReleases: []string{"4.11", "4.13"},
			gpuReleases: []string{"25.1", "25.3"},
			want:        []Entry{{"4.11", "25.3"}, {"4.13", "25.3"}},
		},
		{
			name:        "gpu version outside releases under test",
			diff:        v1.Map{v1.KeyGPUOperator: v1.Nested(v1.Map{"25.3": v1.Scalar("25.3.0")})},
			ocpReleases: []string{"4.11", "4.13"},
			gpuReleases: []string{"24.9", "25.1"},
			want:        nil,
		},
		{
			name:        "ocp version changed",
			diff:        v1.Map{v1.KeyOCP: v1.Nested(v1.Map{"4.12": v1.Scalar("4.12.2")})},
			ocpReleases: []string{"4.12", "4.13"},
			gpuReleases: []string{"24.4", "25.3"},
			want:        []Entry{{"4.12", "24.4"}, {"4.12", "25.3"}},
		},
		{
			name:        "ocp version added",
			diff:        v1.Map{v1.KeyOCP: v1.Nested(v1.Map{"4.15": v1.Scalar("4.15.0")})},
			ocpReleases: []string{"4.12", "4.13", "4.15"},
			gpuReleases: []string{"24.4", "25.3"},
			want:        []Entry{{"4.15", "24.4"}, {"4.15", "25.3"}},
		},
		{
			name:        "ocp version outside tracked releases is still tested",
			diff:        v1.Map{v1.KeyOCP: v1.Nested(v1.Map{"4.20": v1.Scalar("4.20.0")})},
			ocpReleases: []string{"4.12", "4.13"},
			gpuReleases: []string{"25.3", "master"},
			want:        []Entry{{"4.20", "25.3"}, {"4.20", "master"}},
		},
		{
			name: "overlapping rules collapse",
			diff: v1.Map{
				v1.KeyGPUMainLatest: v1.Scalar("B"),
				v1.KeyOCP:           v1.Nested(v1.Map{"4.14": v1.Scalar("4.14.5")}),
				v1.KeyGPUOperator:   v1.Nested(v1.Map{"25.3": v1.Scalar("25.3.1")}),
			},
			ocpReleases: []string{"4.12", "4.14"},
			gpuReleases: []string{"25.3", "master"},
			want: []Entry{
				{"4.12", "master"}, {"4.14", "master"},
				{"4.14", "25.3"},
				{"4.12", "25.3"},
			},
		},
		{
			name:        "scalar where minors are expected",
			diff:        v1.Map{v1.KeyOCP: v1.Scalar("broken")},
			ocpReleases: []string{"4.12"},
			gpuReleases: []string{"25.3"},
			want:        nil,
		},
		{
			name:        "no changes",
			diff:        v1.Map{},
			ocpReleases: []string{"4.11", "4.13"},
			gpuReleases: []string{"25.1", "25.3"},
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExpander(tt.policy, nil)
			got := e.Expand(tt.diff, tt.ocpReleases, tt.gpuReleases)
			assert.Equal(t, sets.New(tt.want...), got)
		})
	}
}

func TestExpandWarnsOnUnknownReleases(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := NewExpander(DefaultMainBranchPolicy, logger)

	diff := v1.Map{
		v1.KeyOCP:         v1.Nested(v1.Map{"4.20": v1.Scalar("4.20.0")}),
		v1.KeyGPUOperator: v1.Nested(v1.Map{"23.9": v1.Scalar("23.9.2")}),
	}
	got := e.Expand(diff, []string{"4.14"}, []string{"25.3"})

	assert.Equal(t, sets.New(Entry{"4.20", "25.3"}), got)
	require.Len(t, hook.AllEntries(), 2)
	for _, entry := range hook.AllEntries() {
		assert.Equal(t, logrus.WarnLevel, entry.Level)
	}
}

func TestParseMainBranchPolicy(t *testing.T) {
	p, err := ParseMainBranchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyLatestAndEarliest, p)

	p, err = ParseMainBranchPolicy("all")
	require.NoError(t, err)
	assert.Equal(t, PolicyAllReleases, p)

	_, err = ParseMainBranchPolicy("oldest")
	assert.Error(t, err)
}

func TestCurrentReleases(t *testing.T) {
	store := v1.NewStore("sha",
		map[string]string{"24.9": "24.9.2", "25.3": "25.3.1", "23.9": "23.9.2", "25.10": "25.10.0"},
		map[string]string{"4.9": "4.9.1", "4.16": "4.16.3", "4.12": "4.12.60"},
	)

	ocp, gpu := CurrentReleases(store, 2, nil)
	assert.Equal(t, []string{"4.9", "4.12", "4.16"}, ocp)
	assert.Equal(t, []string{"25.3", "25.10", "master"}, gpu)

	_, gpu = CurrentReleases(store, 10, nil)
	assert.Equal(t, []string{"23.9", "24.9", "25.3", "25.10", "master"}, gpu)

	ocp, gpu = CurrentReleases(v1.Map{}, 2, nil)
	assert.Empty(t, ocp)
	assert.Equal(t, []string{"master"}, gpu)
}

func TestMaxVersion(t *testing.T) {
	assert.Equal(t, "4.14.10", MaxVersion("4.14.9", "4.14.10"))
	assert.Equal(t, "4.14.0", MaxVersion("4.14.0-rc.3", "4.14.0"))
	assert.Equal(t, "4.14.1", MaxVersion("", "4.14.1"))
	assert.Equal(t, "25.1.0", MaxVersion("25.1.0", "garbage"))
}
