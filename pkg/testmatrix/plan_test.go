package testmatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
)

func TestPlan(t *testing.T) {
	older := v1.NewStore("sha256:aaa",
		map[string]string{"24.9": "24.9.2", "25.3": "25.3.0"},
		map[string]string{"4.12": "4.12.70", "4.14": "4.14.40", "4.16": "4.16.20"},
	)

	tests := []struct {
		name   string
		newer  v1.Map
		policy MainBranchPolicy
		want   []string
	}{
		{
			name:  "nothing changed",
			newer: older.Clone(),
			want:  []string{},
		},
		{
			name: "new main build",
			newer: func() v1.Map {
				m := older.Clone()
				m[v1.KeyGPUMainLatest] = v1.Scalar("sha256:bbb")
				return m
			}(),
			want: []string{
				"/test 4.12-stable-nvidia-gpu-operator-e2e-master",
				"/test 4.16-stable-nvidia-gpu-operator-e2e-master",
			},
		},
		{
			name: "new ocp patch",
			newer: func() v1.Map {
				m := older.Clone()
				m[v1.KeyOCP].Nested()["4.14"] = v1.Scalar("4.14.41")
				return m
			}(),
			want: []string{
				"/test 4.14-stable-nvidia-gpu-operator-e2e-24-9-x",
				"/test 4.14-stable-nvidia-gpu-operator-e2e-25-3-x",
				"/test 4.14-stable-nvidia-gpu-operator-e2e-master",
			},
		},
		{
			name: "new gpu minor pushes the oldest out",
			newer: func() v1.Map {
				m := older.Clone()
				m[v1.KeyGPUOperator].Nested()["25.10"] = v1.Scalar("25.10.0")
				return m
			}(),
			want: []string{
				"/test 4.12-stable-nvidia-gpu-operator-e2e-25-10-x",
				"/test 4.14-stable-nvidia-gpu-operator-e2e-25-10-x",
				"/test 4.16-stable-nvidia-gpu-operator-e2e-25-10-x",
			},
		},
		{
			name: "patch of a minor no longer under test",
			newer: func() v1.Map {
				m := older.Clone()
				m[v1.KeyGPUOperator].Nested()["25.10"] = v1.Scalar("25.10.0")
				m[v1.KeyGPUOperator].Nested()["24.9"] = v1.Scalar("24.9.3")
				return m
			}(),
			want: []string{
				"/test 4.12-stable-nvidia-gpu-operator-e2e-25-10-x",
				"/test 4.14-stable-nvidia-gpu-operator-e2e-25-10-x",
				"/test 4.16-stable-nvidia-gpu-operator-e2e-25-10-x",
			},
		},
		{
			name:   "main build with latest policy",
			policy: PolicyLatestRelease,
			newer: func() v1.Map {
				m := older.Clone()
				m[v1.KeyGPUMainLatest] = v1.Scalar("sha256:bbb")
				return m
			}(),
			want: []string{"/test 4.16-stable-nvidia-gpu-operator-e2e-master"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := NewPlanner(tt.policy, DefaultGPUReleaseCount, nil)
			plan := planner.Plan(older, tt.newer)
			assert.Equal(t, tt.want, plan.Commands)
		})
	}
}

func TestPlanReportsReleases(t *testing.T) {
	newer := v1.NewStore("x", map[string]string{"25.3": "25.3.0"}, map[string]string{"4.18": "4.18.1"})

	plan := NewPlanner(DefaultMainBranchPolicy, DefaultGPUReleaseCount, nil).Plan(v1.Map{}, newer)

	assert.Equal(t, []string{"4.18"}, plan.OCPReleases)
	assert.Equal(t, []string{"25.3", "master"}, plan.GPUReleases)
	assert.True(t, newer.Equal(plan.Diff))
	assert.Equal(t, []string{
		"/test 4.18-stable-nvidia-gpu-operator-e2e-25-3-x",
		"/test 4.18-stable-nvidia-gpu-operator-e2e-master",
	}, plan.Commands)
}
