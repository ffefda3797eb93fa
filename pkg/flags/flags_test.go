package flags

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/config/v1"
	"github.com/wabouhamad/nvidia-ci/pkg/testmatrix"
)

func TestMatrixFlagsResolve(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		env         string
		cfg         *v1.NvidiaCIConfig
		wantPolicy  testmatrix.MainBranchPolicy
		wantCount   int
		wantIgnored []string
		wantErr     bool
	}{
		{
			name:        "defaults",
			wantPolicy:  testmatrix.DefaultMainBranchPolicy,
			wantCount:   testmatrix.DefaultGPUReleaseCount,
			wantIgnored: []string{},
		},
		{
			name:        "config file",
			cfg:         &v1.NvidiaCIConfig{MainBranchPolicy: "all", GPUReleaseCount: 3, IgnoredOCPVersions: []string{"4.11"}},
			env:         `["4.13", "4.11"]`,
			wantPolicy:  testmatrix.PolicyAllReleases,
			wantCount:   3,
			wantIgnored: []string{"4.11", "4.13"},
		},
		{
			name:        "flags win",
			args:        []string{"--main-branch-policy=latest", "--gpu-release-count=1", "--ignored-ocp-versions=4.12"},
			cfg:         &v1.NvidiaCIConfig{MainBranchPolicy: "all", GPUReleaseCount: 3},
			wantPolicy:  testmatrix.PolicyLatestRelease,
			wantCount:   1,
			wantIgnored: []string{"4.12"},
		},
		{
			name:    "zero release count",
			args:    []string{"--gpu-release-count=0"},
			cfg:     &v1.NvidiaCIConfig{GPUReleaseCount: 3},
			wantErr: true,
		},
		{
			name:    "negative release count",
			args:    []string{"--gpu-release-count=-2"},
			wantErr: true,
		},
		{
			name:    "negative release count in config file",
			cfg:     &v1.NvidiaCIConfig{GPUReleaseCount: -1},
			wantErr: true,
		},
		{
			name:    "unknown policy",
			args:    []string{"--main-branch-policy=first"},
			wantErr: true,
		},
		{
			name:    "malformed env",
			env:     `4.11`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OCP_IGNORED_VERSIONS", tt.env)
			f := NewMatrixFlags()
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			f.BindFlags(fs)
			require.NoError(t, fs.Parse(tt.args))

			err := f.Resolve(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPolicy, f.Policy())
			assert.Equal(t, tt.wantCount, f.GPUReleaseCount)
			assert.Equal(t, tt.wantIgnored, f.IgnoredOCPVersions)
		})
	}
}

func TestGitHubFlagsResolve(t *testing.T) {
	f := NewGitHubFlags()
	f.Repo = "from-flag"
	f.Resolve(&v1.NvidiaCIConfig{GitHub: v1.GitHubConfig{Org: "from-config", Repo: "ignored"}})

	assert.Equal(t, "from-config", f.Org)
	assert.Equal(t, "from-flag", f.Repo)
	assert.Equal(t, DefaultGitHubBaseBranch, f.BaseBranch)
}

func TestVersionStateFlagsFromEnv(t *testing.T) {
	t.Setenv("VERSION_FILE_PATH", "/state/versions.json")
	t.Setenv("TEST_TO_TRIGGER_FILE_PATH", "")

	f := NewVersionStateFlags()
	assert.Equal(t, "/state/versions.json", f.VersionFile)
	assert.Equal(t, "tests_to_trigger.txt", f.TestsToTriggerFile)
	assert.NoError(t, f.Validate())

	f.VersionFile = ""
	assert.Error(t, f.Validate())
}

func TestProwFlagsValidate(t *testing.T) {
	f := NewProwFlags()
	assert.NoError(t, f.Validate())
	f.URL = "not a url"
	assert.Error(t, f.Validate())
}
