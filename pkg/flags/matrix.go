package flags

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/sets"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/config/v1"
	"github.com/wabouhamad/nvidia-ci/pkg/testmatrix"
)

// unsetReleaseCount marks --gpu-release-count as not given.
const unsetReleaseCount = -1

// MatrixFlags control which combinations are tested when versions change.
type MatrixFlags struct {
	MainBranchPolicy   string
	GPUReleaseCount    int
	IgnoredOCPVersions []string
}

func NewMatrixFlags() *MatrixFlags {
	return &MatrixFlags{GPUReleaseCount: unsetReleaseCount}
}

func (f *MatrixFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.MainBranchPolicy, "main-branch-policy", f.MainBranchPolicy,
		"OCP releases that test a new GPU operator main build: {all,latest,latest-and-earliest} (default "+string(testmatrix.DefaultMainBranchPolicy)+")")
	fs.IntVar(&f.GPUReleaseCount, "gpu-release-count", f.GPUReleaseCount,
		"Number of most recent GPU operator releases tested besides main; when unset the configuration file or 2 is used")
	fs.StringSliceVar(&f.IgnoredOCPVersions, "ignored-ocp-versions", f.IgnoredOCPVersions,
		"OCP minors that are never tracked, in addition to OCP_IGNORED_VERSIONS and the configuration file")
}

// Resolve merges flags, the configuration file and OCP_IGNORED_VERSIONS.
// Flags win over the configuration file, which wins over defaults.
func (f *MatrixFlags) Resolve(cfg *v1.NvidiaCIConfig) error {
	if cfg == nil {
		cfg = &v1.NvidiaCIConfig{}
	}

	f.MainBranchPolicy = firstNonEmpty(f.MainBranchPolicy, cfg.MainBranchPolicy, string(testmatrix.DefaultMainBranchPolicy))
	if _, err := testmatrix.ParseMainBranchPolicy(f.MainBranchPolicy); err != nil {
		return err
	}

	if f.GPUReleaseCount == unsetReleaseCount {
		f.GPUReleaseCount = cfg.GPUReleaseCount
		// an omitted gpuReleaseCount decodes as 0
		if f.GPUReleaseCount == 0 {
			f.GPUReleaseCount = testmatrix.DefaultGPUReleaseCount
		}
	}
	if f.GPUReleaseCount < 1 {
		return errors.Errorf("gpu release count must be at least 1, got %d", f.GPUReleaseCount)
	}

	fromEnv, err := ignoredVersionsFromEnv()
	if err != nil {
		return err
	}
	ignored := sets.New(f.IgnoredOCPVersions...)
	ignored.Insert(cfg.IgnoredOCPVersions...)
	ignored.Insert(fromEnv...)
	f.IgnoredOCPVersions = sets.List(ignored)
	return nil
}

// Policy returns the resolved main branch policy.
func (f *MatrixFlags) Policy() testmatrix.MainBranchPolicy {
	p, _ := testmatrix.ParseMainBranchPolicy(f.MainBranchPolicy)
	return p
}

// ignoredVersionsFromEnv reads OCP_IGNORED_VERSIONS, a JSON list of minors.
func ignoredVersionsFromEnv() ([]string, error) {
	raw := os.Getenv("OCP_IGNORED_VERSIONS")
	if raw == "" {
		return nil, nil
	}
	var versions []string
	if err := json.Unmarshal([]byte(raw), &versions); err != nil {
		return nil, errors.Wrap(err, "OCP_IGNORED_VERSIONS must be a JSON list of strings")
	}
	sort.Strings(versions)
	return versions, nil
}
