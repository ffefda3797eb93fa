package v1

// NvidiaCIConfig is the optional YAML configuration file.
type NvidiaCIConfig struct {
	// IgnoredOCPVersions lists OCP minors (e.g. "4.11") that are never tracked.
	IgnoredOCPVersions []string `yaml:"ignoredOCPVersions,omitempty"`

	// MainBranchPolicy selects which OCP releases run the GPU operator main
	// branch when a new main build appears. One of "all", "latest",
	// "latest-and-earliest".
	MainBranchPolicy string `yaml:"mainBranchPolicy,omitempty"`

	// GPUReleaseCount is the number of most recent GPU operator minors tested
	// in addition to main.
	GPUReleaseCount int `yaml:"gpuReleaseCount,omitempty"`

	GitHub GitHubConfig `yaml:"github,omitempty"`
}

type GitHubConfig struct {
	Org        string `yaml:"org,omitempty"`
	Repo       string `yaml:"repo,omitempty"`
	BaseBranch string `yaml:"baseBranch,omitempty"`
}
