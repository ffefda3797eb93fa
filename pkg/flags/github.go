package flags

import (
	"github.com/spf13/pflag"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/config/v1"
)

const (
	DefaultGitHubOrg        = "rh-ecosystem-edge"
	DefaultGitHubRepo       = "nvidia-ci"
	DefaultGitHubBaseBranch = "main"
)

// GitHubFlags select the repository whose pull request jobs are tracked.
type GitHubFlags struct {
	Org        string
	Repo       string
	BaseBranch string
}

func NewGitHubFlags() *GitHubFlags {
	return &GitHubFlags{}
}

func (f *GitHubFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Org, "github-org", f.Org, "GitHub organization of the CI repository (default "+DefaultGitHubOrg+")")
	fs.StringVar(&f.Repo, "github-repo", f.Repo, "GitHub CI repository (default "+DefaultGitHubRepo+")")
	fs.StringVar(&f.BaseBranch, "github-base-branch", f.BaseBranch, "Branch the tracked pull requests target (default "+DefaultGitHubBaseBranch+")")
}

// Resolve fills unset values from the configuration file, then from defaults.
func (f *GitHubFlags) Resolve(cfg *v1.NvidiaCIConfig) {
	var fromConfig v1.GitHubConfig
	if cfg != nil {
		fromConfig = cfg.GitHub
	}
	f.Org = firstNonEmpty(f.Org, fromConfig.Org, DefaultGitHubOrg)
	f.Repo = firstNonEmpty(f.Repo, fromConfig.Repo, DefaultGitHubRepo)
	f.BaseBranch = firstNonEmpty(f.BaseBranch, fromConfig.BaseBranch, DefaultGitHubBaseBranch)
}
