// Package version reports build information, injected at link time with
// -ldflags "-X github.com/wabouhamad/nvidia-ci/pkg/version.commitFromGit=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	commitFromGit = "unknown"
	buildDate     = "unknown"
)

type Info struct {
	GitCommit string `json:"gitCommit" yaml:"gitCommit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
}

func Get() Info {
	return Info{
		GitCommit: commitFromGit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
