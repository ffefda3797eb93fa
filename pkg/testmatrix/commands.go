package testmatrix

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

const commandFormat = "/test %s-stable-nvidia-gpu-operator-e2e-%s"

var commandRegEx = regexp.MustCompile(`^/test (?P<ocp>\d+\.\d+)-stable-nvidia-gpu-operator-e2e-(?P<gpu>\d+-\d+-x|master)$`)

// GPUSuffix converts a GPU operator minor to the suffix used in job names,
// e.g. 25.1 -> 25-1-x.
func GPUSuffix(gpu string) string {
	if gpu == MasterGPUVersion {
		return gpu
	}
	return strings.ReplaceAll(gpu, ".", "-") + "-x"
}

// GPUVersionFromSuffix is the inverse of GPUSuffix, e.g. 14-9-x -> 14.9.
func GPUVersionFromSuffix(suffix string) string {
	if suffix == MasterGPUVersion {
		return suffix
	}
	return strings.ReplaceAll(strings.TrimSuffix(suffix, "-x"), "-", ".")
}

// Command renders the prow trigger for a single matrix entry.
func Command(e Entry) string {
	return fmt.Sprintf(commandFormat, e.OCP, GPUSuffix(e.GPU))
}

// ParseCommand reads back a trigger rendered by Command.
func ParseCommand(cmd string) (Entry, error) {
	match := commandRegEx.FindStringSubmatch(strings.TrimSpace(cmd))
	if match == nil {
		return Entry{}, errors.Errorf("not a GPU operator e2e trigger: %q", cmd)
	}
	return Entry{
		OCP: match[commandRegEx.SubexpIndex("ocp")],
		GPU: GPUVersionFromSuffix(match[commandRegEx.SubexpIndex("gpu")]),
	}, nil
}

// Emit renders the matrix as sorted, unique trigger commands.
func Emit(matrix sets.Set[Entry]) []string {
	commands := sets.New[string]()
	for e := range matrix {
		commands.Insert(Command(e))
	}
	return sets.List(commands)
}
