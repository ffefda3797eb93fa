package testmatrix

import (
	log "github.com/sirupsen/logrus"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
	"github.com/wabouhamad/nvidia-ci/pkg/versiondiff"
)

// Plan is the outcome of comparing two versions snapshots.
type Plan struct {
	Diff        v1.Map
	OCPReleases []string
	GPUReleases []string
	Commands    []string
}

type Planner struct {
	Expander        *Expander
	GPUReleaseCount int
}

func NewPlanner(policy MainBranchPolicy, gpuReleaseCount int, logger log.FieldLogger) *Planner {
	return &Planner{
		Expander:        NewExpander(policy, logger),
		GPUReleaseCount: gpuReleaseCount,
	}
}

// Plan diffs the snapshots, derives the releases under test from the newer
// one and renders the jobs to trigger.
func (p *Planner) Plan(older, newer v1.Map) Plan {
	logger := orDiscard(p.Expander.Log)

	diff := versiondiff.Diff(older, newer)
	ocp, gpu := CurrentReleases(newer, p.GPUReleaseCount, logger)

	plan := Plan{
		Diff:        diff,
		OCPReleases: ocp,
		GPUReleases: gpu,
		Commands:    []string{},
	}
	if len(diff) == 0 {
		logger.Info("no version changes detected")
		return plan
	}

	plan.Commands = Emit(p.Expander.Expand(diff, ocp, gpu))
	logger.WithField("changed", len(diff)).Infof("%d tests to trigger", len(plan.Commands))
	return plan
}
