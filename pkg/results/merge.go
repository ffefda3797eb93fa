// Package results reconciles freshly fetched GPU operator e2e results with the
// results recorded by previous runs.
package results

import (
	"io"

	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/results/v1"
)

type Merger struct {
	log log.FieldLogger
}

func NewMerger(logger log.FieldLogger) *Merger {
	if logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Merger{log: logger}
}

// Merge appends every incoming result whose key is not yet recorded under its
// OCP version. Recorded results are kept as they are and in their order, and
// neither argument is modified. Merging the same incoming data again is a no-op.
func (m *Merger) Merge(existing, incoming v1.ResultStore) v1.ResultStore {
	merged := make(v1.ResultStore, len(existing)+len(incoming))
	for ocp, results := range existing {
		if results == nil {
			merged[ocp] = nil
			continue
		}
		merged[ocp] = append(make([]v1.TestResult, 0, len(results)), results...)
	}

	for ocp, results := range incoming {
		recorded := merged[ocp]
		if recorded == nil {
			recorded = []v1.TestResult{}
		}

		seen := sets.New[v1.ResultKey]()
		for _, r := range recorded {
			seen.Insert(r.Key())
		}

		added := 0
		for _, r := range results {
			key := r.Key()
			if seen.Has(key) {
				continue
			}
			seen.Insert(key)
			recorded = append(recorded, r)
			added++
		}
		merged[ocp] = recorded

		m.log.WithField("ocp", ocp).Debugf("merged %d new results, %d already recorded", added, len(results)-added)
	}

	return merged
}
