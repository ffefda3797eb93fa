// Package versiondiff computes what changed between two snapshots of the
// tracked versions.
package versiondiff

import (
	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
)

// Diff returns the entries of newer that were added or changed relative to
// older. Nested maps are compared key by key and only reported when something
// below them changed. Keys that disappeared are never reported.
//
// Neither input is modified and the result shares no maps with them.
func Diff(older, newer v1.Map) v1.Map {
	diff := v1.Map{}

	for key, value := range newer {
		prev, existed := older[key]

		if value.IsNested() {
			var prevTree v1.Map
			if existed && prev.IsNested() {
				prevTree = prev.Nested()
			}
			if sub := Diff(prevTree, value.Nested()); len(sub) > 0 {
				diff[key] = v1.Nested(sub)
			}
			continue
		}

		if !existed || !prev.Equal(value) {
			diff[key] = value
		}
	}

	return diff
}
