package prow

import "encoding/json"

// JobState is the result recorded in a job's finished.json.
type JobState string

// Results written by prow jobs.
const (
	// SuccessState means the job completed without error (exit 0)
	SuccessState JobState = "SUCCESS"
	// FailureState means the job completed with errors (exit non-zero)
	FailureState JobState = "FAILURE"
	// AbortedState means prow killed the job early (new commit pushed, perhaps).
	AbortedState JobState = "ABORTED"
	// ErrorState means the job could not schedule (bad config, perhaps).
	ErrorState JobState = "ERROR"
)

// Finished is the content of the finished.json artifact uploaded at the end
// of every prow job. Only the fields this project reads are modeled.
type Finished struct {
	// Timestamp is the epoch time in seconds when the job finished. It is kept
	// raw, since some uploaders write it as a string.
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Passed    *bool           `json:"passed,omitempty"`
	Result    JobState        `json:"result,omitempty"`
	Revision  string          `json:"revision,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
