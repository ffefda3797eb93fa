package v1

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

const StatusSuccess = "SUCCESS"

// TestResult is a single GPU operator e2e job observation.
type TestResult struct {
	OCPFullVersion     string    `json:"ocp_full_version"`
	GPUOperatorVersion string    `json:"gpu_operator_version"`
	TestStatus         string    `json:"test_status"`
	ProwJobURL         string    `json:"prow_job_url"`
	JobTimestamp       Timestamp `json:"job_timestamp"`
}

// ResultKey is the identity of a TestResult. Two results describe the same
// observation iff their keys are equal.
type ResultKey struct {
	OCPFullVersion     string
	GPUOperatorVersion string
	TestStatus         string
	ProwJobURL         string
	JobTimestamp       string
}

func (r TestResult) Key() ResultKey {
	return ResultKey{
		OCPFullVersion:     r.OCPFullVersion,
		GPUOperatorVersion: r.GPUOperatorVersion,
		TestStatus:         r.TestStatus,
		ProwJobURL:         r.ProwJobURL,
		JobTimestamp:       r.JobTimestamp.String(),
	}
}

// ResultStore maps an OCP minor version to the results recorded for it.
type ResultStore map[string][]TestResult

// Timestamp is a job timestamp as found in finished.json or in previously
// stored data. It may have been written as a JSON number or a string and is
// written back in the same form, null included.
type Timestamp struct {
	value   string
	numeric bool
	null    bool
}

// NumericTimestamp returns a timestamp that encodes as a JSON number.
func NumericTimestamp(unix int64) Timestamp {
	return Timestamp{value: strconv.FormatInt(unix, 10), numeric: true}
}

// StringTimestamp returns a timestamp that encodes as a JSON string.
func StringTimestamp(s string) Timestamp {
	return Timestamp{value: s}
}

// String returns the textual form used for result identity.
func (t Timestamp) String() string {
	return t.value
}

// Unix parses the timestamp as seconds since the epoch.
func (t Timestamp) Unix() (int64, bool) {
	n, err := strconv.ParseInt(t.value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (t Timestamp) IsZero() bool {
	return t.value == ""
}

// IsNull reports whether the timestamp was stored as JSON null.
func (t Timestamp) IsNull() bool {
	return t.null
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.null {
		return []byte("null"), nil
	}
	if t.numeric {
		return []byte(t.value), nil
	}
	return json.Marshal(t.value)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return errors.New("empty timestamp")
	case bytes.Equal(trimmed, []byte("null")):
		*t = Timestamp{null: true}
		return nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = StringTimestamp(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return errors.Wrapf(err, "timestamp must be a number or a string, got %s", string(trimmed))
		}
		*t = Timestamp{value: n.String(), numeric: true}
		return nil
	}
}

// Less orders timestamps numerically when both are integers and textually otherwise.
func (t Timestamp) Less(o Timestamp) bool {
	a, aok := t.Unix()
	b, bok := o.Unix()
	if aok && bok {
		return a < b
	}
	return t.value < o.value
}

// MicroShiftResult is one run of a MicroShift NVIDIA device plugin periodic job.
type MicroShiftResult struct {
	Num       int64     `json:"num"`
	Timestamp Timestamp `json:"timestamp"`
	Status    string    `json:"status"`
	URL       string    `json:"url"`
}

// MicroShiftResults maps a MicroShift minor version to its latest job runs.
type MicroShiftResults map[string][]MicroShiftResult

// OCPSummary is the display view of the results of one OCP minor.
type OCPSummary struct {
	// Catalog holds the latest successful run of each released GPU operator
	// version on each OCP patch release.
	Catalog []TestResult `json:"catalog"`
	// Bundles holds every run of GPU operator main builds, newest first.
	Bundles []TestResult `json:"bundles"`
}

// Summary maps an OCP minor version to its display view.
type Summary map[string]OCPSummary
