// Package statefile reads and writes the files that carry state between runs:
// the versions file, the results file and the trigger command file.
package statefile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	resultsv1 "github.com/wabouhamad/nvidia-ci/pkg/apis/results/v1"
	versionsv1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
)

const indent = "    "

// LoadVersions reads a versions file. A missing or malformed file is an error.
func LoadVersions(path string) (versionsv1.Map, error) {
	store := versionsv1.Map{}
	if err := readJSON(path, &store); err != nil {
		return nil, err
	}
	return store, nil
}

// SaveVersions replaces the versions file with store.
func SaveVersions(path string, store versionsv1.Map) error {
	return writeJSON(path, store)
}

// LoadResults reads a results file. A missing or malformed file is an error.
func LoadResults(path string) (resultsv1.ResultStore, error) {
	store := resultsv1.ResultStore{}
	if err := readJSON(path, &store); err != nil {
		return nil, err
	}
	return store, nil
}

// LoadResultsOrEmpty is LoadResults, except that a file that does not exist
// yet yields an empty store.
func LoadResultsOrEmpty(path string) (resultsv1.ResultStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return resultsv1.ResultStore{}, nil
	}
	return LoadResults(path)
}

func SaveResults(path string, store resultsv1.ResultStore) error {
	return writeJSON(path, store)
}

// WriteCommands writes one command per line, each terminated by a newline.
// An empty list produces an empty file.
func WriteCommands(path string, commands []string) error {
	var buf bytes.Buffer
	for _, c := range commands {
		buf.WriteString(c)
		buf.WriteByte('\n')
	}
	return writeAtomic(path, buf.Bytes())
}

// ReadCommands returns the non-blank lines of a trigger command file.
func ReadCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	defer f.Close()

	commands := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			commands = append(commands, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}
	return commands, nil
}

func readJSON(path string, into interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "could not read %s", path)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return errors.Wrapf(err, "malformed JSON in %s", path)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", indent)
	if err != nil {
		return errors.Wrapf(err, "could not encode %s", path)
	}
	return writeAtomic(path, append(data, '\n'))
}

// writeAtomic writes to a temporary file next to path and renames it into
// place, so readers never observe a partially written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "could not create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "could not create temporary file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "could not write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "could not close %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrapf(err, "could not chmod %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "could not replace %s", path)
	}
	return nil
}

func SaveSummary(path string, summary resultsv1.Summary) error {
	return writeJSON(path, summary)
}

func SaveMicroShiftResults(path string, results resultsv1.MicroShiftResults) error {
	return writeJSON(path, results)
}
