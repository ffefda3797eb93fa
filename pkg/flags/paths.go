package flags

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// VersionStateFlags locate the persisted versions and trigger command files.
type VersionStateFlags struct {
	VersionFile        string
	TestsToTriggerFile string
}

func NewVersionStateFlags() *VersionStateFlags {
	return &VersionStateFlags{
		VersionFile:        envOr("VERSION_FILE_PATH", "versions.json"),
		TestsToTriggerFile: envOr("TEST_TO_TRIGGER_FILE_PATH", "tests_to_trigger.txt"),
	}
}

func (f *VersionStateFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.VersionFile, "version-file", f.VersionFile, "Path of the tracked versions file (env VERSION_FILE_PATH)")
	fs.StringVar(&f.TestsToTriggerFile, "tests-to-trigger-file", f.TestsToTriggerFile, "Path the test trigger commands are written to (env TEST_TO_TRIGGER_FILE_PATH)")
}

func (f *VersionStateFlags) Validate() error {
	if f.VersionFile == "" || f.TestsToTriggerFile == "" {
		return errors.New("both --version-file and --tests-to-trigger-file are required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
