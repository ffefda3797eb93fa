package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	versionsv1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/loaderwithmetrics"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/versionloader"
	"github.com/wabouhamad/nvidia-ci/pkg/flags"
	"github.com/wabouhamad/nvidia-ci/pkg/flags/configflags"
	"github.com/wabouhamad/nvidia-ci/pkg/statefile"
	"github.com/wabouhamad/nvidia-ci/pkg/testmatrix"
)

type UpdateVersionsFlags struct {
	ConfigFlags  *configflags.ConfigFlags
	MatrixFlags  *flags.MatrixFlags
	StateFlags   *flags.VersionStateFlags
	GHCRToken    string
	HTTPTimeout  time.Duration
	TotalTimeout time.Duration
}

func NewUpdateVersionsFlags() *UpdateVersionsFlags {
	return &UpdateVersionsFlags{
		ConfigFlags:  configflags.NewConfigFlags(),
		MatrixFlags:  flags.NewMatrixFlags(),
		StateFlags:   flags.NewVersionStateFlags(),
		GHCRToken:    envOrEmpty("GH_AUTH_TOKEN"),
		HTTPTimeout:  30 * time.Second,
		TotalTimeout: 10 * time.Minute,
	}
}

func (f *UpdateVersionsFlags) BindFlags(fs *pflag.FlagSet) {
	f.ConfigFlags.BindFlags(fs)
	f.MatrixFlags.BindFlags(fs)
	f.StateFlags.BindFlags(fs)
	fs.StringVar(&f.GHCRToken, "gh-auth-token", f.GHCRToken,
		"Token for the GitHub container registry; an anonymous pull token is requested when empty (env GH_AUTH_TOKEN)")
	fs.DurationVar(&f.HTTPTimeout, "http-timeout", f.HTTPTimeout, "Timeout of a single registry request")
	fs.DurationVar(&f.TotalTimeout, "timeout", f.TotalTimeout, "Timeout of the whole update")
}

func (f *UpdateVersionsFlags) Validate() error {
	return f.StateFlags.Validate()
}

func NewUpdateVersionsCommand() *cobra.Command {
	f := NewUpdateVersionsFlags()

	cmd := &cobra.Command{
		Use:   "update-versions",
		Short: "Fetch the latest OCP and GPU operator versions and write the tests to trigger",
		Long: `Fetches the latest OpenShift patch releases, NVIDIA GPU operator releases and
the digest of the newest GPU operator main build. Compares them with the tracked
versions file, writes one trigger command per line for every combination that
needs a new run, and then records the new versions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return err
			}

			config, err := f.ConfigFlags.GetConfig()
			if err != nil {
				return err
			}
			if err := f.MatrixFlags.Resolve(config); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), f.TotalTimeout)
			defer cancel()

			loader := versionloader.New(ctx,
				&http.Client{Timeout: f.HTTPTimeout},
				versionloader.DefaultEndpoints(),
				f.MatrixFlags.IgnoredOCPVersions,
				f.GHCRToken,
				log.WithField("loader", dataloader.VersionsLoaderName))

			_, err = updateVersions(f, loader, log.StandardLogger())
			return err
		},
	}
	f.BindFlags(cmd.Flags())

	return cmd
}

type versionsFetcher interface {
	dataloader.DataLoader
	Versions() versionsv1.Map
}

// updateVersions runs one update cycle. The tracked versions are only
// rewritten once the trigger commands are safely on disk.
func updateVersions(f *UpdateVersionsFlags, fetcher versionsFetcher, logger log.FieldLogger) (testmatrix.Plan, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}

	older, err := statefile.LoadVersions(f.StateFlags.VersionFile)
	if err != nil {
		return testmatrix.Plan{}, err
	}

	loader := loaderwithmetrics.New([]dataloader.DataLoader{fetcher}, logger)
	loader.Load()
	if errs := loader.LoaderErrors(fetcher.Name()); len(errs) > 0 {
		for _, err := range errs {
			logger.WithError(err).Error("fetching versions failed")
		}
		return testmatrix.Plan{}, errors.Errorf("could not fetch versions: %d errors", len(errs))
	}
	newer := fetcher.Versions()

	plan := testmatrix.NewPlanner(f.MatrixFlags.Policy(), f.MatrixFlags.GPUReleaseCount, logger).Plan(older, newer)
	logger.WithFields(log.Fields{
		"ocpReleases": plan.OCPReleases,
		"gpuReleases": plan.GPUReleases,
	}).Info("releases under test")
	for _, c := range plan.Commands {
		logger.Debug(c)
	}

	if err := statefile.WriteCommands(f.StateFlags.TestsToTriggerFile, plan.Commands); err != nil {
		return plan, err
	}
	if len(plan.Diff) == 0 {
		return plan, nil
	}
	if err := statefile.SaveVersions(f.StateFlags.VersionFile, newer); err != nil {
		return plan, err
	}
	logger.WithField("file", f.StateFlags.VersionFile).Info("versions updated")
	return plan, nil
}

func envOrEmpty(key string) string {
	v, _ := os.LookupEnv(key)
	return v
}
