package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wabouhamad/nvidia-ci/pkg/dataloader"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/loaderwithmetrics"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/microshiftloader"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/prowloader/gcs"
	"github.com/wabouhamad/nvidia-ci/pkg/flags"
	"github.com/wabouhamad/nvidia-ci/pkg/statefile"
)

type MicroShiftFlags struct {
	GoogleCloudFlags *flags.GoogleCloudFlags
	CacheFlags       *flags.CacheFlags
	ProwFlags        *flags.ProwFlags

	JobLimit      int
	OutputFile    string
	LoaderTimeout time.Duration
}

func NewMicroShiftFlags() *MicroShiftFlags {
	return &MicroShiftFlags{
		GoogleCloudFlags: flags.NewGoogleCloudFlags(),
		CacheFlags:       flags.NewCacheFlags(),
		ProwFlags:        flags.NewProwFlags(),
		JobLimit:         microshiftloader.DefaultJobLimit,
		LoaderTimeout:    time.Hour,
	}
}

func (f *MicroShiftFlags) BindFlags(fs *pflag.FlagSet) {
	f.GoogleCloudFlags.BindFlags(fs)
	f.CacheFlags.BindFlags(fs)
	f.ProwFlags.BindFlags(fs)

	fs.IntVar(&f.JobLimit, "job-limit", f.JobLimit, "Number of most recent runs kept per OpenShift release")
	fs.StringVar(&f.OutputFile, "output-data", f.OutputFile, "Where the collected results are written")
	fs.DurationVar(&f.LoaderTimeout, "loader-timeout", f.LoaderTimeout, "Time limit for fetching results")
}

func (f *MicroShiftFlags) Validate() error {
	if f.OutputFile == "" {
		return errors.New("--output-data is required")
	}
	if f.JobLimit <= 0 {
		return errors.Errorf("--job-limit must be positive, got %d", f.JobLimit)
	}
	return f.ProwFlags.Validate()
}

func NewMicroShiftCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "microshift",
		Short: "Commands for the MicroShift NVIDIA device plugin jobs",
	}
	cmd.AddCommand(newMicroShiftFetchDataCommand())
	return cmd
}

func newMicroShiftFetchDataCommand() *cobra.Command {
	f := NewMicroShiftFlags()

	cmd := &cobra.Command{
		Use:   "fetch-data",
		Short: "Collect the latest MicroShift device plugin job results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), f.LoaderTimeout)
			defer cancel()

			gcsClient, err := f.GoogleCloudFlags.GetStorageClient(ctx)
			if err != nil {
				return errors.WithMessage(err, "could not get GCS client")
			}
			defer gcsClient.Close()

			cacheClient, err := f.CacheFlags.GetCacheClient(log.StandardLogger())
			if err != nil {
				return errors.WithMessage(err, "could not get cache client")
			}

			bucket := gcs.NewBucket(gcsClient, f.GoogleCloudFlags.StorageBucket, cacheClient, log.StandardLogger())
			loader := microshiftloader.New(ctx, bucket, f.GoogleCloudFlags.StorageBucket, f.ProwFlags.URL, f.JobLimit,
				log.WithField("loader", dataloader.MicroShiftLoaderName))

			l := loaderwithmetrics.New([]dataloader.DataLoader{loader}, log.StandardLogger())
			l.Load()
			if errs := l.Errors(); len(errs) > 0 {
				for _, err := range errs {
					log.WithError(err).Error("error fetching MicroShift results")
				}
				return errors.Errorf("fetching MicroShift results failed with %d errors", len(errs))
			}

			if err := statefile.SaveMicroShiftResults(f.OutputFile, loader.Results()); err != nil {
				return err
			}
			log.WithField("file", f.OutputFile).Infof("saved results for %d OpenShift releases", len(loader.Results()))
			return nil
		},
	}
	f.BindFlags(cmd.Flags())

	return cmd
}
