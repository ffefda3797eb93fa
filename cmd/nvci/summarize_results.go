package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wabouhamad/nvidia-ci/pkg/results"
	"github.com/wabouhamad/nvidia-ci/pkg/statefile"
)

func NewSummarizeResultsCommand() *cobra.Command {
	var inputFile, outputFile string

	cmd := &cobra.Command{
		Use:   "summarize-results",
		Short: "Summarize results into the latest successful runs and the main build history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputFile == "" || outputFile == "" {
				return errors.New("--input-file and --output-file are required")
			}

			store, err := statefile.LoadResults(inputFile)
			if err != nil {
				return err
			}
			summary := results.Summarize(store)
			if err := statefile.SaveSummary(outputFile, summary); err != nil {
				return err
			}
			log.WithField("file", outputFile).Infof("summarized %d OCP releases", len(summary))
			return nil
		},
	}
	cmd.Flags().StringVar(&inputFile, "input-file", "", "Results file to summarize")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "Where the summary is written")

	return cmd
}
