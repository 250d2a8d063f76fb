package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

type jobOutput struct {
	ID      string         `json:"jobId" yaml:"jobId"`
	Status  pulse.JobState `json:"jobStatus" yaml:"jobStatus"`
	Message string         `json:"message,omitempty" yaml:"message,omitempty"`
	Result  any            `json:"result,omitempty" yaml:"result,omitempty"`
}

func newJobCmd() *cobra.Command {
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "job <job_id>",
		Short: "Check the status of an asynchronous job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			defer client.Close()

			var job *pulse.Job
			var err error
			if wait {
				job, err = client.WaitJob(cmd.Context(), &pulse.Job{ID: args[0], Status: pulse.JobPending}, timeout)
			} else {
				job, err = client.Job(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}

			out := jobOutput{ID: job.ID, Status: job.Status, Message: job.Message}
			if len(job.Result) > 0 {
				if err := json.Unmarshal(job.Result, &out.Result); err != nil {
					return fmt.Errorf("parse job result: %w", err)
				}
			}
			return writeOutput(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the job to finish and print its result")
	cmd.Flags().DurationVar(&timeout, "wait-timeout", 0, "Maximum wait (default: the configured job timeout)")
	return cmd
}
