package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	ID       string `json:"job_id"`
	Kind     string `json:"kind"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// jobListOutput represents the filtered output for a list of jobs
type jobListOutput struct {
	Jobs []jobOutput `json:"jobs"`
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage jobs",
	}
	cmd.AddCommand(
		newListJobsCmd(),
		newGetJobCmd(),
		newCancelJobCmd(),
	)
	return cmd
}

func newListJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString(flagStatus)

			jobs, err := apiClient.ListJobs(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("error fetching jobs: %w", err)
			}

			// Filter the response to only include relevant fields
			output := jobListOutput{
				Jobs: make([]jobOutput, len(jobs)),
			}
			for i, job := range jobs {
				output.Jobs[i] = jobOutput{
					ID:       job.ID,
					Kind:     string(job.Kind),
					Filename: job.Filename,
					Status:   job.Status.String(),
					Progress: job.Progress,
					Message:  job.Message,
				}
			}
			return printJSON(cmd, output)
		},
	}
	cmd.Flags().StringP(flagStatus, "t", "", "Filter jobs by status")
	return cmd
}

func newGetJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Get a specific job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := apiClient.GetJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error fetching job: %w", err)
			}
			return printJSON(cmd, job)
		},
	}
}

func newCancelJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiClient.CancelJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error cancelling job: %w", err)
			}
			return printJSON(cmd, resp)
		},
	}
}
