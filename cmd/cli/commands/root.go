package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/geoimport/internal/constants"
	"github.com/celestiaorg/geoimport/internal/types"
	"github.com/celestiaorg/geoimport/pkg/api/v1/client"
	"github.com/celestiaorg/geoimport/pkg/api/v1/routes"
)

// flag names
const (
	flagAPIURL  = "api-url"
	flagUserID  = "user"
	flagTimeout = "timeout"
	flagWait    = "wait"
)

// defaultWaitTimeout bounds --wait
const defaultWaitTimeout = 30 * time.Minute

var (
	// apiClient is the shared API client instance, set by PersistentPreRunE
	apiClient client.Client
	// newClient creates the API client. Tests replace it with a mock.
	newClient = client.NewClient
)

// NewRootCmd builds the geoimport command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "geoimport",
		Short: "geoimport CLI - A command line interface for the geoimport API",
		Long: `geoimport CLI uploads KML, KMZ and GPX files to the geoimport API, commits
staged features to the library and queries the library by bounding box.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initClient(cmd)
		},
	}

	root.PersistentFlags().StringP(flagAPIURL, "s", "", fmt.Sprintf("Address of the geoimport API (env: %s, default %s)", constants.EnvAPIURL, routes.DefaultBaseURL))
	root.PersistentFlags().StringP(flagUserID, "u", "", fmt.Sprintf("ID of the user to act as (env: %s)", constants.EnvUserID))
	root.PersistentFlags().Duration(flagTimeout, client.DefaultTimeout, "Request timeout")

	root.AddCommand(
		newUploadCmd(),
		newImportsCmd(),
		newJobsCmd(),
		newFeaturesCmd(),
		newCollectionsCmd(),
		newHealthCmd(),
	)
	return root
}

// initClient resolves the flags with precedence flag > env var > default
// and creates the API client
func initClient(cmd *cobra.Command) error {
	baseURL, _ := cmd.Flags().GetString(flagAPIURL)
	if baseURL == "" {
		baseURL = os.Getenv(constants.EnvAPIURL)
	}
	if baseURL == "" {
		baseURL = routes.DefaultBaseURL
	}

	rawUser, _ := cmd.Flags().GetString(flagUserID)
	if rawUser == "" {
		rawUser = os.Getenv(constants.EnvUserID)
	}
	if rawUser == "" {
		return fmt.Errorf("required flag \"%s\" not set (or set %s)", flagUserID, constants.EnvUserID)
	}
	userID, err := parseID(rawUser)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	timeout, _ := cmd.Flags().GetDuration(flagTimeout)

	apiClient, err = newClient(&client.Options{
		BaseURL: baseURL,
		Timeout: timeout,
		UserID:  userID,
	})
	return err
}

// parseID parses a positive decimal ID
func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	if id == 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return uint(id), nil
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// printJSON pretty prints v to the command output
func printJSON(cmd *cobra.Command, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(prettyJSON))
	return err
}

// waitIfRequested blocks until the job finishes when --wait is set and
// prints the final job instead of the job ID
func waitIfRequested(cmd *cobra.Command, jobID string, accepted interface{}) error {
	wait, _ := cmd.Flags().GetBool(flagWait)
	if !wait {
		return printJSON(cmd, accepted)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultWaitTimeout)
	defer cancel()

	job, err := apiClient.WaitForJob(ctx, jobID, client.DefaultPollInterval)
	if err != nil {
		return fmt.Errorf("error waiting for job %s: %w", jobID, err)
	}
	if err := printJSON(cmd, job); err != nil {
		return err
	}
	if job.Status != types.JobStatusCompleted {
		return fmt.Errorf("job %s %s: %s", jobID, job.Status, job.Error)
	}
	return nil
}

func addWaitFlag(cmd *cobra.Command) {
	cmd.Flags().BoolP(flagWait, "w", false, "Wait for the job to finish")
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := apiClient.HealthCheck(cmd.Context())
			if err != nil {
				return fmt.Errorf("error checking health: %w", err)
			}
			return printJSON(cmd, resp)
		},
	}
}
