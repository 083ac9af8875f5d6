package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/geoimport/internal/types"
)

const (
	flagStatus            = "status"
	flagPage              = "page"
	flagIncludeDuplicates = "include-duplicates"
)

// importOutput is the summary of an import item printed by list
type importOutput struct {
	ID             uint   `json:"id"`
	Filename       string `json:"filename"`
	Status         string `json:"status"`
	FeatureCount   int    `json:"feature_count"`
	DuplicateCount int    `json:"duplicate_count"`
	Imported       bool   `json:"imported"`
	Error          string `json:"error,omitempty"`
}

func newImportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Manage staged import items",
	}
	cmd.AddCommand(
		newListImportsCmd(),
		newGetImportCmd(),
		newCommitImportsCmd(),
		newDeleteImportCmd(),
	)
	return cmd
}

func newListImportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List import items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString(flagStatus)
			page, _ := cmd.Flags().GetInt(flagPage)

			items, err := apiClient.ListImports(cmd.Context(), status, page)
			if err != nil {
				return fmt.Errorf("error fetching import items: %w", err)
			}

			output := make([]importOutput, len(items))
			for i, item := range items {
				output[i] = importOutput{
					ID:             item.ID,
					Filename:       item.Filename,
					Status:         item.Status.String(),
					FeatureCount:   item.FeatureCount,
					DuplicateCount: item.DuplicateCount,
					Imported:       item.Imported,
					Error:          item.Error,
				}
			}
			return printJSON(cmd, output)
		},
	}
	cmd.Flags().StringP(flagStatus, "t", "", "Filter by status (pending, processing, ready, failed)")
	cmd.Flags().IntP(flagPage, "p", 1, "Page number")
	return cmd
}

func newGetImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an import item with its staged features and duplicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			item, err := apiClient.GetImport(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("error fetching import item: %w", err)
			}
			return printJSON(cmd, item)
		},
	}
}

func newCommitImportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit <id>...",
		Short: "Commit ready import items to the feature library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			includeDuplicates, _ := cmd.Flags().GetBool(flagIncludeDuplicates)

			resp, err := apiClient.CommitImports(cmd.Context(), types.CommitRequest{
				ItemIDs:           ids,
				IncludeDuplicates: includeDuplicates,
			})
			if err != nil {
				return fmt.Errorf("error committing import items: %w", err)
			}
			return waitIfRequested(cmd, resp.JobID, resp)
		},
	}
	cmd.Flags().Bool(flagIncludeDuplicates, false, "Also commit features flagged as duplicates")
	addWaitFlag(cmd)
	return cmd
}

func newDeleteImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an import item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := apiClient.DeleteImport(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("error deleting import item: %w", err)
			}
			return waitIfRequested(cmd, resp.JobID, resp)
		},
	}
	addWaitFlag(cmd)
	return cmd
}
