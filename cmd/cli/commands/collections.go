package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/geoimport/internal/types"
)

const flagFeatureIDs = "features"

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage feature collections",
	}
	cmd.AddCommand(newCreateCollectionCmd())
	return cmd
}

func newCreateCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection from tags and feature IDs",
		Long: `Create a collection. A feature belongs to the collection when it carries
any of the tags or is listed explicitly. Use the printed id with
"features bbox --collection".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.CreateCollectionRequest{Name: args[0]}
			tags, _ := cmd.Flags().GetStringSlice(flagTags)
			for _, t := range tags {
				if t = strings.TrimSpace(t); t != "" {
					req.Tags = append(req.Tags, t)
				}
			}
			req.FeatureIDs, _ = cmd.Flags().GetUintSlice(flagFeatureIDs)
			if err := req.Validate(); err != nil {
				return err
			}

			collection, err := apiClient.CreateCollection(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("error creating collection: %w", err)
			}
			return printJSON(cmd, collection)
		},
	}
	cmd.Flags().StringSlice(flagTags, nil, "Features with any of these tags belong to the collection")
	cmd.Flags().UintSlice(flagFeatureIDs, nil, "IDs of features that belong to the collection")
	return cmd
}
