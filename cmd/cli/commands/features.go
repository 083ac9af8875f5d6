package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/geoimport/internal/types"
)

const (
	flagBBox       = "bbox"
	flagZoom       = "zoom"
	flagLimit      = "limit"
	flagTags       = "tags"
	flagCollection = "collection"
)

func newFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Query and delete library features",
	}
	cmd.AddCommand(
		newBBoxCmd(),
		newDeleteFeaturesCmd(),
	)
	return cmd
}

func newBBoxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bbox",
		Short: "Print the features inside a bounding box as GeoJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString(flagBBox)
			minLon, minLat, maxLon, maxLat, err := types.ParseBBox(raw)
			if err != nil {
				return err
			}

			q := types.BBoxQuery{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
			q.Zoom, _ = cmd.Flags().GetInt(flagZoom)
			q.Limit, _ = cmd.Flags().GetInt(flagLimit)
			q.CollectionID, _ = cmd.Flags().GetUint(flagCollection)
			tags, _ := cmd.Flags().GetStringSlice(flagTags)
			for _, t := range tags {
				if t = strings.TrimSpace(t); t != "" {
					q.Tags = append(q.Tags, t)
				}
			}

			resp, err := apiClient.GetFeatures(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("error querying features: %w", err)
			}
			if resp.FallbackUsed {
				fmt.Fprintf(cmd.ErrOrStderr(), "bounding box %s looked wrong, %s query used instead\n", q, resp.Mode)
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().String(flagBBox, "", "Bounding box as minLon,minLat,maxLon,maxLat")
	_ = cmd.MarkFlagRequired(flagBBox)
	cmd.Flags().Int(flagZoom, 0, "Map zoom level")
	cmd.Flags().Int(flagLimit, 0, "Maximum number of features, -1 for no cap")
	cmd.Flags().StringSlice(flagTags, nil, "Only features with any of these tags")
	cmd.Flags().Uint(flagCollection, 0, "Only features of this collection")
	return cmd
}

func newDeleteFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete library features",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			resp, err := apiClient.DeleteFeatures(cmd.Context(), types.DeleteFeaturesRequest{IDs: ids})
			if err != nil {
				return fmt.Errorf("error deleting features: %w", err)
			}
			return waitIfRequested(cmd, resp.JobID, resp)
		},
	}
	addWaitFlag(cmd)
	return cmd
}
