package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const flagReplace = "replace"

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a KML, KMZ or GPX file to the staging area",
		Long: `Upload a KML, KMZ or GPX file. The file is converted in the background and
becomes an import item that can be committed to the library. With --replace
the first feature of the file replaces the geometry of an existing feature.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("error reading %s: %w", path, err)
			}

			target, _ := cmd.Flags().GetUint(flagReplace)
			resp, err := apiClient.Upload(cmd.Context(), filepath.Base(path), data, target)
			if err != nil {
				return fmt.Errorf("error uploading %s: %w", path, err)
			}
			return waitIfRequested(cmd, resp.JobID, resp)
		},
	}

	cmd.Flags().Uint(flagReplace, 0, "ID of the feature whose geometry the upload replaces")
	addWaitFlag(cmd)
	return cmd
}
