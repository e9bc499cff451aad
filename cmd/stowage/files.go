package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stowage/internal/api"
	"stowage/internal/config"
)

func newUploadCmd(cfg *config.Config) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a local file",
		Args:  requireExactlyArgs(1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				var (
					resp api.UploadResponse
					err  error
				)
				if name != "" {
					resp, err = uploadAs(cmd, client, args[0], name)
				} else {
					resp, err = client.UploadFile(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(resp)
				}
				return writeUploadResult(resp)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "filename to declare instead of the local basename")
	return cmd
}

func uploadAs(cmd *cobra.Command, client *api.Client, path, name string) (api.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return api.UploadResponse{}, err
	}
	defer f.Close()
	return client.Upload(cmd.Context(), name, f)
}

func newGetCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download a stored file",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if outPath == "" || outPath == "-" {
					return client.DownloadFile(cmd.Context(), args[0], os.Stdout)
				}
				return downloadToPath(cmd, client, args[0], outPath)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	return cmd
}

// downloadToPath writes through a sibling temp file so a failed download
// never leaves a partial file at path.
func downloadToPath(cmd *cobra.Command, client *api.Client, id, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".stowage-get-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := client.DownloadFile(cmd.Context(), id, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return err
}
