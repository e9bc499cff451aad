package main

import (
	"github.com/spf13/cobra"

	"stowage/internal/api"
	"stowage/internal/config"
)

func newInfoCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show database, media and worker info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if resp.DBPath == "" {
					resp.DBPath = cfg.DBPath
				}
				if structuredOutput() {
					return writeStructured(resp)
				}
				return writeInfo(resp)
			})
		},
	}
}

func newAboutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Show the server description",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				text, err := client.About(cmd.Context())
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(map[string]string{"about": text})
				}
				return writePlain("%s", text)
			})
		},
	}
}
