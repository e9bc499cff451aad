package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stowage/internal/config"
	"stowage/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var outputName string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "stowage",
		Short:         "Stowage stores uploaded and downloaded media files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := format.Parse(outputName)
			if err != nil {
				return err
			}
			outputFormatter = formatter

			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVarP(&outputName, "output", "O", format.Text, "output format: text, json or yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newUploadCmd(cfg),
		newFetchCmd(cfg),
		newJobCmd(cfg),
		newGetCmd(cfg),
		newInfoCmd(cfg),
		newAboutCmd(cfg),
		newMigrateCmd(cfg),
		newConfigCmd(cfg),
	)

	return cmd
}
