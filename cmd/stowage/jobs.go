package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stowage/internal/api"
	"stowage/internal/config"
)

const defaultWaitPoll = 500 * time.Millisecond

func newFetchCmd(cfg *config.Config) *cobra.Command {
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Queue a download of a remote file",
		Args:  requireExactlyArgs(1, "url is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				accepted, err := client.Fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !wait {
					if structuredOutput() {
						return writeStructured(accepted)
					}
					return writeDownloadAccepted(accepted)
				}

				ctx := cmd.Context()
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				job, err := waitForJob(ctx, client, accepted.JobID, defaultWaitPoll)
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(job)
				}
				if err := writeJobDetail(job); err != nil {
					return err
				}
				if job.Status == "Failed" {
					return fmt.Errorf("download failed")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the job completes or fails")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "maximum time to wait (0 waits indefinitely)")
	return cmd
}

func newJobCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show download job status",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				job, err := client.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(job)
				}
				return writeJobDetail(job)
			})
		},
	}
}

// jobGetter is the client surface waitForJob polls.
type jobGetter interface {
	GetJob(ctx context.Context, id string) (api.JobResponse, error)
}

func waitForJob(ctx context.Context, client jobGetter, id string, poll time.Duration) (api.JobResponse, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		job, err := client.GetJob(ctx, id)
		if err != nil {
			return api.JobResponse{}, err
		}
		if job.Status == "Completed" || job.Status == "Failed" {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, fmt.Errorf("job %s still %s: %w", id, job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}
