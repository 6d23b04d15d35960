package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newThreadsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Inspect and delete stored conversations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List threads, most recent first",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer a.close()

				list, err := a.orch.ListThreads(cmd.Context())
				if err != nil {
					return err
				}
				current, err := a.threads.CurrentThreadID(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, t := range list {
					marker := " "
					if t.ID == current {
						marker = "*"
					}
					updated := time.UnixMilli(t.UpdatedAt).Format(time.DateTime)
					fmt.Fprintf(out, "%s %s  %s  %s (%d messages)\n", marker, t.ID, updated, t.Title, len(t.Messages))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a thread as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer a.close()

				thread, err := a.orch.Thread(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if thread == nil {
					return fmt.Errorf("thread %s not found", args[0])
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(thread)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a thread",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer a.close()

				ctx := cmd.Context()
				if err := a.threads.DeleteThread(ctx, args[0]); err != nil {
					return err
				}
				current, err := a.threads.CurrentThreadID(ctx)
				if err != nil {
					return err
				}
				if current == args[0] {
					if err := a.threads.ClearCurrentThreadID(ctx); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
