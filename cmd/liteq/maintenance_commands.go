package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"liteq/internal/queue"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var keepFailed bool
	var vacuumAfter bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete completed messages",
		Long:  "Delete done messages, and failed ones unless --keep-failed is set. Ready and locked messages are never pruned.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				removed, err := q.Prune(cmd.Context(), !keepFailed)
				if err != nil {
					return err
				}
				ctx.logger().Info("queue pruned", "queue", q.Namespace(), "removed", removed)
				fmt.Fprintf(cmd.OutOrStdout(), "%d message(s) pruned\n", removed)
				if vacuumAfter {
					if err := q.Vacuum(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Store vacuumed")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&keepFailed, "keep-failed", false, "Keep failed messages for inspection")
	cmd.Flags().BoolVar(&vacuumAfter, "vacuum", false, "Reclaim store space after pruning")

	return cmd
}

func newVacuumCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim unused store space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				if err := q.Vacuum(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Store vacuumed")
				return nil
			})
		},
	}
}
