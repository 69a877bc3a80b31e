package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"liteq/internal/queue"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var staleFlag time.Duration

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages in the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("stale") && len(listStatuses) > 0 {
				return fmt.Errorf("--stale and --status are mutually exclusive")
			}

			var statuses []queue.Status
			for _, value := range listStatuses {
				status, ok := queue.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q (want ready, locked, done, failed)", value)
				}
				statuses = append(statuses, status)
			}

			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				var (
					msgs []*queue.Message
					err  error
				)
				if cmd.Flags().Changed("stale") {
					msgs, err = q.ListLocked(cmd.Context(), staleFlag)
				} else {
					msgs, err = q.List(cmd.Context(), statuses...)
				}
				if err != nil {
					return err
				}
				if ctx.jsonFlag {
					return printMessagesJSON(cmd.OutOrStdout(), msgs)
				}
				if len(msgs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Status", "Enqueued", "Data"},
					buildMessageRows(msgs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (ready, locked, done, failed)")
	cmd.Flags().DurationVar(&staleFlag, "stale", 0, "List locked messages claimed longer ago than this duration")

	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show message counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				stats, err := q.Stats(cmd.Context())
				if err != nil {
					return err
				}
				size, err := q.Size(cmd.Context())
				if err != nil {
					return err
				}
				full, err := q.Full(cmd.Context())
				if err != nil {
					return err
				}

				if ctx.jsonFlag {
					return printStatsJSON(cmd.OutOrStdout(), q.Namespace(), stats, size, full)
				}

				rows := make([][]string, 0, len(stats)+1)
				for _, status := range queue.AllStatuses() {
					if count, ok := stats[status]; ok && count > 0 {
						rows = append(rows, []string{status.String(), strconv.Itoa(count)})
					}
				}
				rows = append(rows, []string{"outstanding", strconv.Itoa(size)})

				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				if q.MaxSize() > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Capacity: %d ready max (full: %t)\n", q.MaxSize(), full)
				}
				return nil
			})
		},
	}
}
