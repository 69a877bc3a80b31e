package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"liteq/internal/queue"
)

func newPutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "put [data]",
		Short: "Enqueue a payload",
		Long:  "Enqueue a payload as a ready message. Pass the payload as an argument, or pipe it on stdin with '-'.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				msg, err := q.Put(cmd.Context(), data)
				if err != nil {
					return err
				}
				ctx.logger().Debug("message enqueued", "queue", q.Namespace(), "message_id", msg.ID)
				if ctx.jsonFlag {
					return printMessageJSON(cmd.OutOrStdout(), msg)
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg.ID)
				return nil
			})
		},
	}
}

func readPayload(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read payload from stdin: %w", err)
	}
	payload := strings.TrimSuffix(string(data), "\n")
	if payload == "" {
		return "", errors.New("payload is required (argument or stdin)")
	}
	return payload, nil
}

func newPopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pop",
		Short: "Claim the next ready message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				msg, err := q.Pop(cmd.Context())
				if err != nil {
					return err
				}
				if msg == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No message available")
					return nil
				}
				ctx.logger().Debug("message claimed", "queue", q.Namespace(), "message_id", msg.ID)
				return printMessage(cmd, ctx, msg)
			})
		},
	}
}

func newPeekCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Show the next ready message without claiming it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				msg, err := q.Peek(cmd.Context())
				if err != nil {
					return err
				}
				if msg == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No message available")
					return nil
				}
				return printMessage(cmd, ctx, msg)
			})
		},
	}
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <message-id>",
		Short: "Show a message by identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := queue.NormalizeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				msg, err := q.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if msg == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "No message with id %s\n", id)
					return nil
				}
				return printMessage(cmd, ctx, msg)
			})
		},
	}
}

func newDoneCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "done", "Acknowledge messages as completed",
		func(q *queue.Queue, cmd *cobra.Command, id string) (bool, error) {
			return q.Done(cmd.Context(), id)
		})
}

func newFailCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "fail", "Mark messages as failed",
		func(q *queue.Queue, cmd *cobra.Command, id string) (bool, error) {
			return q.MarkFailed(cmd.Context(), id)
		})
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "retry", "Return messages to the ready pool",
		func(q *queue.Queue, cmd *cobra.Command, id string) (bool, error) {
			return q.Retry(cmd.Context(), id)
		})
}

func newTransitionCommand(ctx *commandContext, verb, short string, apply func(*queue.Queue, *cobra.Command, string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <message-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				id, err := queue.NormalizeID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue) error {
				var missing []string
				for _, id := range ids {
					ok, err := apply(q, cmd, id)
					if err != nil {
						return err
					}
					if !ok {
						missing = append(missing, id)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d message(s) updated\n", len(ids)-len(missing))
				if len(missing) > 0 {
					return fmt.Errorf("no message with id: %s", strings.Join(missing, ", "))
				}
				return nil
			})
		},
	}
}
