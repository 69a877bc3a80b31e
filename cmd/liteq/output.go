package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"liteq/internal/queue"
)

type messageJSON struct {
	MessageID string     `json:"message_id"`
	Data      string     `json:"data"`
	Status    string     `json:"status"`
	InTime    time.Time  `json:"in_time"`
	LockTime  *time.Time `json:"lock_time,omitempty"`
	DoneTime  *time.Time `json:"done_time,omitempty"`
}

func toMessageJSON(msg *queue.Message) messageJSON {
	out := messageJSON{
		MessageID: msg.ID,
		Data:      msg.Data,
		Status:    msg.Status.String(),
		InTime:    time.Unix(0, msg.InTime).UTC(),
	}
	if msg.LockTime != 0 {
		t := time.Unix(0, msg.LockTime).UTC()
		out.LockTime = &t
	}
	if msg.DoneTime != 0 {
		t := time.Unix(0, msg.DoneTime).UTC()
		out.DoneTime = &t
	}
	return out
}

func printMessageJSON(w io.Writer, msg *queue.Message) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(toMessageJSON(msg))
}

func printMessagesJSON(w io.Writer, msgs []*queue.Message) error {
	out := make([]messageJSON, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toMessageJSON(msg))
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func printStatsJSON(w io.Writer, namespace string, stats map[queue.Status]int, size int, full bool) error {
	out := struct {
		Queue       string         `json:"queue"`
		Counts      map[string]int `json:"counts"`
		Outstanding int            `json:"outstanding"`
		Full        bool           `json:"full"`
	}{
		Queue:       namespace,
		Counts:      make(map[string]int, len(stats)),
		Outstanding: size,
		Full:        full,
	}
	for status, count := range stats {
		out.Counts[status.String()] = count
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func printMessage(cmd *cobra.Command, ctx *commandContext, msg *queue.Message) error {
	if ctx.jsonFlag {
		return printMessageJSON(cmd.OutOrStdout(), msg)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:     %s\n", msg.ID)
	fmt.Fprintf(out, "Status: %s\n", msg.Status)
	fmt.Fprintf(out, "Queued: %s\n", formatNanos(msg.InTime))
	if msg.LockTime != 0 {
		fmt.Fprintf(out, "Locked: %s\n", formatNanos(msg.LockTime))
	}
	if msg.DoneTime != 0 {
		fmt.Fprintf(out, "Ended:  %s\n", formatNanos(msg.DoneTime))
	}
	fmt.Fprintf(out, "Data:   %s\n", msg.Data)
	return nil
}

func buildMessageRows(msgs []*queue.Message) [][]string {
	rows := make([][]string, 0, len(msgs))
	for _, msg := range msgs {
		rows = append(rows, []string{
			msg.ID,
			msg.Status.String(),
			formatNanos(msg.InTime),
			truncate(msg.Data, 48),
		})
	}
	return rows
}

func formatNanos(nanos int64) string {
	if nanos == 0 {
		return ""
	}
	return time.Unix(0, nanos).UTC().Format(time.RFC3339)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max-1] + "…"
}
