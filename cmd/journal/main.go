// Command journal inspects a sensorsim delivery journal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"cloudpico-sensorsim/internal/journal"
)

const usage = `usage: %s <command>
  migrate  apply pending journal migrations
  summary  print per-channel delivery counts
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	path := strings.TrimSpace(os.Getenv("JOURNAL_PATH"))
	if path == "" {
		fmt.Fprintln(os.Stderr, "JOURNAL_PATH is required")
		os.Exit(1)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Open applies pending migrations.
	j, err := journal.Open(ctx, path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "journal open: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			slog.Error("journal close", "err", closeErr)
		}
	}()

	switch os.Args[1] {
	case "migrate":
		fmt.Println("migrations applied")
	case "summary":
		if err := printSummary(ctx, j); err != nil {
			fmt.Fprintf(os.Stderr, "summary: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func printSummary(ctx context.Context, j *journal.Journal) error {
	rows, err := j.Summary(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tOK\tFAILED\tLAST ERROR")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.Channel, r.OK, r.Failed, r.LastError)
	}
	return w.Flush()
}
