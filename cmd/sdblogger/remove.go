package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TamperPanda/SDBLogger/ledger"
	"github.com/TamperPanda/SDBLogger/models"
)

func newRemoveCmd(g *globalFlags) *cobra.Command {
	var (
		id       int
		qty      int
		document bool
		stdin    bool
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Record items taken out of the deposit box",
		Long: `Records a removal in the ledger so the next reconcile subtracts it from the
snapshot. With --stdin, reads one JSON event per line, e.g.
{"item_id": 9, "qty": 4}, until end of input.`,
		Example: `  sdblogger remove --id 9 --qty 4
  sdblogger remove --id 9 --qty 1 --document
  cat removals.jsonl | sdblogger remove --stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if stdin {
				n, err := consumeEvents(ctx, cmd.InOrStdin(), a.ledger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Read %d removal events\n", n)
				return nil
			}

			ev := models.RemovalEvent{ItemID: id, Quantity: qty}
			if document {
				err = a.ledger.RecordDocument(ctx, ev)
			} else {
				err = a.ledger.Record(ctx, ev)
			}
			if err != nil {
				return err
			}

			pending, err := a.ledger.All(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d x item %d (%d items awaiting reconcile)\n", qty, id, len(pending))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&id, "id", 0, "Item identifier")
	fs.IntVar(&qty, "qty", 1, "Quantity removed")
	fs.BoolVar(&document, "document", false, "Write to the document store instead of the primary ledger")
	fs.BoolVar(&stdin, "stdin", false, "Read JSON removal events from standard input")
	cmd.MarkFlagsMutuallyExclusive("stdin", "id")
	return cmd
}

// consumeEvents decodes JSON lines from r and feeds them to the ledger.
func consumeEvents(ctx context.Context, r io.Reader, l *ledger.Ledger) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan models.RemovalEvent)
	done := make(chan error, 1)
	go func() {
		done <- l.Consume(ctx, events)
	}()

	count := 0
	scanner := bufio.NewScanner(r)
	var scanErr error
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev models.RemovalEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			slog.Warn("skipping malformed removal event", slog.String("line", line), slog.Any("error", err))
			continue
		}
		select {
		case events <- ev:
			count++
		case <-ctx.Done():
			scanErr = ctx.Err()
		}
		if scanErr != nil {
			break
		}
	}
	if scanErr == nil {
		scanErr = scanner.Err()
	}
	close(events)

	if err := <-done; err != nil && scanErr == nil {
		scanErr = err
	}
	return count, scanErr
}
