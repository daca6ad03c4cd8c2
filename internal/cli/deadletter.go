package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"track-enricher/internal/common/pagination"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/repository"
	dlUC "track-enricher/internal/usecase/deadletter"
)

const stampLayout = "2006-01-02 15:04:05"

func newDeadLetterCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletter",
		Aliases: []string{"dlq"},
		Short:   "Inspect, replay and delete dead letters",
	}

	cmd.AddCommand(newDeadLetterListCommand(cc))
	cmd.AddCommand(newDeadLetterStatsCommand(cc))
	cmd.AddCommand(newDeadLetterShowCommand(cc))
	cmd.AddCommand(newDeadLetterReplayCommand(cc))
	cmd.AddCommand(newDeadLetterDeleteCommand(cc))

	return cmd
}

func newDeadLetterListCommand(cc *commandContext) *cobra.Command {
	var class, providerName, field string
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repository.DeadLetterFilter{
				Class:    entity.ErrorClass(class),
				Provider: providerName,
				Field:    field,
			}
			if class != "" && !filter.Class.Valid() {
				return fmt.Errorf("unknown classification %q", class)
			}

			a, err := cc.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cc.closeApp(a)
			res, err := a.DeadLetters.List(cmd.Context(), filter, pagination.Params{Page: page, Limit: limit})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Messages) == 0 {
				fmt.Fprintln(out, "No dead letters")
				return nil
			}
			rows := make([][]string, 0, len(res.Messages))
			for _, m := range res.Messages {
				rows = append(rows, []string{
					m.ID,
					string(m.Class),
					m.Provider,
					m.Field,
					strconv.Itoa(m.ReplayCount),
					m.EnqueuedAt.Local().Format(stampLayout),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Class", "Provider", "Field", "Replays", "Enqueued"}, rows, 5))
			fmt.Fprintf(out, "Page %d of %d (%d total)\n", res.Pagination.Page, res.Pagination.TotalPages, res.Pagination.Total)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&class, "class", "", "filter by classification")
	f.StringVar(&providerName, "provider", "", "filter by provider")
	f.StringVar(&field, "field", "", "filter by field")
	f.IntVar(&page, "page", 1, "page number")
	f.IntVar(&limit, "limit", 0, "page size (default from pagination config)")

	return cmd
}

func newDeadLetterStatsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dead-letter counts by classification and provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cc.closeApp(a)
			stats, err := a.DeadLetters.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total: %d\n", stats.Total)
			if stats.Oldest != nil {
				fmt.Fprintf(out, "Oldest: %s\n", stats.Oldest.Local().Format(stampLayout))
			}
			byClass := make(map[string]int64, len(stats.ByClass))
			for c, n := range stats.ByClass {
				byClass[string(c)] = n
			}
			printCounts(out, "Classification", byClass)
			printCounts(out, "Provider", stats.ByProvider)
			return nil
		},
	}
}

func printCounts(out io.Writer, label string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.FormatInt(counts[k], 10)})
	}
	fmt.Fprintln(out, renderTable([]string{label, "Count"}, rows, 2))
}

func newDeadLetterShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one dead letter as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cc.closeApp(a)
			msg, err := a.DeadLetters.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(msg)
		},
	}
}

func newDeadLetterReplayCommand(cc *commandContext) *cobra.Command {
	var auto bool
	var limit int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "replay [id...]",
		Short: "Replay dead letters through the waterfall",
		Long: "Replay the given dead letters, or with --auto the oldest pending\n" +
			"retryable ones. Completed records leave the queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if auto == (len(args) > 0) {
				return errors.New("pass message ids or --auto, not both")
			}
			a, err := cc.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cc.closeApp(a)

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var results []dlUC.ReplayResult
			if auto {
				results, err = a.DeadLetters.AutoReplay(ctx, limit)
				if err != nil {
					return err
				}
			} else {
				results = a.DeadLetters.ReplayBatch(ctx, args)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "Nothing to replay")
				return nil
			}
			failed := 0
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				if r.Status != dlUC.ReplaySucceeded {
					failed++
				}
				rows = append(rows, []string{r.ID, r.Status, string(r.Class), r.Error})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Result", "Class", "Error"}, rows))
			if failed > 0 {
				return fmt.Errorf("%d of %d replays did not complete", failed, len(results))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&auto, "auto", false, "replay pending retryable messages")
	f.IntVar(&limit, "limit", 50, "maximum messages for --auto")
	f.DurationVar(&timeout, "timeout", 0, "overall time budget")

	return cmd
}

func newDeadLetterDeleteCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Permanently remove dead letters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cc.closeApp(a)
			var errs []error
			for _, id := range args {
				if err := a.DeadLetters.Delete(cmd.Context(), id); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return errors.Join(errs...)
		},
	}
}
