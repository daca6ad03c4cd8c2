package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"track-enricher/internal/domain/entity"
)

func newEnrichCommand(cc *commandContext) *cobra.Command {
	var req entity.EnrichmentRequest
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run one enrichment through the waterfall",
		Long: "Run one enrichment through the waterfall. A record that does not\n" +
			"complete is written to the dead-letter queue and the command fails.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cc.closeApp(a)
			req.CorrelationID = uuid.NewString()
			req.CreatedAt = time.Now()

			rec, err := a.Orchestrator.Enrich(cmd.Context(), req)
			if err != nil {
				return err
			}
			snap := rec.Snapshot()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(snap); err != nil {
					return err
				}
			} else {
				printRecord(out, snap)
			}
			if snap.Status != entity.StatusComplete {
				return fmt.Errorf("record %s %s", snap.RecordID, snap.Status)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.RecordID, "record-id", "", "record id (required)")
	f.StringVar(&req.Artist, "artist", "", "artist seed")
	f.StringVar(&req.Title, "title", "", "title seed")
	f.StringVar(&req.ISRC, "isrc", "", "ISRC seed")
	f.StringSliceVar(&req.Fields, "fields", nil, "fields to enrich, e.g. bpm,key,genre")
	f.BoolVar(&req.Refresh, "refresh", false, "ignore cached values")
	f.BoolVar(&asJSON, "json", false, "print the record as JSON")
	_ = cmd.MarkFlagRequired("record-id")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

func printRecord(out io.Writer, rec *entity.EnrichmentRecord) {
	fmt.Fprintf(out, "Record:  %s\n", rec.RecordID)
	fmt.Fprintf(out, "Status:  %s\n", rec.Status)
	if rec.Failure != nil {
		fmt.Fprintf(out, "Failure: %s (%s/%s): %s\n", rec.Failure.Class, rec.Failure.Provider, rec.Failure.Field, rec.Failure.Message)
	}

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		r := rec.Fields[name]
		rows = append(rows, []string{name, r.Value, r.Provider, strconv.FormatFloat(r.Confidence, 'f', 2, 64)})
	}
	for name := range rec.Unavailable {
		rows = append(rows, []string{name, "(unavailable)", "", ""})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Field", "Value", "Provider", "Confidence"}, rows, 4))
	}
	fmt.Fprintf(out, "Attempts: %d\n", len(rec.Attempts))
}
