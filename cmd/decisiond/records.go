package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fyrsmithlabs/decisiond/internal/config"
	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/recordstore"
	"github.com/spf13/cobra"
)

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect the decision record store",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded decisions",
		Long: `List every decision in the configured record store.

Examples:
  decisiond records list
  DECISIOND_STORE_PROVIDER=sqlite DECISIOND_STORE_DSN=decisions.db decisiond records list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithFile(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return listRecords(cmd.Context(), cfg.Store, cmd.OutOrStdout(), asJSON)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	cmd.AddCommand(list)
	return cmd
}

func listRecords(ctx context.Context, cfg config.StoreConfig, w io.Writer, asJSON bool) error {
	store, closeStore, err := recordstore.NewStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	records, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}
	if asJSON {
		if records == nil {
			records = []decision.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "no decisions recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTAG\tRECORDED\tTITLE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Tag, r.RecordedAt.Format("2006-01-02"), r.Title)
		if link := store.Link(r.ID); link != "" {
			fmt.Fprintf(tw, "\t\t\t%s\n", link)
		}
	}
	return tw.Flush()
}
