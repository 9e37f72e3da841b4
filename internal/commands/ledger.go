package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"accruals/internal/core"
)

type accrualRow struct {
	CampaignRef string `json:"campaignRef"`
	Accrued     string `json:"accrued"`
	Settled     string `json:"settled"`
	Remaining   string `json:"remaining"`
	UpdatedAt   string `json:"updatedAt"`
}

func toRow(r core.AccrualRecord) accrualRow {
	return accrualRow{
		CampaignRef: r.CampaignRef,
		Accrued:     r.Accrued.StringFixed(core.CurrencyPlaces),
		Settled:     r.Settled.StringFixed(core.CurrencyPlaces),
		Remaining:   r.Remaining().StringFixed(core.CurrencyPlaces),
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func newLedgerCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Read accrual records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every campaign with its accrued and settled totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedgerList(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <campaign-ref>",
		Short: "Show the accrual record for one campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedgerShow(cmd, opts, args[0])
		},
	})

	return cmd
}

func runLedgerList(cmd *cobra.Command, opts *options) error {
	repo, err := opts.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := repo.List(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([]accrualRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toRow(r))
	}
	if opts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accruals recorded.")
		return nil
	}
	return printRows(cmd.OutOrStdout(), rows)
}

func runLedgerShow(cmd *cobra.Command, opts *options, ref string) error {
	repo, err := opts.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	rec, ok, err := repo.Get(cmd.Context(), ref)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no accrual recorded for campaign %q", ref)
	}
	if opts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), toRow(rec))
	}
	return printRows(cmd.OutOrStdout(), []accrualRow{toRow(rec)})
}

func printRows(w io.Writer, rows []accrualRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMPAIGN\tACCRUED\tSETTLED\tREMAINING\tUPDATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.CampaignRef, r.Accrued, r.Settled, r.Remaining, r.UpdatedAt)
	}
	return tw.Flush()
}
