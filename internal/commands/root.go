// Package commands implements ledgerctl, the operator CLI for inspecting the
// durable accrual ledger and editing the accounting settings.
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"accruals/internal/config"
	"accruals/internal/core"
	"accruals/internal/storage"
)

type options struct {
	dbPath   string
	jsonOut  bool
	defaults core.Settings
}

// NewRootCommand creates the root CLI command with all subcommands registered.
// Flag defaults come from the same environment as the server.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	return newRootCommand(cfg.SQLiteDBPath, cfg.Defaults)
}

func newRootCommand(dbPath string, defaults core.Settings) *cobra.Command {
	opts := &options{defaults: defaults}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect the accrual ledger and accounting settings",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", dbPath, "path to the SQLite database")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(newLedgerCommand(opts))
	rootCmd.AddCommand(newSettingsCommand(opts))

	return rootCmd
}

func (o *options) openRepo() (*storage.SQLiteRepository, error) {
	if o.dbPath == "" {
		return nil, fmt.Errorf("database path is empty, set --db or SQLITE_DB_PATH")
	}
	repo, err := storage.NewSQLiteRepository(o.dbPath, o.defaults)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return repo, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
