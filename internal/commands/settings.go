package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"accruals/internal/core"
)

func newSettingsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change the accounting settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsGet(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set key=value [key=value...]",
		Short: "Change one or more settings",
		Long: "Change one or more settings. Recognized keys: " +
			strings.Join(core.SettingKeys, ", ") + ".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsSet(cmd, opts, args)
		},
	})

	return cmd
}

func runSettingsGet(cmd *cobra.Command, opts *options) error {
	repo, err := opts.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	s, err := repo.GetSettings(cmd.Context())
	if err != nil {
		return err
	}
	return printSettings(cmd, opts, s)
}

func runSettingsSet(cmd *cobra.Command, opts *options, args []string) error {
	values, err := parseAssignments(args)
	if err != nil {
		return err
	}
	patch, err := core.ParseSettingsPatch(values)
	if err != nil {
		return err
	}

	repo, err := opts.openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	s, err := repo.UpdateSettings(cmd.Context(), patch)
	if err != nil {
		return err
	}
	return printSettings(cmd, opts, s)
}

// parseAssignments splits key=value pairs and rejects unknown keys.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if !slices.Contains(core.SettingKeys, key) {
			return nil, fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(core.SettingKeys, ", "))
		}
		values[key] = value
	}
	return values, nil
}

func printSettings(cmd *cobra.Command, opts *options, s core.Settings) error {
	if opts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), s)
	}
	values := s.Values()
	for _, key := range core.SettingKeys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, values[key])
	}
	return nil
}
