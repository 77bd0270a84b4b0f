package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/lsh/internal/audit"
)

func (a *App) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the journal of executed lines",
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the journal's hash chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.auditPath()
			if err != nil {
				return err
			}
			if err := audit.Verify(a.Fs, path); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "audit verification FAILED: %v\n", err)
				a.status = 1
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "audit log integrity verified")
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print every journal entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printEntries(cmd, -1)
		},
	}

	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the last journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printEntries(cmd, n)
		},
	}
	tail.Flags().IntVarP(&n, "lines", "n", 20, "number of entries")

	cmd.AddCommand(verify, show, tail)
	return cmd
}

func (a *App) auditPath() (string, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return cfg.Audit.Path, nil
}

func (a *App) printEntries(cmd *cobra.Command, n int) error {
	path, err := a.auditPath()
	if err != nil {
		return err
	}
	entries, err := audit.Tail(a.Fs, path, n)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "no audit entries")
		return nil
	}
	for _, e := range entries {
		data, _ := json.MarshalIndent(e, "", "  ")
		fmt.Fprintf(w, "%s\n", data)
	}
	return nil
}
