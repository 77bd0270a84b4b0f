package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/lsh/internal/mcpserver"
)

func (a *App) newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the run_line tool over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			cwd, _ := os.Getwd()
			srv := mcpserver.New(mcpserver.Options{
				Version:  a.Version,
				Limits:   s.cfg.Shell.Limits(),
				Append:   s.cfg.Shell.AppendRedirects(),
				FileMode: s.cfg.Shell.FileMode,
				Dir:      cwd,
				Journal:  s.journal,
				Logger:   s.log,
			})
			return srv.Serve()
		},
	}
}
