package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/marcelocantos/lsh/internal/audit"
	"github.com/marcelocantos/lsh/internal/config"
	"github.com/marcelocantos/lsh/internal/launch"
	"github.com/marcelocantos/lsh/internal/logger"
	"github.com/marcelocantos/lsh/internal/shell"
)

// App holds what the commands share: the filesystem config and the journal
// live on, the process's streams, and the status to exit with.
type App struct {
	Version string
	Fs      afero.Fs
	Stdin   *os.File
	Stdout  *os.File
	Stderr  *os.File

	configPath string
	verbose    bool
	noColor    bool
	command    string

	status int
}

// NewApp returns an App on the real filesystem and the process's streams.
func NewApp(version string) *App {
	return &App{
		Version: version,
		Fs:      afero.NewOsFs(),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Status returns the exit status of the last command run.
func (a *App) Status() int {
	return a.status
}

// Execute runs the command line args and returns the process exit status.
func (a *App) Execute(args []string) int {
	a.status = 0
	root := a.NewRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return a.status
}

// NewRootCmd builds the command tree.
func (a *App) NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lsh",
		Short: "A line-oriented shell",
		Long: `lsh reads a line, splits it at |, <, >, 2> and &, starts one process
per command with its streams wired accordingly, and waits for the
foreground ones.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd.Context())
		},
	}
	root.SetIn(a.Stdin)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file or directory (default ~/.config/lsh)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log launches, waits and reaps")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable coloured prompt and errors")
	root.Flags().StringVarP(&a.command, "command", "c", "", "run one line and exit with its status")

	root.AddCommand(a.newAuditCmd(), a.newMCPCmd(), a.newVersionCmd())
	return root
}

func (a *App) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFrom(a.Fs, a.configPath)
	} else {
		cfg, err = config.Load(a.Fs)
	}
	if err != nil {
		return nil, err
	}
	if a.verbose {
		cfg.Log.Verbose = true
	}
	if a.noColor {
		cfg.Shell.Color = false
	}
	return cfg, nil
}

// session is everything a line needs, built from the config.
type session struct {
	cfg     *config.Config
	log     *log.Logger
	journal shell.Journal
	closers []io.Closer
}

func (s *session) Close() {
	for _, c := range s.closers {
		c.Close()
	}
}

func (a *App) openSession() (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	l, lc, err := logger.Open(a.Fs, cfg.Log.Path, cfg.Log.Verbose, a.Stderr)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: l, closers: []io.Closer{lc}}

	if cfg.Audit.Enabled {
		j, err := audit.NewLogger(a.Fs, cfg.Audit.Path)
		if err != nil {
			// Continue without audit logging.
			fmt.Fprintf(a.Stderr, "lsh: audit: %v\n", err)
		} else {
			s.journal = j
		}
	}
	return s, nil
}

func (a *App) runShell(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := a.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	cwd, _ := os.Getwd()
	runner := launch.NewRunner(
		launch.WithStdio(launch.Stdio{Stdin: a.Stdin, Stdout: a.Stdout, Stderr: a.Stderr}),
		launch.WithAppend(s.cfg.Shell.AppendRedirects()),
		launch.WithFileMode(s.cfg.Shell.FileMode),
		launch.WithLogger(s.log),
	)
	opts := []shell.Option{
		shell.WithOutput(a.Stdout, a.Stderr),
		shell.WithLimits(s.cfg.Shell.Limits()),
		shell.WithPrompt(s.cfg.Shell.Prompt),
		shell.WithColor(s.cfg.Shell.Color),
		shell.WithDir(cwd),
		shell.WithLogger(s.log),
	}
	if s.journal != nil {
		opts = append(opts, shell.WithJournal(s.journal))
	}

	if a.command != "" {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		a.status = shell.NewInterpreter(runner, opts...).Execute(ctx, a.command)
		return nil
	}

	reader, err := shell.NewReadlineReader(a.Stdin, a.Stdout, a.Stderr, s.cfg.Shell.MaxLineLength)
	if err != nil {
		return fmt.Errorf("line reader: %w", err)
	}
	defer reader.Close()

	in := shell.NewInterpreter(runner, append(opts, shell.WithReader(reader))...)
	stop := in.HandleSignals()
	defer stop()
	a.status = in.Run(ctx)
	return nil
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lsh %s\n", a.Version)
		},
	}
}
