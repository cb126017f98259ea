// Package cmd implements the CLI command structure for tasks.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nibzard/tasks-go/internal/config"
	"github.com/nibzard/tasks-go/internal/logging"
	"github.com/nibzard/tasks-go/internal/store"
	"github.com/nibzard/tasks-go/internal/task"
	"github.com/nibzard/tasks-go/internal/ui"
)

// Version is set via ldflags at build time.
var Version = "dev"

// InputError reports a command line that cannot be acted on, such as a
// non-numeric id or a missing value.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InputError) Unwrap() error {
	return e.Err
}

func inputErrorf(format string, args ...any) error {
	return &InputError{Err: fmt.Errorf(format, args...)}
}

// Run executes the tasks CLI.
func Run(ctx context.Context, args []string) error {
	return newApp(os.Stdout, os.Stderr).run(ctx, args)
}

// app carries per-invocation state shared by the commands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	clock  task.Clock

	cfg    *config.Config
	logger *log.Logger
	closer io.Closer
	json   bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		clock:  task.SystemClock,
		logger: logging.Discard(),
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) < 2 && !standalone(args) {
		printUsage(a.stdout)
		return nil
	}

	root := a.rootCommand()
	root.SetArgs(args)
	defer a.close()
	return root.ExecuteContext(ctx)
}

// standalone reports whether a short command line names something that needs
// no file argument.
func standalone(args []string) bool {
	if len(args) != 1 {
		return false
	}
	switch args[0] {
	case "version", "--version", "-v", "help", "--help", "-h":
		return true
	}
	return false
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tasks <command> <file> [content...]",
		Short:         "Track tasks in a JSON array file",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("tasks version {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &InputError{Err: err}
	})

	config.BindFlags(root.PersistentFlags())
	root.PersistentFlags().BoolVar(&a.json, "json", false, "Print task records as JSON, one per line")

	root.AddCommand(
		a.createFileCommand(),
		a.createCommand(),
		a.readCommand(),
		a.updateCommand("update", task.FieldDescription, "Set the description of a task"),
		a.updateCommand("update-status", task.FieldStatus, "Set the status of a task"),
		a.deleteCommand(),
		a.readFileCommand(),
		a.deleteFileCommand(),
		a.validateCommand(),
		a.browseCommand(),
		a.versionCommand(),
	)
	return root
}

// setup loads configuration and the logger once flags are parsed.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	logger, closer, err := logging.New(a.stderr, logging.Options{
		Level:           cfg.LogLevel,
		Format:          cfg.LogFormat,
		ReportTimestamp: cfg.LogTimestamps,
		ReportCaller:    cfg.LogCaller,
		File:            cfg.LogFile,
		MaxSizeMB:       cfg.LogMaxSizeMB,
		MaxBackups:      cfg.LogMaxBackups,
		MaxAgeDays:      cfg.LogMaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.logger = logger
	a.closer = closer
	for _, f := range cfg.Files {
		logger.Debug("config loaded", "file", f)
	}
	return nil
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

// fileCommand builds a command taking a store file and optional content.
// Content words are joined with single spaces.
func (a *app) fileCommand(use, short string, run func(ctx context.Context, s *store.Store, content string) error) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return inputErrorf("%s needs a file name", cmd.Name())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.openStore(args[0])
			return run(cmd.Context(), s, strings.Join(args[1:], " "))
		},
	}
	// Content may contain words that look like flags.
	c.Flags().SetInterspersed(false)
	return c
}

// bareFileCommand builds a command that takes nothing after the file name.
func (a *app) bareFileCommand(use, short string, run func(ctx context.Context, s *store.Store) error) *cobra.Command {
	c := a.fileCommand(use, short, func(ctx context.Context, s *store.Store, _ string) error {
		return run(ctx, s)
	})
	c.Args = func(cmd *cobra.Command, args []string) error {
		switch {
		case len(args) < 1:
			return inputErrorf("%s needs a file name", cmd.Name())
		case len(args) > 1:
			return inputErrorf("%s takes nothing after the file name, got %q", cmd.Name(), strings.Join(args[1:], " "))
		}
		return nil
	}
	return c
}

func (a *app) openStore(path string) *store.Store {
	return store.New(path,
		store.WithClock(a.clock),
		store.WithLogger(a.logger),
		store.WithLocking(a.cfg.Lock),
		store.WithDefaultStatus(a.cfg.DefaultStatus),
	)
}

// lockContext bounds how long a mutation waits for the store lock.
func (a *app) lockContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := a.cfg.LockTimeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (a *app) printer() *ui.Printer {
	return ui.NewPrinter(a.stdout, a.cfg.Color, ui.WithJSON(a.json))
}

// parseID parses a task id.
func parseID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, inputErrorf("missing task id")
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, inputErrorf("task id %q is not a non-negative integer", s)
	}
	return id, nil
}

// splitIDValue splits "<id> <value...>" into its parts. The value is the
// whole remainder after the id.
func splitIDValue(content string) (uint64, string, error) {
	content = strings.TrimSpace(content)
	idText, value, _ := strings.Cut(content, " ")
	id, err := parseID(idText)
	if err != nil {
		return 0, "", err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, "", inputErrorf("missing new value for task %d", id)
	}
	return id, value, nil
}

// lockError adds a hint to lock timeouts.
func lockError(err error) error {
	if errors.Is(err, store.ErrLocked) {
		return fmt.Errorf("%w (raise --lock-timeout or retry)", err)
	}
	return err
}

// printUsage prints the usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "tasks - a single-file task tracker")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tasks [flags] <command> <file> [content...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  create-file <file>                 Create an empty task file")
	fmt.Fprintln(w, "  create <file> <description>        Add a task")
	fmt.Fprintln(w, "  read <file> <id>                   Show one task")
	fmt.Fprintln(w, "  update <file> <id> <description>   Change a task's description")
	fmt.Fprintln(w, "  update-status <file> <id> <status> Change a task's status")
	fmt.Fprintln(w, "  delete <file> <id>                 Remove a task")
	fmt.Fprintln(w, "  read-file <file>                   Show every task")
	fmt.Fprintln(w, "  delete-file <file>                 Remove the task file")
	fmt.Fprintln(w, "  validate <file>                    Check the file against the task schema")
	fmt.Fprintln(w, "  browse <file>                      Open the interactive browser")
	fmt.Fprintln(w, "  version                            Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'tasks help' for the full list of flags.")
}
