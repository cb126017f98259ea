package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nibzard/tasks-go/internal/hooks"
	"github.com/nibzard/tasks-go/internal/store"
	"github.com/nibzard/tasks-go/internal/task"
	"github.com/nibzard/tasks-go/internal/ui"
)

func (a *app) createFileCommand() *cobra.Command {
	return a.bareFileCommand("create-file <file>", "Create an empty task file, replacing any existing one",
		func(ctx context.Context, s *store.Store) error {
			ctx, cancel := a.lockContext(ctx)
			defer cancel()
			if err := s.Init(ctx); err != nil {
				return lockError(err)
			}
			a.printer().Success("File %q created successfully", s.Path())
			return nil
		})
}

func (a *app) createCommand() *cobra.Command {
	return a.fileCommand("create <file> <description...>", "Add a task with the lowest free id",
		func(ctx context.Context, s *store.Store, content string) error {
			lockCtx, cancel := a.lockContext(ctx)
			created, err := s.Create(lockCtx, content)
			cancel()
			if err != nil {
				return lockError(err)
			}

			p := a.printer()
			p.Success("Task %d created successfully", created.ID)
			if a.json {
				p.Task(created)
			}
			a.runHook(ctx, s, "create", created.ID, created.Status, task.Encode(created))
			return nil
		})
}

func (a *app) readCommand() *cobra.Command {
	return a.fileCommand("read <file> <id>", "Show the task with the given id",
		func(ctx context.Context, s *store.Store, content string) error {
			id, err := parseID(content)
			if err != nil {
				return err
			}
			t, ok, err := s.Read(ctx, id)
			if err != nil {
				return err
			}
			p := a.printer()
			if !ok {
				p.NotFound(id)
				return nil
			}
			p.Task(t)
			return nil
		})
}

func (a *app) updateCommand(name string, field task.Field, short string) *cobra.Command {
	return a.fileCommand(name+" <file> <id> <value...>", short,
		func(ctx context.Context, s *store.Store, content string) error {
			id, value, err := splitIDValue(content)
			if err != nil {
				return err
			}

			lockCtx, cancel := a.lockContext(ctx)
			n, err := s.Update(lockCtx, id, field, value)
			cancel()
			if err != nil {
				return lockError(err)
			}

			p := a.printer()
			if n == 0 {
				p.NotFound(id)
				return nil
			}
			p.Success("Task %d updated successfully", id)

			updated, ok, err := s.Read(ctx, id)
			if err != nil || !ok {
				a.logger.Debug("cannot re-read updated task", "id", id, "err", err)
				return nil
			}
			if a.json {
				p.Task(updated)
			}
			a.runHook(ctx, s, name, id, updated.Status, task.Encode(updated))
			return nil
		})
}

func (a *app) deleteCommand() *cobra.Command {
	return a.fileCommand("delete <file> <id>", "Remove the task with the given id",
		func(ctx context.Context, s *store.Store, content string) error {
			id, err := parseID(content)
			if err != nil {
				return err
			}

			lockCtx, cancel := a.lockContext(ctx)
			n, err := s.Delete(lockCtx, id)
			cancel()
			if err != nil {
				return lockError(err)
			}

			p := a.printer()
			if n == 0 {
				p.NotFound(id)
				return nil
			}
			p.Success("Task %d deleted successfully", id)
			a.runHook(ctx, s, "delete", id, "deleted", "")
			return nil
		})
}

func (a *app) readFileCommand() *cobra.Command {
	return a.bareFileCommand("read-file <file>", "Show every task in the file",
		func(ctx context.Context, s *store.Store) error {
			tasks, err := s.List(ctx)
			if err != nil {
				return err
			}
			a.printer().Tasks(tasks)
			return nil
		})
}

func (a *app) deleteFileCommand() *cobra.Command {
	return a.bareFileCommand("delete-file <file>", "Remove the task file and its lock file",
		func(ctx context.Context, s *store.Store) error {
			ctx, cancel := a.lockContext(ctx)
			defer cancel()
			if err := s.Remove(ctx); err != nil {
				return lockError(err)
			}
			a.printer().Success("File %q deleted successfully", s.Path())
			return nil
		})
}

func (a *app) validateCommand() *cobra.Command {
	return a.bareFileCommand("validate <file>", "Check every record against the task schema",
		func(ctx context.Context, s *store.Store) error {
			result, err := s.Validate(ctx, a.cfg.SchemaFile)
			if err != nil {
				return err
			}

			p := a.printer()
			for _, e := range result.Errors {
				p.Line("%s", e)
			}
			summary := fmt.Sprintf("%d tasks, %d undecodable fragments", result.Tasks, result.Opaque)
			if !result.Valid {
				p.Line("%s: invalid", summary)
				return fmt.Errorf("%s is not a valid task file (%d problems)", s.Path(), len(result.Errors))
			}
			p.Line("%s: valid", summary)
			return nil
		})
}

func (a *app) browseCommand() *cobra.Command {
	return a.bareFileCommand("browse <file>", "Browse and toggle tasks interactively",
		func(ctx context.Context, s *store.Store) error {
			return ui.RunBrowser(ctx, s,
				ui.WithOpenStatus(a.cfg.DefaultStatus),
				ui.WithStyles(a.cfg.Color),
				ui.WithBrowserLogger(a.logger),
			)
		})
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.stdout, "tasks version %s\n", Version)
			return nil
		},
	}
}

// runHook invokes the configured hook. Failures are logged, not returned.
func (a *app) runHook(ctx context.Context, s *store.Store, op string, id uint64, status, record string) {
	if a.cfg.HookCommand == "" {
		return
	}
	result, err := hooks.Invoke(ctx, hooks.Options{
		Command:   a.cfg.HookCommand,
		Operation: op,
		TaskID:    id,
		Status:    status,
		StorePath: s.Path(),
		Record:    record,
		Stdout:    a.stderr,
		Stderr:    a.stderr,
	})
	if err != nil {
		a.logger.Warn("hook failed", "command", a.cfg.HookCommand, "exit_code", result.ExitCode, "err", err)
		return
	}
	a.logger.Debug("hook ran", "command", result.Command)
}
