package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/0xcro3dile/shotfind/internal/config"
	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/usecases"
	"github.com/0xcro3dile/shotfind/internal/errors"
	shothttp "github.com/0xcro3dile/shotfind/internal/infrastructure/http"
)

// Exit codes.
const (
	exitError        = 1 // dependency, usage or internal failure; also no matching files
	exitPartialIndex = 2 // update finished but some files failed
)

// app carries per-invocation state between the Before hook and the actions.
type app struct {
	stderr io.Writer
	build  componentFactory

	cfg  *config.Config
	pipe *pipeline
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(stdout, stderr io.Writer, build componentFactory) *cli.App {
	a := &app{stderr: stderr, build: build}

	cliApp := &cli.App{
		Name:    "shotfind",
		Usage:   "Describe screenshots with a local vision model and search them by meaning",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "~/.shotfind", Usage: "Directory holding config.json"},
			&cli.BoolFlag{Name: "verbose", Usage: "Debug logging"},
			&cli.StringFlag{Name: "pattern", Aliases: []string{"p"}, Value: usecases.DefaultPattern, Usage: "Glob selecting candidate screenshots"},
			&cli.IntFlag{Name: "max-files", Aliases: []string{"n"}, Usage: "Index at most this many files per update (0 = no limit)"},
			&cli.BoolFlag{Name: "update", Aliases: []string{"u"}, Usage: "Describe and index screenshots that have no description yet"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Find screenshots matching this text"},
		},
		Before: a.before,
		After:  a.after,
		Action: a.runAction,
		Commands: []*cli.Command{
			a.watchCmd(),
			a.pruneCmd(),
			a.serveCmd(),
		},
		Writer:    stdout,
		ErrWriter: stderr,
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// before loads configuration and sets up logging.
func (a *app) before(c *cli.Context) error {
	cfg, err := config.Load(config.ExpandHome(c.String("config")))
	if err != nil {
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("loading config: %v", err)))
	}

	runID, err := setupLogging(a.stderr, cfg.LogLevel, c.Bool("verbose"))
	if err != nil {
		return outputError(err)
	}
	logrus.WithField("backend", cfg.Store.Backend).Debugf("shotfind %s starting (run %s)", Version, runID)

	a.cfg = cfg
	return nil
}

// after closes whatever the pipeline opened.
func (a *app) after(_ *cli.Context) error {
	if a.pipe == nil {
		return nil
	}
	if err := a.pipe.comps.close(); err != nil {
		logrus.WithError(err).Warn("Failed to close description store")
	}
	return nil
}

// pipeline builds the components on first use.
func (a *app) pipeline() (*pipeline, error) {
	if a.pipe != nil {
		return a.pipe, nil
	}
	comps, err := a.build(a.cfg)
	if err != nil {
		return nil, err
	}
	a.pipe = assemble(a.cfg, comps)
	return a.pipe, nil
}

// runAction handles the root command: --update and/or --query.
func (a *app) runAction(c *cli.Context) error {
	if c.NArg() > 0 {
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown command %q", c.Args().First())))
	}
	if c.Int("max-files") < 0 {
		return outputError(errors.NewInvalidRequest("--max-files must not be negative"))
	}

	p, err := a.pipeline()
	if err != nil {
		return outputError(err)
	}

	report, err := p.orchestrator.Run(c.Context, usecases.RunRequest{
		Pattern:  c.String("pattern"),
		MaxFiles: c.Int("max-files"),
		Update:   c.Bool("update"),
		Query:    c.String("query"),
	})
	if err != nil {
		return outputError(err)
	}

	for _, r := range report.Results {
		fmt.Fprintln(c.App.Writer, usecases.FormatResult(r))
	}
	return summaryExit(report.Summary)
}

// watchCmd creates the watch command.
func (a *app) watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Index matching screenshots, then keep indexing new ones as they appear",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pattern", Aliases: []string{"p"}, Value: usecases.DefaultPattern, Usage: "Glob selecting candidate screenshots; its directory is watched"},
		},
		Action: func(c *cli.Context) error {
			p, err := a.pipeline()
			if err != nil {
				return outputError(err)
			}
			pattern := c.String("pattern")

			err = p.orchestrator.WithDependencies(c.Context, func(ctx context.Context) error {
				if _, err := p.orchestrator.Update(ctx, pattern, 0); err != nil && !errors.Is(err, errors.ErrNoMatches) {
					return err
				}

				watcher, err := p.comps.newWatcher()
				if err != nil {
					return errors.NewInternal(err)
				}
				uc := usecases.NewWatchUseCase(watcher, p.selector, p.ingest, 0)
				return uc.Watch(ctx, pattern, func(r entities.FileResult) {
					if r.Outcome == entities.OutcomeIndexed {
						fmt.Fprintf(c.App.Writer, "Indexed %s\n", r.Path)
					}
				})
			})
			if interrupted(err) {
				return nil
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// pruneCmd creates the prune command.
func (a *app) pruneCmd() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Remove descriptions of screenshots that no longer exist",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "List orphaned descriptions without removing them"},
		},
		Action: func(c *cli.Context) error {
			p, err := a.pipeline()
			if err != nil {
				return outputError(err)
			}
			dryRun := c.Bool("dry-run")

			var summary *entities.PruneSummary
			err = p.orchestrator.WithDependencies(c.Context, func(ctx context.Context) error {
				var err error
				summary, err = p.prune.Prune(ctx, dryRun)
				return err
			})
			if err != nil {
				return outputError(err)
			}

			for _, id := range summary.Orphans {
				fmt.Fprintf(c.App.Writer, "Orphaned: %s\n", id)
			}
			if dryRun {
				fmt.Fprintf(c.App.Writer, "%d of %d descriptions would be removed\n", len(summary.Orphans), summary.Checked)
			} else {
				fmt.Fprintf(c.App.Writer, "Removed %d of %d descriptions\n", summary.Removed, summary.Checked)
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func (a *app) serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a search page and JSON search API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "Listen address"},
		},
		Action: func(c *cli.Context) error {
			p, err := a.pipeline()
			if err != nil {
				return outputError(err)
			}
			server := shothttp.NewServer(p.query, c.String("addr"))

			err = p.orchestrator.WithDependencies(c.Context, server.Start)
			if interrupted(err) {
				return nil
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// summaryExit maps a finished update to the process exit status.
func summaryExit(summary *entities.IndexSummary) error {
	if summary == nil || summary.Failed == 0 {
		return nil
	}
	return cli.Exit(fmt.Sprintf("%d of %d files failed to index", summary.Failed, summary.Total), exitPartialIndex)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if errors.Is(err, errors.ErrNoMatches) {
		var shotErr *errors.ShotError
		stderrors.As(err, &shotErr)
		return cli.Exit(shotErr.Message, exitError)
	}
	var shotErr *errors.ShotError
	if stderrors.As(err, &shotErr) {
		msg := fmt.Sprintf("[%s] %s", shotErr.Code, shotErr.Message)
		if shotErr.Err != nil {
			msg += ": " + shotErr.Err.Error()
		}
		return cli.Exit(msg, exitError)
	}
	return cli.Exit(err.Error(), exitError)
}

func interrupted(err error) bool {
	return stderrors.Is(err, context.Canceled)
}
