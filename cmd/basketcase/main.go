package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/angelmondragon/basketcase/internal/bootstrap"
	"github.com/angelmondragon/basketcase/pkg/config"
	"github.com/angelmondragon/basketcase/pkg/enums"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rt := &runtime{}
	err := newApp(rt, os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	code := rt.finish(ctx, err, os.Stderr)
	rt.close(ctx)
	stop()
	os.Exit(code)
}

// runtime lazily loads configuration and wires services, so commands that only need the
// config (admin-token) never open a database.
type runtime struct {
	cfg     *config.Config
	logg    *logger.Logger
	app     *bootstrap.App
	command string

	// overridden in tests
	load  func() (*config.Config, error)
	build func(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*bootstrap.App, error)
}

func (r *runtime) config() (*config.Config, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}
	load := r.load
	if load == nil {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "load configuration")
	}
	cfg.Service.Kind = "cli"
	r.cfg = cfg
	return cfg, nil
}

func (r *runtime) services(ctx context.Context) (*bootstrap.App, error) {
	if r.app != nil {
		return r.app, nil
	}
	cfg, err := r.config()
	if err != nil {
		return nil, err
	}
	build := r.build
	if build == nil {
		build = func(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*bootstrap.App, error) {
			return bootstrap.New(ctx, cfg, logg, bootstrap.Options{})
		}
	}
	app, err := build(ctx, cfg, r.logg)
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

func (r *runtime) close(ctx context.Context) {
	if r.app == nil {
		return
	}
	if err := r.app.Close(); err != nil && r.logg != nil {
		r.logg.Error(context.WithoutCancel(ctx), "error closing connections", err)
	}
	r.app = nil
}

// finish prints a failed command's error, records it in the error log when the database is
// reachable and returns the process exit status.
func (r *runtime) finish(ctx context.Context, err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}

	msg := describe(err)
	fmt.Fprintf(stderr, "Error: %s\n", msg)

	if r.app != nil {
		entry := msg
		if r.command != "" {
			entry = r.command + ": " + msg
		}
		if recErr := r.app.Audit.Record(context.WithoutCancel(ctx), enums.ErrorLevelError, enums.ComponentCLI, entry, err); recErr != nil {
			fmt.Fprintf(stderr, "warning: could not record error: %s\n", describe(recErr))
		}
	}
	return pkgerrors.ExitCode(err)
}

// describe renders a typed error's message and field details for a terminal.
func describe(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err.Error()
	}
	msg := typed.Message()
	if cause := typed.Unwrap(); cause != nil {
		msg += ": " + cause.Error()
	}
	if fields, ok := typed.Details().(map[string]string); ok && len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+" "+fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return msg
}

func newApp(rt *runtime, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "basketcase",
		Usage:     "track grocery basket prices and inflation",
		Writer:    stdout,
		ErrWriter: stderr,
		// errors are reported by runtime.finish
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at debug level"},
		},
		Before: func(c *cli.Context) error {
			level := zerolog.WarnLevel
			if c.Bool("verbose") {
				level = zerolog.DebugLevel
			}
			rt.logg = logger.New(logger.Options{ServiceName: "cli", Level: level, Output: stderr})
			if args := c.Args(); args.Len() > 0 {
				rt.command = args.First()
			}
			return nil
		},
		Commands: commands(rt),
	}
}
