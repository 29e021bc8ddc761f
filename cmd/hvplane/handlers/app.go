// Package handlers implements the business logic for CLI commands.
//
// Each handler opens the control plane from the configuration file, runs one
// operation and prints the result as JSON or as styled text. Failures are
// reported as the normalized error triple (status, message, suggestion).
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/config"
	"github.com/imamik/hvplane/internal/controlplane"
	"github.com/imamik/hvplane/internal/logging"
	"github.com/imamik/hvplane/internal/metrics"
)

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

// ErrReported means the failure was already printed as JSON.
var ErrReported = errors.New("error already reported")

// Options are the global flags shared by every command.
type Options struct {
	ConfigPath  string
	JSON        bool
	MetricsFile string
}

// CommandError carries the normalized triple of a failed operation.
type CommandError struct {
	apierr.Envelope
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s (status %d)", e.Message, e.HTTPStatus)
	if e.Suggestion != "" {
		msg += "\n  hint: " + e.Suggestion
	}
	return msg
}

type app struct {
	opts    Options
	cfg     *config.Config
	svc     *controlplane.Service
	metrics *metrics.Metrics
	log     logr.Logger
	sync    func()
}

// openApp loads the configuration and builds the control plane.
func openApp(ctx context.Context, opts Options) (*app, error) {
	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, sync, err := logging.Setup(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	m := metrics.New()
	svc, err := controlplane.New(ctx, cfg, config.LoadTimeouts(), m, log)
	if err != nil {
		sync()
		return nil, fmt.Errorf("failed to open control plane: %w", err)
	}

	return &app{opts: opts, cfg: cfg, svc: svc, metrics: m, log: log, sync: sync}, nil
}

// close releases the store and writes the metrics textfile if one is set.
func (a *app) close() {
	if err := a.svc.Close(); err != nil {
		a.log.Error(err, "failed to close store")
	}

	path := a.opts.MetricsFile
	if path == "" {
		path = a.cfg.Metrics.Textfile
	}
	if path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.log.Error(err, "failed to write metrics textfile", "path", path)
		}
	}
	a.sync()
}

// fail normalizes err. With --json the triple is printed to stdout and
// ErrReported is returned so main only sets the exit code.
func (a *app) fail(err error) error {
	env := a.svc.NormalizeError(err)
	a.log.V(1).Info("operation failed", "error", err.Error(), "status", env.HTTPStatus)

	if a.opts.JSON {
		if perr := printJSON(struct {
			Error apierr.Envelope `json:"error"`
		}{env}); perr != nil {
			return perr
		}
		return ErrReported
	}
	return &CommandError{Envelope: env}
}

// run opens the app, calls fn and closes the app again.
func run(ctx context.Context, opts Options, fn func(*app) error) error {
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	if err := fn(a); err != nil {
		if errors.Is(err, ErrReported) {
			return err
		}
		return a.fail(err)
	}
	return nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(b))
	return err
}

func isInteractiveTTY() bool {
	f, ok := stdout.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// styled reports whether output should be rendered with lipgloss.
func (a *app) styled() bool {
	return !a.opts.JSON && isInteractiveTTY()
}
