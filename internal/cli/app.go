package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/eventmerge/internal/config"
	"github.com/roach88/eventmerge/internal/engine"
	"github.com/roach88/eventmerge/internal/metrics"
	"github.com/roach88/eventmerge/internal/redislock"
	"github.com/roach88/eventmerge/internal/service"
	"github.com/roach88/eventmerge/internal/store"
)

// app is the store, engine and service wired from configuration for a
// single command invocation.
type app struct {
	cfg     config.Config
	store   *store.Store
	service *service.Service
	closers []func() error
}

// openApp opens the configured database and builds the merge engine and
// service on top of it. Callers must Close the returned app.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := slog.Default()
	logger.Debug("opening database", "path", cfg.DBPath, "driver", cfg.DBDriver)
	st, err := store.Open(cfg.DBPath, store.WithDriver(cfg.DBDriver))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	a := &app{cfg: cfg, store: st, closers: []func() error{st.Close}}

	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.Default()),
	}
	if cfg.LockBackend == config.LockRedis {
		locker, err := redislock.NewFromURL(cfg.RedisURL,
			redislock.WithTTL(cfg.LockTTL),
			redislock.WithRetry(cfg.LockRetry),
			redislock.WithLogger(logger),
		)
		if err != nil {
			a.Close()
			return nil, WrapExitError(ExitCommandError, "failed to configure redis lock", err)
		}
		a.closers = append(a.closers, locker.Close)
		engineOpts = append(engineOpts, engine.WithLocker(locker))
	}

	eng := engine.New(st, engineOpts...)
	a.service = service.New(st, eng, service.WithMergeTimeout(cfg.MergeTimeout))
	return a, nil
}

// Close releases everything openApp acquired, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withApp runs fn against a freshly opened app and closes it afterwards.
func withApp(opts *RootOptions, fn func(a *app) error) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	return fn(a)
}

// commandContext returns the command's context, or Background when the
// command is executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newFormatter builds an OutputFormatter writing to the command's streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// reportError maps err to an error code and exit code. In JSON mode the
// error is also written to stdout as a CLIResponse.
func reportError(f *OutputFormatter, message string, err error) error {
	code, exit, details := classifyError(err)
	if f.Format == "json" {
		if writeErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), details); writeErr != nil {
			return writeErr
		}
	}
	return WrapExitError(exit, message, err)
}

func classifyError(err error) (code string, exit int, details any) {
	var ve *service.ValidationError
	var me *engine.MergeError
	switch {
	case errors.As(err, &ve):
		return ErrCodeInvalidInput, ExitCommandError, map[string]string{"field": ve.Field}
	case engine.IsResultUnavailable(err):
		errors.As(err, &me)
		return ErrCodeMergeUnknown, ExitFailure, map[string]string{"owner_id": me.OwnerID, "reason": string(me.Code)}
	case engine.IsTransactionFailed(err):
		errors.As(err, &me)
		return ErrCodeMergeFailed, ExitFailure, map[string]string{"owner_id": me.OwnerID, "reason": string(me.Code)}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeMergeFailed, ExitFailure, nil
	case engine.IsOwnerNotFound(err),
		errors.Is(err, store.ErrOwnerNotFound),
		errors.Is(err, store.ErrRecordNotFound),
		errors.Is(err, store.ErrParticipantNotFound):
		return ErrCodeNotFound, ExitFailure, nil
	default:
		return ErrCodeGeneric, ExitFailure, nil
	}
}
