package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/eventmerge/internal/config"
	"github.com/roach88/eventmerge/internal/metrics"
	"github.com/roach88/eventmerge/internal/telemetry"
)

const (
	serviceName     = "eventmerge"
	tracerName      = "github.com/roach88/eventmerge/internal/cli"
	shutdownTimeout = 5 * time.Second
)

// telemetryRun holds the outputs started for one command invocation.
type telemetryRun struct {
	shutdown    func(context.Context) error
	metricsFile string
}

func (o *RootOptions) startTelemetry(ctx context.Context, cfg config.Config) error {
	o.finishTelemetry()
	shutdown, err := telemetry.Setup(ctx, serviceName, telemetry.Config{
		Endpoint:  cfg.OTelEndpoint,
		TraceFile: cfg.TraceFile,
	})
	if err != nil {
		return err
	}
	o.telemetry = &telemetryRun{shutdown: shutdown, metricsFile: cfg.MetricsFile}
	return nil
}

// finishTelemetry flushes pending spans and writes the metrics textfile.
// Failures are logged and never change the command's exit code.
func (o *RootOptions) finishTelemetry() {
	run := o.telemetry
	if run == nil {
		return
	}
	o.telemetry = nil

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := run.shutdown(ctx); err != nil {
		slog.Warn("trace shutdown failed", "error", err)
	}

	if run.metricsFile == "" {
		return
	}
	metrics.Default()
	if err := metrics.WriteTextfile(run.metricsFile, prometheus.DefaultGatherer); err != nil {
		slog.Warn("metrics export failed", "path", run.metricsFile, "error", err)
	}
}

// flushTelemetryOnExit wraps every runnable command under cmd so telemetry
// is flushed whether the command succeeds or fails.
func flushTelemetryOnExit(cmd *cobra.Command, opts *RootOptions) {
	for _, sub := range cmd.Commands() {
		flushTelemetryOnExit(sub, opts)
	}
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		defer opts.finishTelemetry()
		return run(c, args)
	}
}

// startSpan opens a command-level span. The returned trace ID is empty when
// tracing is disabled.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span, string) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	var traceID string
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	return ctx, span, traceID
}
