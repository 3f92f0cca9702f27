package sim

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	ticks          metric.Int64Counter
	tickDuration   metric.Float64Histogram
	commands       metric.Int64Counter
	commandsFailed metric.Int64Counter
}

func commandAttr(name string) attribute.KeyValue {
	return attribute.String("command", name)
}

func newMetrics(m metric.Meter, s *Sim) (metrics, error) {
	var (
		out metrics
		err error
	)

	out.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Completed simulation ticks"),
	)
	if err != nil {
		return out, fmt.Errorf("creating tick counter: %w", err)
	}

	out.tickDuration, err = m.Float64Histogram(
		"sim.tick.duration",
		metric.WithDescription("Wall time spent in one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return out, fmt.Errorf("creating tick histogram: %w", err)
	}

	out.commands, err = m.Int64Counter(
		"sim.commands.applied",
		metric.WithDescription("Queued commands applied"),
	)
	if err != nil {
		return out, fmt.Errorf("creating command counter: %w", err)
	}

	out.commandsFailed, err = m.Int64Counter(
		"sim.commands.failed",
		metric.WithDescription("Queued commands that returned an error"),
	)
	if err != nil {
		return out, fmt.Errorf("creating failed command counter: %w", err)
	}

	queued, err := m.Int64ObservableGauge(
		"sim.commands.queued",
		metric.WithDescription("Commands waiting for the next tick"),
	)
	if err != nil {
		return out, fmt.Errorf("creating queue gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(queued, int64(s.commands.Len()))
		return nil
	}, queued)
	if err != nil {
		return out, fmt.Errorf("registering queue callback: %w", err)
	}

	return out, nil
}
