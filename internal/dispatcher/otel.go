package dispatcher

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/rigtwin/twin/internal/dispatcher"

func globalMeter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
}

// newInstruments creates the dispatcher instruments. depths reports the
// current length of every buffered command queue.
func newInstruments(m metric.Meter, depths func(observe func(string, int))) (*instruments, error) {
	var (
		in   instruments
		errs [5]error
	)
	in.processed, errs[0] = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events handled"))
	in.failed, errs[1] = m.Int64Counter("dispatcher.events.failed",
		metric.WithDescription("Events whose handler returned an error"))
	in.dropped, errs[2] = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events dropped because the command queue was full"))
	in.duration, errs[3] = m.Float64Histogram("dispatcher.events.duration",
		metric.WithDescription("Handler run time"), metric.WithUnit("ms"))
	_, errs[4] = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in each command queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			depths(func(cmd string, n int) {
				o.Observe(int64(n), metric.WithAttributes(attribute.String("command", cmd)))
			})
			return nil
		}))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *instruments) record(command string, took time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("command", command))
	in.processed.Add(ctx, 1, attrs)
	if err != nil {
		in.failed.Add(ctx, 1, attrs)
	}
	in.duration.Record(ctx, float64(took.Microseconds())/1000, attrs)
}

func (in *instruments) drop(command string) {
	in.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
}
