package dispatcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Event is one operator or feed command, such as ":RECORD:START: rig".
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// ErrEmptyLine is returned by ParseLine for blank input and comments.
var ErrEmptyLine = errors.New("empty command line")

// ParseLine splits a text command into an Event. Arguments are separated by
// whitespace; double quotes group an argument containing spaces. Lines
// starting with '#' are comments.
func ParseLine(line string, at time.Time) (Event, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Event{}, ErrEmptyLine
	}

	var (
		fields  []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case !quoted && (r == ' ' || r == '\t'):
			if pending {
				fields = append(fields, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if quoted {
		return Event{}, fmt.Errorf("unterminated quote in %q", line)
	}
	if pending {
		fields = append(fields, cur.String())
	}

	cmd := strings.ToUpper(fields[0])
	if !strings.HasPrefix(cmd, ":") || !strings.HasSuffix(cmd, ":") {
		return Event{}, fmt.Errorf("malformed command %q", fields[0])
	}
	return Event{Command: cmd, Args: fields[1:], Timestamp: at}, nil
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Queued is the result returned by buffered handlers once an event is accepted.
const Queued = "queued"

// Option configures handler registration.
type Option func(*registration)

type registration struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered hands events to a worker goroutine through a queue of the given
// size. Results are then only visible in the log.
func Buffered(size int) Option {
	return func(r *registration) { r.bufferSize = size }
}

// Blocking makes a buffered handler wait for queue space instead of dropping.
func Blocking() Option {
	return func(r *registration) { r.blocking = true }
}

// Logged adds debug logging and failure logging around the handler.
func Logged() Option {
	return func(r *registration) { r.logged = true }
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  *instruments

	mu      sync.RWMutex
	queues  map[string]chan Event
	workers sync.WaitGroup
	closed  bool
}

// New creates a Dispatcher. Metrics go to meter, or to the global OTel meter
// when none is given.
func New(logger Logger, meter ...metric.Meter) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		logger:   logger,
	}
	m := globalMeter()
	if len(meter) > 0 && meter[0] != nil {
		m = meter[0]
	}
	var err error
	if d.metrics, err = newInstruments(m, d.queueDepths); err != nil {
		return nil, err
	}
	return d, nil
}

// Register adds a handler for the given command. A later registration for
// the same command replaces the earlier one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}

	h = d.measured(command, h)
	if reg.bufferSize > 0 {
		h = d.queued(command, reg, h)
	}
	if reg.logged {
		h = d.traced(command, h)
	}
	d.handlers[command] = h
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Close stops accepting buffered events and waits until the queued ones
// have been handled. Buffered handlers must not be called afterwards.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) queueDepths(observe func(command string, depth int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, q := range d.queues {
		observe(cmd, len(q))
	}
}

// measured counts every handled event and its outcome.
func (d *Dispatcher) measured(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		result, err := h(e)
		d.metrics.record(command, time.Since(start), err)
		return result, err
	}
}

func (d *Dispatcher) queued(command string, reg registration, h HandlerFunc) HandlerFunc {
	q := make(chan Event, reg.bufferSize)

	d.mu.Lock()
	d.queues[command] = q
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range q {
			if _, err := h(e); err != nil {
				d.logger.Error("buffered event failed", "command", command, "error", err)
			}
		}
	}()

	if reg.blocking {
		return func(e Event) (any, error) {
			q <- e
			return Queued, nil
		}
	}
	return func(e Event) (any, error) {
		select {
		case q <- e:
			return Queued, nil
		default:
			d.metrics.drop(command)
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) traced(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		return result, nil
	}
}
