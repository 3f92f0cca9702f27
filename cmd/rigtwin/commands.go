package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/rigtwin/twin/internal/dispatcher"
)

// maxLineSize bounds a single command line.
const maxLineSize = 1 << 20

// reply is written to stdout for every command.
type reply struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// serveCommands dispatches lines from r until ctx is done or r is exhausted.
// Blank lines and comments are skipped; unparseable lines get an error reply.
func serveCommands(ctx context.Context, r io.Reader, w io.Writer, d *dispatcher.Dispatcher, logger *slog.Logger) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				var err error
				select {
				case err = <-scanErr:
				default:
				}
				logger.Info("Command input closed")
				return err
			}
			rep, ok := handleLine(d, line, time.Now())
			if !ok {
				continue
			}
			if err := enc.Encode(rep); err != nil {
				return err
			}
		}
	}
}

// handleLine parses and dispatches one line. It reports false for blank
// lines and comments, which get no reply.
func handleLine(d *dispatcher.Dispatcher, line string, at time.Time) (reply, bool) {
	e, err := dispatcher.ParseLine(line, at)
	if errors.Is(err, dispatcher.ErrEmptyLine) {
		return reply{}, false
	}
	if err != nil {
		return reply{Error: err.Error()}, true
	}
	result, err := d.Dispatch(e)
	if err != nil {
		return reply{Command: e.Command, Error: err.Error()}, true
	}
	return reply{Command: e.Command, Result: result}, true
}
