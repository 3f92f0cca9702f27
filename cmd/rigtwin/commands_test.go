package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rigtwin/twin/internal/dispatcher"
	"github.com/rigtwin/twin/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(logging.FromZerolog(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	d.Register(":ECHO:", func(e dispatcher.Event) (any, error) {
		return e.Args, nil
	})
	d.Register(":FAIL:", func(e dispatcher.Event) (any, error) {
		return nil, errors.New("nope")
	})
	return d
}

func decodeReplies(t *testing.T, out string) []reply {
	t.Helper()
	var replies []reply
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var r reply
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		replies = append(replies, r)
	}
	return replies
}

func TestServeCommands(t *testing.T) {
	d := newTestDispatcher(t)
	in := strings.Join([]string{
		`:echo: rig "yard loop"`,
		``,
		`# comment`,
		`:FAIL:`,
		`:MISSING: x`,
		`:ECHO: "open`,
		`nocolons`,
	}, "\n")

	var out bytes.Buffer
	err := serveCommands(context.Background(), strings.NewReader(in), &out, d, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	replies := decodeReplies(t, out.String())
	require.Len(t, replies, 5)
	assert.Equal(t, ":ECHO:", replies[0].Command)
	assert.Equal(t, []any{"rig", "yard loop"}, replies[0].Result)
	assert.Empty(t, replies[0].Error)

	assert.Equal(t, ":FAIL:", replies[1].Command)
	assert.Equal(t, "nope", replies[1].Error)

	assert.Contains(t, replies[2].Error, "unknown command")
	assert.Contains(t, replies[3].Error, "unterminated quote")
	assert.NotEmpty(t, replies[4].Error)
}

func TestServeCommands_StopsOnCancel(t *testing.T) {
	d := newTestDispatcher(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- serveCommands(ctx, pr, &out, d, slog.New(slog.DiscardHandler)) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serveCommands did not return after cancel")
	}
}
