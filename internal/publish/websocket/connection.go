package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rigtwin/twin/pkg/streaming"
)

const (
	sendBuffer = 4_096
	ackBuffer  = 16
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = 20 * time.Second
	ackTimeout = 10 * time.Second
)

var errClosed = errors.New("websocket publisher closed")

// link owns one logical connection to the server. A single supervisor
// goroutine dials, writes and redials; a reader goroutine per socket routes
// acks back to waiting callers.
type link struct {
	rawURL string
	secret string
	logger *slog.Logger

	out    chan []byte
	acks   chan streaming.AckMessage
	done   chan struct{}
	exited chan struct{}

	mu      sync.Mutex
	conn    *ws.Conn
	session []byte // start_session envelope, replayed on every new socket
	started bool
	closed  bool

	dropped atomic.Uint64
}

func newLink(rawURL, secret string, logger *slog.Logger) *link {
	return &link{
		rawURL: rawURL,
		secret: secret,
		logger: logger,
		out:    make(chan []byte, sendBuffer),
		acks:   make(chan streaming.AckMessage, ackBuffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (l *link) dial() (*ws.Conn, error) {
	u, err := url.Parse(l.rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", l.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// open dials once and starts the supervisor. When the first dial fails the
// error is returned and the supervisor keeps trying in the background.
func (l *link) open() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errClosed
	}
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.mu.Unlock()

	conn, err := l.dial()
	if err == nil {
		l.mu.Lock()
		l.conn = conn
		l.mu.Unlock()
	}
	go l.supervise(conn)
	return err
}

func (l *link) supervise(conn *ws.Conn) {
	defer close(l.exited)

	backoff := minBackoff
	for {
		if conn == nil {
			select {
			case <-l.done:
				return
			case <-time.After(backoff):
			}
			var err error
			if conn, err = l.dial(); err != nil {
				l.logger.Warn("WebSocket dial failed", "backoff", backoff, "error", err)
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			l.logger.Info("WebSocket reconnected")
		}
		backoff = minBackoff

		err := l.pump(conn)
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		if err == nil {
			return
		}
		l.logger.Warn("WebSocket connection lost", "error", err)
		conn = nil
	}
}

// pump writes queued messages to conn until the socket fails, returning the
// failure, or the link is closed, returning nil.
func (l *link) pump(conn *ws.Conn) error {
	defer conn.Close()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.conn = conn
	session := l.session
	l.mu.Unlock()

	if session != nil {
		if err := write(conn, ws.TextMessage, session); err != nil {
			return fmt.Errorf("replay start_session: %w", err)
		}
	}

	readErr := make(chan error, 1)
	go l.read(conn, readErr)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-l.done:
			_ = write(conn, ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return nil
		case err := <-readErr:
			return err
		case data := <-l.out:
			if err := write(conn, ws.TextMessage, data); err != nil {
				return err
			}
		case <-ping.C:
			if err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

func write(conn *ws.Conn, kind int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(kind, data)
}

// read routes acks until the socket fails.
func (l *link) read(conn *ws.Conn, errc chan<- error) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			l.logger.Debug("Ignoring server message", "raw", string(message))
			continue
		}
		select {
		case l.acks <- ack:
		default:
			l.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

func (l *link) setSession(data []byte) {
	l.mu.Lock()
	l.session = data
	l.mu.Unlock()
}

// send queues data without blocking. Messages queued while disconnected are
// flushed after the next successful dial.
func (l *link) send(data []byte) bool {
	select {
	case <-l.done:
		l.dropped.Add(1)
		return false
	default:
	}
	select {
	case l.out <- data:
		return true
	default:
		if n := l.dropped.Add(1); n%1000 == 1 {
			l.logger.Warn("WebSocket send buffer full, dropping message", "dropped", n)
		}
		return false
	}
}

func (l *link) connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// sendAndWait queues data and waits for the server's ack of type ackFor.
func (l *link) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if !l.send(data) {
		return fmt.Errorf("could not queue %q", ackFor)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-l.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.done:
			return fmt.Errorf("%w while waiting for ack of %q", errClosed, ackFor)
		}
	}
}

// close stops the supervisor after it sent a close frame on the live socket.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	started := l.started
	l.mu.Unlock()

	if started {
		<-l.exited
	}
	return nil
}
