package runtime

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LineFilter rewrites an inbound line body before it is relayed.
type LineFilter interface {
	Filter(endpoint, body string) string
}

type SessionOption func(s *Session)

// WithMaxPending bounds the outbound queue. Overflow disconnects the session.
// Zero keeps the queue unbounded.
func WithMaxPending(n int) SessionOption {
	return func(s *Session) { s.maxPending = n }
}

func WithFilter(f LineFilter) SessionOption {
	return func(s *Session) { s.filter = f }
}

// WithEvents publishes lifecycle events on ch without ever blocking.
func WithEvents(ch chan<- event.SessionEvent) SessionOption {
	return func(s *Session) { s.events = ch }
}

// Session is one connected client. It reads lines from its connection and
// hands them to the room, and drains its own queue of lines to deliver.
//
// Read path: Active -> Closing -> Closed.
// Write path: Idle <-> Writing, with at most one drain goroutine at a time.
type Session struct {
	id       uuid.UUID
	conn     net.Conn
	room     *domain.Room
	endpoint string
	log      *slog.Logger
	openedAt time.Time

	maxPending int
	filter     LineFilter
	events     chan<- event.SessionEvent

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu         sync.Mutex
	queue      []string
	writing    bool
	idle       chan struct{}
	closed     bool
	failReason event.CloseReason
	linesIn    int
	linesOut   int
}

func NewSession(conn net.Conn, room *domain.Room, log *slog.Logger, options ...SessionOption) *Session {
	ctx, cancel := context.WithCancelCause(context.Background())
	id := uuid.New()
	endpoint := domain.EndpointLabel(conn.RemoteAddr())
	idle := make(chan struct{})
	close(idle)
	s := &Session{
		id:       id,
		conn:     conn,
		room:     room,
		endpoint: endpoint,
		log:      log.With("session_id", id.String(), "endpoint", endpoint),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		idle:     idle,
	}
	for _, option := range options {
		if option != nil {
			option(s)
		}
	}
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Endpoint() string { return s.endpoint }

// Done is closed once the read path has ended and the session left the room.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start joins the room, greets the client, announces it to the others
// and starts the read loop in its own goroutine.
func (s *Session) Start() {
	s.openedAt = time.Now().UTC()
	s.room.Join(s)
	s.Deliver(domain.Welcome(s.endpoint))

	joined := domain.Joined(s.endpoint)
	s.room.Deliver(joined, s)
	s.log.Info(strings.TrimSuffix(joined, "\n"))
	s.publish(event.SessionOpened{ID: s.id, Endpoint: s.endpoint, At: s.openedAt})

	go s.readLoop()
}

// Deliver queues line for this client. It never blocks on the connection.
func (s *Session) Deliver(line string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.maxPending > 0 && len(s.queue) >= s.maxPending {
		s.mu.Unlock()
		s.log.Warn("Pending queue full, disconnecting", "max_pending", s.maxPending)
		s.writeFault(event.ReasonOverflow, errors.ErrQueueOverflow)
		return
	}
	s.queue = append(s.queue, line)
	if s.writing {
		s.mu.Unlock()
		return
	}
	s.writing = true
	s.idle = make(chan struct{})
	s.mu.Unlock()

	go s.drain()
}

// Pending returns the number of lines queued and not yet written.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Flush waits until the queue is empty and no write is in flight.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abort tears the session down on behalf of the server. Faults caused by
// cause are treated as deliberate: no leave announcement is sent.
func (s *Session) Abort(cause error) {
	s.cancel(cause)
	_ = s.conn.Close()
}

func (s *Session) aborted() bool {
	return stderrors.Is(context.Cause(s.ctx), errors.ErrServerShutdown)
}

// drain writes the queue front to back. The front entry is removed only
// once its write completed.
func (s *Session) drain() {
	for {
		s.mu.Lock()
		if s.closed || len(s.queue) == 0 {
			s.setIdle()
			s.mu.Unlock()
			return
		}
		line := s.queue[0]
		s.mu.Unlock()

		if _, err := io.WriteString(s.conn, line); err != nil {
			s.writeFault(event.ReasonWriteFault, err)
			return
		}

		s.mu.Lock()
		if s.closed {
			// queue was abandoned while the write was in flight
			s.mu.Unlock()
			return
		}
		s.queue[0] = ""
		s.queue = s.queue[1:]
		s.linesOut++
		s.mu.Unlock()
	}
}

// setIdle must be called with mu held.
func (s *Session) setIdle() {
	if !s.writing {
		return
	}
	s.writing = false
	close(s.idle)
}

// writeFault abandons the queue and leaves the room. The connection is
// closed so the read path ends as well.
func (s *Session) writeFault(reason event.CloseReason, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.failReason = reason
	s.queue = nil
	s.setIdle()
	s.mu.Unlock()

	if s.aborted() {
		return
	}
	s.log.Warn("Write failed, leaving the room", "reason", reason, "error", err)
	s.room.Leave(s)
	_ = s.conn.Close()
}

func (s *Session) readLoop() {
	defer close(s.done)

	reader := bufio.NewReader(s.conn)
	for {
		line, err := reader.ReadString(domain.Delimiter)
		if err != nil {
			s.closeRead(err)
			return
		}

		body := strings.TrimSuffix(line, string(domain.Delimiter))
		if s.filter != nil {
			body = s.filter.Filter(s.endpoint, body)
		}
		msg := domain.Said(s.endpoint, body)
		s.room.Deliver(msg, s)

		s.mu.Lock()
		s.linesIn++
		s.mu.Unlock()
		s.log.Info(strings.TrimSuffix(msg, "\n"))
	}
}

// closeRead runs once the read path hit EOF or an error.
func (s *Session) closeRead(err error) {
	reason := s.closeReason(err)
	if reason != event.ReasonShutdown {
		left := domain.Left(s.endpoint)
		s.room.Deliver(left, s)
		s.log.Info(strings.TrimSuffix(left, "\n"), "reason", reason)
	}
	s.room.Leave(s)

	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.setIdle()
	closed := event.SessionClosed{
		ID:       s.id,
		Endpoint: s.endpoint,
		OpenedAt: s.openedAt,
		At:       time.Now().UTC(),
		LinesIn:  s.linesIn,
		LinesOut: s.linesOut,
		Reason:   reason,
	}
	s.mu.Unlock()

	s.cancel(errors.ErrSessionClosed)
	_ = s.conn.Close()
	s.publish(closed)
}

func (s *Session) closeReason(err error) event.CloseReason {
	if s.aborted() {
		return event.ReasonShutdown
	}
	s.mu.Lock()
	failReason := s.failReason
	s.mu.Unlock()
	switch {
	case failReason != "":
		return failReason
	case stderrors.Is(err, io.EOF):
		return event.ReasonPeerClosed
	default:
		return event.ReasonReadFault
	}
}

func (s *Session) publish(e event.SessionEvent) {
	select {
	case s.events <- e:
	default:
		if s.events != nil {
			s.log.Debug("Session event lost", "event", e)
		}
	}
}
