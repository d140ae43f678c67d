package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

const maxAcceptDelay = time.Second

// Server binds accepted connections to the shared room.
type Server struct {
	log      *slog.Logger
	room     *domain.Room
	registry *Registry
	options  []SessionOption
	wg       sync.WaitGroup

	mu        sync.Mutex
	stopped   bool
	listeners map[net.Listener]struct{}
	stopHooks []func()
}

func NewServer(log *slog.Logger, room *domain.Room, registry *Registry, options ...SessionOption) *Server {
	return &Server{
		log:       log,
		room:      room,
		registry:  registry,
		options:   options,
		listeners: make(map[net.Listener]struct{}),
	}
}

func (s *Server) Room() *domain.Room { return s.room }

// OnStop registers fn to run once, right after the shutdown notice went out.
func (s *Server) OnStop(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopHooks = append(s.stopHooks, fn)
}

// OnAccept starts a session for conn. Connections accepted after Stop are closed.
func (s *Server) OnAccept(conn net.Conn) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	// registered under mu so Shutdown cannot miss it
	session := NewSession(conn, s.room, s.log, s.options...)
	s.registry.Add(session)
	s.wg.Add(1)
	s.mu.Unlock()

	session.Start()

	go func() {
		defer s.wg.Done()
		<-session.Done()
		s.registry.Remove(session.ID())
	}()
}

// Serve accepts connections from listener until Stop is called or ctx is done.
// It always returns errors.ErrServerStopped.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = listener.Close()
		return errors.ErrServerStopped
	}
	s.listeners[listener] = struct{}{}
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	s.log.Info("Server is listening", "address", listener.Addr().String())
	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isStopped() || ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				s.forget(listener)
				return errors.ErrServerStopped
			}
			// transient accept failure, back off like net/http does
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.log.Warn("Accept failed, retrying", "error", err, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0
		s.OnAccept(conn)
	}
}

// Stop closes the accept path and broadcasts the shutdown notice.
// Live sessions are left running. Only the first call has an effect.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	listeners := make([]net.Listener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	hooks := s.stopHooks
	s.mu.Unlock()

	for _, l := range listeners {
		_ = l.Close()
	}
	s.room.Broadcast(domain.ShutdownNotice)
	s.log.Info("Shutdown notice sent", "members", s.room.Len())
	for _, hook := range hooks {
		hook()
	}
}

// Shutdown stops the server, lets every session write what it already
// queued, then aborts the remaining connections. Sessions aborted here
// leave the room silently. It returns ctx.Err() if draining timed out.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Stop()

	var drainErr error
	for _, session := range s.registry.Snapshot() {
		if err := session.Flush(ctx); err != nil {
			drainErr = err
			break
		}
	}
	for _, session := range s.registry.Snapshot() {
		session.Abort(errors.ErrServerShutdown)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return drainErr
}

// Stats reports the live load of the relay.
func (s *Server) Stats() contract.Stats {
	return contract.Stats{
		Sessions:     s.registry.Len(),
		Members:      s.room.Len(),
		PendingLines: s.registry.Pending(),
	}
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Server) forget(listener net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, listener)
}
