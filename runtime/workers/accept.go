package workers

import (
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"net"
)

// Acceptor is the part of the relay server that owns an accept loop.
type Acceptor interface {
	Serve(ctx context.Context, listener net.Listener) error
}

// AcceptWorker feeds connections from a listener to the server.
type AcceptWorker struct {
	server   Acceptor
	listener net.Listener
}

func NewAcceptWorker(server Acceptor, listener net.Listener) *AcceptWorker {
	return &AcceptWorker{server: server, listener: listener}
}

// Run returns nil once the server stopped, so the supervisor never
// restarts an accept loop over a closed listener.
func (w *AcceptWorker) Run(ctx context.Context) error {
	err := w.server.Serve(ctx, w.listener)
	if stderrors.Is(err, errors.ErrServerStopped) {
		return nil
	}
	return err
}
