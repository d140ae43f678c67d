package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrEmptyWords     = fmt.Errorf("no words have been found")
	ErrServerStopped  = fmt.Errorf("server stopped")
	ErrServerShutdown = fmt.Errorf("server is shutting down")
	ErrQueueOverflow  = fmt.Errorf("pending queue overflow")
	ErrSessionClosed  = fmt.Errorf("session closed")
)

var (
	ErrUsage       = fmt.Errorf("usage: server [port]")
	ErrInvalidPort = fmt.Errorf("invalid port")
)
