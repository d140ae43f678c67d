package event

import (
	"time"

	"github.com/google/uuid"
)

// CloseReason tells why a session left the room.
type CloseReason string

const (
	ReasonPeerClosed CloseReason = "peer_closed"
	ReasonReadFault  CloseReason = "read_fault"
	ReasonWriteFault CloseReason = "write_fault"
	ReasonOverflow   CloseReason = "overflow"
	ReasonShutdown   CloseReason = "shutdown"
)

// SessionEvent is emitted by a session at the edges of its life.
type SessionEvent interface {
	SessionID() uuid.UUID
}

type SessionOpened struct {
	ID       uuid.UUID
	Endpoint string
	At       time.Time
}

func (e SessionOpened) SessionID() uuid.UUID { return e.ID }

type SessionClosed struct {
	ID       uuid.UUID
	Endpoint string
	OpenedAt time.Time
	At       time.Time
	LinesIn  int
	LinesOut int
	Reason   CloseReason
}

func (e SessionClosed) SessionID() uuid.UUID { return e.ID }
