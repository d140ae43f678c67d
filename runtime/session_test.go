package runtime

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const pipeEndpoint = "pipe"

func newPipeSession(t *testing.T, room *domain.Room, options ...SessionOption) (*Session, net.Conn, *bufio.Reader) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	s := NewSession(server, room, logs.GetLoggerFromLevel(slog.LevelDebug), options...)
	// runs before the mock controller checks its expectations
	t.Cleanup(func() {
		_ = client.Close()
		select {
		case <-s.Done():
		case <-time.After(2 * time.Second):
		}
	})
	return s, client, bufio.NewReader(client)
}

func readLine(t *testing.T, conn net.Conn, r *bufio.Reader) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

// failingWriteConn accepts reads but rejects every write.
type failingWriteConn struct {
	net.Conn
}

func (c failingWriteConn) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestSession_Start_Welcomes_And_Announces(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := domain.NewRoom()
	other := mocks.NewMockParticipant(ctrl)
	room.Join(other)
	s, client, reader := newPipeSession(t, room)

	// Given another member waiting for the join announcement
	announced := make(chan struct{})
	other.EXPECT().Deliver(domain.Joined(pipeEndpoint)).Do(func(string) { close(announced) }).Times(1)
	other.EXPECT().Deliver(domain.Left(pipeEndpoint)).AnyTimes()

	// When the session starts
	s.Start()

	// Then the client gets a private welcome line
	req.Equal("Welcome! You are connected from pipe\n", readLine(t, client, reader))
	waitFor(t, announced)

	// And the session is a member of the room
	req.Equal(2, room.Len())
	req.Equal(pipeEndpoint, s.Endpoint())
}

func TestSession_Read_Relays_Lines_To_Others(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := domain.NewRoom()
	other := mocks.NewMockParticipant(ctrl)
	room.Join(other)
	s, client, reader := newPipeSession(t, room)

	long := strings.Repeat("x", 64*1024)
	relayed := make(chan struct{})
	gomock.InOrder(
		other.EXPECT().Deliver(domain.Joined(pipeEndpoint)),
		other.EXPECT().Deliver("Client pipe: hello\n"),
		// blank lines are relayed as well
		other.EXPECT().Deliver("Client pipe: \n"),
		// long lines grow the buffer and are not truncated
		other.EXPECT().Deliver("Client pipe: "+long+"\n").Do(func(string) { close(relayed) }),
	)
	other.EXPECT().Deliver(domain.Left(pipeEndpoint)).AnyTimes()

	s.Start()
	req.Equal(domain.Welcome(pipeEndpoint), readLine(t, client, reader))

	// When the client sends three lines
	_, err := io.WriteString(client, "hello\n\n"+long+"\n")
	req.NoError(err)

	// Then each reached the other member, labelled with the sender endpoint
	waitFor(t, relayed)
}

func TestSession_Read_Filter_Rewrites_Body(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := domain.NewRoom()
	other := mocks.NewMockParticipant(ctrl)
	room.Join(other)
	s, client, reader := newPipeSession(t, room, WithFilter(upperFilter{}))

	relayed := make(chan struct{})
	other.EXPECT().Deliver(domain.Joined(pipeEndpoint))
	other.EXPECT().Deliver("Client pipe: HELLO\n").Do(func(string) { close(relayed) })
	other.EXPECT().Deliver(domain.Left(pipeEndpoint)).AnyTimes()

	s.Start()
	req.Equal(domain.Welcome(pipeEndpoint), readLine(t, client, reader))

	_, err := io.WriteString(client, "hello\n")
	req.NoError(err)
	waitFor(t, relayed)
}

type upperFilter struct{}

func (upperFilter) Filter(_, body string) string { return strings.ToUpper(body) }

func TestSession_Deliver_Keeps_Order(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom()
	s, client, reader := newPipeSession(t, room)
	s.Start()
	req.Equal(domain.Welcome(pipeEndpoint), readLine(t, client, reader))

	// When many lines are delivered while a write is already in flight
	const count = 200
	go func() {
		for i := 0; i < count; i++ {
			s.Deliver(fmt.Sprintf("line-%03d\n", i))
		}
	}()

	// Then the client reads them in delivery order
	for i := 0; i < count; i++ {
		req.Equal(fmt.Sprintf("line-%03d\n", i), readLine(t, client, reader))
	}
	req.NoError(s.Flush(context.Background()))
	req.Zero(s.Pending())
}

func TestSession_Flush_Times_Out_On_Stalled_Peer(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom()
	s, _, _ := newPipeSession(t, room)

	// Given a client that never reads
	s.Start()
	s.Deliver("one\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Then the queue cannot drain
	req.ErrorIs(s.Flush(ctx), context.DeadlineExceeded)
	req.Equal(2, s.Pending())
}

func TestSession_EOF_Announces_Leave(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := domain.NewRoom()
	other := mocks.NewMockParticipant(ctrl)
	room.Join(other)
	events := make(chan event.SessionEvent, 4)
	s, client, reader := newPipeSession(t, room, WithEvents(events))

	left := make(chan struct{})
	gomock.InOrder(
		other.EXPECT().Deliver(domain.Joined(pipeEndpoint)),
		other.EXPECT().Deliver(domain.Left(pipeEndpoint)).Do(func(string) { close(left) }).Times(1),
	)

	s.Start()
	req.Equal(domain.Welcome(pipeEndpoint), readLine(t, client, reader))
	req.NoError(s.Flush(context.Background()))

	// When the client goes away, with half a line unsent
	_, err := io.WriteString(client, "partial")
	req.NoError(err)
	req.NoError(client.Close())

	// Then the others are told exactly once and the session left the room
	waitFor(t, left)
	waitFor(t, s.Done())
	req.Equal(1, room.Len())

	opened := (<-events).(event.SessionOpened)
	req.Equal(s.ID(), opened.ID)
	closed := (<-events).(event.SessionClosed)
	req.Equal(event.ReasonPeerClosed, closed.Reason)
	req.Equal(0, closed.LinesIn)
	req.Equal(1, closed.LinesOut)

	// And later deliveries are dropped
	s.Deliver("late\n")
	req.Zero(s.Pending())
}

func TestSession_Abort_Leaves_Silently(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := domain.NewRoom()
	other := mocks.NewMockParticipant(ctrl)
	room.Join(other)
	events := make(chan event.SessionEvent, 4)
	s, client, reader := newPipeSession(t, room, WithEvents(events))

	// Given the only expected line is the join announcement
	other.EXPECT().Deliver(domain.Joined(pipeEndpoint)).Times(1)

	s.Start()
	req.Equal(domain.Welcome(pipeEndpoint), readLine(t, client, reader))

	// When the server aborts the session
	s.Abort(errors.ErrServerShutdown)

	// Then it leaves the room without announcing it
	waitFor(t, s.Done())
	req.Equal(1, room.Len())

	<-events
	closed := (<-events).(event.SessionClosed)
	req.Equal(event.ReasonShutdown, closed.Reason)
}

func TestSession_Write_Fault_Leaves_Room(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := domain.NewRoom()
	other := mocks.NewMockParticipant(ctrl)
	room.Join(other)
	events := make(chan event.SessionEvent, 4)

	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	s := NewSession(failingWriteConn{Conn: server}, room, log, WithEvents(events))

	left := make(chan struct{})
	gomock.InOrder(
		other.EXPECT().Deliver(domain.Joined(pipeEndpoint)),
		other.EXPECT().Deliver(domain.Left(pipeEndpoint)).Do(func(string) { close(left) }).Times(1),
	)

	// When the welcome line cannot be written
	s.Start()

	// Then the session leaves the room and the read path ends too
	waitFor(t, left)
	waitFor(t, s.Done())
	req.Equal(1, room.Len())

	<-events
	closed := (<-events).(event.SessionClosed)
	req.Equal(event.ReasonWriteFault, closed.Reason)
	req.Zero(s.Pending())
}

func TestSession_Overflow_Disconnects(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := domain.NewRoom()
	other := mocks.NewMockParticipant(ctrl)
	room.Join(other)
	events := make(chan event.SessionEvent, 4)
	s, _, _ := newPipeSession(t, room, WithMaxPending(2), WithEvents(events))

	left := make(chan struct{})
	gomock.InOrder(
		other.EXPECT().Deliver(domain.Joined(pipeEndpoint)),
		other.EXPECT().Deliver(domain.Left(pipeEndpoint)).Do(func(string) { close(left) }).Times(1),
	)

	// Given a client that never reads, the welcome line stays in flight
	s.Start()
	s.Deliver("one\n")
	req.Equal(2, s.Pending())

	// When one more line overflows the queue
	s.Deliver("two\n")

	// Then the session is disconnected
	waitFor(t, left)
	waitFor(t, s.Done())
	req.Equal(1, room.Len())

	<-events
	closed := (<-events).(event.SessionClosed)
	req.Equal(event.ReasonOverflow, closed.Reason)
}
