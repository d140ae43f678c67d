package domain

import (
	"chat-relay/mocks"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRoom_Join_Twice_No_Duplicate(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := NewRoom()
	alice := mocks.NewMockParticipant(ctrl)

	// Given alice joins twice
	req.True(room.Join(alice))
	req.False(room.Join(alice))

	// Then she is a member only once
	req.Equal(1, room.Len())

	// And a broadcast reaches her exactly once
	alice.EXPECT().Deliver("hello\n").Times(1)
	room.Broadcast("hello\n")
}

func TestRoom_Deliver_Excludes_Sender(t *testing.T) {
	ctrl := gomock.NewController(t)
	room := NewRoom()
	sender := mocks.NewMockParticipant(ctrl)
	bob := mocks.NewMockParticipant(ctrl)
	clara := mocks.NewMockParticipant(ctrl)

	room.Join(sender)
	room.Join(bob)
	room.Join(clara)

	// Then every member but the sender receives the line
	// And the sender mock has no expectation, so any call fails the test
	bob.EXPECT().Deliver("Client a: hi\n").Times(1)
	clara.EXPECT().Deliver("Client a: hi\n").Times(1)

	// When the sender delivers to the room
	room.Deliver("Client a: hi\n", sender)
}

func TestRoom_Broadcast_Reaches_Every_Member_Once(t *testing.T) {
	ctrl := gomock.NewController(t)
	room := NewRoom()
	members := []*mocks.MockParticipant{
		mocks.NewMockParticipant(ctrl),
		mocks.NewMockParticipant(ctrl),
		mocks.NewMockParticipant(ctrl),
	}
	for _, m := range members {
		room.Join(m)
		m.EXPECT().Deliver(ShutdownNotice).Times(1)
	}

	room.Broadcast(ShutdownNotice)
}

func TestRoom_Leave_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := NewRoom()
	alice := mocks.NewMockParticipant(ctrl)
	bob := mocks.NewMockParticipant(ctrl)
	room.Join(alice)
	room.Join(bob)

	// When alice leaves twice
	req.True(room.Leave(alice))
	req.False(room.Leave(alice))

	// Then only bob is left and still receives broadcasts
	req.Equal(1, room.Len())
	bob.EXPECT().Deliver("x\n").Times(1)
	room.Broadcast("x\n")
}

func TestRoom_Leave_Unknown_Participant(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := NewRoom()

	req.False(room.Leave(mocks.NewMockParticipant(ctrl)))
	req.Zero(room.Len())
}

func TestRoom_Leave_During_Fanout(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := NewRoom()
	sender := mocks.NewMockParticipant(ctrl)
	failing := mocks.NewMockParticipant(ctrl)
	bob := mocks.NewMockParticipant(ctrl)
	clara := mocks.NewMockParticipant(ctrl)
	for _, p := range []*mocks.MockParticipant{sender, failing, bob, clara} {
		room.Join(p)
	}

	// Given a participant removing itself while being delivered to
	failing.EXPECT().Deliver("line\n").Do(func(string) {
		room.Leave(failing)
	}).Times(1)
	bob.EXPECT().Deliver("line\n").Times(1)
	clara.EXPECT().Deliver("line\n").Times(1)

	// When the sender delivers to the room
	room.Deliver("line\n", sender)

	// Then the others were still reached and the failing one is gone
	req.Equal(3, room.Len())

	// And later deliveries no longer reach it
	bob.EXPECT().Deliver("next\n").Times(1)
	clara.EXPECT().Deliver("next\n").Times(1)
	room.Deliver("next\n", sender)
}

func TestRoom_Empty_Room_Deliver(t *testing.T) {
	ctrl := gomock.NewController(t)
	room := NewRoom()

	room.Deliver("nobody\n", mocks.NewMockParticipant(ctrl))
	room.Broadcast("nobody\n")
}
