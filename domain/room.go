package domain

import (
	"chat-relay/contract"
	"sync"

	"github.com/samber/lo"
)

// Room is the single broadcast domain shared by every connected session.
// It owns the membership set but never touches transport resources.
type Room struct {
	mu      sync.Mutex
	members map[contract.Participant]struct{}
}

func NewRoom() *Room {
	return &Room{members: make(map[contract.Participant]struct{})}
}

// Join adds p to the room. Returns false if p was already a member.
func (r *Room) Join(p contract.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[p]; ok {
		return false
	}
	r.members[p] = struct{}{}
	return true
}

// Leave removes p from the room. Returns false if p was not a member.
func (r *Room) Leave(p contract.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[p]; !ok {
		return false
	}
	delete(r.members, p)
	return true
}

// Deliver hands line to every member except sender.
// Members are snapshotted under the lock and called outside of it,
// so a participant may Leave from inside its own Deliver.
func (r *Room) Deliver(line string, sender contract.Participant) {
	recipients := lo.Filter(r.snapshot(), func(p contract.Participant, _ int) bool {
		return p != sender
	})
	for _, p := range recipients {
		p.Deliver(line)
	}
}

// Broadcast hands line to every member.
func (r *Room) Broadcast(line string) {
	for _, p := range r.snapshot() {
		p.Deliver(line)
	}
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) snapshot() []contract.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.members)
}
