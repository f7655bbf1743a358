package presence

import (
	"sync"
)

type sent struct {
	target string // conn id, or "*" for broadcasts
	event  string
	data   any
}

type fakeSender struct {
	mu     sync.Mutex
	msgs   []sent
	closed []string
	coord  *Coordinator
	conns  map[string][]string
}

func newFakeSender() *fakeSender {
	return &fakeSender{conns: map[string][]string{}}
}

func (f *fakeSender) SendTo(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{target: connID, event: event, data: payload})
}

func (f *fakeSender) BroadcastAll(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{target: "*", event: event, data: payload})
}

// CloseUser tears down every tracked connection of the user the way the
// gateway does.
func (f *fakeSender) CloseUser(userID, reason string) {
	f.mu.Lock()
	f.closed = append(f.closed, userID+":"+reason)
	conns := f.conns[userID]
	delete(f.conns, userID)
	f.mu.Unlock()
	for _, connID := range conns {
		f.coord.Disconnect(userID, connID)
	}
}

func (f *fakeSender) track(userID, connID string) {
	f.mu.Lock()
	f.conns[userID] = append(f.conns[userID], connID)
	f.mu.Unlock()
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

func (f *fakeSender) find(target, event string) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, m := range f.msgs {
		if m.target == target && m.event == event {
			out = append(out, m)
		}
	}
	return out
}

type fakeRooms struct {
	mu    sync.Mutex
	calls []string
	coord *Coordinator
	// onlineAtCall records IsOnline as seen by the room side.
	onlineAtCall []bool
}

func (f *fakeRooms) Disconnect(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	f.onlineAtCall = append(f.onlineAtCall, f.coord.IsOnline(userID))
}
