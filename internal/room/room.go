// Package room implements the room manager: presence tracking for the
// ephemeral set of connections attached to a conversation, broadcast
// fan-out, at-most-one in-flight generation per room, and a heartbeat
// sweep. Broadcasts copy the membership snapshot under lock before
// sending, so no lock is held across socket I/O.
package room

import (
	"log/slog"
	"sync"

	"github.com/hrygo/loomchat/internal/errs"
)

// Frame is one room-internal message, independent of whatever wire
// framing the transport layer wraps it in.
type Frame struct {
	Type           string
	ConversationID string
	Data           any
}

// Connection is the narrow surface the room manager needs from a live
// client socket.
type Connection interface {
	ID() string
	Send(Frame) error
	Ping() error
	Close() error
}

type connState struct {
	mu           sync.Mutex
	conn         Connection
	userID       string
	rooms        map[string]bool
	awaitingPong bool
}

// Manager tracks every registered connection and every room's membership
// and generation slot.
type Manager struct {
	mu    sync.Mutex
	conns map[string]*connState
	rooms map[string]*room
}

type room struct {
	mu       sync.Mutex
	members  map[string]*connState // connID -> state
	presence map[string]int        // userID -> live connection count in this room

	generatingUserID string
	generatingMsgID  string
}

func newRoom() *room {
	return &room{members: make(map[string]*connState), presence: make(map[string]int)}
}

// NewManager builds an empty room Manager.
func NewManager() *Manager {
	return &Manager{conns: make(map[string]*connState), rooms: make(map[string]*room)}
}

// Register adds a connection to the manager. A user may hold multiple
// live connections at once.
func (m *Manager) Register(conn Connection, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID()] = &connState{conn: conn, userID: userID, rooms: make(map[string]bool)}
}

// Unregister removes a connection, leaving every room it was joined to.
func (m *Manager) Unregister(conn Connection) {
	m.mu.Lock()
	cs, ok := m.conns[conn.ID()]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, conn.ID())
	m.mu.Unlock()

	cs.mu.Lock()
	joined := make([]string, 0, len(cs.rooms))
	for convID := range cs.rooms {
		joined = append(joined, convID)
	}
	cs.mu.Unlock()

	for _, convID := range joined {
		m.Leave(convID, conn)
	}
}

func (m *Manager) roomFor(convID string, create bool) *room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[convID]
	if !ok {
		if !create {
			return nil
		}
		r = newRoom()
		m.rooms[convID] = r
	}
	return r
}

// Join attaches conn to convID's room, broadcasting user_joined to the
// rest of the room the first time this user has any connection present;
// additional connections for the same user do not repeat the broadcast.
func (m *Manager) Join(convID string, conn Connection) error {
	m.mu.Lock()
	cs, ok := m.conns[conn.ID()]
	m.mu.Unlock()
	if !ok {
		return errs.New(errs.Validation, "connection not registered")
	}

	r := m.roomFor(convID, true)
	r.mu.Lock()
	r.members[conn.ID()] = cs
	r.presence[cs.userID]++
	firstForUser := r.presence[cs.userID] == 1
	members := snapshotMembers(r, conn.ID())
	r.mu.Unlock()

	cs.mu.Lock()
	cs.rooms[convID] = true
	cs.mu.Unlock()

	if firstForUser {
		broadcastTo(members, Frame{Type: "user_joined", ConversationID: convID, Data: cs.userID})
	}
	return nil
}

// Leave detaches conn from convID's room, broadcasting user_left once the
// user's last connection in the room is gone.
func (m *Manager) Leave(convID string, conn Connection) {
	r := m.roomFor(convID, false)
	if r == nil {
		return
	}

	r.mu.Lock()
	cs, ok := r.members[conn.ID()]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, conn.ID())
	r.presence[cs.userID]--
	lastForUser := r.presence[cs.userID] <= 0
	if lastForUser {
		delete(r.presence, cs.userID)
	}
	empty := len(r.members) == 0
	members := snapshotMembers(r, "")
	r.mu.Unlock()

	cs.mu.Lock()
	delete(cs.rooms, convID)
	cs.mu.Unlock()

	if lastForUser {
		broadcastTo(members, Frame{Type: "user_left", ConversationID: convID, Data: cs.userID})
	}

	if empty {
		m.mu.Lock()
		delete(m.rooms, convID)
		m.mu.Unlock()
	}
}

// Broadcast fans a frame out to every member of convID's room except the
// optionally-given connection. Dead/closing sockets are skipped silently.
func (m *Manager) Broadcast(convID string, frame Frame, except Connection) {
	r := m.roomFor(convID, false)
	if r == nil {
		return
	}
	var exceptID string
	if except != nil {
		exceptID = except.ID()
	}
	r.mu.Lock()
	members := snapshotMembers(r, exceptID)
	r.mu.Unlock()

	broadcastTo(members, frame)
}

func snapshotMembers(r *room, exceptID string) []*connState {
	out := make([]*connState, 0, len(r.members))
	for id, cs := range r.members {
		if id == exceptID {
			continue
		}
		out = append(out, cs)
	}
	return out
}

func broadcastTo(members []*connState, frame Frame) {
	for _, cs := range members {
		if err := cs.conn.Send(frame); err != nil {
			slog.Warn("room: dropping unreachable connection during broadcast", "connId", cs.conn.ID(), "error", err)
		}
	}
}

// StartGeneration records an in-flight generation for msgId if the room
// has no generation already running, broadcasting ai_generating on
// success. At most one generation may be in flight per room.
func (m *Manager) StartGeneration(convID, userID, msgID string) bool {
	r := m.roomFor(convID, true)
	r.mu.Lock()
	if r.generatingMsgID != "" {
		r.mu.Unlock()
		return false
	}
	r.generatingUserID = userID
	r.generatingMsgID = msgID
	members := snapshotMembers(r, "")
	r.mu.Unlock()

	broadcastTo(members, Frame{Type: "ai_generating", ConversationID: convID, Data: msgID})
	return true
}

// EndGeneration clears convID's generation slot and broadcasts
// ai_finished.
func (m *Manager) EndGeneration(convID string) {
	r := m.roomFor(convID, false)
	if r == nil {
		return
	}
	r.mu.Lock()
	msgID := r.generatingMsgID
	r.generatingUserID = ""
	r.generatingMsgID = ""
	members := snapshotMembers(r, "")
	r.mu.Unlock()

	if msgID == "" {
		return
	}
	broadcastTo(members, Frame{Type: "ai_finished", ConversationID: convID, Data: msgID})
}

// Presence reports how many live connections the given user has in
// convID's room (0 if none or if the room doesn't exist).
func (m *Manager) Presence(convID, userID string) int {
	r := m.roomFor(convID, false)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presence[userID]
}
