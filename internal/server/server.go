package server

import (
	"log"
	"sync"

	"github.com/fomovoice/voice-club/internal/stats"
	"github.com/fomovoice/voice-club/internal/types"
	"github.com/google/uuid"
)

const (
	metricActiveRooms     = "ActiveRooms"
	metricParticipants    = "ConnectedParticipants"
	metricChatMessages    = "ChatMessages"
	metricDroppedMessages = "DroppedConnections"
)

// Conn is one participant's transport attachment to a room. Queue must not
// block; it reports false when the message could not be accepted, which the
// manager treats as an implicit disconnect.
type Conn interface {
	Queue(msg *ServerMessage) bool
}

// RoomManager is the authoritative in-process registry of live rooms. All
// state mutation happens under a single mutex; per-connection delivery is
// decoupled through buffered send channels so a slow consumer never stalls a
// fan-out.
type RoomManager struct {
	log   *log.Logger
	stats stats.StatsProvider

	mu    sync.Mutex
	rooms map[string]*room
}

func NewRoomManager(logger *log.Logger, sp stats.StatsProvider) *RoomManager {
	sp.RegisterMetric(metricActiveRooms)
	sp.RegisterMetric(metricParticipants)
	sp.RegisterMetric(metricChatMessages)
	sp.RegisterMetric(metricDroppedMessages)

	return &RoomManager{
		log:   logger,
		stats: sp,
		rooms: make(map[string]*room),
	}
}

// Connect registers a participant in the session's room, creating the room if
// this is the first connection. The joining connection is sent the full room
// snapshot before anyone else learns of the join, and never sees its own
// user_joined event.
func (m *RoomManager) Connect(conn Conn, sessionId, userId, username, role string) *RoomState {
	if role != types.RoleSpeaker {
		role = types.RoleListener
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		r = newRoom(sessionId)
		m.rooms[sessionId] = r
		m.stats.Incr(metricActiveRooms)
		m.log.Printf("opened room %q", sessionId)
	}

	r.conns[userId] = conn
	r.participants[userId] = &types.Participant{
		UserId:   userId,
		Username: username,
		Role:     role,
		JoinedAt: Now(),
		IsMuted:  true,
	}

	if role == types.RoleSpeaker {
		r.speakers[userId] = struct{}{}
		delete(r.listeners, userId)
	} else {
		r.listeners[userId] = struct{}{}
		delete(r.speakers, userId)
	}

	m.stats.Incr(metricParticipants)

	state := r.snapshot()
	if !conn.Queue(newRoomState(state)) {
		m.removeLocked(r, userId)
		return state
	}

	m.broadcastLocked(r, userId, newUserJoined(userId, username, role, r.stats()))

	return state
}

// Disconnect removes the participant from every room set. The room itself is
// discarded once its connection set is empty.
func (m *RoomManager) Disconnect(sessionId, userId string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return
	}
	if _, ok := r.conns[userId]; !ok {
		return
	}

	m.removeLocked(r, userId)
}

// removeLocked drops a participant and notifies the remaining room, unloading
// the room when it becomes empty. Callers must hold the manager lock.
func (m *RoomManager) removeLocked(r *room, userId string) {
	delete(r.conns, userId)
	delete(r.participants, userId)
	delete(r.speakers, userId)
	delete(r.listeners, userId)
	delete(r.handRaised, userId)

	m.stats.Decr(metricParticipants)

	if len(r.conns) == 0 {
		delete(m.rooms, r.sessionId)
		m.stats.Decr(metricActiveRooms)
		m.log.Printf("room %q is empty, discarding", r.sessionId)
		return
	}

	m.broadcastLocked(r, "", newUserLeft(userId, r.stats()))
}

// HandleChat appends to the room's bounded chat history and echoes the message
// to the full room, sender included.
func (m *RoomManager) HandleChat(sessionId, userId, username, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return
	}

	msg := types.ChatMessage{
		Id:        uuid.NewString(),
		UserId:    userId,
		Username:  username,
		Message:   text,
		Timestamp: Now(),
	}
	r.chat.append(msg)

	m.stats.Incr(metricChatMessages)
	m.broadcastLocked(r, "", newChatMessage(msg))
}

// HandleReaction fans out an emoji reaction. Reactions are not retained.
func (m *RoomManager) HandleReaction(sessionId, userId, username, emoji string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return
	}

	m.broadcastLocked(r, "", newReaction(userId, username, emoji))
}

// HandleHandRaise toggles the participant's membership in the hand-raised set.
// Raising an already-raised hand (or lowering a lowered one) is a no-op that
// still broadcasts the current set.
func (m *RoomManager) HandleHandRaise(sessionId, userId, action string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return
	}
	if _, ok := r.participants[userId]; !ok {
		return
	}

	switch action {
	case ActionRaise:
		r.handRaised[userId] = struct{}{}
	case ActionLower:
		delete(r.handRaised, userId)
	default:
		return
	}

	m.broadcastLocked(r, "", newHandRaisedUpdate(userId, action, r.handRaisedList(), r.stats()))
}

// PromoteToSpeaker moves the participant to the speaker set and clears any
// raised hand.
func (m *RoomManager) PromoteToSpeaker(sessionId, userId string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return
	}
	p, ok := r.participants[userId]
	if !ok {
		return
	}

	delete(r.listeners, userId)
	delete(r.handRaised, userId)
	r.speakers[userId] = struct{}{}
	p.Role = types.RoleSpeaker

	m.broadcastLocked(r, "", newRoleChange(TypeUserPromoted, userId, r.stats()))
}

// DemoteToListener moves the participant back to the listener set. The
// participant stays in the room.
func (m *RoomManager) DemoteToListener(sessionId, userId string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return
	}
	p, ok := r.participants[userId]
	if !ok {
		return
	}

	delete(r.speakers, userId)
	r.listeners[userId] = struct{}{}
	p.Role = types.RoleListener

	m.broadcastLocked(r, "", newRoleChange(TypeUserDemoted, userId, r.stats()))
}

// SendToUser delivers a message to a single participant, if connected.
func (m *RoomManager) SendToUser(sessionId, userId string, msg *ServerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return
	}
	conn, ok := r.conns[userId]
	if !ok {
		return
	}

	if !conn.Queue(msg) {
		m.stats.Incr(metricDroppedMessages)
		m.removeLocked(r, userId)
	}
}

// Broadcast fans out a message to every connection in the session's room.
func (m *RoomManager) Broadcast(sessionId string, msg *ServerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return
	}

	m.broadcastLocked(r, "", msg)
}

// broadcastLocked delivers msg to every connection except excludeUserId. A
// connection that cannot accept the message is dropped as an implicit
// disconnect; the remaining sends proceed. Callers must hold the manager lock.
func (m *RoomManager) broadcastLocked(r *room, excludeUserId string, msg *ServerMessage) {
	var failed []string
	for userId, conn := range r.conns {
		if userId == excludeUserId {
			continue
		}
		if !conn.Queue(msg) {
			failed = append(failed, userId)
		}
	}

	for _, userId := range failed {
		if _, ok := r.conns[userId]; !ok {
			// already removed by a nested user_left broadcast
			continue
		}
		m.log.Printf("dropping unresponsive connection for user %q in room %q", userId, r.sessionId)
		m.stats.Incr(metricDroppedMessages)
		m.removeLocked(r, userId)
	}
}

// Stats reports current set sizes for the session's room, always derived
// live, never cached.
func (m *RoomManager) Stats(sessionId string) types.RoomStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return types.RoomStats{}
	}

	return r.stats()
}

// RoomState returns the current snapshot for a session, reporting false when
// no room is active.
func (m *RoomManager) RoomState(sessionId string) (*RoomState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return nil, false
	}

	return r.snapshot(), true
}

// ParticipantRole reports the participant's current room role.
func (m *RoomManager) ParticipantRole(sessionId, userId string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[sessionId]
	if !ok {
		return "", false
	}
	p, ok := r.participants[userId]
	if !ok {
		return "", false
	}

	return p.Role, true
}

// RoomCount reports the number of active rooms.
func (m *RoomManager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rooms)
}

// Shutdown closes every room, notifying connected participants.
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sessionId, r := range m.rooms {
		for userId, conn := range r.conns {
			conn.Queue(newError("server shutting down"))
			delete(r.conns, userId)
		}
		delete(m.rooms, sessionId)
		m.stats.Decr(metricActiveRooms)
	}
	m.log.Println("all rooms closed")
}
