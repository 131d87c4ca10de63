package server

import (
	"time"

	"github.com/fomovoice/voice-club/internal/types"
)

const (
	// chatHistorySize bounds the per-room chat buffer; oldest entries are
	// evicted first.
	chatHistorySize = 100
	// snapshotChatSize is how much history a joining participant receives.
	snapshotChatSize = 50
)

// room is the in-memory state of one active live session. It lives only while
// at least one participant is connected and is never persisted; the manager's
// lock guards all access.
type room struct {
	sessionId    string
	startedAt    time.Time
	participants map[string]*types.Participant
	speakers     map[string]struct{}
	listeners    map[string]struct{}
	handRaised   map[string]struct{}
	chat         *chatBuffer
	conns        map[string]Conn
}

func newRoom(sessionId string) *room {
	return &room{
		sessionId:    sessionId,
		startedAt:    Now(),
		participants: make(map[string]*types.Participant),
		speakers:     make(map[string]struct{}),
		listeners:    make(map[string]struct{}),
		handRaised:   make(map[string]struct{}),
		chat:         newChatBuffer(chatHistorySize),
		conns:        make(map[string]Conn),
	}
}

func (r *room) stats() types.RoomStats {
	return types.RoomStats{
		TotalParticipants: len(r.participants),
		SpeakersCount:     len(r.speakers),
		ListenersCount:    len(r.listeners),
		HandRaisedCount:   len(r.handRaised),
	}
}

func (r *room) handRaisedList() []string {
	raised := make([]string, 0, len(r.handRaised))
	for userId := range r.handRaised {
		raised = append(raised, userId)
	}
	return raised
}

// RoomState is the full snapshot sent to a participant on join and served by
// the room state endpoint.
type RoomState struct {
	SessionId    string              `json:"session_id"`
	Participants []types.Participant `json:"participants"`
	Speakers     []string            `json:"speakers"`
	Listeners    []string            `json:"listeners"`
	HandRaised   []string            `json:"hand_raised"`
	ChatMessages []types.ChatMessage `json:"chat_messages"`
	Stats        types.RoomStats     `json:"stats"`
	StartedAt    time.Time           `json:"started_at"`
}

func (r *room) snapshot() *RoomState {
	participants := make([]types.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		participants = append(participants, *p)
	}

	speakers := make([]string, 0, len(r.speakers))
	for userId := range r.speakers {
		speakers = append(speakers, userId)
	}

	listeners := make([]string, 0, len(r.listeners))
	for userId := range r.listeners {
		listeners = append(listeners, userId)
	}

	return &RoomState{
		SessionId:    r.sessionId,
		Participants: participants,
		Speakers:     speakers,
		Listeners:    listeners,
		HandRaised:   r.handRaisedList(),
		ChatMessages: r.chat.last(snapshotChatSize),
		Stats:        r.stats(),
		StartedAt:    r.startedAt,
	}
}

// chatBuffer is a fixed-capacity ring over chat messages. Retrieval is always
// "last n", so overwritten slots are simply lost.
type chatBuffer struct {
	entries []types.ChatMessage
	start   int
	count   int
}

func newChatBuffer(capacity int) *chatBuffer {
	return &chatBuffer{entries: make([]types.ChatMessage, capacity)}
}

func (b *chatBuffer) append(msg types.ChatMessage) {
	if b.count < len(b.entries) {
		b.entries[(b.start+b.count)%len(b.entries)] = msg
		b.count++
		return
	}

	// full: overwrite the oldest slot and advance
	b.entries[b.start] = msg
	b.start = (b.start + 1) % len(b.entries)
}

func (b *chatBuffer) len() int {
	return b.count
}

// last returns up to n most recent messages, oldest first.
func (b *chatBuffer) last(n int) []types.ChatMessage {
	if n > b.count {
		n = b.count
	}

	msgs := make([]types.ChatMessage, 0, n)
	for i := b.count - n; i < b.count; i++ {
		msgs = append(msgs, b.entries[(b.start+i)%len(b.entries)])
	}
	return msgs
}
