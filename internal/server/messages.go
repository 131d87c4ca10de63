package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fomovoice/voice-club/internal/types"
)

// Inbound message types accepted over the live room transport.
const (
	TypeChat      = "chat"
	TypeReaction  = "reaction"
	TypeHandRaise = "hand_raise"
	TypePromote   = "promote"
	TypeDemote    = "demote"
	TypePing      = "ping"
)

// Outbound event types.
const (
	TypeRoomState        = "room_state"
	TypeUserJoined       = "user_joined"
	TypeUserLeft         = "user_left"
	TypeChatMessage      = "chat_message"
	TypeHandRaisedUpdate = "hand_raised_update"
	TypeUserPromoted     = "user_promoted"
	TypeUserDemoted      = "user_demoted"
	TypePong             = "pong"
	TypeSessionEnded     = "session_ended"
	TypeError            = "error"
)

const (
	ActionRaise = "raise"
	ActionLower = "lower"
)

// ClientEvent is the decoded form of an inbound transport message. Exactly one
// variant per wire type tag.
type ClientEvent interface {
	clientEvent()
}

type ChatEvent struct {
	Message string
}

type ReactionEvent struct {
	Emoji string
}

type HandRaiseEvent struct {
	Action string
}

type PromoteEvent struct {
	TargetUserId string
}

type DemoteEvent struct {
	TargetUserId string
}

type PingEvent struct{}

func (ChatEvent) clientEvent()      {}
func (ReactionEvent) clientEvent()  {}
func (HandRaiseEvent) clientEvent() {}
func (PromoteEvent) clientEvent()   {}
func (DemoteEvent) clientEvent()    {}
func (PingEvent) clientEvent()      {}

type clientMessage struct {
	Type         string `json:"type"`
	Message      string `json:"message,omitempty"`
	Emoji        string `json:"emoji,omitempty"`
	Action       string `json:"action,omitempty"`
	TargetUserId string `json:"target_user_id,omitempty"`
}

// ErrUnknownType is reported for messages whose type tag is not one of the
// known variants. Unlike malformed JSON, these are answered with an error
// event so clients learn they are speaking a newer (or wrong) dialect.
type ErrUnknownType struct {
	Type string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// ParseClientEvent decodes a raw transport frame into its typed variant.
func ParseClientEvent(raw []byte) (ClientEvent, error) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}

	switch msg.Type {
	case TypeChat:
		return ChatEvent{Message: msg.Message}, nil
	case TypeReaction:
		return ReactionEvent{Emoji: msg.Emoji}, nil
	case TypeHandRaise:
		action := msg.Action
		if action == "" {
			action = ActionRaise
		}
		return HandRaiseEvent{Action: action}, nil
	case TypePromote:
		return PromoteEvent{TargetUserId: msg.TargetUserId}, nil
	case TypeDemote:
		return DemoteEvent{TargetUserId: msg.TargetUserId}, nil
	case TypePing:
		return PingEvent{}, nil
	default:
		return nil, &ErrUnknownType{Type: msg.Type}
	}
}

// ServerMessage is a broadcast event delivered to room participants. Fields
// are populated per event type; unset fields are omitted on the wire.
type ServerMessage struct {
	Type         string              `json:"type"`
	SessionId    string              `json:"session_id,omitempty"`
	UserId       string              `json:"user_id,omitempty"`
	Username     string              `json:"username,omitempty"`
	Role         string              `json:"role,omitempty"`
	Action       string              `json:"action,omitempty"`
	Emoji        string              `json:"emoji,omitempty"`
	Error        string              `json:"error,omitempty"`
	Message      *types.ChatMessage  `json:"message,omitempty"`
	Participants []types.Participant `json:"participants,omitempty"`
	Speakers     []string            `json:"speakers,omitempty"`
	Listeners    []string            `json:"listeners,omitempty"`
	HandRaised   []string            `json:"hand_raised,omitempty"`
	ChatMessages []types.ChatMessage `json:"chat_messages,omitempty"`
	Stats        *types.RoomStats    `json:"stats,omitempty"`
	Timestamp    time.Time           `json:"timestamp,omitempty"`
}

func newRoomState(state *RoomState) *ServerMessage {
	return &ServerMessage{
		Type:         TypeRoomState,
		Participants: state.Participants,
		Speakers:     state.Speakers,
		Listeners:    state.Listeners,
		HandRaised:   state.HandRaised,
		ChatMessages: state.ChatMessages,
		Stats:        &state.Stats,
		Timestamp:    Now(),
	}
}

func newUserJoined(userId, username, role string, stats types.RoomStats) *ServerMessage {
	return &ServerMessage{
		Type:      TypeUserJoined,
		UserId:    userId,
		Username:  username,
		Role:      role,
		Stats:     &stats,
		Timestamp: Now(),
	}
}

func newUserLeft(userId string, stats types.RoomStats) *ServerMessage {
	return &ServerMessage{
		Type:      TypeUserLeft,
		UserId:    userId,
		Stats:     &stats,
		Timestamp: Now(),
	}
}

func newChatMessage(msg types.ChatMessage) *ServerMessage {
	return &ServerMessage{
		Type:      TypeChatMessage,
		Message:   &msg,
		Timestamp: Now(),
	}
}

func newReaction(userId, username, emoji string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeReaction,
		UserId:    userId,
		Username:  username,
		Emoji:     emoji,
		Timestamp: Now(),
	}
}

func newHandRaisedUpdate(userId, action string, handRaised []string, stats types.RoomStats) *ServerMessage {
	return &ServerMessage{
		Type:       TypeHandRaisedUpdate,
		UserId:     userId,
		Action:     action,
		HandRaised: handRaised,
		Stats:      &stats,
		Timestamp:  Now(),
	}
}

func newRoleChange(eventType, userId string, stats types.RoomStats) *ServerMessage {
	return &ServerMessage{
		Type:      eventType,
		UserId:    userId,
		Stats:     &stats,
		Timestamp: Now(),
	}
}

// NewSessionEnded announces a lifecycle transition driven from outside the
// room, so it is constructed by the REST layer rather than the manager.
func NewSessionEnded(sessionId string) *ServerMessage {
	return &ServerMessage{Type: TypeSessionEnded, SessionId: sessionId, Timestamp: Now()}
}

func newPong() *ServerMessage {
	return &ServerMessage{Type: TypePong, Timestamp: Now()}
}

func newError(text string) *ServerMessage {
	return &ServerMessage{Type: TypeError, Error: text, Timestamp: Now()}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
