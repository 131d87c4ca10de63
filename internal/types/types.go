package types

import (
	"time"
)

// Participant roles within a live room.
const (
	RoleListener = "listener"
	RoleSpeaker  = "speaker"
)

// Account role tiers authorized to moderate hand-raise queues.
const (
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleOwner     = "owner"
)

type User struct {
	Id            string    `json:"id"`
	Username      string    `json:"username"`
	Name          string    `json:"name,omitempty"`
	EmailAddress  string    `json:"email_address,omitempty"`
	Password      string    `json:"-"`
	Avatar        string    `json:"avatar,omitempty"`
	Role          string    `json:"role,omitempty"`
	Level         int       `json:"level,omitempty"`
	PriorityScore float64   `json:"priority_score,omitempty"`
	XPTotal       int       `json:"xp_total,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

type Session struct {
	Id               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	HostId           string     `json:"host_id"`
	Status           string     `json:"status"`
	StreamKey        string     `json:"stream_key,omitempty"`
	CurrentSpeakerId string     `json:"current_speaker_id,omitempty"`
	ScheduledStart   *time.Time `json:"scheduled_start,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at,omitempty"`
}

type Participant struct {
	UserId     string    `json:"user_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	JoinedAt   time.Time `json:"joined_at"`
	IsMuted    bool      `json:"is_muted"`
	IsSpeaking bool      `json:"is_speaking"`
}

type ChatMessage struct {
	Id        string    `json:"id"`
	UserId    string    `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomStats is always derived from the live set sizes, never cached.
type RoomStats struct {
	TotalParticipants int `json:"total_participants"`
	SpeakersCount     int `json:"speakers_count"`
	ListenersCount    int `json:"listeners_count"`
	HandRaisedCount   int `json:"hand_raised_count"`
}

type QueueEntry struct {
	HandRaiseId   string    `json:"hand_raise_id"`
	UserId        string    `json:"user_id"`
	Username      string    `json:"username"`
	Name          string    `json:"name,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Role          string    `json:"role,omitempty"`
	Level         int       `json:"level,omitempty"`
	PriorityScore float64   `json:"priority_score"`
	RaisedAt      time.Time `json:"raised_at"`
	QueuePosition int       `json:"queue_position"`
}
