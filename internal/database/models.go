package database

import (
	"database/sql"
	"time"
)

const (
	SessionScheduled = "scheduled"
	SessionLive      = "live"
	SessionEnded     = "ended"
)

const (
	HandRaisePending  = "pending"
	HandRaiseApproved = "approved"
	HandRaiseDeclined = "declined"
	HandRaiseExpired  = "expired"
)

type User struct {
	Id            string
	Username      string
	Name          string
	EmailAddress  string
	PasswordHash  string
	Avatar        string
	Role          string
	Level         int
	PriorityScore float64
	XPTotal       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Session struct {
	Id               string
	Title            string
	Description      string
	HostId           string
	Status           string
	StreamKey        string
	CurrentSpeakerId sql.NullString
	ScheduledStart   sql.NullTime
	StartedAt        sql.NullTime
	EndedAt          sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type HandRaiseEvent struct {
	Id                 string
	UserId             string
	SessionId          string
	Status             string
	RaisedAt           time.Time
	ApprovedAt         sql.NullTime
	ApprovedBy         sql.NullString
	SpeechStartedAt    sql.NullTime
	SpeechEndedAt      sql.NullTime
	SpeechDurationSecs int
	SupportCount       int
	QueuePosition      int
	PriorityScore      float64
}

type XPTransaction struct {
	Id        string
	UserId    string
	Action    string
	XPEarned  int
	SessionId string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	Name         string
	EmailAddress string
	PasswordHash string
}

type CreateSessionParams struct {
	Title          string
	Description    string
	HostId         string
	StreamKey      string
	ScheduledStart sql.NullTime
}

type CreateHandRaiseParams struct {
	UserId        string
	SessionId     string
	QueuePosition int
	PriorityScore float64
}

type ListSessionsParams struct {
	Status string
	HostId string
	Limit  int
}
