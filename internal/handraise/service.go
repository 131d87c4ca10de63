// Package handraise implements the durable speak-request queue for live
// sessions. Unlike the in-memory room state, every hand raise is persisted so
// moderation decisions and XP awards survive restarts and brief disconnects.
package handraise

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fomovoice/voice-club/internal/database"
	"github.com/fomovoice/voice-club/internal/types"
	"github.com/fomovoice/voice-club/internal/xp"
)

const defaultPriorityScore = 50.0

type Service struct {
	db         database.ClubRepository
	xp         xp.Awarder
	log        *log.Logger
	queueLimit int
}

func NewService(db database.ClubRepository, awarder xp.Awarder, logger *log.Logger, queueLimit int) *Service {
	return &Service{
		db:         db,
		xp:         awarder,
		log:        logger,
		queueLimit: queueLimit,
	}
}

// RaiseReceipt is returned on a successful raise. QueuePosition is the
// insertion-order position at raise time, not the priority rank; the sorted
// rank is only computed when the queue is read.
type RaiseReceipt struct {
	HandRaiseId   string  `json:"hand_raise_id"`
	QueuePosition int     `json:"queue_position"`
	PriorityScore float64 `json:"priority_score"`
	XPEarned      int     `json:"xp_earned"`
}

// RaiseHand creates a pending hand-raise record, snapshotting the user's
// current priority score. Fails with ErrAlreadyRaised if a pending record
// already exists for this user and session, and with ErrQueueFull once the
// pending count reaches the configured limit.
func (s *Service) RaiseHand(sessionId, userId string) (*RaiseReceipt, error) {
	session, err := s.db.GetSessionById(sessionId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.Status != database.SessionLive {
		return nil, ErrNotFound
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	if _, err := s.db.GetPendingHandRaise(sessionId, userId); err == nil {
		return nil, ErrAlreadyRaised
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check pending hand raise: %w", err)
	}

	pendingCount, err := s.db.CountPendingHandRaises(sessionId)
	if err != nil {
		return nil, fmt.Errorf("count pending hand raises: %w", err)
	}
	if pendingCount >= s.queueLimit {
		return nil, ErrQueueFull
	}

	priority := user.PriorityScore
	if priority == 0 {
		priority = defaultPriorityScore
	}

	hr, err := s.db.CreateHandRaise(database.CreateHandRaiseParams{
		UserId:        userId,
		SessionId:     sessionId,
		QueuePosition: pendingCount + 1,
		PriorityScore: priority,
	})
	if err != nil {
		return nil, fmt.Errorf("create hand raise: %w", err)
	}

	s.award(userId, xp.ActionHandRaised, sessionId, xp.XPHandRaised)

	s.log.Printf("user %q raised hand in session %q (position %d, priority %.1f)",
		userId, sessionId, hr.QueuePosition, hr.PriorityScore)

	return &RaiseReceipt{
		HandRaiseId:   hr.Id,
		QueuePosition: hr.QueuePosition,
		PriorityScore: hr.PriorityScore,
		XPEarned:      xp.XPHandRaised,
	}, nil
}

// LowerHand cancels the user's pending raise, marking it expired.
func (s *Service) LowerHand(sessionId, userId string) error {
	hr, err := s.db.GetPendingHandRaise(sessionId, userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get pending hand raise: %w", err)
	}

	if err := s.db.UpdateHandRaiseStatus(hr.Id, database.HandRaiseExpired); err != nil {
		return fmt.Errorf("expire hand raise: %w", err)
	}

	return nil
}

// Queue returns the pending raises for a session ordered by priority score
// descending, ties broken by raise time ascending. This is the authoritative
// "who speaks next" ordering.
func (s *Service) Queue(sessionId string) ([]types.QueueEntry, error) {
	raises, err := s.db.ListPendingHandRaises(sessionId)
	if err != nil {
		return nil, fmt.Errorf("list pending hand raises: %w", err)
	}

	queue := make([]types.QueueEntry, 0, len(raises))
	for _, hr := range raises {
		user, err := s.db.GetAccountById(hr.UserId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// stale record for a deleted account
				continue
			}
			return nil, fmt.Errorf("get account: %w", err)
		}

		queue = append(queue, types.QueueEntry{
			HandRaiseId:   hr.Id,
			UserId:        user.Id,
			Username:      user.Username,
			Name:          user.Name,
			Avatar:        user.Avatar,
			Role:          user.Role,
			Level:         user.Level,
			PriorityScore: hr.PriorityScore,
			RaisedAt:      hr.RaisedAt,
			QueuePosition: len(queue) + 1,
		})
	}

	return queue, nil
}

// Approval is returned when a moderator approves a speaker.
type Approval struct {
	HandRaiseId     string    `json:"hand_raise_id"`
	SpeakerId       string    `json:"speaker_id"`
	SpeechStartedAt time.Time `json:"speech_started_at"`
}

// Approve grants the floor to a pending hand raise. Only moderators, admins,
// and the owner may approve, and a session can have at most one approved,
// unfinished speaker at a time.
func (s *Service) Approve(sessionId, handRaiseId, moderatorId string) (*Approval, error) {
	if err := s.checkModerator(moderatorId); err != nil {
		return nil, err
	}

	session, err := s.db.GetSessionById(sessionId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.CurrentSpeakerId.Valid {
		return nil, ErrSpeakerActive
	}

	hr, err := s.db.GetHandRaiseById(handRaiseId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hand raise: %w", err)
	}
	if hr.SessionId != sessionId {
		return nil, ErrNotFound
	}
	if hr.Status != database.HandRaisePending {
		return nil, ErrAlreadyProcessed
	}

	hr, err = s.db.ApproveHandRaise(handRaiseId, moderatorId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// lost the race with another moderator
			return nil, ErrAlreadyProcessed
		}
		return nil, fmt.Errorf("approve hand raise: %w", err)
	}

	if err := s.db.SetCurrentSpeaker(sessionId, hr.UserId); err != nil {
		return nil, fmt.Errorf("set current speaker: %w", err)
	}

	s.log.Printf("moderator %q approved speaker %q in session %q", moderatorId, hr.UserId, sessionId)

	return &Approval{
		HandRaiseId:     hr.Id,
		SpeakerId:       hr.UserId,
		SpeechStartedAt: hr.SpeechStartedAt.Time,
	}, nil
}

// SpeechSummary is returned when a moderator ends a speech.
type SpeechSummary struct {
	HandRaiseId     string `json:"hand_raise_id"`
	SpeakerId       string `json:"speaker_id"`
	DurationSecs    int    `json:"duration_secs"`
	DurationMinutes int    `json:"duration_minutes"`
	XPEarned        int    `json:"xp_earned"`
}

// EndSpeech closes out an approved speech: records the duration, clears the
// session's current speaker, and awards speech XP to the speaker.
func (s *Service) EndSpeech(sessionId, handRaiseId, moderatorId string) (*SpeechSummary, error) {
	if err := s.checkModerator(moderatorId); err != nil {
		return nil, err
	}

	hr, err := s.db.GetHandRaiseById(handRaiseId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hand raise: %w", err)
	}
	if hr.SessionId != sessionId || hr.Status != database.HandRaiseApproved {
		return nil, ErrNotFound
	}

	duration := 0
	if hr.SpeechStartedAt.Valid {
		duration = int(time.Now().UTC().Sub(hr.SpeechStartedAt.Time).Seconds())
		if duration < 0 {
			duration = 0
		}
	}

	hr, err = s.db.FinishHandRaise(handRaiseId, duration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finish hand raise: %w", err)
	}

	if err := s.db.ClearCurrentSpeaker(sessionId); err != nil {
		return nil, fmt.Errorf("clear current speaker: %w", err)
	}

	s.award(hr.UserId, xp.ActionSpeechGiven, sessionId, xp.XPSpeechGiven)

	s.log.Printf("speech ended for user %q in session %q, duration %ds", hr.UserId, sessionId, hr.SpeechDurationSecs)

	return &SpeechSummary{
		HandRaiseId:     hr.Id,
		SpeakerId:       hr.UserId,
		DurationSecs:    hr.SpeechDurationSecs,
		DurationMinutes: hr.SpeechDurationSecs / 60,
		XPEarned:        xp.XPSpeechGiven,
	}, nil
}

// CurrentSpeaker describes the session's approved, unfinished speaker.
type CurrentSpeaker struct {
	UserId          string    `json:"user_id"`
	Username        string    `json:"username"`
	Name            string    `json:"name,omitempty"`
	Avatar          string    `json:"avatar,omitempty"`
	Role            string    `json:"role,omitempty"`
	Level           int       `json:"level,omitempty"`
	HandRaiseId     string    `json:"hand_raise_id,omitempty"`
	SpeechStartedAt time.Time `json:"speech_started_at,omitempty"`
}

// GetCurrentSpeaker returns nil without error when nobody holds the floor.
func (s *Service) GetCurrentSpeaker(sessionId string) (*CurrentSpeaker, error) {
	session, err := s.db.GetSessionById(sessionId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !session.CurrentSpeakerId.Valid {
		return nil, nil
	}

	user, err := s.db.GetAccountById(session.CurrentSpeakerId.String)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	speaker := &CurrentSpeaker{
		UserId:   user.Id,
		Username: user.Username,
		Name:     user.Name,
		Avatar:   user.Avatar,
		Role:     user.Role,
		Level:    user.Level,
	}

	hr, err := s.db.GetApprovedHandRaise(sessionId, user.Id)
	if err == nil {
		speaker.HandRaiseId = hr.Id
		speaker.SpeechStartedAt = hr.SpeechStartedAt.Time
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get approved hand raise: %w", err)
	}

	return speaker, nil
}

// HistoryEntry is one past hand raise in a user's history.
type HistoryEntry struct {
	HandRaiseId     string     `json:"hand_raise_id"`
	SessionId       string     `json:"session_id"`
	Status          string     `json:"status"`
	RaisedAt        time.Time  `json:"raised_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	DurationMinutes int        `json:"speech_duration_minutes"`
	SupportCount    int        `json:"support_count"`
}

type History struct {
	UserId        string         `json:"user_id"`
	Name          string         `json:"user_name,omitempty"`
	TotalRaises   int            `json:"total_hand_raises"`
	ApprovedCount int            `json:"approved_count"`
	SuccessRate   float64        `json:"success_rate"`
	Entries       []HistoryEntry `json:"history"`
}

// GetHistory returns the user's most recent hand raises plus an aggregate
// success rate over the returned window.
func (s *Service) GetHistory(userId string, limit int) (*History, error) {
	user, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	raises, err := s.db.ListHandRaisesByUser(userId, limit)
	if err != nil {
		return nil, fmt.Errorf("list hand raises: %w", err)
	}

	history := &History{
		UserId:      user.Id,
		Name:        user.Name,
		TotalRaises: len(raises),
		Entries:     make([]HistoryEntry, 0, len(raises)),
	}

	for _, hr := range raises {
		entry := HistoryEntry{
			HandRaiseId:     hr.Id,
			SessionId:       hr.SessionId,
			Status:          hr.Status,
			RaisedAt:        hr.RaisedAt,
			DurationMinutes: hr.SpeechDurationSecs / 60,
			SupportCount:    hr.SupportCount,
		}
		if hr.ApprovedAt.Valid {
			approvedAt := hr.ApprovedAt.Time
			entry.ApprovedAt = &approvedAt
		}
		if hr.Status == database.HandRaiseApproved {
			history.ApprovedCount++
		}
		history.Entries = append(history.Entries, entry)
	}

	if history.TotalRaises > 0 {
		history.SuccessRate = float64(history.ApprovedCount) / float64(history.TotalRaises)
	}

	return history, nil
}

// checkModerator verifies the caller holds a moderation-capable role.
func (s *Service) checkModerator(moderatorId string) error {
	user, err := s.db.GetAccountById(moderatorId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPermissionDenied
		}
		return fmt.Errorf("get moderator account: %w", err)
	}

	switch user.Role {
	case types.RoleModerator, types.RoleAdmin, types.RoleOwner:
		return nil
	default:
		return ErrPermissionDenied
	}
}

// award dispatches an XP award as a fire-and-forget side effect.
func (s *Service) award(userId, action, sessionId string, amount int) {
	if s.xp == nil {
		return
	}
	if err := s.xp.Award(userId, action, sessionId, amount); err != nil {
		s.log.Printf("xp award failed for user %q action %q: %v", userId, action, err)
	}
}
