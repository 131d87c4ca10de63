// Package xp records experience awards for live-session activity. Awards are
// side effects of moderation and queue actions; failures are logged by the
// caller, never surfaced to the user-facing operation.
package xp

import (
	"fmt"

	"github.com/fomovoice/voice-club/internal/database"
)

// Award amounts for live-session actions.
const (
	XPHandRaised  = 20
	XPSpeechGiven = 100
)

const (
	ActionHandRaised  = "hand_raised"
	ActionSpeechGiven = "speech_given"
)

type Awarder interface {
	Award(userId, action, sessionId string, amount int) error
}

type Service struct {
	db database.ClubRepository
}

func NewService(db database.ClubRepository) *Service {
	return &Service{db: db}
}

// Award records an XP transaction and adds the amount to the user's total.
func (s *Service) Award(userId, action, sessionId string, amount int) error {
	tx := database.XPTransaction{
		UserId:    userId,
		Action:    action,
		XPEarned:  amount,
		SessionId: sessionId,
	}

	if err := s.db.CreateXPTransaction(tx); err != nil {
		return fmt.Errorf("create xp transaction: %w", err)
	}

	if err := s.db.AddUserXP(userId, amount); err != nil {
		return fmt.Errorf("add user xp: %w", err)
	}

	return nil
}
