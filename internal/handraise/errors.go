package handraise

import "errors"

// Queue and moderation preconditions surface as typed errors so callers can
// tell "already handled by someone else" apart from "succeeded".
var (
	ErrNotFound         = errors.New("hand raise not found")
	ErrAlreadyRaised    = errors.New("hand already raised")
	ErrQueueFull        = errors.New("hand raise queue is full")
	ErrAlreadyProcessed = errors.New("hand raise already processed")
	ErrPermissionDenied = errors.New("moderator permission required")
	ErrSpeakerActive    = errors.New("session already has an active speaker")
)
