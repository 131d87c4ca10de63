package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClientEvent(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected ClientEvent
	}{
		{
			name:     "chat",
			raw:      `{"type":"chat","message":"hello"}`,
			expected: ChatEvent{Message: "hello"},
		},
		{
			name:     "reaction",
			raw:      `{"type":"reaction","emoji":"🔥"}`,
			expected: ReactionEvent{Emoji: "🔥"},
		},
		{
			name:     "hand raise with action",
			raw:      `{"type":"hand_raise","action":"lower"}`,
			expected: HandRaiseEvent{Action: ActionLower},
		},
		{
			name:     "hand raise defaults to raise",
			raw:      `{"type":"hand_raise"}`,
			expected: HandRaiseEvent{Action: ActionRaise},
		},
		{
			name:     "promote",
			raw:      `{"type":"promote","target_user_id":"u2"}`,
			expected: PromoteEvent{TargetUserId: "u2"},
		},
		{
			name:     "demote",
			raw:      `{"type":"demote","target_user_id":"u2"}`,
			expected: DemoteEvent{TargetUserId: "u2"},
		},
		{
			name:     "ping",
			raw:      `{"type":"ping"}`,
			expected: PingEvent{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseClientEvent([]byte(tc.raw))
			assert.NoError(t, err, "expected no error parsing valid event")
			assert.Equal(t, tc.expected, event)
		})
	}
}

func TestParseClientEvent_unknownType(t *testing.T) {
	event, err := ParseClientEvent([]byte(`{"type":"mute_all"}`))
	assert.Nil(t, event)

	var unknown *ErrUnknownType
	assert.ErrorAs(t, err, &unknown, "expected unknown type error")
	assert.Equal(t, "mute_all", unknown.Type)
}

func TestParseClientEvent_malformed(t *testing.T) {
	event, err := ParseClientEvent([]byte(`{"type":`))
	assert.Nil(t, event)
	assert.Error(t, err)

	var unknown *ErrUnknownType
	assert.False(t, errors.As(err, &unknown), "expected malformed JSON to not be reported as unknown type")
}
