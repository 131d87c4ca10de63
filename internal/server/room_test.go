package server

import (
	"fmt"
	"testing"

	"github.com/fomovoice/voice-club/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_chatBuffer(t *testing.T) {
	t.Run("keeps messages in order below capacity", func(t *testing.T) {
		b := newChatBuffer(5)
		for i := 0; i < 3; i++ {
			b.append(types.ChatMessage{Id: fmt.Sprintf("msg-%d", i)})
		}

		assert.Equal(t, 3, b.len(), "expected 3 buffered messages")
		msgs := b.last(5)
		assert.Len(t, msgs, 3, "expected last to cap at buffered count")
		assert.Equal(t, "msg-0", msgs[0].Id, "expected oldest message first")
		assert.Equal(t, "msg-2", msgs[2].Id, "expected newest message last")
	})

	t.Run("evicts oldest entries at capacity", func(t *testing.T) {
		b := newChatBuffer(100)
		for i := 0; i < 150; i++ {
			b.append(types.ChatMessage{Id: fmt.Sprintf("msg-%d", i)})
		}

		assert.Equal(t, 100, b.len(), "expected buffer to stay at capacity")
		msgs := b.last(100)
		assert.Len(t, msgs, 100)
		assert.Equal(t, "msg-50", msgs[0].Id, "expected first 50 messages evicted")
		assert.Equal(t, "msg-149", msgs[99].Id, "expected newest message retained")
	})

	t.Run("last n returns the n newest", func(t *testing.T) {
		b := newChatBuffer(10)
		for i := 0; i < 10; i++ {
			b.append(types.ChatMessage{Id: fmt.Sprintf("msg-%d", i)})
		}

		msgs := b.last(3)
		assert.Len(t, msgs, 3)
		assert.Equal(t, "msg-7", msgs[0].Id)
		assert.Equal(t, "msg-9", msgs[2].Id)
	})
}

func Test_roomSnapshot(t *testing.T) {
	r := newRoom("session-1")
	r.participants["u1"] = &types.Participant{UserId: "u1", Username: "alice", Role: types.RoleSpeaker}
	r.participants["u2"] = &types.Participant{UserId: "u2", Username: "bob", Role: types.RoleListener}
	r.speakers["u1"] = struct{}{}
	r.listeners["u2"] = struct{}{}
	r.handRaised["u2"] = struct{}{}

	for i := 0; i < 60; i++ {
		r.chat.append(types.ChatMessage{Id: fmt.Sprintf("msg-%d", i)})
	}

	state := r.snapshot()
	assert.Equal(t, "session-1", state.SessionId)
	assert.Len(t, state.Participants, 2)
	assert.ElementsMatch(t, []string{"u1"}, state.Speakers)
	assert.ElementsMatch(t, []string{"u2"}, state.Listeners)
	assert.ElementsMatch(t, []string{"u2"}, state.HandRaised)
	assert.Len(t, state.ChatMessages, snapshotChatSize, "expected snapshot capped to recent history")
	assert.Equal(t, "msg-10", state.ChatMessages[0].Id, "expected snapshot to hold the newest messages")

	stats := state.Stats
	assert.Equal(t, 2, stats.TotalParticipants)
	assert.Equal(t, 1, stats.SpeakersCount)
	assert.Equal(t, 1, stats.ListenersCount)
	assert.Equal(t, 1, stats.HandRaisedCount)
}

func Test_roomStats_derivedFromSets(t *testing.T) {
	r := newRoom("session-1")
	assert.Equal(t, types.RoomStats{}, r.stats(), "expected zero stats for empty room")

	r.participants["u1"] = &types.Participant{UserId: "u1"}
	r.speakers["u1"] = struct{}{}
	assert.Equal(t, 1, r.stats().TotalParticipants)
	assert.Equal(t, 1, r.stats().SpeakersCount)

	delete(r.speakers, "u1")
	r.listeners["u1"] = struct{}{}
	assert.Equal(t, 0, r.stats().SpeakersCount, "expected stats to track set changes")
	assert.Equal(t, 1, r.stats().ListenersCount)
}
