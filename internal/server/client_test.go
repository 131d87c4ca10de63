package server

import (
	"testing"

	"github.com/fomovoice/voice-club/internal/testutil"
	"github.com/fomovoice/voice-club/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestClientQueue(t *testing.T) {
	c := NewClient(types.User{Id: "u1", Username: "alice"}, "s1", nil, nil, testutil.TestLogger(t))

	assert.True(t, c.Queue(newPong()), "expected queue to accept message with buffer space")

	// fill the remaining buffer
	for i := 0; i < cap(c.send)-1; i++ {
		assert.True(t, c.Queue(newPong()))
	}

	assert.False(t, c.Queue(newPong()), "expected queue to refuse when buffer is full")

	// draining one slot makes room again
	<-c.send
	assert.True(t, c.Queue(newPong()))
}
