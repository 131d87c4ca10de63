package handraise

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fomovoice/voice-club/internal/database"
	"github.com/fomovoice/voice-club/internal/testutil"
	"github.com/fomovoice/voice-club/internal/types"
	"github.com/fomovoice/voice-club/internal/xp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAwarder struct {
	mock.Mock
}

func (m *mockAwarder) Award(userId, action, sessionId string, amount int) error {
	args := m.Called(userId, action, sessionId, amount)
	return args.Error(0)
}

func newTestService(t *testing.T, db database.ClubRepository, awarder xp.Awarder, queueLimit int) *Service {
	return NewService(db, awarder, testutil.TestLogger(t), queueLimit)
}

func liveSession(id string) database.Session {
	return database.Session{Id: id, HostId: "host", Status: database.SessionLive}
}

func TestRaiseHand(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := &database.MockClubRepository{}
		defer db.AssertExpectations(t)
		awarder := &mockAwarder{}
		defer awarder.AssertExpectations(t)

		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetAccountById", "u1").Return(database.User{Id: "u1", PriorityScore: 72.5}, nil)
		db.On("GetPendingHandRaise", "s1", "u1").Return(database.HandRaiseEvent{}, sql.ErrNoRows)
		db.On("CountPendingHandRaises", "s1").Return(2, nil)
		db.On("CreateHandRaise", database.CreateHandRaiseParams{
			UserId:        "u1",
			SessionId:     "s1",
			QueuePosition: 3,
			PriorityScore: 72.5,
		}).Return(database.HandRaiseEvent{
			Id:            "hr1",
			UserId:        "u1",
			SessionId:     "s1",
			Status:        database.HandRaisePending,
			QueuePosition: 3,
			PriorityScore: 72.5,
		}, nil)
		awarder.On("Award", "u1", xp.ActionHandRaised, "s1", xp.XPHandRaised).Return(nil)

		svc := newTestService(t, db, awarder, 10)
		receipt, err := svc.RaiseHand("s1", "u1")
		assert.NoError(t, err)
		assert.Equal(t, "hr1", receipt.HandRaiseId)
		assert.Equal(t, 3, receipt.QueuePosition, "expected position to be insertion order")
		assert.Equal(t, 72.5, receipt.PriorityScore)
		assert.Equal(t, xp.XPHandRaised, receipt.XPEarned)
	})

	t.Run("zero priority falls back to default", func(t *testing.T) {
		db := &database.MockClubRepository{}
		awarder := &mockAwarder{}
		awarder.On("Award", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetAccountById", "u1").Return(database.User{Id: "u1"}, nil)
		db.On("GetPendingHandRaise", "s1", "u1").Return(database.HandRaiseEvent{}, sql.ErrNoRows)
		db.On("CountPendingHandRaises", "s1").Return(0, nil)
		db.On("CreateHandRaise", mock.MatchedBy(func(p database.CreateHandRaiseParams) bool {
			return p.PriorityScore == defaultPriorityScore && p.QueuePosition == 1
		})).Return(database.HandRaiseEvent{Id: "hr1", QueuePosition: 1, PriorityScore: defaultPriorityScore}, nil)

		svc := newTestService(t, db, awarder, 10)
		receipt, err := svc.RaiseHand("s1", "u1")
		assert.NoError(t, err)
		assert.Equal(t, defaultPriorityScore, receipt.PriorityScore)
	})

	t.Run("session not live", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetSessionById", "s1").Return(database.Session{Id: "s1", Status: database.SessionEnded}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.RaiseHand("s1", "u1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("session missing", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetSessionById", "s1").Return(database.Session{}, sql.ErrNoRows)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.RaiseHand("s1", "u1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already raised", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetAccountById", "u1").Return(database.User{Id: "u1"}, nil)
		db.On("GetPendingHandRaise", "s1", "u1").Return(database.HandRaiseEvent{Id: "hr0"}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.RaiseHand("s1", "u1")
		assert.ErrorIs(t, err, ErrAlreadyRaised)
		db.AssertNotCalled(t, "CreateHandRaise", mock.Anything)
	})

	t.Run("queue full", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetAccountById", "u1").Return(database.User{Id: "u1"}, nil)
		db.On("GetPendingHandRaise", "s1", "u1").Return(database.HandRaiseEvent{}, sql.ErrNoRows)
		db.On("CountPendingHandRaises", "s1").Return(2, nil)

		svc := newTestService(t, db, &mockAwarder{}, 2)
		_, err := svc.RaiseHand("s1", "u1")
		assert.ErrorIs(t, err, ErrQueueFull)
		db.AssertNotCalled(t, "CreateHandRaise", mock.Anything)
	})

	t.Run("xp failure does not fail the raise", func(t *testing.T) {
		db := &database.MockClubRepository{}
		awarder := &mockAwarder{}
		awarder.On("Award", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("xp store down"))

		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetAccountById", "u1").Return(database.User{Id: "u1", PriorityScore: 50}, nil)
		db.On("GetPendingHandRaise", "s1", "u1").Return(database.HandRaiseEvent{}, sql.ErrNoRows)
		db.On("CountPendingHandRaises", "s1").Return(0, nil)
		db.On("CreateHandRaise", mock.Anything).Return(database.HandRaiseEvent{Id: "hr1", QueuePosition: 1, PriorityScore: 50}, nil)

		svc := newTestService(t, db, awarder, 10)
		receipt, err := svc.RaiseHand("s1", "u1")
		assert.NoError(t, err, "expected xp failure to be swallowed")
		assert.NotNil(t, receipt)
	})
}

// Two users fill a limit-2 queue, a third is refused, and approving one pending
// record frees a slot for a fourth.
func TestRaiseHand_queueLimitScenario(t *testing.T) {
	db := &database.MockClubRepository{}
	awarder := &mockAwarder{}
	awarder.On("Award", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
	for _, userId := range []string{"u1", "u2", "u3", "u4"} {
		db.On("GetAccountById", userId).Return(database.User{Id: userId, PriorityScore: 50}, nil)
		db.On("GetPendingHandRaise", "s1", userId).Return(database.HandRaiseEvent{}, sql.ErrNoRows)
	}
	db.On("CreateHandRaise", mock.Anything).Return(database.HandRaiseEvent{Id: "hr", PriorityScore: 50}, nil)

	// pending count as seen by each successive raise: u1 and u2 fill the
	// queue, u3 is refused, an approval brings the count back under the limit
	db.On("CountPendingHandRaises", "s1").Return(0, nil).Once()
	db.On("CountPendingHandRaises", "s1").Return(1, nil).Once()
	db.On("CountPendingHandRaises", "s1").Return(2, nil).Once()
	db.On("CountPendingHandRaises", "s1").Return(1, nil).Once()

	svc := newTestService(t, db, awarder, 2)

	_, err := svc.RaiseHand("s1", "u1")
	assert.NoError(t, err)
	_, err = svc.RaiseHand("s1", "u2")
	assert.NoError(t, err)
	_, err = svc.RaiseHand("s1", "u3")
	assert.ErrorIs(t, err, ErrQueueFull)
	_, err = svc.RaiseHand("s1", "u4")
	assert.NoError(t, err, "expected a freed slot to admit a new raise")
}

func TestLowerHand(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := &database.MockClubRepository{}
		defer db.AssertExpectations(t)

		db.On("GetPendingHandRaise", "s1", "u1").Return(database.HandRaiseEvent{Id: "hr1"}, nil)
		db.On("UpdateHandRaiseStatus", "hr1", database.HandRaiseExpired).Return(nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		assert.NoError(t, svc.LowerHand("s1", "u1"))
	})

	t.Run("nothing pending", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetPendingHandRaise", "s1", "u1").Return(database.HandRaiseEvent{}, sql.ErrNoRows)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		assert.ErrorIs(t, svc.LowerHand("s1", "u1"), ErrNotFound)
	})
}

func TestQueue(t *testing.T) {
	t.Run("enriches and positions entries in storage order", func(t *testing.T) {
		db := &database.MockClubRepository{}

		raisedAt := time.Now().UTC()
		// repository returns entries already ordered by priority desc, raise
		// time asc
		db.On("ListPendingHandRaises", "s1").Return([]database.HandRaiseEvent{
			{Id: "hrB", UserId: "uB", PriorityScore: 90, RaisedAt: raisedAt.Add(time.Minute)},
			{Id: "hrA", UserId: "uA", PriorityScore: 50, RaisedAt: raisedAt},
			{Id: "hrC", UserId: "uC", PriorityScore: 50, RaisedAt: raisedAt.Add(2 * time.Minute)},
		}, nil)
		db.On("GetAccountById", "uB").Return(database.User{Id: "uB", Username: "bea", Level: 4}, nil)
		db.On("GetAccountById", "uA").Return(database.User{Id: "uA", Username: "ana", Level: 2}, nil)
		db.On("GetAccountById", "uC").Return(database.User{Id: "uC", Username: "cam", Level: 1}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		queue, err := svc.Queue("s1")
		assert.NoError(t, err)
		assert.Len(t, queue, 3)
		assert.Equal(t, []string{"uB", "uA", "uC"}, []string{queue[0].UserId, queue[1].UserId, queue[2].UserId})
		for i, entry := range queue {
			assert.Equal(t, i+1, entry.QueuePosition, "expected dense positions in sorted order")
		}
		assert.Equal(t, "bea", queue[0].Username)
		assert.Equal(t, 4, queue[0].Level)
	})

	t.Run("skips entries for deleted accounts", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("ListPendingHandRaises", "s1").Return([]database.HandRaiseEvent{
			{Id: "hr1", UserId: "gone"},
			{Id: "hr2", UserId: "u2"},
		}, nil)
		db.On("GetAccountById", "gone").Return(database.User{}, sql.ErrNoRows)
		db.On("GetAccountById", "u2").Return(database.User{Id: "u2", Username: "bob"}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		queue, err := svc.Queue("s1")
		assert.NoError(t, err)
		assert.Len(t, queue, 1)
		assert.Equal(t, "u2", queue[0].UserId)
		assert.Equal(t, 1, queue[0].QueuePosition)
	})
}

func TestApprove(t *testing.T) {
	moderator := database.User{Id: "mod", Role: types.RoleModerator}

	t.Run("success", func(t *testing.T) {
		db := &database.MockClubRepository{}
		defer db.AssertExpectations(t)

		startedAt := time.Now().UTC()
		db.On("GetAccountById", "mod").Return(moderator, nil)
		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetHandRaiseById", "hr1").Return(database.HandRaiseEvent{
			Id: "hr1", UserId: "u1", SessionId: "s1", Status: database.HandRaisePending,
		}, nil)
		db.On("ApproveHandRaise", "hr1", "mod").Return(database.HandRaiseEvent{
			Id: "hr1", UserId: "u1", SessionId: "s1", Status: database.HandRaiseApproved,
			SpeechStartedAt: sql.NullTime{Time: startedAt, Valid: true},
		}, nil)
		db.On("SetCurrentSpeaker", "s1", "u1").Return(nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		approval, err := svc.Approve("s1", "hr1", "mod")
		assert.NoError(t, err)
		assert.Equal(t, "u1", approval.SpeakerId)
		assert.Equal(t, startedAt, approval.SpeechStartedAt)
	})

	t.Run("non-moderator is denied", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetAccountById", "u2").Return(database.User{Id: "u2", Role: types.RoleListener}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.Approve("s1", "hr1", "u2")
		assert.ErrorIs(t, err, ErrPermissionDenied)
		db.AssertNotCalled(t, "ApproveHandRaise", mock.Anything, mock.Anything)
	})

	t.Run("unknown moderator is denied", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetAccountById", "ghost").Return(database.User{}, sql.ErrNoRows)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.Approve("s1", "hr1", "ghost")
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("speaker already active", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetAccountById", "mod").Return(moderator, nil)
		sess := liveSession("s1")
		sess.CurrentSpeakerId = sql.NullString{String: "other", Valid: true}
		db.On("GetSessionById", "s1").Return(sess, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.Approve("s1", "hr1", "mod")
		assert.ErrorIs(t, err, ErrSpeakerActive)
		db.AssertNotCalled(t, "ApproveHandRaise", mock.Anything, mock.Anything)
	})

	t.Run("hand raise from another session", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetAccountById", "mod").Return(moderator, nil)
		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetHandRaiseById", "hr1").Return(database.HandRaiseEvent{
			Id: "hr1", SessionId: "s2", Status: database.HandRaisePending,
		}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.Approve("s1", "hr1", "mod")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already processed", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetAccountById", "mod").Return(moderator, nil)
		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetHandRaiseById", "hr1").Return(database.HandRaiseEvent{
			Id: "hr1", SessionId: "s1", Status: database.HandRaiseApproved,
		}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.Approve("s1", "hr1", "mod")
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	t.Run("lost approval race", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetAccountById", "mod").Return(moderator, nil)
		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)
		db.On("GetHandRaiseById", "hr1").Return(database.HandRaiseEvent{
			Id: "hr1", SessionId: "s1", Status: database.HandRaisePending,
		}, nil)
		db.On("ApproveHandRaise", "hr1", "mod").Return(database.HandRaiseEvent{}, sql.ErrNoRows)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.Approve("s1", "hr1", "mod")
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})
}

func TestEndSpeech(t *testing.T) {
	moderator := database.User{Id: "mod", Role: types.RoleAdmin}

	t.Run("success", func(t *testing.T) {
		db := &database.MockClubRepository{}
		defer db.AssertExpectations(t)
		awarder := &mockAwarder{}
		defer awarder.AssertExpectations(t)

		startedAt := time.Now().UTC().Add(-2 * time.Minute)
		db.On("GetAccountById", "mod").Return(moderator, nil)
		db.On("GetHandRaiseById", "hr1").Return(database.HandRaiseEvent{
			Id: "hr1", UserId: "u1", SessionId: "s1", Status: database.HandRaiseApproved,
			SpeechStartedAt: sql.NullTime{Time: startedAt, Valid: true},
		}, nil)
		db.On("FinishHandRaise", "hr1", mock.MatchedBy(func(d int) bool {
			return d >= 119 && d <= 121
		})).Return(database.HandRaiseEvent{
			Id: "hr1", UserId: "u1", SessionId: "s1", Status: database.HandRaiseApproved,
			SpeechDurationSecs: 120,
		}, nil)
		db.On("ClearCurrentSpeaker", "s1").Return(nil)
		awarder.On("Award", "u1", xp.ActionSpeechGiven, "s1", xp.XPSpeechGiven).Return(nil)

		svc := newTestService(t, db, awarder, 10)
		summary, err := svc.EndSpeech("s1", "hr1", "mod")
		assert.NoError(t, err)
		assert.Equal(t, "u1", summary.SpeakerId)
		assert.Equal(t, 120, summary.DurationSecs)
		assert.Equal(t, 2, summary.DurationMinutes)
		assert.Equal(t, xp.XPSpeechGiven, summary.XPEarned)
	})

	t.Run("not an active speech", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetAccountById", "mod").Return(moderator, nil)
		db.On("GetHandRaiseById", "hr1").Return(database.HandRaiseEvent{
			Id: "hr1", SessionId: "s1", Status: database.HandRaisePending,
		}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.EndSpeech("s1", "hr1", "mod")
		assert.ErrorIs(t, err, ErrNotFound)
		db.AssertNotCalled(t, "FinishHandRaise", mock.Anything, mock.Anything)
	})

	t.Run("non-moderator is denied", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetAccountById", "u2").Return(database.User{Id: "u2", Role: types.RoleSpeaker}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		_, err := svc.EndSpeech("s1", "hr1", "u2")
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestGetCurrentSpeaker(t *testing.T) {
	t.Run("no active speaker", func(t *testing.T) {
		db := &database.MockClubRepository{}
		db.On("GetSessionById", "s1").Return(liveSession("s1"), nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		speaker, err := svc.GetCurrentSpeaker("s1")
		assert.NoError(t, err)
		assert.Nil(t, speaker)
	})

	t.Run("active speaker with hand raise", func(t *testing.T) {
		db := &database.MockClubRepository{}

		sess := liveSession("s1")
		sess.CurrentSpeakerId = sql.NullString{String: "u1", Valid: true}
		startedAt := time.Now().UTC()

		db.On("GetSessionById", "s1").Return(sess, nil)
		db.On("GetAccountById", "u1").Return(database.User{Id: "u1", Username: "alice", Level: 3}, nil)
		db.On("GetApprovedHandRaise", "s1", "u1").Return(database.HandRaiseEvent{
			Id:              "hr1",
			SpeechStartedAt: sql.NullTime{Time: startedAt, Valid: true},
		}, nil)

		svc := newTestService(t, db, &mockAwarder{}, 10)
		speaker, err := svc.GetCurrentSpeaker("s1")
		assert.NoError(t, err)
		assert.Equal(t, "u1", speaker.UserId)
		assert.Equal(t, "alice", speaker.Username)
		assert.Equal(t, "hr1", speaker.HandRaiseId)
		assert.Equal(t, startedAt, speaker.SpeechStartedAt)
	})
}

func TestGetHistory(t *testing.T) {
	db := &database.MockClubRepository{}

	approvedAt := time.Now().UTC()
	db.On("GetAccountById", "u1").Return(database.User{Id: "u1", Name: "Alice"}, nil)
	db.On("ListHandRaisesByUser", "u1", 20).Return([]database.HandRaiseEvent{
		{Id: "hr3", SessionId: "s2", Status: database.HandRaiseApproved,
			ApprovedAt: sql.NullTime{Time: approvedAt, Valid: true}, SpeechDurationSecs: 180},
		{Id: "hr2", SessionId: "s1", Status: database.HandRaiseExpired},
		{Id: "hr1", SessionId: "s1", Status: database.HandRaiseApproved,
			ApprovedAt: sql.NullTime{Time: approvedAt, Valid: true}, SpeechDurationSecs: 60},
		{Id: "hr0", SessionId: "s1", Status: database.HandRaiseDeclined},
	}, nil)

	svc := newTestService(t, db, &mockAwarder{}, 10)
	history, err := svc.GetHistory("u1", 20)
	assert.NoError(t, err)
	assert.Equal(t, "u1", history.UserId)
	assert.Equal(t, 4, history.TotalRaises)
	assert.Equal(t, 2, history.ApprovedCount)
	assert.Equal(t, 0.5, history.SuccessRate)
	assert.Len(t, history.Entries, 4)
	assert.Equal(t, 3, history.Entries[0].DurationMinutes)
	assert.NotNil(t, history.Entries[0].ApprovedAt)
	assert.Nil(t, history.Entries[1].ApprovedAt)
}
