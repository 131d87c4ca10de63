package database

import (
	"github.com/stretchr/testify/mock"
)

type MockClubRepository struct {
	mock.Mock
}

func (m *MockClubRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockClubRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockClubRepository) GetAccountById(accountId string) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockClubRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockClubRepository) CreateSession(params CreateSessionParams) (Session, error) {
	args := m.Called(params)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockClubRepository) GetSessionById(sessionId string) (Session, error) {
	args := m.Called(sessionId)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockClubRepository) ListSessions(params ListSessionsParams) ([]Session, error) {
	args := m.Called(params)
	return args.Get(0).([]Session), args.Error(1)
}
func (m *MockClubRepository) UpdateSessionStatus(sessionId, status string) error {
	args := m.Called(sessionId, status)
	return args.Error(0)
}
func (m *MockClubRepository) SetCurrentSpeaker(sessionId, userId string) error {
	args := m.Called(sessionId, userId)
	return args.Error(0)
}
func (m *MockClubRepository) ClearCurrentSpeaker(sessionId string) error {
	args := m.Called(sessionId)
	return args.Error(0)
}
func (m *MockClubRepository) CreateHandRaise(params CreateHandRaiseParams) (HandRaiseEvent, error) {
	args := m.Called(params)
	return args.Get(0).(HandRaiseEvent), args.Error(1)
}
func (m *MockClubRepository) GetHandRaiseById(handRaiseId string) (HandRaiseEvent, error) {
	args := m.Called(handRaiseId)
	return args.Get(0).(HandRaiseEvent), args.Error(1)
}
func (m *MockClubRepository) GetPendingHandRaise(sessionId, userId string) (HandRaiseEvent, error) {
	args := m.Called(sessionId, userId)
	return args.Get(0).(HandRaiseEvent), args.Error(1)
}
func (m *MockClubRepository) GetApprovedHandRaise(sessionId, userId string) (HandRaiseEvent, error) {
	args := m.Called(sessionId, userId)
	return args.Get(0).(HandRaiseEvent), args.Error(1)
}
func (m *MockClubRepository) CountPendingHandRaises(sessionId string) (int, error) {
	args := m.Called(sessionId)
	return args.Int(0), args.Error(1)
}
func (m *MockClubRepository) ListPendingHandRaises(sessionId string) ([]HandRaiseEvent, error) {
	args := m.Called(sessionId)
	return args.Get(0).([]HandRaiseEvent), args.Error(1)
}
func (m *MockClubRepository) ListHandRaisesByUser(userId string, limit int) ([]HandRaiseEvent, error) {
	args := m.Called(userId, limit)
	return args.Get(0).([]HandRaiseEvent), args.Error(1)
}
func (m *MockClubRepository) UpdateHandRaiseStatus(handRaiseId, status string) error {
	args := m.Called(handRaiseId, status)
	return args.Error(0)
}
func (m *MockClubRepository) ApproveHandRaise(handRaiseId, moderatorId string) (HandRaiseEvent, error) {
	args := m.Called(handRaiseId, moderatorId)
	return args.Get(0).(HandRaiseEvent), args.Error(1)
}
func (m *MockClubRepository) FinishHandRaise(handRaiseId string, durationSecs int) (HandRaiseEvent, error) {
	args := m.Called(handRaiseId, durationSecs)
	return args.Get(0).(HandRaiseEvent), args.Error(1)
}
func (m *MockClubRepository) CreateXPTransaction(tx XPTransaction) error {
	args := m.Called(tx)
	return args.Error(0)
}
func (m *MockClubRepository) AddUserXP(userId string, amount int) error {
	args := m.Called(userId, amount)
	return args.Error(0)
}
