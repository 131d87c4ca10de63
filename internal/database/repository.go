package database

type ClubRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId string) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateSession(params CreateSessionParams) (Session, error)
	GetSessionById(sessionId string) (Session, error)
	ListSessions(params ListSessionsParams) ([]Session, error)
	UpdateSessionStatus(sessionId, status string) error
	SetCurrentSpeaker(sessionId, userId string) error
	ClearCurrentSpeaker(sessionId string) error
	CreateHandRaise(params CreateHandRaiseParams) (HandRaiseEvent, error)
	GetHandRaiseById(handRaiseId string) (HandRaiseEvent, error)
	GetPendingHandRaise(sessionId, userId string) (HandRaiseEvent, error)
	CountPendingHandRaises(sessionId string) (int, error)
	ListPendingHandRaises(sessionId string) ([]HandRaiseEvent, error)
	ListHandRaisesByUser(userId string, limit int) ([]HandRaiseEvent, error)
	GetApprovedHandRaise(sessionId, userId string) (HandRaiseEvent, error)
	UpdateHandRaiseStatus(handRaiseId, status string) error
	ApproveHandRaise(handRaiseId, moderatorId string) (HandRaiseEvent, error)
	FinishHandRaise(handRaiseId string, durationSecs int) (HandRaiseEvent, error)
	CreateXPTransaction(tx XPTransaction) error
	AddUserXP(userId string, amount int) error
}
