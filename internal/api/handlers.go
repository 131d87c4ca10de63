package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fomovoice/voice-club/internal/database"
	"github.com/fomovoice/voice-club/internal/handraise"
	"github.com/fomovoice/voice-club/internal/server"
	"github.com/fomovoice/voice-club/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type CreateSessionRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	ScheduledStart *time.Time `json:"scheduled_start"`
}

func (s *ClubApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func toUser(u database.User) types.User {
	return types.User{
		Id:            u.Id,
		Username:      u.Username,
		Name:          u.Name,
		EmailAddress:  u.EmailAddress,
		Avatar:        u.Avatar,
		Role:          u.Role,
		Level:         u.Level,
		PriorityScore: u.PriorityScore,
		XPTotal:       u.XPTotal,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toSession(sess database.Session) types.Session {
	out := types.Session{
		Id:          sess.Id,
		Title:       sess.Title,
		Description: sess.Description,
		HostId:      sess.HostId,
		Status:      sess.Status,
		StreamKey:   sess.StreamKey,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
	}
	if sess.CurrentSpeakerId.Valid {
		out.CurrentSpeakerId = sess.CurrentSpeakerId.String
	}
	if sess.ScheduledStart.Valid {
		t := sess.ScheduledStart.Time
		out.ScheduledStart = &t
	}
	if sess.StartedAt.Valid {
		t := sess.StartedAt.Time
		out.StartedAt = &t
	}
	if sess.EndedAt.Valid {
		t := sess.EndedAt.Time
		out.EndedAt = &t
	}

	return out
}

// queueError maps the hand-raise service's typed errors to API responses.
func queueError(err error) *ApiError {
	switch {
	case errors.Is(err, handraise.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, handraise.ErrPermissionDenied):
		return NewForbiddenError()
	case errors.Is(err, handraise.ErrAlreadyRaised),
		errors.Is(err, handraise.ErrQueueFull),
		errors.Is(err, handraise.ErrAlreadyProcessed),
		errors.Is(err, handraise.ErrSpeakerActive):
		return NewConflictError(err.Error())
	default:
		return NewInternalServerError(err)
	}
}

func (s *ClubApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateAccountParams{
		Username:     req.Username,
		Name:         req.Name,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	}

	newUser, err := s.db.CreateAccount(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, toUser(newUser))
}

func (s *ClubApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.createJwtForSession(dbUser.Id, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, toUser(dbUser))
}

func (s *ClubApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *ClubApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *ClubApp) account(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *ClubApp) createSession(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	streamKey, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateSessionParams{
		Title:       req.Title,
		Description: req.Description,
		HostId:      userId,
		StreamKey:   streamKey,
	}
	if req.ScheduledStart != nil {
		params.ScheduledStart = sql.NullTime{Time: *req.ScheduledStart, Valid: true}
	}

	sess, err := s.db.CreateSession(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, toSession(sess))
}

func (s *ClubApp) listSessions(w http.ResponseWriter, r *http.Request) {
	params := database.ListSessionsParams{
		Status: r.URL.Query().Get("status"),
		HostId: r.URL.Query().Get("host_id"),
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		params.Limit = limit
	}

	dbSessions, err := s.db.ListSessions(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sessions := make([]types.Session, 0, len(dbSessions))
	for _, sess := range dbSessions {
		sessions = append(sessions, toSession(sess))
	}

	s.writeJson(w, http.StatusOK, sessions)
}

func (s *ClubApp) getSession(w http.ResponseWriter, r *http.Request) {
	sess, errResp := s.lookupSession(r.PathValue("id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toSession(sess))
}

func (s *ClubApp) startSession(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sess, errResp := s.lookupSession(r.PathValue("id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if sess.HostId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if sess.Status != database.SessionScheduled {
		errResp := NewConflictError("session is not scheduled")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdateSessionStatus(sess.Id, database.SessionLive); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sess, err := s.db.GetSessionById(sess.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toSession(sess))
}

func (s *ClubApp) endSession(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sess, errResp := s.lookupSession(r.PathValue("id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if sess.HostId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if sess.Status != database.SessionLive {
		errResp := NewConflictError("session is not live")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdateSessionStatus(sess.Id, database.SessionEnded); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.rooms.Broadcast(sess.Id, server.NewSessionEnded(sess.Id))

	sess, err := s.db.GetSessionById(sess.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toSession(sess))
}

func (s *ClubApp) roomState(w http.ResponseWriter, r *http.Request) {
	sess, errResp := s.lookupSession(r.PathValue("id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	state, ok := s.rooms.RoomState(sess.Id)
	if !ok {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, state)
}

func (s *ClubApp) raiseHand(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	receipt, err := s.queue.RaiseHand(r.PathValue("id"), userId)
	if err != nil {
		errResp := queueError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, receipt)
}

func (s *ClubApp) lowerHand(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.queue.LowerHand(r.PathValue("id"), userId); err != nil {
		errResp := queueError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ClubApp) getQueue(w http.ResponseWriter, r *http.Request) {
	sess, errResp := s.lookupSession(r.PathValue("id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	queue, err := s.queue.Queue(sess.Id)
	if err != nil {
		errResp := queueError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, queue)
}

func (s *ClubApp) approveHandRaise(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	approval, err := s.queue.Approve(r.PathValue("id"), r.PathValue("handRaiseId"), userId)
	if err != nil {
		errResp := queueError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// promote in the live room so the speaker gets the floor immediately
	s.rooms.PromoteToSpeaker(r.PathValue("id"), approval.SpeakerId)

	s.writeJson(w, http.StatusOK, approval)
}

func (s *ClubApp) endSpeech(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	summary, err := s.queue.EndSpeech(r.PathValue("id"), r.PathValue("handRaiseId"), userId)
	if err != nil {
		errResp := queueError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.rooms.DemoteToListener(r.PathValue("id"), summary.SpeakerId)

	s.writeJson(w, http.StatusOK, summary)
}

func (s *ClubApp) currentSpeaker(w http.ResponseWriter, r *http.Request) {
	speaker, err := s.queue.GetCurrentSpeaker(r.PathValue("id"))
	if err != nil {
		errResp := queueError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if speaker == nil {
		s.writeJson(w, http.StatusOK, map[string]interface{}{"speaker": nil})
		return
	}

	s.writeJson(w, http.StatusOK, speaker)
}

func (s *ClubApp) handRaiseHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	history, err := s.queue.GetHistory(r.PathValue("id"), limit)
	if err != nil {
		errResp := queueError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, history)
}

func (s *ClubApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sess, errResp := s.lookupSession(r.PathValue("id"))
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if sess.Status != database.SessionLive {
		errResp := NewConflictError("session is not live")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	role := types.RoleListener
	if user.Id == sess.HostId {
		role = types.RoleSpeaker
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(toUser(user), sess.Id, conn, s.rooms, s.log)

	s.rooms.Connect(client, sess.Id, user.Id, user.Username, role)
	go client.Write()
	go client.Read()
}

// lookupSession fetches a session by path id, translating lookup failures to
// API errors.
func (s *ClubApp) lookupSession(sessionId string) (database.Session, *ApiError) {
	if sessionId == "" {
		return database.Session{}, NewBadRequestError()
	}

	sess, err := s.db.GetSessionById(sessionId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Session{}, NewNotFoundError()
		}
		return database.Session{}, NewInternalServerError(err)
	}

	return sess, nil
}
