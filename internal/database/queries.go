package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const handRaiseColumns = "id, user_id, session_id, status, raised_at, approved_at, approved_by, " +
	"speech_started_at, speech_ended_at, speech_duration_secs, support_count, queue_position, priority_score"

func (db *PgClubRepository) CreateAccount(params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	res := db.conn.QueryRow(
		"INSERT INTO accounts (id, username, name, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) "+
			"RETURNING id, username, name, email, role, level, priority_score, xp_total, created_at, updated_at",
		uuid.NewString(),
		params.Username,
		params.Name,
		params.EmailAddress,
		params.PasswordHash,
		now,
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.Name,
		&u.EmailAddress,
		&u.Role,
		&u.Level,
		&u.PriorityScore,
		&u.XPTotal,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgClubRepository) GetAccountById(accountId string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, name, email, password_hash, avatar, role, level, priority_score, xp_total, created_at, updated_at "+
			"FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	return scanUser(row)
}

func (db *PgClubRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, name, email, password_hash, avatar, role, level, priority_score, xp_total, created_at, updated_at "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Name,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.Avatar,
		&u.Role,
		&u.Level,
		&u.PriorityScore,
		&u.XPTotal,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgClubRepository) CreateSession(params CreateSessionParams) (Session, error) {
	now := time.Now().UTC()
	res := db.conn.QueryRow(
		"INSERT INTO live_sessions (id, title, description, host_id, status, stream_key, scheduled_start, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, 'scheduled', $5, $6, $7, $7) "+
			"RETURNING id, title, description, host_id, status, stream_key, scheduled_start, created_at, updated_at",
		uuid.NewString(),
		params.Title,
		params.Description,
		params.HostId,
		params.StreamKey,
		params.ScheduledStart,
		now,
	)

	var s Session
	err := res.Scan(
		&s.Id,
		&s.Title,
		&s.Description,
		&s.HostId,
		&s.Status,
		&s.StreamKey,
		&s.ScheduledStart,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	return s, err
}

func (db *PgClubRepository) GetSessionById(sessionId string) (Session, error) {
	row := db.conn.QueryRow(
		"SELECT id, title, description, host_id, status, stream_key, current_speaker_id, "+
			"scheduled_start, started_at, ended_at, created_at, updated_at "+
			"FROM live_sessions WHERE id = $1 LIMIT 1",
		sessionId,
	)

	var s Session
	err := row.Scan(
		&s.Id,
		&s.Title,
		&s.Description,
		&s.HostId,
		&s.Status,
		&s.StreamKey,
		&s.CurrentSpeakerId,
		&s.ScheduledStart,
		&s.StartedAt,
		&s.EndedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	return s, err
}

func (db *PgClubRepository) ListSessions(params ListSessionsParams) ([]Session, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, title, description, host_id, status, stream_key, current_speaker_id, "+
			"scheduled_start, started_at, ended_at, created_at, updated_at "+
			"FROM live_sessions "+
			"WHERE ($1 = '' OR status = $1) AND ($2 = '' OR host_id = $2) "+
			"ORDER BY created_at DESC LIMIT $3",
		params.Status,
		params.HostId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.Id,
			&s.Title,
			&s.Description,
			&s.HostId,
			&s.Status,
			&s.StreamKey,
			&s.CurrentSpeakerId,
			&s.ScheduledStart,
			&s.StartedAt,
			&s.EndedAt,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func (db *PgClubRepository) UpdateSessionStatus(sessionId, status string) error {
	now := time.Now().UTC()
	var res sql.Result
	var err error
	switch status {
	case SessionLive:
		res, err = db.conn.Exec(
			"UPDATE live_sessions SET status = $2, started_at = $3, updated_at = $3 WHERE id = $1",
			sessionId, status, now,
		)
	case SessionEnded:
		res, err = db.conn.Exec(
			"UPDATE live_sessions SET status = $2, ended_at = $3, updated_at = $3 WHERE id = $1",
			sessionId, status, now,
		)
	default:
		res, err = db.conn.Exec(
			"UPDATE live_sessions SET status = $2, updated_at = $3 WHERE id = $1",
			sessionId, status, now,
		)
	}
	if err != nil {
		return err
	}

	return requireRow(res)
}

func (db *PgClubRepository) SetCurrentSpeaker(sessionId, userId string) error {
	res, err := db.conn.Exec(
		"UPDATE live_sessions SET current_speaker_id = $2, updated_at = $3 WHERE id = $1",
		sessionId, userId, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	return requireRow(res)
}

func (db *PgClubRepository) ClearCurrentSpeaker(sessionId string) error {
	res, err := db.conn.Exec(
		"UPDATE live_sessions SET current_speaker_id = NULL, updated_at = $2 WHERE id = $1",
		sessionId, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	return requireRow(res)
}

func (db *PgClubRepository) CreateHandRaise(params CreateHandRaiseParams) (HandRaiseEvent, error) {
	res := db.conn.QueryRow(
		"INSERT INTO hand_raise_events (id, user_id, session_id, status, raised_at, queue_position, priority_score) "+
			"VALUES ($1, $2, $3, 'pending', $4, $5, $6) "+
			"RETURNING "+handRaiseColumns,
		uuid.NewString(),
		params.UserId,
		params.SessionId,
		time.Now().UTC(),
		params.QueuePosition,
		params.PriorityScore,
	)

	return scanHandRaise(res)
}

func (db *PgClubRepository) GetHandRaiseById(handRaiseId string) (HandRaiseEvent, error) {
	row := db.conn.QueryRow(
		"SELECT "+handRaiseColumns+" FROM hand_raise_events WHERE id = $1 LIMIT 1",
		handRaiseId,
	)

	return scanHandRaise(row)
}

func (db *PgClubRepository) GetPendingHandRaise(sessionId, userId string) (HandRaiseEvent, error) {
	row := db.conn.QueryRow(
		"SELECT "+handRaiseColumns+" FROM hand_raise_events "+
			"WHERE session_id = $1 AND user_id = $2 AND status = 'pending' LIMIT 1",
		sessionId, userId,
	)

	return scanHandRaise(row)
}

func (db *PgClubRepository) GetApprovedHandRaise(sessionId, userId string) (HandRaiseEvent, error) {
	row := db.conn.QueryRow(
		"SELECT "+handRaiseColumns+" FROM hand_raise_events "+
			"WHERE session_id = $1 AND user_id = $2 AND status = 'approved' "+
			"ORDER BY approved_at DESC LIMIT 1",
		sessionId, userId,
	)

	return scanHandRaise(row)
}

func (db *PgClubRepository) CountPendingHandRaises(sessionId string) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM hand_raise_events WHERE session_id = $1 AND status = 'pending'",
		sessionId,
	)

	var count int
	err := row.Scan(&count)
	return count, err
}

func (db *PgClubRepository) ListPendingHandRaises(sessionId string) ([]HandRaiseEvent, error) {
	rows, err := db.conn.Query(
		"SELECT "+handRaiseColumns+" FROM hand_raise_events "+
			"WHERE session_id = $1 AND status = 'pending' "+
			"ORDER BY priority_score DESC, raised_at ASC",
		sessionId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectHandRaises(rows)
}

func (db *PgClubRepository) ListHandRaisesByUser(userId string, limit int) ([]HandRaiseEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT "+handRaiseColumns+" FROM hand_raise_events "+
			"WHERE user_id = $1 ORDER BY raised_at DESC LIMIT $2",
		userId, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectHandRaises(rows)
}

func (db *PgClubRepository) UpdateHandRaiseStatus(handRaiseId, status string) error {
	res, err := db.conn.Exec(
		"UPDATE hand_raise_events SET status = $2 WHERE id = $1",
		handRaiseId, status,
	)
	if err != nil {
		return err
	}

	return requireRow(res)
}

func (db *PgClubRepository) ApproveHandRaise(handRaiseId, moderatorId string) (HandRaiseEvent, error) {
	row := db.conn.QueryRow(
		"UPDATE hand_raise_events "+
			"SET status = 'approved', approved_at = $2, approved_by = $3, speech_started_at = $2 "+
			"WHERE id = $1 AND status = 'pending' "+
			"RETURNING "+handRaiseColumns,
		handRaiseId,
		time.Now().UTC(),
		moderatorId,
	)

	return scanHandRaise(row)
}

func (db *PgClubRepository) FinishHandRaise(handRaiseId string, durationSecs int) (HandRaiseEvent, error) {
	row := db.conn.QueryRow(
		"UPDATE hand_raise_events "+
			"SET speech_ended_at = $2, speech_duration_secs = $3 "+
			"WHERE id = $1 AND status = 'approved' "+
			"RETURNING "+handRaiseColumns,
		handRaiseId,
		time.Now().UTC(),
		durationSecs,
	)

	return scanHandRaise(row)
}

func (db *PgClubRepository) CreateXPTransaction(tx XPTransaction) error {
	_, err := db.conn.Exec(
		"INSERT INTO xp_transactions (id, user_id, action, xp_earned, session_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		uuid.NewString(),
		tx.UserId,
		tx.Action,
		tx.XPEarned,
		tx.SessionId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgClubRepository) AddUserXP(userId string, amount int) error {
	res, err := db.conn.Exec(
		"UPDATE accounts SET xp_total = xp_total + $2, updated_at = $3 WHERE id = $1",
		userId, amount, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	return requireRow(res)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanHandRaise(row scannable) (HandRaiseEvent, error) {
	var hr HandRaiseEvent
	err := row.Scan(
		&hr.Id,
		&hr.UserId,
		&hr.SessionId,
		&hr.Status,
		&hr.RaisedAt,
		&hr.ApprovedAt,
		&hr.ApprovedBy,
		&hr.SpeechStartedAt,
		&hr.SpeechEndedAt,
		&hr.SpeechDurationSecs,
		&hr.SupportCount,
		&hr.QueuePosition,
		&hr.PriorityScore,
	)

	return hr, err
}

func collectHandRaises(rows *sql.Rows) ([]HandRaiseEvent, error) {
	var events []HandRaiseEvent
	for rows.Next() {
		hr, err := scanHandRaise(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, hr)
	}

	return events, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
