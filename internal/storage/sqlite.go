package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/focustracker/internal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	sqliteSessionColumns = `id, user_id, title, start_time, end_time, duration, distractions, warnings, date, created_at, updated_at`
	sqliteEventColumns   = `id, user_id, session_id, type, message, meta, timestamp, severity, resolved, created_at, updated_at`
	sqliteUserColumns    = `id, email, name, is_active, last_login, created_at, updated_at`
)

type SQLiteStorage struct {
	db     *sql.DB
	logger internal.Logger
	path   string
}

// NewSQLiteStorage opens (creating if needed) the database at path and
// applies pending migrations.
func NewSQLiteStorage(path string, logger internal.Logger) (*SQLiteStorage, error) {
	migrationDB, err := openSQLite(path)
	if err != nil {
		logger.Errorf("storage: failed to open sqlite database: %v", err)
		return nil, err
	}
	if err := MigrateUp(migrationDB, DialectSQLite); err != nil {
		logger.Errorf("storage: failed to migrate sqlite database: %v", err)
		return nil, err
	}

	db, err := openSQLite(path)
	if err != nil {
		logger.Errorf("storage: failed to open sqlite database: %v", err)
		return nil, err
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		logger.Errorf("storage: failed to connect to sqlite database: %v", err)
		return nil, err
	}
	return &SQLiteStorage{db: db, logger: logger, path: path}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
}

// MigrationStatus reports whether the schema is current, on a connection of
// its own.
func (s *SQLiteStorage) MigrationStatus() error {
	db, err := openSQLite(s.path)
	if err != nil {
		return err
	}
	return CheckMigrationStatus(db, DialectSQLite)
}

// DB exposes the underlying handle for migration tooling.
func (s *SQLiteStorage) DB() *sql.DB { return s.db }

func (s *SQLiteStorage) Close() error { return s.db.Close() }

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func timeFromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// mapError turns driver errors into the error taxonomy: constraint
// violations are rejections, everything else is a storage failure.
func (s *SQLiteStorage) mapError(op string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return &internal.Error{Kind: internal.ErrValidation, Msg: op + ": value rejected", Err: err}
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &internal.Error{Kind: internal.ErrValidation, Msg: op + ": duplicate record", Err: err}
		}
	}
	s.logger.Errorf("storage: %s failed: %v", op, err)
	return internal.StorageFailure(op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*internal.Session, error) {
	var (
		sess                 internal.Session
		start, end           sql.NullInt64
		distractions         string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &start, &end, &sess.Duration,
		&distractions, &sess.Warnings, &sess.Date, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(distractions), &sess.Distractions); err != nil {
		return nil, fmt.Errorf("decode distractions: %w", err)
	}
	if sess.Distractions == nil {
		sess.Distractions = []internal.Distraction{}
	}
	sess.StartTime = timeFromNull(start)
	sess.EndTime = timeFromNull(end)
	sess.CreatedAt = fromNanos(createdAt)
	sess.UpdatedAt = fromNanos(updatedAt)
	return &sess, nil
}

func scanSQLiteEvent(row rowScanner) (*internal.Event, error) {
	var (
		ev                       internal.Event
		meta                     string
		ts, createdAt, updatedAt int64
		eventType, severity      string
	)
	if err := row.Scan(&ev.ID, &ev.UserID, &ev.SessionID, &eventType, &ev.Message, &meta,
		&ts, &severity, &ev.Resolved, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &ev.Meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	if ev.Meta == nil {
		ev.Meta = internal.Meta{}
	}
	ev.Type = internal.EventType(eventType)
	ev.Severity = internal.Severity(severity)
	ev.Timestamp = fromNanos(ts)
	ev.CreatedAt = fromNanos(createdAt)
	ev.UpdatedAt = fromNanos(updatedAt)
	return &ev, nil
}

func scanSQLiteUser(row rowScanner) (*internal.User, error) {
	var (
		u                    internal.User
		lastLogin            sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &lastLogin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.LastLogin = timeFromNull(lastLogin)
	u.CreatedAt = fromNanos(createdAt)
	u.UpdatedAt = fromNanos(updatedAt)
	return &u, nil
}

func marshalDistractions(d []internal.Distraction) ([]byte, error) {
	if d == nil {
		d = []internal.Distraction{}
	}
	return json.Marshal(d)
}

// --- SessionRepository ---
func (s *SQLiteStorage) CreateSession(ctx context.Context, owner internal.Owner, session *internal.Session) error {
	if err := checkSessionWrite(owner, session); err != nil {
		return err
	}
	distractions, err := marshalDistractions(session.Distractions)
	if err != nil {
		return internal.Rejected("invalid distractions: " + err.Error())
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions (`+sqliteSessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, owner.ID(), session.Title, nullNanos(session.StartTime), nullNanos(session.EndTime), session.Duration,
		string(distractions), session.Warnings, session.Date, toNanos(session.CreatedAt), toNanos(session.UpdatedAt))
	if err != nil {
		return s.mapError("insert session", err)
	}
	return nil
}

func (s *SQLiteStorage) ListSessions(ctx context.Context, owner internal.Owner) ([]internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteSessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC, seq DESC`, owner.ID())
	if err != nil {
		return nil, s.mapError("list sessions", err)
	}
	defer rows.Close()

	sessions := []internal.Session{}
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, s.mapError("scan session", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapError("list sessions", err)
	}
	return sessions, nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, owner internal.Owner, id string) (*internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteSessionColumns+` FROM sessions WHERE id = ? AND user_id = ?`, id, owner.ID())
	sess, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internal.NotFound("session not found")
	}
	if err != nil {
		return nil, s.mapError("get session", err)
	}
	return sess, nil
}

func (s *SQLiteStorage) DeleteSession(ctx context.Context, owner internal.Owner, id string) (*internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ? RETURNING `+sqliteSessionColumns, id, owner.ID())
	sess, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internal.NotFound("session not found")
	}
	if err != nil {
		return nil, s.mapError("delete session", err)
	}
	return sess, nil
}

// --- EventRepository ---
func (s *SQLiteStorage) CreateEvent(ctx context.Context, owner internal.Owner, event *internal.Event) error {
	if err := checkEventWrite(owner, event); err != nil {
		return err
	}
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return internal.Rejected("invalid meta: " + err.Error())
	}

	// The ownership check and the insert are one statement.
	res, err := s.db.ExecContext(ctx, `INSERT INTO events (`+sqliteEventColumns+`)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ? AND user_id = ?)`,
		event.ID, owner.ID(), event.SessionID, string(event.Type), event.Message, string(meta),
		toNanos(event.Timestamp), string(event.Severity), event.Resolved, toNanos(event.CreatedAt), toNanos(event.UpdatedAt),
		event.SessionID, owner.ID())
	if err != nil {
		return s.mapError("insert event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.mapError("insert event", err)
	}
	if n == 0 {
		return internal.ErrSessionNotOwned
	}
	return nil
}

func (s *SQLiteStorage) ListEvents(ctx context.Context, owner internal.Owner, sessionID string) ([]internal.Event, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteEventColumns+` FROM events WHERE user_id = ? AND session_id = ? ORDER BY timestamp ASC, seq ASC`,
		owner.ID(), sessionID)
	if err != nil {
		return nil, s.mapError("list events", err)
	}
	defer rows.Close()

	events := []internal.Event{}
	for rows.Next() {
		ev, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, s.mapError("scan event", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapError("list events", err)
	}
	return events, nil
}

func (s *SQLiteStorage) ResolveEvent(ctx context.Context, owner internal.Owner, id string) (*internal.Event, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `UPDATE events
		SET updated_at = CASE WHEN resolved THEN updated_at ELSE ? END, resolved = 1
		WHERE id = ? AND user_id = ?
		RETURNING `+sqliteEventColumns, toNanos(time.Now()), id, owner.ID())
	ev, err := scanSQLiteEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internal.NotFound("event not found")
	}
	if err != nil {
		return nil, s.mapError("resolve event", err)
	}
	return ev, nil
}

// --- MaintenanceRepository ---
func (s *SQLiteStorage) UpsertUser(ctx context.Context, u *internal.User) error {
	email := normalizeEmail(u.Email)
	if email == "" {
		return internal.Rejected("email is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	row := s.db.QueryRowContext(ctx, `INSERT INTO users (`+sqliteUserColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET name = excluded.name, is_active = excluded.is_active, updated_at = excluded.updated_at
		RETURNING `+sqliteUserColumns,
		u.ID, email, u.Name, u.IsActive, nullNanos(u.LastLogin), toNanos(createdAt), toNanos(now))
	stored, err := scanSQLiteUser(row)
	if err != nil {
		return s.mapError("upsert user", err)
	}
	*u = *stored
	return nil
}

func (s *SQLiteStorage) FindUsersByEmail(ctx context.Context, emails []string) ([]internal.User, error) {
	users := []internal.User{}
	if len(emails) == 0 {
		return users, nil
	}
	args := make([]any, len(emails))
	for i, e := range emails {
		args[i] = normalizeEmail(e)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE email IN (`+placeholders(len(args))+`) ORDER BY email`, args...)
	if err != nil {
		return nil, s.mapError("find users", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, s.mapError("scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapError("find users", err)
	}
	return users, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLiteStorage) PurgeUsers(ctx context.Context, userIDs []string) (Counts, error) {
	var deleted Counts
	if len(userIDs) == 0 {
		return deleted, nil
	}
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	in := placeholders(len(args))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return deleted, s.mapError("purge users", err)
	}
	defer tx.Rollback()

	for _, step := range []struct {
		table string
		count *int64
	}{
		{"events", &deleted.Events},
		{"sessions", &deleted.Sessions},
	} {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+step.table+` WHERE user_id IN (`+in+`)`, args...)
		if err != nil {
			return Counts{}, s.mapError("purge "+step.table, err)
		}
		if *step.count, err = res.RowsAffected(); err != nil {
			return Counts{}, s.mapError("purge "+step.table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return Counts{}, s.mapError("purge users", err)
	}
	if deleted.Users, err = res.RowsAffected(); err != nil {
		return Counts{}, s.mapError("purge users", err)
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, s.mapError("purge users", err)
	}
	return deleted, nil
}

func (s *SQLiteStorage) Count(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM sessions),
		(SELECT COUNT(*) FROM events)`).Scan(&c.Users, &c.Sessions, &c.Events)
	if err != nil {
		return Counts{}, s.mapError("count", err)
	}
	return c, nil
}

// --- Compile-time assertions ---
var _ SessionRepository = (*SQLiteStorage)(nil)
var _ EventRepository = (*SQLiteStorage)(nil)
var _ MaintenanceRepository = (*SQLiteStorage)(nil)
