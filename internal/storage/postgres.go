package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/yourname/focustracker/internal"
)

const (
	pgSessionColumns = `id, user_id, title, start_time, end_time, duration, distractions, warnings, date, created_at, updated_at`
	pgEventColumns   = `id, user_id, session_id, type, message, meta, "timestamp", severity, resolved, created_at, updated_at`
	pgUserColumns    = `id, email, name, is_active, last_login, created_at, updated_at`
)

// Postgres SQLSTATE codes mapped to rejections.
const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
	pgStringTooLong   = "22001"
)

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(ctx context.Context, dsn string, logger internal.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Errorf("failed to ping postgres: %v", err)
		return nil, err
	}
	// golang-migrate pins a connection until it is closed, so it gets its
	// own *sql.DB rather than one borrowed from the pool.
	if err := MigrateUp(stdlib.OpenDB(*pool.Config().ConnConfig), DialectPostgres); err != nil {
		pool.Close()
		logger.Errorf("failed to migrate postgres: %v", err)
		return nil, err
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// MigrationStatus reports whether the schema is current, on a connection
// outside the pool.
func (p *PostgresStorage) MigrationStatus() error {
	return CheckMigrationStatus(stdlib.OpenDB(*p.pool.Config().ConnConfig), DialectPostgres)
}

// Truncate empties every table. Used to reset disposable test databases.
func (p *PostgresStorage) Truncate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE events, sessions, users RESTART IDENTITY`); err != nil {
		return p.mapError("truncate", err)
	}
	return nil
}

func (p *PostgresStorage) mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation, pgStringTooLong:
			return &internal.Error{Kind: internal.ErrValidation, Msg: op + ": value rejected", Err: err}
		case pgUniqueViolation:
			return &internal.Error{Kind: internal.ErrValidation, Msg: op + ": duplicate record", Err: err}
		}
	}
	p.logger.Errorf("failed to %s: %v", op, err)
	return internal.StorageFailure(op, err)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func scanPgSession(row pgx.Row) (*internal.Session, error) {
	var (
		s            internal.Session
		distractions []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.StartTime, &s.EndTime, &s.Duration,
		&distractions, &s.Warnings, &s.Date, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(distractions, &s.Distractions); err != nil {
		return nil, fmt.Errorf("decode distractions: %w", err)
	}
	if s.Distractions == nil {
		s.Distractions = []internal.Distraction{}
	}
	s.StartTime = utcPtr(s.StartTime)
	s.EndTime = utcPtr(s.EndTime)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func scanPgEvent(row pgx.Row) (*internal.Event, error) {
	var (
		e    internal.Event
		meta []byte
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Type, &e.Message, &meta,
		&e.Timestamp, &e.Severity, &e.Resolved, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &e.Meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	if e.Meta == nil {
		e.Meta = internal.Meta{}
	}
	e.Timestamp = e.Timestamp.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func scanPgUser(row pgx.Row) (*internal.User, error) {
	var u internal.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.LastLogin = utcPtr(u.LastLogin)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// --- SessionRepository ---
func (p *PostgresStorage) CreateSession(ctx context.Context, owner internal.Owner, s *internal.Session) error {
	if err := checkSessionWrite(owner, s); err != nil {
		return err
	}
	distractions, err := marshalDistractions(s.Distractions)
	if err != nil {
		return internal.Rejected("invalid distractions: " + err.Error())
	}

	_, err = p.pool.Exec(ctx, `INSERT INTO sessions (`+pgSessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, owner.ID(), s.Title, s.StartTime, s.EndTime, s.Duration, distractions, s.Warnings, s.Date, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return p.mapError("insert session", err)
	}
	return nil
}

func (p *PostgresStorage) ListSessions(ctx context.Context, owner internal.Owner) ([]internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, `SELECT `+pgSessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC, seq DESC`, owner.ID())
	if err != nil {
		return nil, p.mapError("query sessions", err)
	}
	defer rows.Close()

	sessions := []internal.Session{}
	for rows.Next() {
		s, err := scanPgSession(rows)
		if err != nil {
			return nil, p.mapError("scan session", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, p.mapError("query sessions", err)
	}
	return sessions, nil
}

func (p *PostgresStorage) GetSession(ctx context.Context, owner internal.Owner, id string) (*internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	s, err := scanPgSession(p.pool.QueryRow(ctx, `SELECT `+pgSessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2`, id, owner.ID()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, internal.NotFound("session not found")
	}
	if err != nil {
		return nil, p.mapError("get session", err)
	}
	return s, nil
}

func (p *PostgresStorage) DeleteSession(ctx context.Context, owner internal.Owner, id string) (*internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	s, err := scanPgSession(p.pool.QueryRow(ctx, `DELETE FROM sessions WHERE id = $1 AND user_id = $2 RETURNING `+pgSessionColumns, id, owner.ID()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, internal.NotFound("session not found")
	}
	if err != nil {
		return nil, p.mapError("delete session", err)
	}
	return s, nil
}

// --- EventRepository ---
func (p *PostgresStorage) CreateEvent(ctx context.Context, owner internal.Owner, e *internal.Event) error {
	if err := checkEventWrite(owner, e); err != nil {
		return err
	}
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return internal.Rejected("invalid meta: " + err.Error())
	}

	tag, err := p.pool.Exec(ctx, `INSERT INTO events (`+pgEventColumns+`)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::jsonb, $7::timestamptz, $8::text, $9::boolean, $10::timestamptz, $11::timestamptz
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = $3 AND user_id = $2)`,
		e.ID, owner.ID(), e.SessionID, string(e.Type), e.Message, meta, e.Timestamp, string(e.Severity), e.Resolved, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return p.mapError("insert event", err)
	}
	if tag.RowsAffected() == 0 {
		return internal.ErrSessionNotOwned
	}
	return nil
}

func (p *PostgresStorage) ListEvents(ctx context.Context, owner internal.Owner, sessionID string) ([]internal.Event, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, `SELECT `+pgEventColumns+` FROM events WHERE user_id = $1 AND session_id = $2 ORDER BY "timestamp" ASC, seq ASC`,
		owner.ID(), sessionID)
	if err != nil {
		return nil, p.mapError("query events", err)
	}
	defer rows.Close()

	events := []internal.Event{}
	for rows.Next() {
		e, err := scanPgEvent(rows)
		if err != nil {
			return nil, p.mapError("scan event", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, p.mapError("query events", err)
	}
	return events, nil
}

func (p *PostgresStorage) ResolveEvent(ctx context.Context, owner internal.Owner, id string) (*internal.Event, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	e, err := scanPgEvent(p.pool.QueryRow(ctx, `UPDATE events
		SET updated_at = CASE WHEN resolved THEN updated_at ELSE $3 END, resolved = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING `+pgEventColumns, id, owner.ID(), time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, internal.NotFound("event not found")
	}
	if err != nil {
		return nil, p.mapError("resolve event", err)
	}
	return e, nil
}

// --- MaintenanceRepository ---
func (p *PostgresStorage) UpsertUser(ctx context.Context, u *internal.User) error {
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

	stored, err := scanPgUser(p.pool.QueryRow(ctx, `INSERT INTO users (`+pgUserColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
		RETURNING `+pgUserColumns,
		u.ID, email, u.Name, u.IsActive, u.LastLogin, createdAt, now))
	if err != nil {
		return p.mapError("upsert user", err)
	}
	*u = *stored
	return nil
}

func (p *PostgresStorage) FindUsersByEmail(ctx context.Context, emails []string) ([]internal.User, error) {
	users := []internal.User{}
	if len(emails) == 0 {
		return users, nil
	}
	normalized := make([]string, len(emails))
	for i, e := range emails {
		normalized[i] = normalizeEmail(e)
	}
	rows, err := p.pool.Query(ctx, `SELECT `+pgUserColumns+` FROM users WHERE email = ANY($1) ORDER BY email`, normalized)
	if err != nil {
		return nil, p.mapError("query users", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanPgUser(rows)
		if err != nil {
			return nil, p.mapError("scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, p.mapError("query users", err)
	}
	return users, nil
}

func (p *PostgresStorage) PurgeUsers(ctx context.Context, userIDs []string) (Counts, error) {
	var deleted Counts
	if len(userIDs) == 0 {
		return deleted, nil
	}
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE user_id = ANY($1)`, userIDs)
		if err != nil {
			return err
		}
		deleted.Events = tag.RowsAffected()
		if tag, err = tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = ANY($1)`, userIDs); err != nil {
			return err
		}
		deleted.Sessions = tag.RowsAffected()
		if tag, err = tx.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, userIDs); err != nil {
			return err
		}
		deleted.Users = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return Counts{}, p.mapError("purge users", err)
	}
	return deleted, nil
}

func (p *PostgresStorage) Count(ctx context.Context) (Counts, error) {
	var c Counts
	err := p.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM sessions),
		(SELECT COUNT(*) FROM events)`).Scan(&c.Users, &c.Sessions, &c.Events)
	if err != nil {
		return Counts{}, p.mapError("count", err)
	}
	return c, nil
}

// --- Compile-time assertions ---
var _ SessionRepository = (*PostgresStorage)(nil)
var _ EventRepository = (*PostgresStorage)(nil)
var _ MaintenanceRepository = (*PostgresStorage)(nil)
