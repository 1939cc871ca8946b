package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PgxPool минимальный набор методов pgxpool.Pool, нужный хранилищу.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS chat_sessions (
	id          TEXT PRIMARY KEY,
	prompt_name TEXT NOT NULL DEFAULT '',
	history     JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var tracer = otel.Tracer("chatrelay/session/postgres")

func startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", "chat_sessions"),
			attribute.String("chat.id", id),
		))
}

// PostgresStore хранит сессии в таблице chat_sessions, история в jsonb.
type PostgresStore struct {
	pool PgxPool
	now  func() time.Time
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// NewPool создаёт пул соединений с умеренными лимитами.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("op=postgres.parse_config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("op=postgres.new_pool: %w", err)
	}
	return pool, nil
}

// EnsureSchema создаёт таблицу, если её ещё нет.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("op=session.ensure_schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Session, error) {
	ctx, span := startSpan(ctx, "sessions.Get", id)
	defer span.End()

	q := `SELECT id, prompt_name, history, created_at, updated_at FROM chat_sessions WHERE id=$1`
	var (
		sess Session
		raw  []byte
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(&sess.ID, &sess.PromptName, &raw, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, fmt.Errorf("op=session.get: %w", ErrNotFound)
		}
		span.RecordError(err)
		return Session{}, fmt.Errorf("op=session.get: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sess.History); err != nil {
			return Session{}, fmt.Errorf("op=session.get decode history: %w", err)
		}
	}
	return sess, nil
}

func (s *PostgresStore) Create(ctx context.Context, sess Session) error {
	ctx, span := startSpan(ctx, "sessions.Create", sess.ID)
	defer span.End()

	raw, err := marshalHistory(sess.History)
	if err != nil {
		return fmt.Errorf("op=session.create: %w", err)
	}
	now := s.now()
	q := `INSERT INTO chat_sessions (id, prompt_name, history, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := s.pool.Exec(ctx, q, sess.ID, sess.PromptName, raw, now, now); err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=session.create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, history History) error {
	ctx, span := startSpan(ctx, "sessions.Update", id)
	defer span.End()

	raw, err := marshalHistory(history)
	if err != nil {
		return fmt.Errorf("op=session.update: %w", err)
	}
	q := `UPDATE chat_sessions SET history=$2, updated_at=$3 WHERE id=$1`
	tag, err := s.pool.Exec(ctx, q, id, raw, s.now())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=session.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.update: %w", ErrNotFound)
	}
	return nil
}

func marshalHistory(h History) ([]byte, error) {
	if h == nil {
		h = History{}
	}
	return json.Marshal(h)
}
