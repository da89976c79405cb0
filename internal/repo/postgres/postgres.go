package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

var (
	_ repo.RecordStore = (*Store)(nil)
	_ repo.Writer      = (*Store)(nil)
)

// SchemaSQL creates the single table every record kind lives in.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS records (
  kind       TEXT        NOT NULL,
  id         TEXT        NOT NULL,
  body       JSONB       NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (kind, id)
);
`

// db is the subset of pgxpool.Pool the store needs.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db   db
	pool *pgxpool.Pool
	log  *zap.Logger
	sb   sq.StatementBuilderType
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := newWithDB(pool, log)
	s.pool = pool
	return s, nil
}

func newWithDB(d db, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:  d,
		log: log,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, kind string) ([]string, error) {
	q, args, err := s.sb.Select("id").From("records").
		Where("kind = ?", kind).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) Read(ctx context.Context, kind, id string) (repo.Record, error) {
	q, args, err := s.sb.Select("body").From("records").
		Where("kind = ? AND id = ?", kind, id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build read: %w", err)
	}
	var body []byte
	if err := s.db.QueryRow(ctx, q, args...).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", kind, id, repo.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s/%s: %w", kind, id, err)
	}
	var rec repo.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("parse %s/%s: %w", kind, id, err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, kind, id string, rec repo.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	q, args, err := s.sb.Update("records").
		Set("body", body).
		Set("updated_at", sq.Expr("now()")).
		Where("kind = ? AND id = ?", kind, id).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", kind, id, repo.ErrNotFound)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, kind, id string, rec repo.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	q, args, err := s.sb.Insert("records").
		Columns("kind", "id", "body").
		Values(kind, id, body).
		Suffix("ON CONFLICT (kind, id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", kind, id, repo.ErrExists)
	}
	s.log.Debug("record_created", zap.String("kind", kind), zap.String("id", id))
	return nil
}
