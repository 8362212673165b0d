package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store keeps a journal of listing requests and how they ended. It never
// stores the records themselves.
type Store struct {
	DB *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_journal (
			id            UUID PRIMARY KEY,
			filter        TEXT NOT NULL,
			generation    BIGINT NOT NULL,
			status        TEXT NOT NULL,
			status_code   INTEGER,
			message       TEXT,
			record_count  INTEGER NOT NULL DEFAULT 0,
			duration_ms   BIGINT NOT NULL DEFAULT 0,
			finished_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_journal_finished ON fetch_journal(finished_at DESC);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

type JournalEntry struct {
	ID          uuid.UUID `json:"id"`
	Filter      string    `json:"filter"`
	Generation  uint64    `json:"generation"`
	Status      string    `json:"status"`
	StatusCode  int       `json:"status_code,omitempty"`
	Message     string    `json:"message,omitempty"`
	RecordCount int       `json:"record_count"`
	DurationMS  int64     `json:"duration_ms"`
	FinishedAt  time.Time `json:"finished_at"`
}

func (s *Store) RecordOutcome(ctx context.Context, e JournalEntry) error {
	if s == nil || s.DB == nil {
		return errors.New("nil db")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO fetch_journal (id, filter, generation, status, status_code, message, record_count, duration_ms, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.Filter, int64(e.Generation), e.Status, nullInt(e.StatusCode), nullString(e.Message), e.RecordCount, e.DurationMS, e.FinishedAt,
	)
	return err
}

func (s *Store) RecentOutcomes(ctx context.Context, limit int) ([]JournalEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("nil db")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, filter, generation, status, status_code, message, record_count, duration_ms, finished_at
		FROM fetch_journal
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]JournalEntry, 0, limit)
	for rows.Next() {
		var (
			e    JournalEntry
			gen  int64
			code sql.NullInt64
			msg  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Filter, &gen, &e.Status, &code, &msg, &e.RecordCount, &e.DurationMS, &e.FinishedAt); err != nil {
			return nil, err
		}
		e.Generation = uint64(gen)
		e.StatusCode = int(code.Int64)
		e.Message = msg.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullInt(v int) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
