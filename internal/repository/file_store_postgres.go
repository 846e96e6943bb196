package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"FinChat/internal/domain/models"
	"FinChat/internal/domain/repository"
	"FinChat/pkg/config"
)

const filesSchema = `CREATE TABLE IF NOT EXISTS user_files (
	id           UUID PRIMARY KEY,
	user_id      TEXT NOT NULL,
	filename     TEXT NOT NULL,
	parsed       BOOLEAN NOT NULL DEFAULT FALSE,
	parse_result JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, filename)
)`

const pgUniqueViolation = "23505"

// PostgresFileStore stores file records in Postgres through lib/pq.
type PostgresFileStore struct {
	db *sql.DB
}

func NewPostgresFileStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresFileStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, filesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PostgresFileStore{db: db}, nil
}

func (s *PostgresFileStore) Insert(ctx context.Context, rec *models.FileRecord) error {
	result, err := encodeParseResult(rec.ParseResult)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_files (id, user_id, filename, parsed, parse_result, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, rec.Filename, rec.Parsed, result, rec.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return repository.ErrFileExists
		}
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (s *PostgresFileStore) UpdateParseResult(ctx context.Context, userID, filename string, res models.ParseResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode parse result: %w", err)
	}
	out, err := s.db.ExecContext(ctx,
		`UPDATE user_files SET parsed = TRUE, parse_result = $3 WHERE user_id = $1 AND filename = $2`,
		userID, filename, b,
	)
	if err != nil {
		return fmt.Errorf("update parse result: %w", err)
	}
	return requireRow(out)
}

func (s *PostgresFileStore) ListByUser(ctx context.Context, userID string) ([]*models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, filename, parsed, parse_result, created_at FROM user_files WHERE user_id = $1 ORDER BY created_at DESC, filename`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := make([]*models.FileRecord, 0)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresFileStore) Get(ctx context.Context, userID, filename string) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, parsed, parse_result, created_at FROM user_files WHERE user_id = $1 AND filename = $2`,
		userID, filename,
	)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrFileNotFound
	}
	return rec, err
}

func (s *PostgresFileStore) Delete(ctx context.Context, userID, filename string) error {
	out, err := s.db.ExecContext(ctx, `DELETE FROM user_files WHERE user_id = $1 AND filename = $2`, userID, filename)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return requireRow(out)
}

func (s *PostgresFileStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(sc scanner) (*models.FileRecord, error) {
	var (
		rec    models.FileRecord
		result []byte
	)
	if err := sc.Scan(&rec.ID, &rec.UserID, &rec.Filename, &rec.Parsed, &result, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	if len(result) > 0 {
		var pr models.ParseResult
		if err := json.Unmarshal(result, &pr); err != nil {
			return nil, fmt.Errorf("decode parse result: %w", err)
		}
		rec.ParseResult = &pr
	}
	return &rec, nil
}

func encodeParseResult(pr *models.ParseResult) (any, error) {
	if pr == nil {
		return nil, nil
	}
	b, err := json.Marshal(pr)
	if err != nil {
		return nil, fmt.Errorf("encode parse result: %w", err)
	}
	return b, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrFileNotFound
	}
	return nil
}

var _ repository.FileStore = (*PostgresFileStore)(nil)
