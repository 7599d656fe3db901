package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"originchats/internal/pkg/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB, dialect string) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logx.Info("Database migrations applied successfully.", "dialect", dialect)
	return nil
}

// Postgres stores documents in the documents table through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool, pings it and applies migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB, "postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Read(ctx context.Context, kind, key string) ([]byte, error) {
	var body string
	err := p.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE kind = $1 AND name = $2`, kind, key,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (p *Postgres) Write(ctx context.Context, kind, key string, data []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO documents (kind, name, body, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (kind, name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		kind, key, string(data),
	)
	return err
}

func (p *Postgres) Remove(ctx context.Context, kind, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE kind = $1 AND name = $2`, kind, key)
	return err
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// SQLite stores documents in a local database file through the pure Go driver.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies migrations.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// one writer connection avoids SQLITE_BUSY under concurrent upserts
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = normal",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db, "sqlite3"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Read(ctx context.Context, kind, key string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE kind = ? AND name = ?`, kind, key,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (s *SQLite) Write(ctx context.Context, kind, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (kind, name, body, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (kind, name) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`,
		kind, key, string(data),
	)
	return err
}

func (s *SQLite) Remove(ctx context.Context, kind, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND name = ?`, kind, key)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
