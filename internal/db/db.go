// Package db provides PostgreSQL storage for applications, the assignment
// audit trail, notifications and the user and job directories.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/hiring-workflow/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Migrate creates any missing tables and indexes. It is safe to run repeatedly.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Schema returns the SQL applied by Migrate.
func Schema() string {
	return schemaSQL
}

// CreateUser inserts a user.
func (db *DB) CreateUser(ctx context.Context, u types.User) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, role) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, u.Email, string(u.Role),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser implements workflow.Directory.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	var u types.User
	var role string
	err := db.pool.QueryRow(ctx,
		`SELECT id, username, email, role FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = types.Role(role)
	return &u, nil
}

// ListUsers implements workflow.Directory.
func (db *DB) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, username, email, role FROM users ORDER BY username, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []types.User
	for rows.Next() {
		var u types.User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Role = types.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateJob inserts a job.
func (db *DB) CreateJob(ctx context.Context, j types.Job) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO jobs (id, title, department) VALUES ($1, $2, $3)`,
		j.ID, j.Title, j.Department,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob implements workflow.Directory.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	var j types.Job
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, department FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Title, &j.Department)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &j, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
