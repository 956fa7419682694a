package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var PostgresDB *sql.DB

// Postgres error codes the services care about.
const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

// ConnectPostgres connects to PostgreSQL and initialises the schema
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = PostgresDB.PingContext(ctx); err != nil {
		return err
	}

	logrus.Info("connected to PostgreSQL")

	return InitPostgresTables(context.Background())
}

// schemaStatements is executed in order on every start; each statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(150) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS emotions (
		id SERIAL PRIMARY KEY,
		name VARCHAR(50) NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS memories (
		id SERIAL PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		memory_date DATE NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		emotion_id INTEGER REFERENCES emotions(id) ON DELETE SET NULL,
		image_path VARCHAR(512),
		audio_path VARCHAR(512),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id SERIAL PRIMARY KEY,
		name VARCHAR(50) NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS memory_tags (
		memory_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (memory_id, tag_id)
	)`,

	// Reset codes are single use and expire; older unused codes are burned when a new one is issued
	`CREATE TABLE IF NOT EXISTS password_reset_codes (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		code VARCHAR(12) NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		used BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,

	// Lookup names are unique ignoring case
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_emotions_name_lower ON emotions(LOWER(name))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name_lower ON tags(LOWER(name))`,

	`CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_emotion_id ON memories(emotion_id)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_memory_date ON memories(memory_date)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_tags_tag_id ON memory_tags(tag_id)`,
	`CREATE INDEX IF NOT EXISTS idx_password_reset_codes_user_id ON password_reset_codes(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_password_reset_codes_expires_at ON password_reset_codes(expires_at)`,
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables(ctx context.Context) error {
	for _, query := range schemaStatements {
		if _, err := PostgresDB.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	logrus.WithField("statements", len(schemaStatements)).Info("PostgreSQL schema initialised")
	return nil
}

// IsPQError reports whether err is a PostgreSQL error with the given SQLSTATE code.
func IsPQError(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
