package services

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/echoes-backend/internal/database"
)

func setupDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	prev := database.PostgresDB
	database.PostgresDB = db
	t.Cleanup(func() {
		database.PostgresDB = prev
		db.Close()
	})
	return mock
}

func setupAttachments(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := Attachments
	Attachments = NewLocalStore(dir)
	t.Cleanup(func() { Attachments = prev })
	return dir
}

func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

// captureString matches any string argument and remembers it.
type captureString struct {
	value *string
}

func (c captureString) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		*c.value = s
	}
	return ok
}
