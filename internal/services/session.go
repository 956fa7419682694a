package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/AnshRaj112/echoes-backend/internal/database"
	"github.com/AnshRaj112/echoes-backend/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

var ErrSessionStoreUnavailable = errors.New("session store unavailable")

// Session is the server-side state behind a session cookie.
type Session struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

func sessionStore() (*redis.Client, error) {
	if database.RedisClient == nil {
		return nil, ErrSessionStoreUnavailable
	}
	return database.RedisClient, nil
}

// CreateSession stores a new session in Redis and returns its opaque token.
// Any existing session of the same user is invalidated first, so the 7-day timer restarts at login.
func CreateSession(ctx context.Context, userID int64, name string) (string, error) {
	rdb, err := sessionStore()
	if err != nil {
		return "", err
	}

	if err := InvalidateUserSessions(ctx, userID); err != nil {
		return "", err
	}

	token, err := utils.GenerateToken(32)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(Session{UserID: userID, Name: name})
	if err != nil {
		return "", err
	}

	pipe := rdb.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+token, payload, SessionDuration)
	pipe.Set(ctx, userSessionKey(userID), token, SessionDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}

	return token, nil
}

// ValidateSession looks a token up. A missing or expired session is (nil, false, nil).
func ValidateSession(ctx context.Context, token string) (*Session, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	rdb, err := sessionStore()
	if err != nil {
		return nil, false, err
	}

	raw, err := rdb.Get(ctx, SessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, false, err
	}
	return &sess, true, nil
}

// InvalidateSession removes a session from Redis
func InvalidateSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	rdb, err := sessionStore()
	if err != nil {
		return err
	}

	sessionKey := SessionKeyPrefix + token
	if sess, ok, _ := ValidateSession(ctx, token); ok {
		// Only drop the mapping if it still points at this token
		userKey := userSessionKey(sess.UserID)
		if current, err := rdb.Get(ctx, userKey).Result(); err == nil && current == token {
			rdb.Del(ctx, userKey)
		}
	}

	return rdb.Del(ctx, sessionKey).Err()
}

// InvalidateUserSessions invalidates the current session of a user (used at login and after a password reset)
func InvalidateUserSessions(ctx context.Context, userID int64) error {
	rdb, err := sessionStore()
	if err != nil {
		return err
	}

	userKey := userSessionKey(userID)
	token, err := rdb.Get(ctx, userKey).Result()
	if err == nil && token != "" {
		rdb.Del(ctx, SessionKeyPrefix+token)
	}

	return rdb.Del(ctx, userKey).Err()
}

func userSessionKey(userID int64) string {
	return UserSessionKeyPrefix + strconv.FormatInt(userID, 10)
}
