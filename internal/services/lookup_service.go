package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/AnshRaj112/echoes-backend/internal/database"
	"github.com/AnshRaj112/echoes-backend/internal/models"
)

var (
	emotionsCacheKey = CacheKey("lookup", "emotions")
	tagsCacheKey     = CacheKey("lookup", "tags")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// UpsertEmotion returns the id of the emotion called name, creating it if needed.
// Matching ignores case; the first spelling stored wins.
func UpsertEmotion(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO emotions (name) VALUES ($1)
		ON CONFLICT ((LOWER(name))) DO UPDATE SET name = emotions.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert emotion %q: %w", name, err)
	}
	return id, nil
}

// UpsertTag returns the id of the tag called name, creating it if needed. Same case rules as UpsertEmotion.
func UpsertTag(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO tags (name) VALUES ($1)
		ON CONFLICT ((LOWER(name))) DO UPDATE SET name = tags.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert tag %q: %w", name, err)
	}
	return id, nil
}

// resolveEmotion turns the submitted emotion field into an id.
// Digits are an existing emotion id; any other text is upserted by name; blank means no emotion.
func resolveEmotion(ctx context.Context, q querier, input string) (sql.NullInt64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return sql.NullInt64{}, nil
	}
	if isDigits(input) {
		id, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return sql.NullInt64{}, models.ErrInvalidEmotion
		}
		return sql.NullInt64{Int64: id, Valid: true}, nil
	}
	id, err := UpsertEmotion(ctx, q, input)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

// resolveTags merges the selected tag ids with ids for newly named tags, dropping duplicates but keeping order.
func resolveTags(ctx context.Context, q querier, selected []int64, newNames []string) ([]int64, error) {
	ids := make([]int64, 0, len(selected)+len(newNames))
	ids = append(ids, selected...)
	for _, name := range newNames {
		id, err := UpsertTag(ctx, q, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return uniqueIDs(ids), nil
}

// ParseTagNames splits a comma separated list of new tag names, trimming blanks and
// dropping repeats that differ only by case.
func ParseTagNames(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// ListEmotions returns every emotion ordered by name.
func ListEmotions(ctx context.Context) ([]models.Emotion, error) {
	var emotions []models.Emotion
	if Cache.Get(ctx, emotionsCacheKey, &emotions) {
		return emotions, nil
	}

	rows, err := database.PostgresDB.QueryContext(ctx, `SELECT id, name FROM emotions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}
	defer rows.Close()

	emotions = []models.Emotion{}
	for rows.Next() {
		var e models.Emotion
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("list emotions: %w", err)
		}
		emotions = append(emotions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}

	Cache.Set(ctx, emotionsCacheKey, emotions, LookupCacheTTL)
	return emotions, nil
}

// ListTags returns every tag ordered by name.
func ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if Cache.Get(ctx, tagsCacheKey, &tags) {
		return tags, nil
	}

	rows, err := database.PostgresDB.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags = []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("list tags: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	Cache.Set(ctx, tagsCacheKey, tags, LookupCacheTTL)
	return tags, nil
}

// invalidateLookups drops cached option lists after a write that may have created rows.
func invalidateLookups(ctx context.Context, in MemoryInput) {
	var keys []string
	if e := strings.TrimSpace(in.Emotion); e != "" && !isDigits(e) {
		keys = append(keys, emotionsCacheKey)
	}
	if len(in.NewTags) > 0 {
		keys = append(keys, tagsCacheKey)
	}
	Cache.Delete(ctx, keys...)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
