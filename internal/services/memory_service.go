package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/echoes-backend/internal/database"
	"github.com/AnshRaj112/echoes-backend/internal/metrics"
	"github.com/AnshRaj112/echoes-backend/internal/models"
)

// MemoryInput is the submitted add/edit form.
type MemoryInput struct {
	UserID         int64
	Title          string
	Content        string
	Date           time.Time
	Emotion        string // existing emotion id, or a name to upsert, or blank
	SelectedTagIDs []int64
	NewTags        []string
	Image          *Upload
	Audio          *Upload
}

func (in MemoryInput) uploads() map[string]*Upload {
	out := make(map[string]*Upload, 2)
	if in.Image != nil {
		out[AttachmentImage] = in.Image
	}
	if in.Audio != nil {
		out[AttachmentAudio] = in.Audio
	}
	return out
}

func (in MemoryInput) validateUploads() error {
	for kind, up := range in.uploads() {
		if err := ValidateAttachment(kind, up.Filename); err != nil {
			return err
		}
	}
	return nil
}

// attachmentColumns maps an attachment kind to its memories column
var attachmentColumns = map[string]string{
	AttachmentImage: "image_path",
	AttachmentAudio: "audio_path",
}

// AddMemory creates a memory with its emotion, tags and attachments in one transaction.
// The returned memory does not carry tags; load it with GetMemory for that.
func AddMemory(ctx context.Context, in MemoryInput) (*models.Memory, error) {
	if err := in.validateUploads(); err != nil {
		return nil, err
	}

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	emotionID, err := resolveEmotion(ctx, tx, in.Emotion)
	if err != nil {
		return nil, err
	}

	memory := &models.Memory{
		UserID:  in.UserID,
		Title:   strings.TrimSpace(in.Title),
		Content: in.Content,
		Date:    in.Date,
	}
	if emotionID.Valid {
		id := emotionID.Int64
		memory.EmotionID = &id
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO memories (user_id, title, content, memory_date, emotion_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, in.UserID, memory.Title, memory.Content, in.Date, emotionID).Scan(&memory.ID, &memory.CreatedAt, &memory.UpdatedAt)
	if err != nil {
		if database.IsPQError(err, database.ForeignKeyViolation) {
			return nil, models.ErrInvalidEmotion
		}
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	tagIDs, err := resolveTags(ctx, tx, in.SelectedTagIDs, in.NewTags)
	if err != nil {
		return nil, err
	}
	if err := linkTags(ctx, tx, memory.ID, tagIDs); err != nil {
		return nil, err
	}

	saved, err := storeAttachments(ctx, tx, memory.ID, in)
	if err != nil {
		return nil, err
	}
	memory.ImagePath = saved[AttachmentImage]
	memory.AudioPath = saved[AttachmentAudio]

	if err := tx.Commit(); err != nil {
		removeAttachments(ctx, saved)
		return nil, err
	}

	invalidateLookups(ctx, in)
	metrics.MemoriesCreated.Inc()
	logrus.WithFields(logrus.Fields{"memory_id": memory.ID, "user_id": in.UserID}).Info("memory created")
	return memory, nil
}

// GetMemory loads a memory and its tags. Memories of other users are models.ErrNotFound.
func GetMemory(ctx context.Context, id, owner int64) (*models.Memory, error) {
	var (
		m         models.Memory
		emotionID sql.NullInt64
	)
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT m.id, m.user_id, m.title, m.content, m.memory_date, m.emotion_id,
			COALESCE(e.name, ''), COALESCE(m.image_path, ''), COALESCE(m.audio_path, ''),
			m.created_at, m.updated_at
		FROM memories m
		LEFT JOIN emotions e ON e.id = m.emotion_id
		WHERE m.id = $1 AND m.user_id = $2
	`, id, owner).Scan(&m.ID, &m.UserID, &m.Title, &m.Content, &m.Date, &emotionID,
		&m.EmotionName, &m.ImagePath, &m.AudioPath, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	if emotionID.Valid {
		m.EmotionID = &emotionID.Int64
	}

	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT t.id, t.name
		FROM memory_tags mt
		JOIN tags t ON t.id = mt.tag_id
		WHERE mt.memory_id = $1
		ORDER BY t.name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get memory tags: %w", err)
	}
	defer rows.Close()

	m.Tags = []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("get memory tags: %w", err)
		}
		m.Tags = append(m.Tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get memory tags: %w", err)
	}

	return &m, nil
}

// EditMemory overwrites the memory's fields and replaces its tag set.
// An attachment is only replaced when a new file is supplied; the old object is removed after commit.
func EditMemory(ctx context.Context, id, owner int64, in MemoryInput) error {
	if err := in.validateUploads(); err != nil {
		return err
	}

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var imagePath, audioPath sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT image_path, audio_path FROM memories
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, owner).Scan(&imagePath, &audioPath)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock memory: %w", err)
	}
	previous := map[string]string{
		AttachmentImage: imagePath.String,
		AttachmentAudio: audioPath.String,
	}

	emotionID, err := resolveEmotion(ctx, tx, in.Emotion)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE memories
		SET title = $1, content = $2, memory_date = $3, emotion_id = $4, updated_at = NOW()
		WHERE id = $5
	`, strings.TrimSpace(in.Title), in.Content, in.Date, emotionID, id)
	if err != nil {
		if database.IsPQError(err, database.ForeignKeyViolation) {
			return models.ErrInvalidEmotion
		}
		return fmt.Errorf("update memory: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE memory_id = $1`, id); err != nil {
		return fmt.Errorf("clear memory tags: %w", err)
	}
	tagIDs, err := resolveTags(ctx, tx, in.SelectedTagIDs, in.NewTags)
	if err != nil {
		return err
	}
	if err := linkTags(ctx, tx, id, tagIDs); err != nil {
		return err
	}

	saved, err := storeAttachments(ctx, tx, id, in)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		removeAttachments(ctx, saved)
		return err
	}

	replaced := make(map[string]string)
	for kind := range saved {
		if old := previous[kind]; old != "" {
			replaced[kind] = old
		}
	}
	removeAttachments(ctx, replaced)

	invalidateLookups(ctx, in)
	return nil
}

// DeleteMemory removes the memory if owner owns it and is a no-op otherwise.
func DeleteMemory(ctx context.Context, id, owner int64) error {
	var imagePath, audioPath string
	err := database.PostgresDB.QueryRowContext(ctx, `
		DELETE FROM memories
		WHERE id = $1 AND user_id = $2
		RETURNING COALESCE(image_path, ''), COALESCE(audio_path, '')
	`, id, owner).Scan(&imagePath, &audioPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}

	removeAttachments(ctx, map[string]string{
		AttachmentImage: imagePath,
		AttachmentAudio: audioPath,
	})
	return nil
}

// ListMemories returns the owner's memories narrowed by filter, newest memory date first.
func ListMemories(ctx context.Context, owner int64, filter models.MemoryFilter) ([]models.MemorySummary, error) {
	query, args := buildListMemoriesQuery(owner, filter)

	rows, err := database.PostgresDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	memories := []models.MemorySummary{}
	for rows.Next() {
		var (
			s         models.MemorySummary
			emotionID sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Content, &s.Date, &emotionID, &s.EmotionName,
			&s.ImagePath, &s.AudioPath, &s.TagList, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("list memories: %w", err)
		}
		if emotionID.Valid {
			id := emotionID.Int64
			s.EmotionID = &id
		}
		s.Emoji = models.EmojiFor(s.EmotionName)
		s.ImageURL = Attachments.URL(s.ImagePath)
		s.AudioURL = Attachments.URL(s.AudioPath)
		memories = append(memories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	return memories, nil
}

// OwnsAttachment reports whether one of owner's memories references the stored path.
func OwnsAttachment(ctx context.Context, owner int64, path string) (bool, error) {
	var owns bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM memories
			WHERE user_id = $1 AND (image_path = $2 OR audio_path = $2)
		)
	`, owner, path).Scan(&owns)
	if err != nil {
		return false, fmt.Errorf("check attachment owner: %w", err)
	}
	return owns, nil
}

func linkTags(ctx context.Context, q querier, memoryID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO memory_tags (memory_id, tag_id)
		SELECT $1, UNNEST($2::int[])
		ON CONFLICT DO NOTHING
	`, memoryID, pq.Array(tagIDs))
	if err != nil {
		if database.IsPQError(err, database.ForeignKeyViolation) {
			return models.ErrInvalidTag
		}
		return fmt.Errorf("link tags: %w", err)
	}
	return nil
}

// storeAttachments writes the supplied files and records their paths on the memory row.
// On error, anything already written is removed again.
func storeAttachments(ctx context.Context, q querier, memoryID int64, in MemoryInput) (map[string]string, error) {
	saved := make(map[string]string)
	for _, kind := range []string{AttachmentImage, AttachmentAudio} {
		up := in.uploads()[kind]
		if up == nil {
			continue
		}

		path, err := Attachments.Save(ctx, attachmentName(memoryID, kind, up.Filename), up.Reader)
		if err != nil {
			removeAttachments(ctx, saved)
			return nil, fmt.Errorf("store %s: %w", kind, err)
		}
		saved[kind] = path

		query := fmt.Sprintf(`UPDATE memories SET %s = $1 WHERE id = $2`, attachmentColumns[kind])
		if _, err := q.ExecContext(ctx, query, path, memoryID); err != nil {
			removeAttachments(ctx, saved)
			return nil, fmt.Errorf("record %s: %w", kind, err)
		}
	}
	return saved, nil
}

func removeAttachments(ctx context.Context, paths map[string]string) {
	for kind, path := range paths {
		if path == "" {
			continue
		}
		if err := Attachments.Remove(ctx, path); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"kind": kind, "path": path}).Warn("failed to remove attachment")
		}
	}
}
