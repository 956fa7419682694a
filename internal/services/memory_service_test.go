package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/echoes-backend/internal/models"
)

var (
	upsertEmotionQuery = regexp.QuoteMeta(`INSERT INTO emotions (name) VALUES ($1)`)
	upsertTagQuery     = regexp.QuoteMeta(`INSERT INTO tags (name) VALUES ($1)`)
	insertMemoryQuery  = regexp.QuoteMeta(`INSERT INTO memories (user_id, title, content, memory_date, emotion_id)`)
	linkTagsQuery      = regexp.QuoteMeta(`INSERT INTO memory_tags (memory_id, tag_id)`)
	lockMemoryQuery    = regexp.QuoteMeta(`SELECT image_path, audio_path FROM memories WHERE id = $1 AND user_id = $2 FOR UPDATE`)
	updateMemoryQuery  = regexp.QuoteMeta(`UPDATE memories SET title = $1, content = $2, memory_date = $3, emotion_id = $4`)
	clearTagsQuery     = regexp.QuoteMeta(`DELETE FROM memory_tags WHERE memory_id = $1`)
	deleteMemoryQuery  = regexp.QuoteMeta(`DELETE FROM memories WHERE id = $1 AND user_id = $2`)
	listMemoriesQuery  = regexp.QuoteMeta(`FROM memories m LEFT JOIN emotions e ON e.id = m.emotion_id`)
)

var summaryColumns = []string{
	"id", "title", "content", "memory_date", "emotion_id", "emotion_name",
	"image_path", "audio_path", "tag_list", "created_at",
}

var memoryDate = time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)

func TestAddMemoryAndList(t *testing.T) {
	mock := setupDB(t)
	dir := setupAttachments(t)
	ctx := context.Background()
	created := time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC)
	var imagePath string

	mock.ExpectBegin()
	mock.ExpectQuery(upsertEmotionQuery).
		WithArgs("Joy").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(insertMemoryQuery).
		WithArgs(1, "Beach day", "Sunny and warm", memoryDate, 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, created, created))
	mock.ExpectQuery(upsertTagQuery).
		WithArgs("Travel").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(linkTagsQuery).
		WithArgs(10, pq.Array([]int64{2, 5})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE memories SET image_path = $1 WHERE id = $2`)).
		WithArgs(captureString{&imagePath}, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	memory, err := AddMemory(ctx, MemoryInput{
		UserID:         1,
		Title:          " Beach day ",
		Content:        "Sunny and warm",
		Date:           memoryDate,
		Emotion:        "Joy",
		SelectedTagIDs: []int64{2, 2},
		NewTags:        []string{"Travel"},
		Image:          &Upload{Filename: "beach.PNG", Reader: strings.NewReader("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), memory.ID)
	assert.Equal(t, "Beach day", memory.Title)
	require.NotNil(t, memory.EmotionID)
	assert.Equal(t, int64(4), *memory.EmotionID)
	assert.Regexp(t, `^10-image-[0-9a-f]{8}\.png$`, memory.ImagePath)
	assert.Equal(t, imagePath, memory.ImagePath)
	assert.Empty(t, memory.AudioPath)

	data, err := os.ReadFile(filepath.Join(dir, memory.ImagePath))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	mock.ExpectQuery(listMemoriesQuery).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow(10, "Beach day", "Sunny and warm", memoryDate, 4, "Joy", memory.ImagePath, "", "Sunset, Travel", created))

	list, err := ListMemories(ctx, 1, models.MemoryFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Beach day", list[0].Title)
	assert.Equal(t, "Joy", list[0].EmotionName)
	assert.Equal(t, "😊", list[0].Emoji)
	assert.Equal(t, "Sunset, Travel", list[0].TagList)
	assert.Equal(t, "/uploads/"+memory.ImagePath, list[0].ImageURL)
	assert.Empty(t, list[0].AudioURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMemoryWithoutEmotionOrTags(t *testing.T) {
	mock := setupDB(t)
	setupAttachments(t)
	created := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(insertMemoryQuery).
		WithArgs(1, "Quiet", "", memoryDate, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, created, created))
	mock.ExpectCommit()

	memory, err := AddMemory(context.Background(), MemoryInput{UserID: 1, Title: "Quiet", Date: memoryDate})
	require.NoError(t, err)
	assert.Nil(t, memory.EmotionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMemoryUnknownEmotionID(t *testing.T) {
	mock := setupDB(t)
	setupAttachments(t)

	mock.ExpectBegin()
	mock.ExpectQuery(insertMemoryQuery).
		WithArgs(1, "Quiet", "", memoryDate, 99).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	_, err := AddMemory(context.Background(), MemoryInput{UserID: 1, Title: "Quiet", Date: memoryDate, Emotion: "99"})
	assert.ErrorIs(t, err, models.ErrInvalidEmotion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMemoryRejectsUnsupportedAttachment(t *testing.T) {
	mock := setupDB(t)
	setupAttachments(t)

	_, err := AddMemory(context.Background(), MemoryInput{
		UserID: 1,
		Title:  "x",
		Date:   memoryDate,
		Audio:  &Upload{Filename: "run.exe", Reader: strings.NewReader("MZ")},
	})
	assert.ErrorIs(t, err, models.ErrUnsupportedAttachment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMemoryRemovesFilesWhenCommitFails(t *testing.T) {
	mock := setupDB(t)
	dir := setupAttachments(t)
	created := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(insertMemoryQuery).
		WithArgs(1, "x", "", memoryDate, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(12, created, created))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE memories SET audio_path = $1 WHERE id = $2`)).
		WithArgs(sqlmock.AnyArg(), 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, err := AddMemory(context.Background(), MemoryInput{
		UserID: 1,
		Title:  "x",
		Date:   memoryDate,
		Audio:  &Upload{Filename: "voice.mp3", Reader: strings.NewReader("id3")},
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMemory(t *testing.T) {
	mock := setupDB(t)
	created := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE m.id = $1 AND m.user_id = $2`)).
		WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "title", "content", "memory_date", "emotion_id",
			"emotion_name", "image_path", "audio_path", "created_at", "updated_at",
		}).AddRow(10, 1, "Beach day", "Sunny", memoryDate, nil, "", "", "", created, created))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM memory_tags mt JOIN tags t ON t.id = mt.tag_id`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(2, "Sunset").AddRow(5, "Travel"))

	memory, err := GetMemory(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Nil(t, memory.EmotionID)
	assert.Equal(t, []models.Tag{{ID: 2, Name: "Sunset"}, {ID: 5, Name: "Travel"}}, memory.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMemoryOfOtherUser(t *testing.T) {
	mock := setupDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE m.id = $1 AND m.user_id = $2`)).
		WithArgs(10, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := GetMemory(context.Background(), 10, 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEditMemoryNotFound(t *testing.T) {
	mock := setupDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockMemoryQuery).
		WithArgs(10, 2).
		WillReturnRows(sqlmock.NewRows([]string{"image_path", "audio_path"}))
	mock.ExpectRollback()

	err := EditMemory(context.Background(), 10, 2, MemoryInput{Title: "hijack", Date: memoryDate})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEditMemoryReplacesTagSet(t *testing.T) {
	mock := setupDB(t)
	setupAttachments(t)

	// memory 10 currently has tags A(1) and B(2); the form selects B(2) and C(3)
	mock.ExpectBegin()
	mock.ExpectQuery(lockMemoryQuery).
		WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows([]string{"image_path", "audio_path"}).AddRow(nil, nil))
	mock.ExpectExec(updateMemoryQuery).
		WithArgs("Edited", "New text", memoryDate, nil, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(clearTagsQuery).
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(linkTagsQuery).
		WithArgs(10, pq.Array([]int64{2, 3})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := EditMemory(context.Background(), 10, 1, MemoryInput{
		Title:          "Edited",
		Content:        "New text",
		Date:           memoryDate,
		SelectedTagIDs: []int64{2, 3},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEditMemoryReplacesImageOnly(t *testing.T) {
	mock := setupDB(t)
	dir := setupAttachments(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10-image-old00000.png"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10-audio-keep0000.mp3"), []byte("keep"), 0644))
	var newPath string

	mock.ExpectBegin()
	mock.ExpectQuery(lockMemoryQuery).
		WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows([]string{"image_path", "audio_path"}).
			AddRow("10-image-old00000.png", "10-audio-keep0000.mp3"))
	mock.ExpectQuery(upsertEmotionQuery).
		WithArgs("Calm").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectExec(updateMemoryQuery).
		WithArgs("Same", "", memoryDate, 6, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(clearTagsQuery).
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE memories SET image_path = $1 WHERE id = $2`)).
		WithArgs(captureString{&newPath}, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := EditMemory(context.Background(), 10, 1, MemoryInput{
		Title:   "Same",
		Date:    memoryDate,
		Emotion: "Calm",
		Image:   &Upload{Filename: "new.jpg", Reader: strings.NewReader("new")},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = os.Stat(filepath.Join(dir, "10-image-old00000.png"))
	assert.True(t, os.IsNotExist(err), "replaced image is removed")
	_, err = os.Stat(filepath.Join(dir, "10-audio-keep0000.mp3"))
	assert.NoError(t, err, "untouched audio stays")
	data, err := os.ReadFile(filepath.Join(dir, newPath))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDeleteMemoryByOtherUserIsNoop(t *testing.T) {
	mock := setupDB(t)

	mock.ExpectQuery(deleteMemoryQuery).
		WithArgs(10, 2).
		WillReturnRows(sqlmock.NewRows([]string{"image_path", "audio_path"}))

	assert.NoError(t, DeleteMemory(context.Background(), 10, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMemoryRemovesAttachments(t *testing.T) {
	mock := setupDB(t)
	dir := setupAttachments(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10-image-aaaa0000.png"), []byte("x"), 0644))

	mock.ExpectQuery(deleteMemoryQuery).
		WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows([]string{"image_path", "audio_path"}).AddRow("10-image-aaaa0000.png", ""))

	require.NoError(t, DeleteMemory(context.Background(), 10, 1))
	_, err := os.Stat(filepath.Join(dir, "10-image-aaaa0000.png"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMemoriesAppliesFilters(t *testing.T) {
	mock := setupDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`(m.title ILIKE $2 OR m.content ILIKE $3)`)).
		WithArgs(1, "%beach%", "%beach%", "travel").
		WillReturnRows(sqlmock.NewRows(summaryColumns))

	list, err := ListMemories(context.Background(), 1, models.MemoryFilter{Search: "beach", Tag: "travel"})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnsAttachment(t *testing.T) {
	mock := setupDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $1 AND (image_path = $2 OR audio_path = $2)`)).
		WithArgs(1, "10-image-aaaa0000.png").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	owns, err := OwnsAttachment(context.Background(), 1, "10-image-aaaa0000.png")
	require.NoError(t, err)
	assert.True(t, owns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
