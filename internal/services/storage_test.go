package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/echoes-backend/internal/models"
)

func TestLocalStoreSaveOpenRemove(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(filepath.Join(dir, "nested"))
	ctx := context.Background()

	path, err := store.Save(ctx, "12-image-abcd1234.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "12-image-abcd1234.png", path)

	f, _, err := store.Open(path)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Remove(ctx, path))
	_, err = os.Stat(filepath.Join(dir, "nested", path))
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	assert.NoError(t, store.Remove(ctx, path))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("x"), 0644))
	store := NewLocalStore(filepath.Join(dir, "uploads"))

	for _, name := range []string{"../secret.txt", "..", "", "a/b.png", `..\secret.txt`} {
		_, _, err := store.Open(name)
		assert.Error(t, err, name)
		_, err = store.Save(context.Background(), name, strings.NewReader("x"))
		assert.Error(t, err, name)
	}
}

func TestLocalStoreOpenMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, _, err := store.Open("nope.png")
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoreURL(t *testing.T) {
	store := NewLocalStore("uploads")
	assert.Equal(t, "/uploads/1-image-aa.png", store.URL("1-image-aa.png"))
	assert.Equal(t, "", store.URL(""))
}

func TestValidateAttachment(t *testing.T) {
	assert.NoError(t, ValidateAttachment(AttachmentImage, "Photo.JPG"))
	assert.NoError(t, ValidateAttachment(AttachmentAudio, "voice.m4a"))
	assert.ErrorIs(t, ValidateAttachment(AttachmentImage, "voice.mp3"), models.ErrUnsupportedAttachment)
	assert.ErrorIs(t, ValidateAttachment(AttachmentAudio, "script.sh"), models.ErrUnsupportedAttachment)
	assert.ErrorIs(t, ValidateAttachment(AttachmentImage, "noext"), models.ErrUnsupportedAttachment)
}

func TestAttachmentName(t *testing.T) {
	name := attachmentName(42, AttachmentImage, "Beach Day.JPEG")
	assert.Regexp(t, regexp.MustCompile(`^42-image-[0-9a-f-]{8}\.jpeg$`), name)
	assert.NotEqual(t, name, attachmentName(42, AttachmentImage, "Beach Day.JPEG"))
}

func TestParseCloudinaryURL(t *testing.T) {
	rt, id, err := parseCloudinaryURL("https://res.cloudinary.com/demo/video/upload/v1712345/echoes/7-audio-1a2b3c4d.mp3")
	require.NoError(t, err)
	assert.Equal(t, "video", rt)
	assert.Equal(t, "echoes/7-audio-1a2b3c4d", id)

	rt, id, err = parseCloudinaryURL("https://res.cloudinary.com/demo/image/upload/echoes/7-image-1a2b3c4d.png")
	require.NoError(t, err)
	assert.Equal(t, "image", rt)
	assert.Equal(t, "echoes/7-image-1a2b3c4d", id)

	_, _, err = parseCloudinaryURL("https://example.com/file.png")
	assert.Error(t, err)
}
