package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnshRaj112/echoes-backend/internal/models"
	"github.com/google/uuid"
)

// Attachment kinds
const (
	AttachmentImage = "image"
	AttachmentAudio = "audio"
)

// MaxUploadSize caps the whole multipart body of an add/edit submission.
const MaxUploadSize = 20 << 20

var allowedExtensions = map[string]map[string]bool{
	AttachmentImage: {".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true},
	AttachmentAudio: {".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".webm": true},
}

var ErrRemoteAttachment = errors.New("attachment is stored remotely")

// AttachmentStore persists uploaded files. The returned path is what gets stored on the memory row.
type AttachmentStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(path string) (io.ReadSeekCloser, time.Time, error)
	Remove(ctx context.Context, path string) error
	URL(path string) string
}

// Attachments is the store used by the memory service; main swaps in Cloudinary when configured.
var Attachments AttachmentStore = NewLocalStore("uploads")

// Upload is one file submitted with a memory form.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// ValidateAttachment checks the file extension against the kind's allow list.
func ValidateAttachment(kind, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[kind][ext] {
		return fmt.Errorf("%w: %s %q", models.ErrUnsupportedAttachment, kind, filename)
	}
	return nil
}

// attachmentName scopes stored files by memory and kind, with a random suffix so replacements never collide.
func attachmentName(memoryID int64, kind, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%d-%s-%s%s", memoryID, kind, uuid.NewString()[:8], ext)
}

// LocalStore keeps attachments as flat files in one directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// resolve maps a stored name to a file inside dir, refusing anything that is not a bare file name.
func (s *LocalStore) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", os.ErrNotExist
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", fmt.Errorf("invalid attachment name %q", name)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return name, nil
}

func (s *LocalStore) Open(name string) (io.ReadSeekCloser, time.Time, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, time.Time{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, time.Time{}, err
	}
	if info.IsDir() {
		f.Close()
		return nil, time.Time{}, os.ErrNotExist
	}
	return f, info.ModTime(), nil
}

func (s *LocalStore) Remove(ctx context.Context, name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) URL(name string) string {
	if name == "" {
		return ""
	}
	return "/uploads/" + url.PathEscape(name)
}
