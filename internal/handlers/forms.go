package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/echoes-backend/internal/services"
)

// FormPage describes the fields a page's form submits.
type FormPage struct {
	Success bool     `json:"success"`
	Form    string   `json:"form"`
	Action  string   `json:"action"`
	Fields  []string `json:"fields"`
}

var errBadBody = errors.New("invalid request body")

// readFields returns the submitted fields from either a JSON object or an urlencoded/multipart form.
func readFields(r *http.Request) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, errBadBody
		}
		values := url.Values{}
		for k, v := range body {
			switch val := v.(type) {
			case string:
				values.Set(k, val)
			case float64:
				values.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
			case []interface{}:
				for _, item := range val {
					values.Add(k, fmt.Sprint(item))
				}
			}
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errBadBody
	}
	return r.PostForm, nil
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=150"`
	Password string `json:"password" validate:"required,max=128"`
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=150"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=150"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email,max=150"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type memoryForm struct {
	Title        string  `json:"title" validate:"required,max=200"`
	Content      string  `json:"content" validate:"max=20000"`
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	Emotion      string  `json:"emotion" validate:"max=50"`
	NewTags      string  `json:"new_tags" validate:"max=500"`
	SelectedTags []int64 `json:"selected_tags" validate:"max=50"`
}

// parseMemoryForm reads an add/edit submission. Attachments are optional; the caller must close the returned files.
func parseMemoryForm(w http.ResponseWriter, r *http.Request) (*memoryForm, []*services.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadSize)
	if err := r.ParseMultipartForm(services.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, func() {}, err
	}

	form := &memoryForm{
		Title:   strings.TrimSpace(r.FormValue("title")),
		Content: r.FormValue("content"),
		Date:    strings.TrimSpace(r.FormValue("date")),
		Emotion: strings.TrimSpace(r.FormValue("emotion")),
		NewTags: r.FormValue("new_tags"),
	}

	raw := append(append([]string{}, r.Form["selected_tags"]...), r.Form["selected_tags[]"]...)
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return nil, nil, func() {}, fmt.Errorf("%w: selected_tags must be tag ids", errBadBody)
		}
		form.SelectedTags = append(form.SelectedTags, id)
	}

	var (
		uploads []*services.Upload
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	for _, field := range []string{services.AttachmentImage, services.AttachmentAudio} {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			uploads = append(uploads, nil)
			continue
		}
		if err != nil {
			closeAll()
			return nil, nil, func() {}, err
		}
		closers = append(closers, file.Close)
		// Browsers submit an empty part for an untouched file input
		if header.Filename == "" || header.Size == 0 {
			uploads = append(uploads, nil)
			continue
		}
		uploads = append(uploads, &services.Upload{Filename: header.Filename, Reader: file})
	}

	return form, uploads, closeAll, nil
}

func (f *memoryForm) input(userID int64, uploads []*services.Upload) (services.MemoryInput, error) {
	date, err := time.Parse("2006-01-02", f.Date)
	if err != nil {
		return services.MemoryInput{}, err
	}
	in := services.MemoryInput{
		UserID:         userID,
		Title:          f.Title,
		Content:        f.Content,
		Date:           date,
		Emotion:        f.Emotion,
		SelectedTagIDs: f.SelectedTags,
		NewTags:        services.ParseTagNames(f.NewTags),
	}
	if len(uploads) == 2 {
		in.Image, in.Audio = uploads[0], uploads[1]
	}
	return in, nil
}
