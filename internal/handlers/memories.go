package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/echoes-backend/internal/middleware"
	"github.com/AnshRaj112/echoes-backend/internal/models"
	"github.com/AnshRaj112/echoes-backend/internal/services"
	"github.com/AnshRaj112/echoes-backend/pkg/validator"
)

type DashboardResponse struct {
	Success  bool                   `json:"success"`
	Name     string                 `json:"name"`
	Memories []models.MemorySummary `json:"memories"`
	Emotions []models.Emotion       `json:"emotions"`
	Tags     []models.Tag           `json:"tags"`
	Filters  models.MemoryFilter    `json:"filters"`
}

type MemoryFormResponse struct {
	Success  bool             `json:"success"`
	Memory   *models.Memory   `json:"memory,omitempty"`
	Emotions []models.Emotion `json:"emotions"`
	Tags     []models.Tag     `json:"tags"`
}

// Dashboard lists the user's memories, narrowed by the search, emotion and tag query parameters.
func Dashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.CurrentSession(r)
	q := r.URL.Query()
	filter := models.MemoryFilter{
		Search:  strings.TrimSpace(q.Get("search")),
		Emotion: strings.TrimSpace(q.Get("emotion")),
		Tag:     strings.TrimSpace(q.Get("tag")),
	}

	memories, err := services.ListMemories(r.Context(), sess.UserID, filter)
	if err != nil {
		serverError(w, r, err, "failed to list memories")
		return
	}
	emotions, tags, ok := lookups(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		Success:  true,
		Name:     sess.Name,
		Memories: memories,
		Emotions: emotions,
		Tags:     tags,
		Filters:  filter,
	})
}

// AddMemoryPage returns the options for the add form.
func AddMemoryPage(w http.ResponseWriter, r *http.Request) {
	emotions, tags, ok := lookups(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, MemoryFormResponse{Success: true, Emotions: emotions, Tags: tags})
}

// AddMemory stores a submitted memory and redirects to the dashboard.
func AddMemory(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.CurrentSession(r)

	in, done, ok := bindMemoryForm(w, r, sess.UserID)
	defer done()
	if !ok {
		return
	}

	if _, err := services.AddMemory(r.Context(), in); err != nil {
		memoryError(w, r, err, "failed to add memory")
		return
	}
	redirect(w, r, "/dashboard")
}

// EditMemoryPage returns the memory with the form options. Memories of other users are 404.
func EditMemoryPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.CurrentSession(r)
	id, ok := memoryID(w, r)
	if !ok {
		return
	}

	memory, err := services.GetMemory(r.Context(), id, sess.UserID)
	if err != nil {
		memoryError(w, r, err, "failed to load memory")
		return
	}
	emotions, tags, ok := lookups(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, MemoryFormResponse{Success: true, Memory: memory, Emotions: emotions, Tags: tags})
}

// EditMemory applies a submitted edit and redirects to the dashboard.
func EditMemory(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.CurrentSession(r)
	id, ok := memoryID(w, r)
	if !ok {
		return
	}

	in, done, ok := bindMemoryForm(w, r, sess.UserID)
	defer done()
	if !ok {
		return
	}

	if err := services.EditMemory(r.Context(), id, sess.UserID, in); err != nil {
		memoryError(w, r, err, "failed to edit memory")
		return
	}
	redirect(w, r, "/dashboard")
}

// DeleteMemory removes the memory when the caller owns it and always redirects to the dashboard.
func DeleteMemory(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.CurrentSession(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		redirect(w, r, "/dashboard")
		return
	}

	if err := services.DeleteMemory(r.Context(), id, sess.UserID); err != nil {
		serverError(w, r, err, "failed to delete memory")
		return
	}
	redirect(w, r, "/dashboard")
}

func memoryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "Memory not found")
		return 0, false
	}
	return id, true
}

func lookups(w http.ResponseWriter, r *http.Request) ([]models.Emotion, []models.Tag, bool) {
	emotions, err := services.ListEmotions(r.Context())
	if err != nil {
		serverError(w, r, err, "failed to list emotions")
		return nil, nil, false
	}
	tags, err := services.ListTags(r.Context())
	if err != nil {
		serverError(w, r, err, "failed to list tags")
		return nil, nil, false
	}
	return emotions, tags, true
}

// bindMemoryForm parses and validates an add/edit submission. done closes uploaded files and is always safe to call.
func bindMemoryForm(w http.ResponseWriter, r *http.Request, userID int64) (services.MemoryInput, func(), bool) {
	form, uploads, done, err := parseMemoryForm(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		} else {
			writeError(w, http.StatusBadRequest, "Invalid form submission")
		}
		return services.MemoryInput{}, done, false
	}

	if err := validator.ValidateStruct(form); err != nil {
		writeValidationError(w, err)
		return services.MemoryInput{}, done, false
	}

	in, err := form.input(userID, uploads)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be a date in YYYY-MM-DD format")
		return services.MemoryInput{}, done, false
	}
	return in, done, true
}

func memoryError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "Memory not found")
	case errors.Is(err, models.ErrInvalidEmotion):
		writeError(w, http.StatusBadRequest, "Unknown emotion")
	case errors.Is(err, models.ErrInvalidTag):
		writeError(w, http.StatusBadRequest, "Unknown tag")
	case errors.Is(err, models.ErrUnsupportedAttachment):
		writeError(w, http.StatusBadRequest, "Unsupported file type")
	default:
		serverError(w, r, err, msg)
	}
}
