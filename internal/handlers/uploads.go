package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/echoes-backend/internal/middleware"
	"github.com/AnshRaj112/echoes-backend/internal/services"
)

// ServeUpload streams an attachment that belongs to one of the caller's memories.
// Remote attachments are redirected to their URL; anything else is 404.
func ServeUpload(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.CurrentSession(r)
	name := chi.URLParam(r, "filename")

	owns, err := services.OwnsAttachment(r.Context(), sess.UserID, name)
	if err != nil {
		serverError(w, r, err, "failed to check attachment owner")
		return
	}
	if !owns {
		http.NotFound(w, r)
		return
	}

	f, modTime, err := services.Attachments.Open(name)
	if errors.Is(err, services.ErrRemoteAttachment) {
		http.Redirect(w, r, services.Attachments.URL(name), http.StatusFound)
		return
	}
	if errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		serverError(w, r, err, "failed to open attachment")
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, name, modTime, f)
}
