package http

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/classware/quizdesk/internal/storage"
)

var allowedMediaExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// POST /admin/media: multipart upload for image-type questions. The
// returned key goes into the question's media_key field.
func UploadMediaHandler(store storage.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			errJSON(w, http.StatusBadRequest, "file required")
			return
		}
		defer f.Close()

		ext := strings.ToLower(filepath.Ext(hdr.Filename))
		if !allowedMediaExt[ext] {
			errJSON(w, http.StatusBadRequest, "unsupported media type")
			return
		}
		key, err := store.Put(ext, f)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, "upload failed")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"media_key": key})
	}
}

// GET /media/*: serves stored question media to logged-in users.
func ServeMediaHandler(store storage.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if key == "" || strings.Contains(key, "..") {
			errJSON(w, http.StatusBadRequest, "bad media key")
			return
		}
		rc, err := store.Get(key)
		if err != nil {
			errJSON(w, http.StatusNotFound, "media not found")
			return
		}
		defer rc.Close()

		switch strings.ToLower(filepath.Ext(key)) {
		case ".png":
			w.Header().Set("Content-Type", "image/png")
		case ".jpg", ".jpeg":
			w.Header().Set("Content-Type", "image/jpeg")
		case ".gif":
			w.Header().Set("Content-Type", "image/gif")
		case ".webp":
			w.Header().Set("Content-Type", "image/webp")
		default:
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		w.Header().Set("Cache-Control", "private, max-age=3600")
		_, _ = io.Copy(w, rc)
	}
}
