package http

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/storage"
)

// MountStorage serves uploaded files publicly: GET /{bucket}/{key}.
func MountStorage(r chi.Router, buckets *storage.Buckets, log *zap.Logger) {
	r.Get("/{bucket}/*", func(w http.ResponseWriter, r *http.Request) {
		bucket := chi.URLParam(r, "bucket")
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if key == "" || strings.Contains(key, "/") {
			http.NotFound(w, r)
			return
		}
		rc, ct, err := buckets.Open(bucket, key)
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = io.Copy(w, rc)
	})
}
