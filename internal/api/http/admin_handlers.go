package http

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/apperr"
	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/rbac"
	"github.com/tepiprep/tepiprep/internal/report"
	"github.com/tepiprep/tepiprep/internal/stats"
	"github.com/tepiprep/tepiprep/internal/storage"
	syncx "github.com/tepiprep/tepiprep/internal/sync"
)

const maxUploadBytes = 20 << 20

// CreateQuestionHandler accepts one question object or an array of them.
// An array is inserted all-or-nothing.
func CreateQuestionHandler(store question.Store, agg *stats.Aggregator, events *syncx.EventRepo, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		author := rbac.SubjectFromContext(ctx)

		body := bufio.NewReader(http.MaxBytesReader(w, r.Body, 4*maxJSONBody))
		first, err := peekNonSpace(body)
		if err != nil {
			writeError(w, r, log, apperr.Wrap(apperr.Validation("Requête invalide."), err))
			return
		}

		var created []question.Question
		if first == '[' {
			var qs []question.Question
			if err := json.NewDecoder(body).Decode(&qs); err != nil {
				writeError(w, r, log, apperr.Wrap(apperr.Validation("Requête invalide."), err))
				return
			}
			if len(qs) == 0 {
				writeError(w, r, log, apperr.Validation(apperr.MsgRequiredFields))
				return
			}
			for i := range qs {
				qs[i].ID = ""
				qs[i].CreatedBy = author
			}
			if _, err := store.CreateAll(ctx, qs); err != nil {
				writeError(w, r, log, err)
				return
			}
			created = qs
		} else {
			var q question.Question
			if err := json.NewDecoder(body).Decode(&q); err != nil {
				writeError(w, r, log, apperr.Wrap(apperr.Validation("Requête invalide."), err))
				return
			}
			q.ID = ""
			q.CreatedBy = author
			if q, err = store.Create(ctx, q); err != nil {
				writeError(w, r, log, err)
				return
			}
			created = []question.Question{q}
		}

		if agg != nil {
			agg.Invalidate()
		}
		for _, q := range created {
			if events == nil {
				break
			}
			if err := events.Record(ctx, syncx.TypeQuestionCreated, q.ID, map[string]string{
				"category": string(q.Category), "created_by": author,
			}); err != nil {
				log.Error("question event append failed", zap.String("question_id", q.ID), zap.Error(err))
			}
		}
		log.Info("questions created", zap.Int("count", len(created)), zap.String("author", author))

		if first == '[' {
			writeJSON(w, http.StatusCreated, map[string]any{"inserted": len(created), "questions": created})
			return
		}
		writeJSON(w, http.StatusCreated, created[0])
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// UploadHandler stores a multipart "file" in a bucket and returns its public URL.
func UploadHandler(buckets *storage.Buckets, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bucket := chi.URLParam(r, "bucket")
		if !storage.KnownBucket(bucket) {
			writeError(w, r, log, storage.ErrUnknownBucket)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, log, apperr.Wrap(apperr.Validation("Veuillez sélectionner un fichier."), err))
			return
		}
		defer f.Close()

		obj, err := buckets.Upload(bucket, hdr.Filename, f)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		log.Info("file uploaded", zap.String("bucket", bucket), zap.String("key", obj.Key), zap.Int64("size", hdr.Size))
		writeJSON(w, http.StatusCreated, obj)
	}
}

func StatsHandler(agg *stats.Aggregator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("refresh") == "1" {
			agg.Invalidate()
		}
		st, err := agg.Get(r.Context())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func StatsCSVHandler(agg *stats.Aggregator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := agg.Get(r.Context())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="statistiques.csv"`)
		if err := report.WriteStatsCSV(w, st); err != nil {
			log.Error("write stats csv", zap.Error(err))
		}
	}
}

// EventsHandler lists the latest events, optionally of one type.
func EventsHandler(events *syncx.EventRepo, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		evs, err := events.Recent(r.Context(), r.URL.Query().Get("type"), limit)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if evs == nil {
			evs = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, evs)
	}
}
