package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ignite/sendgrid-analytics/internal/analytics"
	"github.com/ignite/sendgrid-analytics/internal/config"
	"github.com/ignite/sendgrid-analytics/internal/datanorm"
	"github.com/ignite/sendgrid-analytics/internal/domain"
	"github.com/ignite/sendgrid-analytics/internal/pkg/httputil"
	"github.com/ignite/sendgrid-analytics/internal/pkg/logger"
	"github.com/ignite/sendgrid-analytics/internal/report"
	"github.com/ignite/sendgrid-analytics/internal/storage"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions     *storage.SessionStore
	importer     *datanorm.Importer
	engine       *analytics.Engine
	cache        storage.ResultCache
	reports      *report.Builder
	archive      *storage.ReportArchive
	validate     *validator.Validate
	export       config.ExportConfig
	presentation config.PresentationConfig
	benchmarks   map[string]map[string]float64
	maxUpload    int64
	now          func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(cfg *config.Config, deps Deps) *Handlers {
	h := &Handlers{
		sessions:     deps.Sessions,
		importer:     deps.Importer,
		engine:       deps.Engine,
		cache:        deps.Cache,
		reports:      deps.Reports,
		archive:      deps.Archive,
		validate:     newValidator(),
		export:       cfg.Export,
		presentation: cfg.Presentation,
		benchmarks:   cfg.Benchmarks,
		maxUpload:    cfg.Sessions.MaxUploadBytes(),
		now:          time.Now,
	}
	if h.reports == nil {
		h.reports = report.NewBuilder(cfg.EventLabels())
	}
	return h
}

// sessionResponse is what the client sees of a session.
type sessionResponse struct {
	ID          string                  `json:"id"`
	Source      string                  `json:"source"`
	UploadedAt  time.Time               `json:"uploaded_at"`
	Diagnostics domain.Diagnostics      `json:"diagnostics"`
	Warnings    []string                `json:"warnings"`
	Options     analytics.FilterOptions `json:"options"`
	Filter      domain.Filter           `json:"filter"`
}

func newSessionResponse(s storage.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		Source:      s.Dataset.Source,
		UploadedAt:  s.Dataset.UploadedAt,
		Diagnostics: s.Dataset.Diagnostics,
		Warnings:    nonNil(s.Dataset.Diagnostics.Warnings()),
		Options:     s.Dataset.Options,
		Filter:      s.Filter,
	}
}

// Upload accepts a multipart CSV export and opens a session on the cleaned
// dataset.
//
//	POST /api/uploads
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Fail(w, http.StatusRequestEntityTooLarge, httputil.CodeTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), nil)
			return
		}
		httputil.BadRequest(w, "expected a multipart form with a \"file\" field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "missing \"file\" field")
		return
	}
	defer file.Close()

	res, err := h.importer.Import(file)
	if err != nil {
		logger.Warn("upload rejected", "source", header.Filename, "error", err)
		respondImportError(w, err)
		return
	}

	sess := h.sessions.Create(storage.NewDataset(header.Filename, res.Records, res.Diagnostics))
	logger.Info("upload accepted",
		"session_id", sess.ID,
		"source", header.Filename,
		"retained", res.Diagnostics.Retained,
		"dropped", res.Diagnostics.Dropped(),
	)
	httputil.Created(w, newSessionResponse(sess))
}

// GetSession returns the dataset diagnostics, filter options and current
// filter.
//
//	GET /api/sessions/{sessionID}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.OK(w, newSessionResponse(sess))
}

// DeleteSession discards a session and its dataset.
//
//	DELETE /api/sessions/{sessionID}
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		respondSessionError(w, err)
		return
	}
	httputil.NoContent(w)
}

// SetFilters replaces the session's filter and returns the recomputed
// result.
//
//	PUT /api/sessions/{sessionID}/filters
func (h *Handlers) SetFilters(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := h.sessions.Get(id); err != nil {
		respondSessionError(w, err)
		return
	}

	var req filterRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Fail(w, http.StatusBadRequest, httputil.CodeInvalidFilter, "invalid filter", validationErrors(err))
		return
	}
	f, err := req.toFilter()
	if err != nil {
		httputil.Fail(w, http.StatusBadRequest, httputil.CodeInvalidFilter, err.Error(), nil)
		return
	}

	sess, err := h.sessions.SetFilter(id, f)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	httputil.OK(w, h.compute(r.Context(), sess))
}

// GetDaily returns the daily table under the session's filter.
//
//	GET /api/sessions/{sessionID}/daily
func (h *Handlers) GetDaily(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	res := h.compute(r.Context(), sess)
	httputil.OK(w, map[string]any{
		"daily": res.Daily,
		"empty": res.Empty,
	})
}

// GetSummary returns the summary and rating under the session's filter.
//
//	GET /api/sessions/{sessionID}/summary
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	res := h.compute(r.Context(), sess)
	resp := map[string]any{
		"summary": res.Summary,
		"empty":   res.Empty,
	}
	if res.Empty {
		resp["message"] = "No data matches the selected filters"
	}
	httputil.OK(w, resp)
}

// GetDay returns one day's row; a day without data yields zero counts.
//
//	GET /api/sessions/{sessionID}/days/{day}
func (h *Handlers) GetDay(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	day, err := domain.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		httputil.BadRequest(w, "day must be formatted YYYY-MM-DD")
		return
	}
	res := h.compute(r.Context(), sess)
	httputil.OK(w, analytics.DayMetrics(res.Daily, day))
}

// Export renders a report under the session's filter as a file download.
// When archiving is enabled the file is also copied to object storage.
//
//	GET /api/sessions/{sessionID}/exports/{kind}?format=xlsx|csv&day=YYYY-MM-DD
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kind, err := report.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.NotFound(w, codeUnknownReport, err.Error())
		return
	}
	formatParam := r.URL.Query().Get("format")
	if formatParam == "" {
		formatParam = h.export.DefaultFormat
	}
	format, err := report.ParseFormat(formatParam)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res := h.compute(r.Context(), sess)
	meta := report.Meta{
		Source:      sess.Dataset.Source,
		Filter:      sess.Filter,
		Available:   sess.Dataset.Options,
		GeneratedAt: h.now(),
	}

	var rep *report.Report
	switch kind {
	case report.KindSummary:
		rep = h.reports.Summary(res.Summary, meta)
	case report.KindDaily:
		rep = h.reports.Daily(res.Daily, meta)
	case report.KindDay:
		day, err := domain.ParseDay(r.URL.Query().Get("day"))
		if err != nil {
			httputil.BadRequest(w, "day query parameter must be formatted YYYY-MM-DD")
			return
		}
		rep = h.reports.Day(analytics.DayMetrics(res.Daily, day), meta)
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, rep, format, h.export.SheetName); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "Failed to render report")
		return
	}
	filename := report.Filename(h.export.FilenamePrefix, kind, string(format), meta.GeneratedAt)

	if h.archive != nil {
		key, err := h.archive.Put(r.Context(), filename, format.ContentType(), buf.Bytes())
		if err != nil {
			logger.Warn("report archive failed", "file", filename, "error", err)
		} else {
			w.Header().Set("X-Archive-Key", key)
		}
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetPresentation returns the colors, labels and benchmarks the dashboard
// renders with.
//
//	GET /api/presentation
func (h *Handlers) GetPresentation(w http.ResponseWriter, r *http.Request) {
	labels := make(map[domain.EventType]string)
	for _, et := range domain.DefaultEventVocabulary() {
		labels[et] = h.reports.Label(et)
	}
	httputil.OK(w, map[string]any{
		"colors":     h.presentation.Colors,
		"labels":     labels,
		"benchmarks": h.benchmarks,
	})
}

// session loads the session named in the URL, writing the error response
// itself when it cannot.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (storage.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondSessionError(w, err)
		return storage.Session{}, false
	}
	return sess, true
}

// compute runs the engine for a session, going through the result cache
// when one is configured. Cache failures only cost a recomputation.
func (h *Handlers) compute(ctx context.Context, sess storage.Session) analytics.Result {
	if h.cache == nil {
		return h.engine.Compute(sess.Dataset.Records, sess.Filter)
	}

	key := storage.CacheKey(sess.Dataset.Fingerprint, sess.Filter)
	cached, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("result cache read failed", "key", key, "error", err)
	} else if ok {
		return cached
	}

	res := h.engine.Compute(sess.Dataset.Records, sess.Filter)
	if err := h.cache.Set(ctx, key, res); err != nil {
		logger.Warn("result cache write failed", "key", key, "error", err)
	}
	return res
}
