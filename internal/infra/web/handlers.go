package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/adapter"
	portusecase "future-self-ai/internal/domain/ports/usecase"
	"future-self-ai/internal/infra/i18n"
	"future-self-ai/internal/infra/logging"
	"future-self-ai/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const (
	statusError    = "ERROR"
	statusNotFound = "NOT_FOUND"
	statusSuccess  = "SUCCESS"
)

// statusView is the polling representation of a job.
type statusView struct {
	JobID        string          `json:"jobId"`
	Status       model.JobStatus `json:"status"`
	Message      string          `json:"message"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	Profession   string          `json:"profession"`
	Age          int             `json:"age"`
	Progress     int             `json:"progress"`
	CreatedAt    time.Time       `json:"createdAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

func newStatusView(j *model.Job, tr *i18n.Translator) statusView {
	v := statusView{
		JobID:      j.ID,
		Status:     j.Status,
		Profession: j.Profession,
		Age:        j.TargetAge,
		CreatedAt:  j.CreatedAt,
	}
	switch j.Status {
	case model.JobStatusProcessing:
		v.Message = tr.T("status.processing")
		v.Progress = 50
	case model.JobStatusCompleted:
		v.Message = tr.T("status.completed")
		v.ImageURL = j.ImageURL
		v.Progress = 100
		v.CompletedAt = j.CompletedAt
	case model.JobStatusFailed:
		v.Message = tr.T("status.failed", j.ErrorMessage)
		v.ErrorMessage = j.ErrorMessage
		v.CompletedAt = j.CompletedAt
	case model.JobStatusDeleted:
		v.Message = tr.T("status.deleted")
		v.CompletedAt = j.CompletedAt
	}
	return v
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, status, msg string) {
	writeJSON(w, code, messageResponse{Status: status, Message: msg})
}

// writeDomainError maps domain sentinels to HTTP codes. Anything unmapped is
// logged and reported without internals.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	tr := s.tr(r)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, statusNotFound, tr.T("job.not_found", chi.URLParam(r, "id")))
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, statusError, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrJobFinalized):
		writeError(w, http.StatusConflict, statusError, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, statusError, tr.T("queue.full"))
	case errors.Is(err, domain.ErrGeneration):
		writeError(w, http.StatusBadGateway, statusError, err.Error())
	case errors.Is(err, domain.ErrUnsupported):
		writeError(w, http.StatusNotImplemented, statusError, err.Error())
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, statusError, tr.T("error.internal"))
	}
}

func (s *Server) tr(r *http.Request) *i18n.Translator {
	return s.opts.Messages.For(r.Header.Get("Accept-Language"))
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	tr := s.tr(r)
	if r.ContentLength > s.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, statusError, tr.T("upload.too_large"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, statusError, tr.T("upload.too_large"))
			return
		}
		writeError(w, http.StatusBadRequest, statusError, tr.T("upload.not_multipart"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	src, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, statusError, err.Error())
		return
	}
	age := 0
	if raw := strings.TrimSpace(r.FormValue("age")); raw != "" {
		if age, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, statusError, tr.T("upload.bad_age"))
			return
		}
	}

	job, err := s.portraits.Submit(r.Context(), usecase.PortraitRequest{
		Profession: r.FormValue("profession"),
		TargetAge:  age,
		Mode:       r.FormValue("mode"),
		Source:     src,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	view := newStatusView(job, tr)
	if job.Status == model.JobStatusProcessing {
		view.Message = tr.T("generate.started")
		view.Progress = 0
	}
	w.Header().Set("Location", "/api/v1/status/"+job.ID)
	writeJSON(w, http.StatusAccepted, view)
}

// readUpload returns the "image" part. A missing part yields an empty image
// so validation reports it the same way as a zero-byte upload.
func readUpload(r *http.Request) (adapter.SourceImage, error) {
	f, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return adapter.SourceImage{}, nil
	}
	if err != nil {
		return adapter.SourceImage{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return adapter.SourceImage{}, err
	}
	mime := hdr.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return adapter.SourceImage{Filename: hdr.Filename, MIME: mime, Data: data}, nil
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusView(job, s.tr(r)))
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	var filter portusecase.JobFilter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		st, err := model.ParseJobStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, statusError, err.Error())
			return
		}
		filter.Status = &st
	}
	if p := strings.TrimSpace(q.Get("profession")); p != "" {
		filter.Profession = &p
	}

	jobs, err := s.jobs.ListJobs(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.Statistics(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	if _, err := s.portraits.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Status: statusSuccess, Message: s.tr(r).T("job.deleted")})
}

func (s *Server) professions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"professions": model.Professions(),
		"minAge":      model.MinTargetAge,
		"maxAge":      model.MaxTargetAge,
		"defaultAge":  model.DefaultTargetAge,
	})
}

func (s *Server) models(w http.ResponseWriter, r *http.Request) {
	models, err := s.portraits.Models(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) setModel(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, statusError, "invalid model name")
		return
	}
	if err := s.portraits.SetModel(r.Context(), name); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Status: statusSuccess, Message: s.tr(r).T("model.changed", name)})
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	p, err := s.portraits.Progress(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type tokenRequest struct {
	APIKey string `json:"apiKey"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	if !s.auth.Enabled() {
		writeError(w, http.StatusForbidden, statusError, errAdminDisabled.Error())
		return
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		var req tokenRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, statusError, "invalid request body")
			return
		}
		key = req.APIKey
	}
	if !s.auth.CheckAPIKey(key) {
		logging.With(r.Context(), s.log).Warn().Msg("admin token refused")
		writeError(w, http.StatusUnauthorized, statusError, s.tr(r).T("error.unauthorized"))
		return
	}
	tok, exp, err := s.auth.Mint(w)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok, ExpiresAt: exp})
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	notFound := s.tr(r).T("image.not_found")
	path, err := s.images.Path(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, http.StatusNotFound, statusNotFound, notFound)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, statusNotFound, notFound)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		writeError(w, http.StatusNotFound, statusNotFound, notFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}
