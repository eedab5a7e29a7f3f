package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-research/audience/internal/importer"
	"github.com/meridian-research/audience/internal/pkg/httputil"
	"github.com/meridian-research/audience/internal/pkg/logger"
	"github.com/meridian-research/audience/internal/progress"
)

type importRequest struct {
	Content        string `json:"content"`
	Filename       string `json:"filename"`
	SkipDuplicates bool   `json:"skipDuplicates"`
}

// HandleImport runs a bulk subscriber import. The payload arrives either as
// JSON ({"content": "...csv...", "skipDuplicates": true}) or as a multipart
// upload with a "file" part. The run is synchronous: the response is the
// complete import report.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Import.MaxPayloadBytes)

	payload, filename, skipDup, ok := h.readImportPayload(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(payload) == "" {
		httputil.BadRequest(w, "empty import payload")
		return
	}

	job := &progress.Job{
		ID:       uuid.New().String(),
		Source:   progress.SourceServer,
		Filename: filename,
	}
	h.tracker.Start(r.Context(), job)

	logger.Info("import started", "job_id", job.ID, "filename", filename, "skip_duplicates", skipDup)
	res := h.pipeline.Run(r.Context(), payload, importer.Options{
		SkipDuplicates: skipDup,
		Concurrency:    h.cfg.Import.Concurrency,
	})
	h.tracker.Complete(r.Context(), job.ID, res)

	httputil.OK(w, map[string]any{
		"jobId":  job.ID,
		"result": res,
	})
}

// readImportPayload extracts the CSV payload from either encoding. On failure
// it writes the error response and returns ok=false.
func (h *Handlers) readImportPayload(w http.ResponseWriter, r *http.Request) (payload, filename string, skipDup, ok bool) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(h.cfg.Import.MaxPayloadBytes); err != nil {
			httputil.BadRequest(w, "invalid multipart form: "+err.Error())
			return "", "", false, false
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.BadRequest(w, "missing file upload")
			return "", "", false, false
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("reading upload: %v", err))
			return "", "", false, false
		}
		skip := r.FormValue("skipDuplicates") != "false"
		return string(data), header.Filename, skip, true
	}

	var req importRequest
	if !httputil.Decode(w, r, &req) {
		return "", "", false, false
	}
	return req.Content, req.Filename, req.SkipDuplicates, true
}

// HandleImportTemplate serves the canonical CSV template as a download.
func (h *Handlers) HandleImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+importer.TemplateFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, importer.Template())
}

// HandleListImportJobs returns recent import runs, newest first.
func (h *Handlers) HandleListImportJobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := h.tracker.Recent(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"jobs": jobs})
}

// HandleGetImportJob returns one import run by ID.
func (h *Handlers) HandleGetImportJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.tracker.Get(r.Context(), jobID)
	if err == progress.ErrJobNotFound {
		httputil.NotFound(w, "import job not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, job)
}
