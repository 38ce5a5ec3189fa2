package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shortsfactory/internal/logging"
	"shortsfactory/internal/pipeline"
	"shortsfactory/internal/records"
	"shortsfactory/internal/scheduler"
)

type healthResponse struct {
	Status string `json:"status"`
	pipeline.State
	Schedule []scheduler.Entry `json:"schedule,omitempty"`
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", State: s.opts.Coordinator.State()}
	if s.opts.Schedule != nil {
		resp.Schedule = s.opts.Schedule()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) run(w http.ResponseWriter, r *http.Request) {
	token, err := s.opts.Coordinator.Trigger(pipeline.TriggerManual)
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, "Pipeline already running")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("pipeline triggered",
		logging.String(logging.FieldEventType, "pipeline_triggered"),
		logging.String(logging.FieldRunToken, token),
	)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pipeline started", "runToken": token})
}

func (s *server) job(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.opts.Coordinator.TriggerJob(name)
	if errors.Is(err, pipeline.ErrUnknownJob) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":     "Job not found",
			"validJobs": s.opts.Coordinator.JobNames(),
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("job triggered",
		logging.String(logging.FieldEventType, "job_triggered"),
		logging.String(logging.FieldJob, name),
	)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Job %s started", name)})
}

func (s *server) listRecords(w http.ResponseWriter, r *http.Request) {
	if s.opts.Records == nil {
		writeJSON(w, http.StatusOK, map[string]any{"records": []*records.Video{}})
		return
	}
	var statuses []records.Status
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := records.ParseStatus(part)
			if !ok {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	videos, err := s.opts.Records.List(r.Context(), statuses...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if videos == nil {
		videos = []*records.Video{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": videos})
}

func (s *server) getRecord(w http.ResponseWriter, r *http.Request) {
	if s.opts.Records == nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	video, err := s.opts.Records.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if video == nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": video})
}

func (s *server) retryRecord(w http.ResponseWriter, r *http.Request) {
	if s.opts.Records == nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	id := chi.URLParam(r, "id")
	status, err := s.opts.Records.RetryFailed(r.Context(), id)
	switch {
	case errors.Is(err, records.ErrNotFound):
		writeError(w, http.StatusNotFound, "Record not found")
		return
	case errors.Is(err, records.ErrInvalidTransition), errors.Is(err, records.ErrClaimLost):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("record returned for retry",
		logging.String(logging.FieldEventType, "record_retry"),
		logging.String(logging.FieldRecordID, id),
		logging.String("status", string(status)),
	)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
