package server

import (
	"net/http"

	"stowage/internal/api"
	"stowage/internal/models"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req api.DownloadRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	job, err := s.jobs.Enqueue(r.Context(), req.DownloadURL)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.log().Info("download job enqueued", "job_id", job.ID, "url", job.DownloadURL)
	s.writeJSON(w, http.StatusAccepted, api.DownloadResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		StatusURL: "/jobs/" + job.ID,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse(job))
}

func jobResponse(job *models.Job) api.JobResponse {
	resp := api.JobResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		DownloadURL: job.DownloadURL,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.FileID != "" {
		fileID := job.FileID
		resp.FileID = &fileID
	}
	if job.Error != "" {
		message := job.Error
		resp.Error = &message
	}
	return resp
}
