package server

import (
	"io"
	"net/http"

	"stowage/internal/api"
)

const aboutText = `Stowage - File Server
A file server for audio, video, images, RSS/XML and JSON files.

Features:
- Multipart uploads with content sniffing
- Asynchronous downloads from remote URLs
- Content-hash deduplication
- Unique, non-sequential file IDs
`

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, aboutText)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		DBPath:        s.dbPath,
		SchemaVersion: info.SchemaVersion,
		TotalFiles:    info.TotalFiles,
		JobCounts:     info.JobCounts,
	}
	if s.media != nil {
		resp.MediaPath = s.media.Root()
	}
	if s.pool != nil {
		stats := s.pool.Stats()
		resp.Worker = api.WorkerInfo{
			Enabled:       true,
			Running:       stats.Running,
			MaxConcurrent: stats.MaxConcurrent,
			Active:        stats.Active,
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}
