package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check, info and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.HandleFunc("GET /about", s.handleAbout)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Files.
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /files/{id}", s.handleGetFile)

	// Download jobs.
	mux.HandleFunc("POST /download", s.handleDownload)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)

	return mux
}
