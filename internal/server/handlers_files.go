package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"stowage/internal/api"
	"stowage/internal/store"
)

const (
	uploadCreatedMessage   = "File uploaded successfully"
	uploadDuplicateMessage = "File already exists"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxBytes())
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("expected multipart/form-data body"), ErrCodeInvalidMultipart))
		return
	}

	result, err := s.uploads.Ingest(r.Context(), mr)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status, message := http.StatusCreated, uploadCreatedMessage
	if result.Duplicate {
		status, message = http.StatusOK, uploadDuplicateMessage
	}
	s.log().Info("file stored",
		"file_id", result.File.ID,
		"duplicate", result.Duplicate,
		"extension", result.Classification.Extension,
		"source", result.Classification.Source,
	)
	s.writeJSON(w, status, api.UploadResponse{
		FileID:      result.File.ID,
		DownloadURL: result.File.URL,
		Message:     message,
		Duplicate:   result.Duplicate,
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	notFound := notFoundCode(fmt.Errorf("File not found"), ErrCodeFileNotFound)

	id := strings.TrimSpace(r.PathValue("id"))
	if !validateID(id) {
		s.writeErrorReq(w, r, http.StatusNotFound, notFound)
		return
	}

	file, err := s.store.GetFile(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeErrorReq(w, r, http.StatusNotFound, notFound)
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	f, err := s.media.Open(r.Context(), file.Filepath)
	if errors.Is(err, os.ErrNotExist) {
		s.log().Warn("file record without content", "file_id", file.ID, "path", file.Filepath)
		s.writeErrorReq(w, r, http.StatusNotFound, notFound)
		return
	}
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, mediaFailure(err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, mediaFailure(err))
		return
	}

	w.Header().Set("ETag", `"`+file.Hash+`"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, filepath.Base(file.Filepath), info.ModTime(), f)
}
