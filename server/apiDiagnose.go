package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/www"
	"github.com/dentavision/dentavision/pkg/classify"
	"github.com/dentavision/dentavision/pkg/xray"
	"github.com/dentavision/dentavision/server/storage"
	"github.com/julienschmidt/httprouter"
)

// httpDiagnose handles POST /api/diagnose: a multipart upload with the image
// in the "file" field.
func (s *Server) httpDiagnose(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	maxBytes := s.cfg.Diagnosis.MaxUploadMB * 1024 * 1024
	if r.ContentLength > maxBytes+1024*1024 {
		www.PanicBadRequestf("Request body is too large: %v. Maximum upload size: %v MB", r.ContentLength, s.cfg.Diagnosis.MaxUploadMB)
	}
	// Allow a little slack over the image ceiling for the multipart framing.
	// The pipeline enforces the exact per-image limit.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)
	if err := r.ParseMultipartForm(maxBytes + 1024*1024); err != nil {
		www.PanicBadRequestf("Failed to parse upload: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		www.PanicBadRequestf("No image file provided. Use 'file' as the form field name")
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	www.Check(err)

	result, err := s.diagnosis.Diagnose(raw, header.Filename)
	if err != nil {
		s.panicDiagnosisError(err)
	}
	www.SendJSON(w, result)
}

// panicDiagnosisError maps pipeline failures onto the HTTP error taxonomy:
// user-correctable problems are 400, everything else is 500.
func (s *Server) panicDiagnosisError(err error) {
	if xray.IsValidationError(err) || xray.IsDecodeError(err) {
		panic(www.BadRequestf("%v", err))
	}
	if errors.Is(err, classify.ErrModelUnavailable) {
		panic(www.ServerErrorf("%v", err))
	}
	var infErr *classify.InferenceError
	if errors.As(err, &infErr) {
		panic(www.ServerErrorf("%v", err))
	}
	panic(www.ServerErrorf("Error processing image: %v", err))
}

// httpGetImage handles GET /api/image/:name, serving a stored original,
// heatmap, or enhanced artifact.
func (s *Server) httpGetImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := params.ByName("name")
	file, err := s.diagnosis.OpenArtifact(name)
	if err != nil {
		if storage.IsNotExist(err) {
			panic(www.Error(http.StatusNotFound, "Image not found"))
		}
		www.Check(err)
	}
	defer file.Reader.Close()
	w.Header().Set("Content-Type", artifactContentType(name))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	io.Copy(w, file.Reader)
}

func artifactContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".bmp":
		return "image/bmp"
	}
	return "application/octet-stream"
}

// httpListDiagnoses handles GET /api/diagnoses: the most recent diagnosis
// records, newest first.
func (s *Server) httpListDiagnoses(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	records, err := s.diagnosis.Recent(www.QueryInt(r, "limit"))
	www.Check(err)
	www.SendJSON(w, records)
}
