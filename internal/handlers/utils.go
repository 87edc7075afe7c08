package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userIDFromContext(ctx context.Context) (int, error) {
	subject, ok := ctx.Value(contextSubjectKey).(int)
	if !ok || subject < 1 {
		return 0, errors.New("missing subject")
	}
	return subject, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// MediaFile is one uploaded image from a multipart form.
type MediaFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// parseMediaFile extracts a single optional file from the named form
// field. Returns a zero MediaFile when the field is absent.
func parseMediaFile(form *multipart.Form, field string, maxBytes int64) (MediaFile, error) {
	if form == nil {
		return MediaFile{}, nil
	}

	files := form.File[field]
	if len(files) == 0 {
		return MediaFile{}, nil
	}
	if len(files) > 1 {
		return MediaFile{}, fmt.Errorf("only one %s file is allowed", field)
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return MediaFile{}, fmt.Errorf("failed to read %s file: %w", field, err)
	}

	data, err := readFileLimited(file, maxBytes)
	_ = file.Close()
	if err != nil {
		return MediaFile{}, err
	}

	return MediaFile{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, errors.New("failed to read file")
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.New("file too large")
	}
	return data, nil
}
