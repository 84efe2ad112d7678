package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
)

const multipartMemory = 32 << 20

var errEmptyUpload = errors.New("uploaded file is empty")

// readUpload reads the "file" part of a multipart request, bounded by maxBytes
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return "", nil, fmt.Errorf("invalid upload: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("missing file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, errEmptyUpload
	}
	return filepath.Base(header.Filename), data, nil
}

func uploadLimit(maxMB int) int64 {
	if maxMB <= 0 {
		maxMB = 100
	}
	return int64(maxMB) << 20
}
