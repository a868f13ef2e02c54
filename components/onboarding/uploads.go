package onboarding

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/lemma-health/go-onboarding/pkg/upload"
)

// DocumentUploader pushes a screened file to document storage and returns
// its object key. *upload.Client satisfies this.
type DocumentUploader interface {
	Upload(ctx context.Context, file upload.File) (string, error)
}

type uploadResponse struct {
	Key string `json:"key"`
}

// uploadsHandler accepts one multipart file per request and stores it.
func (c *Component) uploadsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !methodGuard(w, r, http.MethodPost) {
			return
		}
		if !c.guard(w, r) {
			return
		}
		if c.opts.Uploads == nil {
			c.writeError(w, http.StatusInternalServerError, "document storage not configured", nil)
			return
		}

		// One byte beyond the ceiling is enough to detect oversized bodies
		// without buffering unbounded input.
		r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+1)

		file, header, err := r.FormFile("file")
		if err != nil {
			c.writeError(w, http.StatusBadRequest, "missing file field", err)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			c.writeError(w, http.StatusBadRequest, "unreadable file body", err)
			return
		}

		doc := &upload.MemoryFile{
			FileName: header.Filename,
			Type:     header.Header.Get("Content-Type"),
			Data:     data,
		}

		key, err := c.opts.Uploads.Upload(r.Context(), doc)
		if err != nil {
			var cerr *upload.ConstraintError
			if errors.As(err, &cerr) {
				c.writeError(w, http.StatusUnprocessableEntity, cerr.Reason, err)
				return
			}
			c.writeError(w, http.StatusBadGateway, "document storage unavailable", err)
			return
		}

		writeJSON(w, http.StatusCreated, uploadResponse{Key: key})
	})
}
