package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

func pdfFile(size int) *MemoryFile {
	return &MemoryFile{
		FileName: "ss4-letter.pdf",
		Type:     "application/pdf",
		Data:     bytes.Repeat([]byte{0x25}, size),
	}
}

func TestCheckConstraints(t *testing.T) {
	tests := []struct {
		name    string
		file    *MemoryFile
		wantErr bool
	}{
		{name: "pdf within limit", file: pdfFile(1024)},
		{name: "png accepted", file: &MemoryFile{FileName: "scan.png", Type: "image/png", Data: []byte{1}}},
		{name: "webp accepted", file: &MemoryFile{FileName: "scan.webp", Type: "image/webp", Data: []byte{1}}},
		{name: "empty file", file: pdfFile(0), wantErr: true},
		{name: "over the limit", file: pdfFile(MaxFileSize + 1), wantErr: true},
		{name: "gif rejected", file: &MemoryFile{FileName: "anim.gif", Type: "image/gif", Data: []byte{1}}, wantErr: true},
		{name: "missing type", file: &MemoryFile{FileName: "mystery", Data: []byte{1}}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckConstraints(tc.file)
			if tc.wantErr {
				var cerr *ConstraintError
				if !errors.As(err, &cerr) {
					t.Fatalf("expected ConstraintError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

type stubSigner struct {
	target Target
	err    error

	gotKey         string
	gotContentType string
}

func (s *stubSigner) SignTarget(_ context.Context, key, contentType string) (Target, error) {
	s.gotKey = key
	s.gotContentType = contentType
	if s.err != nil {
		return Target{}, s.err
	}
	if s.target.Key == "" {
		s.target.Key = key
	}
	return s.target, nil
}

func TestUploadPutsToSignedTarget(t *testing.T) {
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	var putBody []byte
	httpmock.RegisterResponder(http.MethodPut, "https://storage.example.com/signed-put",
		func(req *http.Request) (*http.Response, error) {
			if ct := req.Header.Get("Content-Type"); ct != "application/pdf" {
				t.Errorf("Content-Type = %q", ct)
			}
			putBody, _ = io.ReadAll(req.Body)
			return httpmock.NewStringResponse(200, ""), nil
		})

	signer := &stubSigner{target: Target{URL: "https://storage.example.com/signed-put"}}
	c := NewClient(signer,
		WithHTTPClient(hc),
		WithKeyGenerator(func() string { return "fixed-id" }),
	)

	key, err := c.Upload(context.Background(), pdfFile(64))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if key != "documents/fixed-id/ss4-letter.pdf" {
		t.Errorf("key = %q", key)
	}
	if signer.gotContentType != "application/pdf" {
		t.Errorf("signer saw content type %q", signer.gotContentType)
	}
	if len(putBody) != 64 {
		t.Errorf("stored %d bytes, want 64", len(putBody))
	}
}

func TestUploadRejectsBeforeSigning(t *testing.T) {
	signer := &stubSigner{}
	c := NewClient(signer)

	_, err := c.Upload(context.Background(), pdfFile(MaxFileSize+1))
	var cerr *ConstraintError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConstraintError, got %v", err)
	}
	if signer.gotKey != "" {
		t.Error("signer was called for a rejected file")
	}
}

func TestUploadSurfacesStorageFailure(t *testing.T) {
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPut, "https://storage.example.com/signed-put",
		httpmock.NewStringResponder(403, "expired"))

	signer := &stubSigner{target: Target{URL: "https://storage.example.com/signed-put"}}
	c := NewClient(signer, WithHTTPClient(hc))

	if _, err := c.Upload(context.Background(), pdfFile(64)); err == nil {
		t.Fatal("expected error for storage failure")
	}
}

func TestOSFileContentType(t *testing.T) {
	tests := map[string]string{
		"letter.pdf":  "application/pdf",
		"scan.PNG":    "image/png",
		"photo.jpeg":  "image/jpeg",
		"photo.jpg":   "image/jpeg",
		"scan.webp":   "image/webp",
		"mystery.bin": "application/octet-stream",
	}
	for path, want := range tests {
		f := &OSFile{Path: path}
		if got := f.ContentType(); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", path, got, want)
		}
	}
}
