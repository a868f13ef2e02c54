package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/lemma-health/go-onboarding/pkg/upload"
)

type fakeUploader struct {
	key string
	err error

	gotName string
	gotType string
	gotSize int64
}

func (u *fakeUploader) Upload(_ context.Context, file upload.File) (string, error) {
	if err := upload.CheckConstraints(file); err != nil {
		return "", err
	}
	u.gotName = file.Name()
	u.gotType = file.ContentType()
	u.gotSize = file.Size()
	if u.err != nil {
		return "", u.err
	}
	return u.key, nil
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadHappyPath(t *testing.T) {
	uploader := &fakeUploader{key: "documents/abc/ss4.pdf"}
	c := New(WithUploads(uploader))

	body, contentType := multipartBody(t, "ss4.pdf", "application/pdf", bytes.Repeat([]byte{0x25}, 128))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	c.uploadsHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Key != "documents/abc/ss4.pdf" {
		t.Errorf("key = %q", res.Key)
	}
	if uploader.gotType != "application/pdf" || uploader.gotSize != 128 {
		t.Errorf("uploader saw %q %d bytes", uploader.gotType, uploader.gotSize)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	c := New(WithUploads(&fakeUploader{key: "x"}))

	body, contentType := multipartBody(t, "anim.gif", "image/gif", []byte{1, 2, 3})
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	c.uploadsHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	c := New(WithUploads(&fakeUploader{}))

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	rec := httptest.NewRecorder()
	c.uploadsHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadMethodNotAllowed(t *testing.T) {
	c := New(WithUploads(&fakeUploader{}))

	req := httptest.NewRequest(http.MethodGet, "/api/uploads", nil)
	rec := httptest.NewRecorder()
	c.uploadsHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
