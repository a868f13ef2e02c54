// Package upload handles supporting-document uploads, most importantly the
// SS-4 confirmation letter that substitutes for a missing tax ID. Files are
// screened against size and content-type constraints, then pushed to object
// storage through a signed-target port.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxFileSize is the upload ceiling, 10 MiB.
const MaxFileSize = 10 << 20

// AllowedTypes lists the accepted document content types.
var AllowedTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/webp",
}

// ConstraintError reports a file rejected before any network work.
type ConstraintError struct {
	Reason string
}

func (e *ConstraintError) Error() string {
	return "upload: " + e.Reason
}

// File is the minimal view of an upload candidate.
type File interface {
	Name() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

// MemoryFile is an in-memory File, used by handlers that already buffered
// the request body.
type MemoryFile struct {
	FileName string
	Type     string
	Data     []byte
}

func (f *MemoryFile) Name() string        { return f.FileName }
func (f *MemoryFile) Size() int64         { return int64(len(f.Data)) }
func (f *MemoryFile) ContentType() string { return f.Type }
func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// OSFile is a File backed by the local filesystem, used by the terminal
// client.
type OSFile struct {
	Path string
}

func (f *OSFile) Name() string { return filepath.Base(f.Path) }

func (f *OSFile) Size() int64 {
	info, err := os.Stat(f.Path)
	if err != nil {
		return -1
	}
	return info.Size()
}

func (f *OSFile) ContentType() string {
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

func (f *OSFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// CheckConstraints screens a file against the size ceiling and the accepted
// content types.
func CheckConstraints(file File) error {
	if size := file.Size(); size < 0 {
		return &ConstraintError{Reason: "file size unknown"}
	} else if size == 0 {
		return &ConstraintError{Reason: "file is empty"}
	} else if size > MaxFileSize {
		return &ConstraintError{Reason: fmt.Sprintf("file exceeds the %d MB limit", MaxFileSize>>20)}
	}

	contentType := strings.ToLower(strings.TrimSpace(file.ContentType()))
	for _, allowed := range AllowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return &ConstraintError{Reason: fmt.Sprintf("unsupported file type %q; allowed types are %s", contentType, strings.Join(AllowedTypes, ", "))}
}

// Target is a signed upload destination.
type Target struct {
	// Key identifies the stored object; it goes on the onboarding record.
	Key string
	// URL accepts a single PUT of the file body.
	URL string
}

// TargetSigner mints signed upload destinations.
type TargetSigner interface {
	SignTarget(ctx context.Context, key, contentType string) (Target, error)
}

// Client screens files and pushes them to signed targets.
type Client struct {
	signer TargetSigner
	client *http.Client
	newID  func() string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for the PUT.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithKeyGenerator overrides the object-key ID source.
func WithKeyGenerator(newID func() string) ClientOption {
	return func(c *Client) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewClient builds an upload client around a target signer.
func NewClient(signer TargetSigner, opts ...ClientOption) *Client {
	c := &Client{
		signer: signer,
		client: &http.Client{Timeout: 60 * time.Second},
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload screens the file, signs a destination, and PUTs the body to it.
// The returned key identifies the stored document.
func (c *Client) Upload(ctx context.Context, file File) (string, error) {
	if err := CheckConstraints(file); err != nil {
		return "", err
	}

	key := fmt.Sprintf("documents/%s/%s", c.newID(), sanitizeName(file.Name()))
	target, err := c.signer.SignTarget(ctx, key, file.ContentType())
	if err != nil {
		return "", fmt.Errorf("upload: sign target: %w", err)
	}

	body, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("upload: open file: %w", err)
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, body)
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	req.ContentLength = file.Size()
	req.Header.Set("Content-Type", file.ContentType())

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: put object: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("upload: storage returned status %d", res.StatusCode)
	}
	return target.Key, nil
}

// sanitizeName keeps object keys readable without trusting client-supplied
// separators.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "document"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
