package onboarding

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lemma-health/go-onboarding/pkg/workflow"
)

// GuardFunc screens requests before any work happens. Returning an error
// rejects the request; wrap it in StatusError to control the code.
type GuardFunc func(r *http.Request) error

// Options configures the component.
type Options struct {
	SubmitPath    string
	UploadsPath   string
	ReferencePath string
	SchemaPath    string

	// DevMode includes error detail in response envelopes. Production
	// deployments keep it off and log the detail instead.
	DevMode bool

	Guard     GuardFunc
	Submitter workflow.Submitter
	Uploads   DocumentUploader
	Logger    logrus.FieldLogger
	Clock     func() time.Time
}

// OptionFn mutates Options during construction.
type OptionFn func(*Options)

// DefaultOptions returns the baseline configuration.
func DefaultOptions() Options {
	return Options{
		SubmitPath:    "/api/legal-entities",
		UploadsPath:   "/api/uploads",
		ReferencePath: "/api/reference",
		SchemaPath:    "/api/schema",
		Clock:         time.Now,
	}
}

// NewOptions applies overrides on top of the defaults.
func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.SubmitPath == "" {
		opts.SubmitPath = "/api/legal-entities"
	}
	if opts.UploadsPath == "" {
		opts.UploadsPath = "/api/uploads"
	}
	if opts.ReferencePath == "" {
		opts.ReferencePath = "/api/reference"
	}
	if opts.SchemaPath == "" {
		opts.SchemaPath = "/api/schema"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return opts
}

// WithGuard installs a request guard on every endpoint.
func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o != nil {
			o.Guard = guard
		}
	}
}

// WithSubmitter installs the partner delivery port for submissions.
func WithSubmitter(submitter workflow.Submitter) OptionFn {
	return func(o *Options) {
		if o != nil {
			o.Submitter = submitter
		}
	}
}

// WithUploads installs the document storage client.
func WithUploads(uploads DocumentUploader) OptionFn {
	return func(o *Options) {
		if o != nil {
			o.Uploads = uploads
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger logrus.FieldLogger) OptionFn {
	return func(o *Options) {
		if o != nil && logger != nil {
			o.Logger = logger
		}
	}
}

// WithDevMode toggles detailed error envelopes.
func WithDevMode(dev bool) OptionFn {
	return func(o *Options) {
		if o != nil {
			o.DevMode = dev
		}
	}
}

// WithClock overrides the time source used for age checks and timestamps.
func WithClock(clock func() time.Time) OptionFn {
	return func(o *Options) {
		if o != nil && clock != nil {
			o.Clock = clock
		}
	}
}

// WithSubmitPath overrides the submission route.
func WithSubmitPath(path string) OptionFn {
	return func(o *Options) {
		if o != nil {
			o.SubmitPath = path
		}
	}
}

// WithUploadsPath overrides the uploads route.
func WithUploadsPath(path string) OptionFn {
	return func(o *Options) {
		if o != nil {
			o.UploadsPath = path
		}
	}
}
