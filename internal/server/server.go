// Package server hosts the onboarding flow: server-rendered HTML pages for
// each step backed by per-session workflow machines, plus the JSON API
// component for clients that drive the flow themselves.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/lemma-health/go-onboarding/components/onboarding"
	"github.com/lemma-health/go-onboarding/pkg/renderers/html"
	"github.com/lemma-health/go-onboarding/pkg/workflow"
)

// Config wires the server's collaborators.
type Config struct {
	Logger    logrus.FieldLogger
	Renderer  *html.Renderer
	Submitter workflow.Submitter
	Uploads   onboarding.DocumentUploader
	Resolver  workflow.IPResolver
	// Guard screens requests to the JSON API endpoints; nil leaves them
	// open.
	Guard onboarding.GuardFunc

	// BasePath prefixes every route, e.g. "/onboarding".
	BasePath string
	// SessionTTL evicts idle sessions; zero disables eviction.
	SessionTTL time.Duration
	DevMode    bool
}

// Server renders and drives hosted onboarding sessions.
type Server struct {
	log       logrus.FieldLogger
	renderer  *html.Renderer
	submitter workflow.Submitter
	basePath  string
	devMode   bool
	sessions  *sessionStore
	component *onboarding.Component
}

// New builds a server from the config, filling in defaults.
func New(cfg Config) (*Server, error) {
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("server: submitter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	renderer := cfg.Renderer
	if renderer == nil {
		var err error
		renderer, err = html.New()
		if err != nil {
			return nil, fmt.Errorf("server: build renderer: %w", err)
		}
	}

	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	factory := func() *workflow.Machine {
		opts := []workflow.Option{workflow.WithSubmitter(cfg.Submitter)}
		if cfg.Resolver != nil {
			opts = append(opts, workflow.WithIPResolver(cfg.Resolver))
		}
		return workflow.New(opts...)
	}

	return &Server{
		log:       logger,
		renderer:  renderer,
		submitter: cfg.Submitter,
		basePath:  cfg.BasePath,
		devMode:   cfg.DevMode,
		sessions:  newSessionStore(ttl, factory),
		component: onboarding.New(
			onboarding.WithSubmitter(cfg.Submitter),
			onboarding.WithUploads(cfg.Uploads),
			onboarding.WithLogger(logger),
			onboarding.WithDevMode(cfg.DevMode),
			onboarding.WithGuard(cfg.Guard),
		),
	}, nil
}

// gorillaMux adapts *mux.Router to the component's Mux interface.
type gorillaMux struct {
	router *mux.Router
}

func (g gorillaMux) Handle(pattern string, handler http.Handler) {
	g.router.Handle(pattern, handler)
}

// Handler builds the full route table.
func (s *Server) Handler() (http.Handler, error) {
	router := mux.NewRouter()

	if _, err := s.component.RegisterRoutes(gorillaMux{router: router}, s.basePath); err != nil {
		return nil, fmt.Errorf("server: register api routes: %w", err)
	}

	base := s.basePath
	sub := router
	if base != "" && base != "/" {
		sub = router.PathPrefix(base).Subrouter()
	}

	sub.HandleFunc("", s.rootHandler).Methods(http.MethodGet)
	sub.HandleFunc("/", s.rootHandler).Methods(http.MethodGet)
	sub.HandleFunc("/steps/{step}", s.stepPage).Methods(http.MethodGet)
	sub.HandleFunc("/steps/{step}", s.stepSubmit).Methods(http.MethodPost)
	sub.HandleFunc("/complete", s.completePage).Methods(http.MethodGet)

	router.HandleFunc("/__health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)

	return router, nil
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	machine := s.sessions.machineFor(w, r)
	s.redirectToStep(w, r, machine.Current())
}

func (s *Server) redirectToStep(w http.ResponseWriter, r *http.Request, step workflow.Step) {
	target := s.basePath + "/steps/" + string(step)
	if step == workflow.StepComplete {
		target = s.basePath + "/complete"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("page render failed")
	message := http.StatusText(http.StatusInternalServerError)
	if s.devMode {
		message = err.Error()
	}
	http.Error(w, message, http.StatusInternalServerError)
}
