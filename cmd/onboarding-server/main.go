package main

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	cli "github.com/jawher/mow.cli"
	log "github.com/sirupsen/logrus"

	theme "github.com/goliatone/go-theme"

	"github.com/lemma-health/go-onboarding/components/onboarding"
	"github.com/lemma-health/go-onboarding/internal/server"
	"github.com/lemma-health/go-onboarding/pkg/ip"
	"github.com/lemma-health/go-onboarding/pkg/partner"
	"github.com/lemma-health/go-onboarding/pkg/renderers/html"
	"github.com/lemma-health/go-onboarding/pkg/upload"
)

func main() {
	app := cli.App("onboarding-server", "Hosted onboarding flow for healthcare organizations.")

	port := app.String(cli.StringOpt{
		Name:   "port",
		Value:  "8080",
		Desc:   "Port to listen on",
		EnvVar: "APP_PORT",
	})

	basePath := app.String(cli.StringOpt{
		Name:   "base-path",
		Value:  "/onboarding",
		Desc:   "Path prefix for all routes",
		EnvVar: "BASE_PATH",
	})

	partnerURL := app.String(cli.StringOpt{
		Name:   "partner-url",
		Desc:   "Base URL of the banking partner API",
		EnvVar: "PARTNER_API_URL",
	})

	partnerKey := app.String(cli.StringOpt{
		Name:   "partner-api-key",
		Desc:   "API key for the banking partner",
		EnvVar: "PARTNER_API_KEY",
	})

	apiToken := app.String(cli.StringOpt{
		Name:   "api-token",
		Desc:   "Bearer token required on the JSON API endpoints; empty leaves them open",
		EnvVar: "API_TOKEN",
	})

	documentBucket := app.String(cli.StringOpt{
		Name:   "document-bucket",
		Desc:   "S3 bucket for uploaded verification documents",
		EnvVar: "DOCUMENT_BUCKET",
	})

	awsRegion := app.String(cli.StringOpt{
		Name:   "aws-region",
		Value:  "us-east-1",
		Desc:   "AWS region for the document bucket",
		EnvVar: "AWS_REGION",
	})

	themeName := app.String(cli.StringOpt{
		Name:   "theme",
		Value:  "",
		Desc:   "Visual theme for the hosted pages",
		EnvVar: "APP_THEME",
	})

	themeVariant := app.String(cli.StringOpt{
		Name:   "theme-variant",
		Value:  "light",
		Desc:   "Theme variant (light or dark)",
		EnvVar: "APP_THEME_VARIANT",
	})

	sessionTTL := app.Int(cli.IntOpt{
		Name:   "session-ttl-hours",
		Value:  24,
		Desc:   "Hours an idle session is kept before eviction",
		EnvVar: "SESSION_TTL_HOURS",
	})

	devMode := app.Bool(cli.BoolOpt{
		Name:   "dev",
		Value:  false,
		Desc:   "Expose error details in responses",
		EnvVar: "DEV_MODE",
	})

	logLevel := app.String(cli.StringOpt{
		Name:   "log-level",
		Value:  "info",
		Desc:   "Logging level (debug, info, warn, error)",
		EnvVar: "LOG_LEVEL",
	})

	app.Action = func() {
		level, err := log.ParseLevel(*logLevel)
		if err != nil {
			log.Fatalf("Invalid log level %q: %v", *logLevel, err)
		}
		log.SetLevel(level)
		log.SetFormatter(&log.JSONFormatter{})

		if *partnerURL == "" || *partnerKey == "" {
			log.Fatal("partner-url and partner-api-key are required")
		}

		submitter := partner.NewClient(*partnerURL, *partnerKey)

		cfg := server.Config{
			Logger:     log.StandardLogger(),
			Submitter:  submitter,
			Resolver:   ip.NewResolver(),
			BasePath:   *basePath,
			SessionTTL: time.Duration(*sessionTTL) * time.Hour,
			DevMode:    *devMode,
		}

		if *apiToken != "" {
			cfg.Guard = bearerTokenGuard(*apiToken)
		} else {
			log.Warn("No api-token configured; JSON API endpoints are open")
		}

		if *documentBucket != "" {
			signer, err := upload.NewS3Signer(*documentBucket, *awsRegion)
			if err != nil {
				log.Fatalf("Error creating S3 signer: %v", err)
			}
			cfg.Uploads = upload.NewClient(signer)
		} else {
			log.Warn("No document bucket configured; SS-4 uploads are disabled")
		}

		if *themeName != "" {
			cfg.Renderer, err = html.New(html.WithTheme(&theme.RendererConfig{
				Theme:   *themeName,
				Variant: *themeVariant,
			}))
			if err != nil {
				log.Fatalf("Error building renderer: %v", err)
			}
		}

		srv, err := server.New(cfg)
		if err != nil {
			log.Fatalf("Error building server: %v", err)
		}
		handler, err := srv.Handler()
		if err != nil {
			log.Fatalf("Error building routes: %v", err)
		}

		log.Infof("Listening on %v", *port)
		if err := http.ListenAndServe(":"+*port, handlers.CombinedLoggingHandler(os.Stdout, handler)); err != nil {
			log.Fatalf("Unable to start server: %v", err)
		}
	}

	app.Run(os.Args)
}

func bearerTokenGuard(token string) onboarding.GuardFunc {
	want := []byte("Bearer " + token)
	return func(r *http.Request) error {
		auth := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(auth, want) != 1 {
			return onboarding.StatusError{Code: http.StatusUnauthorized, Err: errors.New("invalid api token")}
		}
		return nil
	}
}
