package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	cli "github.com/jawher/mow.cli"
	log "github.com/sirupsen/logrus"

	"github.com/lemma-health/go-onboarding/pkg/ip"
	"github.com/lemma-health/go-onboarding/pkg/ownership"
	"github.com/lemma-health/go-onboarding/pkg/partner"
	"github.com/lemma-health/go-onboarding/pkg/renderers/tui"
	"github.com/lemma-health/go-onboarding/pkg/upload"
	"github.com/lemma-health/go-onboarding/pkg/workflow"
)

func main() {
	app := cli.App("onboarding-tui", "Interactive onboarding for healthcare organizations.")

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

	dryRun := app.Bool(cli.BoolOpt{
		Name:   "dry-run",
		Value:  false,
		Desc:   "Print the submission payload instead of calling the partner",
		EnvVar: "DRY_RUN",
	})

	app.Action = func() {
		var submitter workflow.Submitter
		if *dryRun {
			submitter = dryRunSubmitter{}
		} else {
			if *partnerURL == "" || *partnerKey == "" {
				log.Fatal("partner-url and partner-api-key are required unless --dry-run is set")
			}
			submitter = partner.NewClient(*partnerURL, *partnerKey)
		}

		machine := workflow.New(
			workflow.WithSubmitter(submitter),
			workflow.WithIPResolver(ip.NewResolver()),
		)

		var opts []tui.RunnerOption
		if *documentBucket != "" {
			signer, err := upload.NewS3Signer(*documentBucket, *awsRegion)
			if err != nil {
				log.Fatalf("Error creating S3 signer: %v", err)
			}
			opts = append(opts, tui.WithUploader(upload.NewClient(signer)))
		}

		runner := tui.NewRunner(machine, tui.NewSurveyDriver(), opts...)
		if err := runner.Run(context.Background()); err != nil {
			if errors.Is(err, tui.ErrAborted) {
				os.Exit(130)
			}
			log.Fatalf("Onboarding failed: %v", err)
		}
	}

	app.Run(os.Args)
}

// dryRunSubmitter prints the payload that would have been sent.
type dryRunSubmitter struct{}

func (dryRunSubmitter) SubmitLegalEntity(_ context.Context, payload ownership.Payload) error {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	os.Stdout.Write(raw)
	os.Stdout.Write([]byte("\n"))
	return nil
}
