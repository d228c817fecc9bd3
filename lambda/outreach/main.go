package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/outreachbackend/internal/app"
	"github.com/outreachbackend/internal/config"
	"github.com/outreachbackend/internal/logging"
)

// The service is built once per container; warm invocations reuse it.
func main() {
	log := logging.New(logging.FromEnv())

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	a, err := app.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize outreach service")
	}

	h := NewHandler(a.Outreach, a.Idempotency, logging.Named(log, "handler"))
	lambda.Start(h.Handle)
}
