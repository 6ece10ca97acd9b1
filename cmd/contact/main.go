// Function contact hands over to package contact.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/hub612/contactsync/internal/config"
	"github.com/hub612/contactsync/internal/secrets"
	"github.com/hub612/contactsync/pkg/contact"
)

var h *contact.Handler

func init() {
	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	h = build(context.Background(), log, config.Load, secretKey)
}

func secretKey(ctx context.Context, id string) (string, error) {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	sm := secretsmanager.New(sess, &aws.Config{Region: aws.String(os.Getenv("AWS_REGION"))})
	return secrets.NewFetcher(sm).APIKey(ctx, id)
}

// build wires the handler. When wiring fails the handler answers every request with a configuration error.
func build(ctx context.Context, fallback *zap.Logger, load func() (*config.Config, error), key func(context.Context, string) (string, error)) *contact.Handler {

	cfg, err := load()
	if err != nil {
		fallback.Error("could not load configuration", zap.Error(err))
		return contact.NewHandler(nil, nil, fallback)
	}

	log := fallback
	if l, err := config.NewLogger(cfg.Log); err != nil {
		fallback.Error("could not build logger, keeping the default one", zap.Error(err))
	} else {
		log = l
	}

	if cfg.Brevo.APIKey == "" && cfg.Brevo.APIKeySecretID != "" {
		k, err := key(ctx, cfg.Brevo.APIKeySecretID)
		if err != nil {
			log.Error("could not load Brevo API key", zap.String("secret_id", cfg.Brevo.APIKeySecretID), zap.Error(err))
		}
		cfg.Brevo.APIKey = k
	}

	h, err := contact.NewFromConfig(cfg, log)
	if err != nil {
		log.Error("could not create handler", zap.Error(err))
		return contact.NewHandler(nil, nil, log)
	}
	return h
}

func handler(ctx context.Context, req *events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.Handle(ctx, req)
}

func main() {
	lambda.Start(handler)
}
