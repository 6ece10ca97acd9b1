// Package secrets reads the Brevo API key from AWS Secrets Manager.
package secrets

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// currentStage always points at the live version of a secret
const currentStage = "AWSCURRENT"

// SecretGetter is an abstraction for a Secrets Manager client
type SecretGetter interface {
	GetSecretValueWithContext(aws.Context, *secretsmanager.GetSecretValueInput, ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
}

// Fetcher resolves secrets
type Fetcher struct {
	sm SecretGetter
}

// NewFetcher returns a new Fetcher
func NewFetcher(sm SecretGetter) *Fetcher {
	return &Fetcher{sm: sm}
}

// APIKey returns the key stored under id, either as the raw secret string or as {"api_key": "..."}.
func (f *Fetcher) APIKey(ctx context.Context, id string) (string, error) {

	if id == "" {
		return "", eris.New("no secret id provided")
	}

	out, err := f.sm.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(id),
		VersionStage: aws.String(currentStage),
	})
	if err != nil {
		return "", eris.Wrapf(err, "could not get secret %s", id)
	}

	raw := strings.TrimSpace(aws.StringValue(out.SecretString))
	if raw == "" {
		return "", eris.Errorf("secret %s is empty", id)
	}

	if gjson.Valid(raw) {
		key := gjson.Get(raw, "api_key").String()
		if key == "" {
			return "", eris.Errorf("secret %s has no api_key", id)
		}
		return key, nil
	}
	return raw, nil
}
