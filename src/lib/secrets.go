package lib

import (
	"bookpay/src/config"
	"context"
	"errors"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/tidwall/gjson"
)

type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type StripeSecrets struct {
	SecretKey     string
	WebhookSecret string
}

// LoadStripeSecrets reads {"secret_key","webhook_secret"} from a Secrets
// Manager secret.
func LoadStripeSecrets(ctx context.Context, client SecretsAPI, arn string) (*StripeSecrets, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return nil, err
	}
	return parseStripeSecrets(aws.ToString(out.SecretString))
}

func parseStripeSecrets(raw string) (*StripeSecrets, error) {
	if !gjson.Valid(raw) {
		return nil, errors.New("secret is not valid JSON")
	}
	res := gjson.GetMany(raw, "secret_key", "webhook_secret")
	s := &StripeSecrets{
		SecretKey:     res[0].String(),
		WebhookSecret: res[1].String(),
	}
	if s.SecretKey == "" {
		return nil, errors.New("secret_key missing from secret")
	}
	return s, nil
}

// ApplyStripeSecrets overrides the processor keys in cfg when
// STRIPE_SECRETS_ARN is configured.
func ApplyStripeSecrets(ctx context.Context, cfg *config.Config, client SecretsAPI) error {
	if cfg.StripeSecretsARN == "" {
		return nil
	}
	s, err := LoadStripeSecrets(ctx, client, cfg.StripeSecretsARN)
	if err != nil {
		log.Printf("[Secrets] Failed to load processor secrets: %s\n", err.Error())
		return err
	}
	cfg.StripeSecretKey = s.SecretKey
	if s.WebhookSecret != "" {
		cfg.StripeWebhookSecret = s.WebhookSecret
	}
	return nil
}
