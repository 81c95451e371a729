// Package config holds the helpdesk credentials and is passed into the
// handler at startup rather than read as ambient process state.
package config

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/tidwall/gjson"
)

// Config holds the four secrets needed to talk to the helpdesk
type Config struct {
	Subdomain string
	Username  string
	APIKey    string
	ReplyTo   string
}

// FromEnv reads the configuration from the process environment
func FromEnv() (Config, error) {

	var c Config
	fields := []struct {
		envar string
		dst   *string
	}{
		{"HELPDESK_SUBDOMAIN", &c.Subdomain},
		{"HELPDESK_USER", &c.Username},
		{"HELPDESK_API_KEY", &c.APIKey},
		{"HELPDESK_REPLY_TO", &c.ReplyTo},
	}

	for _, f := range fields {
		v, ok := os.LookupEnv(f.envar)
		if !ok || v == "" {
			return Config{}, fmt.Errorf("missing environment variable %v", f.envar)
		}
		*f.dst = v
	}
	return c, nil
}

// FromSecretsManager fetches a JSON secret holding the same four values,
// keyed subdomain, username, api_key and reply_to.
func FromSecretsManager(api secretsmanageriface.SecretsManagerAPI, secretID string) (Config, error) {

	out, err := api.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to get secret: %v", err)
	}
	if out.SecretString == nil {
		return Config{}, fmt.Errorf("secret %v has no string value", secretID)
	}

	sec := *out.SecretString
	c := Config{
		Subdomain: gjson.Get(sec, "subdomain").Str,
		Username:  gjson.Get(sec, "username").Str,
		APIKey:    gjson.Get(sec, "api_key").Str,
		ReplyTo:   gjson.Get(sec, "reply_to").Str,
	}

	if c.Subdomain == "" || c.Username == "" || c.APIKey == "" || c.ReplyTo == "" {
		return Config{}, fmt.Errorf("secret %v is missing a value", secretID)
	}
	return c, nil
}

// Load reads config from the environment, falling back to Secrets Manager
// when CONFIG_SECRET_ID is set.
func Load(api secretsmanageriface.SecretsManagerAPI) (Config, error) {

	c, err := FromEnv()
	if err == nil {
		return c, nil
	}

	sid, ok := os.LookupEnv("CONFIG_SECRET_ID")
	if !ok {
		return Config{}, err
	}
	return FromSecretsManager(api, sid)
}
