package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSMPrefix marks a value to be read from AWS SSM Parameter Store, e.g.
// "ssm:/stockdash/alphavantage".
const SSMPrefix = "ssm:"

// ParameterGetter is the subset of *ssm.Client used to resolve secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NewSSMClient builds an SSM client from the default AWS credential chain.
func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"provider.api_key":  &c.Provider.APIKey,
		"alpaca.api_key":    &c.Alpaca.APIKey,
		"alpaca.api_secret": &c.Alpaca.APISecret,
		"usage.dsn":         &c.Usage.DSN,
	}
}

// NeedsSecrets reports whether any secret field references SSM.
func (c *Config) NeedsSecrets() bool {
	for _, field := range c.secretFields() {
		if strings.HasPrefix(*field, SSMPrefix) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every ssm: reference with the decrypted parameter value.
func (c *Config) ResolveSecrets(ctx context.Context, client ParameterGetter) error {
	for key, field := range c.secretFields() {
		if !strings.HasPrefix(*field, SSMPrefix) {
			continue
		}
		name := strings.TrimPrefix(*field, SSMPrefix)
		decrypt := true
		out, err := client.GetParameter(ctx, &ssm.GetParameterInput{Name: &name, WithDecryption: &decrypt})
		if err != nil {
			return fmt.Errorf("resolve %s from ssm %s: %w", key, name, err)
		}
		if out.Parameter == nil || out.Parameter.Value == nil {
			return fmt.Errorf("resolve %s: ssm parameter %s has no value", key, name)
		}
		*field = *out.Parameter.Value
	}
	return nil
}
