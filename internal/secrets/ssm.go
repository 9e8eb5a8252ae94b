// Package secrets resolves credentials kept outside the config file.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ErrEmptyParameter is returned when the parameter exists but carries no value.
var ErrEmptyParameter = errors.New("secrets: parameter has no value")

// ParameterClient is the subset of the SSM API used here.
type ParameterClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMResolver reads SecureString parameters from AWS Systems Manager.
type SSMResolver struct {
	client  ParameterClient
	timeout time.Duration
}

// NewSSMResolver loads the default AWS credential chain.
func NewSSMResolver(ctx context.Context) (*SSMResolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSSMResolverWithClient(ssm.NewFromConfig(cfg)), nil
}

// NewSSMResolverWithClient wraps an existing client.
func NewSSMResolverWithClient(client ParameterClient) *SSMResolver {
	return &SSMResolver{client: client, timeout: 5 * time.Second}
}

// Resolve fetches and decrypts the named parameter.
func (r *SSMResolver) Resolve(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("%s: %w", name, ErrEmptyParameter)
	}
	return aws.ToString(out.Parameter.Value), nil
}
