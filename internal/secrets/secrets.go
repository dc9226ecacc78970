// Package secrets reads configuration secrets from AWS SSM Parameter Store.
package secrets

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// SSMAPI is the subset of *ssm.Client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SSM struct {
	client SSMAPI
}

func NewSSM(client SSMAPI) *SSM {
	return &SSM{client: client}
}

// Get returns the decrypted, trimmed value of a parameter. Empty values
// are errors.
func (s *SSM) Get(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", name)
	}
	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", name)
	}
	return v, nil
}

// Resolve fills each *dst from its parameter when the name is set. Values
// already present are overwritten.
func (s *SSM) Resolve(ctx context.Context, params map[string]*string) error {
	for name, dst := range params {
		if name == "" {
			continue
		}
		v, err := s.Get(ctx, name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}
