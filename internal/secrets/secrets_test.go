package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	values    map[string]*string
	decrypted []bool
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.decrypted = append(f.decrypted, aws.ToBool(in.WithDecryption))
	v, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: v}}, nil
}

func TestGet(t *testing.T) {
	f := &fakeSSM{values: map[string]*string{
		"/shop/mongo-uri": aws.String(" mongodb://db:27017 \n"),
		"/shop/empty":     aws.String("  "),
		"/shop/nil":       nil,
	}}
	s := NewSSM(f)

	v, err := s.Get(context.Background(), "/shop/mongo-uri")
	if err != nil || v != "mongodb://db:27017" {
		t.Fatalf("v=%q err=%v", v, err)
	}
	if !f.decrypted[0] {
		t.Fatal("SecureString values must be decrypted")
	}

	for _, name := range []string{"/shop/empty", "/shop/nil"} {
		if _, err := s.Get(context.Background(), name); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	_, err = s.Get(context.Background(), "/shop/missing")
	var nf *types.ParameterNotFound
	if !errors.As(err, &nf) || !strings.Contains(err.Error(), "/shop/missing") {
		t.Fatalf("missing err = %v", err)
	}
}

func TestResolve(t *testing.T) {
	s := NewSSM(&fakeSSM{values: map[string]*string{
		"/shop/secret": aws.String("s3cr3t-s3cr3t-s3cr3t"),
	}})
	secret, uri := "", "mongodb://keep"
	err := s.Resolve(context.Background(), map[string]*string{
		"/shop/secret": &secret,
		"":             &uri,
	})
	if err != nil || secret != "s3cr3t-s3cr3t-s3cr3t" || uri != "mongodb://keep" {
		t.Fatalf("secret=%q uri=%q err=%v", secret, uri, err)
	}

	if err := s.Resolve(context.Background(), map[string]*string{"/shop/missing": &secret}); err == nil {
		t.Fatal("expected error")
	}
}
