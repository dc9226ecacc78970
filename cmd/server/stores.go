package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/yoshiniks/nodeAppShop/internal/cfg"
	"github.com/yoshiniks/nodeAppShop/internal/health"
	"github.com/yoshiniks/nodeAppShop/internal/mongodb"
	"github.com/yoshiniks/nodeAppShop/internal/session"
	"github.com/yoshiniks/nodeAppShop/internal/upload"
	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// sessionBackend is the configured session store plus what readiness and
// shutdown need from it.
type sessionBackend struct {
	store session.Store
	// probe is nil when the store shares the mongo connection or lives in
	// process.
	probe health.Probe
	close func() error
}

func newSessionBackend(ctx context.Context, conf cfg.App, mc *mongodb.Client) (*sessionBackend, error) {
	noop := func() error { return nil }
	switch conf.SessionBackend {
	case "memory":
		return &sessionBackend{store: session.NewMemoryStore(ctx, 0), close: noop}, nil
	case "mongo":
		if mc == nil {
			return nil, xerrors.New("session backend mongo: no mongo client")
		}
		st, err := session.NewMongoStore(ctx, mc.Database(), session.DefaultCollection)
		if err != nil {
			return nil, err
		}
		return &sessionBackend{store: st, close: noop}, nil
	case "redis":
		rc := redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
		})
		st := session.NewRedisStore(rc, session.DefaultRedisPrefix)
		return &sessionBackend{
			store: st,
			probe: health.Ping("redis", st, health.DefaultPingTimeout),
			close: rc.Close,
		}, nil
	default:
		return nil, xerrors.Newf("unknown session backend %q", conf.SessionBackend)
	}
}

// sessionSecrets turns the validated secret list into HMAC keys.
func sessionSecrets(s string) [][]byte {
	var out [][]byte
	for _, part := range cfg.SplitSecrets(s) {
		out = append(out, []byte(part))
	}
	return out
}

func sessionOptions(conf cfg.App, onSave func(created bool)) session.Options {
	return session.Options{
		CookieName: conf.SessionCookie,
		Secrets:    sessionSecrets(conf.SessionSecret),
		TTL:        conf.SessionTTL,
		Secure:     conf.CookieSecure,
		Rolling:    conf.SessionRolling,
		OnSave:     onSave,
	}
}

func newUploadStorage(conf cfg.App, awsCfg aws.Config) (upload.Storage, error) {
	switch conf.UploadBackend {
	case "disk":
		st, err := upload.NewDiskStorage(conf.ImagesDir)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "s3":
		st, err := upload.NewS3Storage(upload.S3Options{
			Client:         s3.NewFromConfig(awsCfg),
			Bucket:         conf.UploadS3Bucket,
			Prefix:         conf.UploadS3Prefix,
			MaxObjectBytes: conf.MaxUploadBytes,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, xerrors.Newf("unknown upload backend %q", conf.UploadBackend)
	}
}
