package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/yoshiniks/nodeAppShop/internal/log"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort    int
	AdminPort   int
	TrustedHops int
	EnablePprof bool

	EnableTracing   bool
	OTLPEndpoint    string
	TraceSample     float64
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string

	MongoURI         string
	MongoURISSMParam string
	MongoDatabase    string

	SessionBackend        string
	SessionSecret         string
	SessionSecretSSMParam string
	SessionCookie         string
	SessionTTL            time.Duration
	SessionRolling        bool
	CookieSecure          bool
	RedisAddr             string
	RedisPassword         string

	PublicDir      string
	ImagesDir      string
	UploadBackend  string
	UploadS3Bucket string
	UploadS3Prefix string
	MaxUploadBytes int64

	LoginRate  float64
	LoginBurst int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.IntVar(&c.HTTPPort, "http-port", 3000, "storefront listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "ops listen TCP port for metrics/health/pprof (1..65535)")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "number of trusted reverse proxies in front of the server")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", false, "Enable pprof (ops port only)")

	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) for pyro-server")

	fs.StringVar(&c.MongoURI, "mongo-uri", "", "MongoDB connection string")
	fs.StringVar(&c.MongoURISSMParam, "mongo-uri-ssm-param", "", "SSM parameter holding the MongoDB connection string (overrides -mongo-uri)")
	fs.StringVar(&c.MongoDatabase, "mongo-database", "shop", "MongoDB database name")

	fs.StringVar(&c.SessionBackend, "session-backend", "mongo", "session store: mongo|redis|memory")
	fs.StringVar(&c.SessionSecret, "session-secret", "", "secret used to sign session cookies (min 16 bytes)")
	fs.StringVar(&c.SessionSecretSSMParam, "session-secret-ssm-param", "", "SSM parameter holding the session secret (overrides -session-secret)")
	fs.StringVar(&c.SessionCookie, "session-cookie", "shop.sid", "session cookie name")
	fs.DurationVar(&c.SessionTTL, "session-ttl", 14*24*time.Hour, "session lifetime")
	fs.BoolVar(&c.SessionRolling, "session-rolling", false, "re-save sessions and refresh the cookie on every request")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", false, "mark session cookie Secure (requires https)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "redis host:port when -session-backend=redis")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "redis password")

	fs.StringVar(&c.PublicDir, "public-dir", "", "directory served at / (embedded assets when empty)")
	fs.StringVar(&c.ImagesDir, "images-dir", "images", "directory uploaded images are written to and served from at /images")
	fs.StringVar(&c.UploadBackend, "upload-backend", "disk", "upload storage: disk|s3")
	fs.StringVar(&c.UploadS3Bucket, "upload-s3-bucket", "", "s3 bucket for uploads when -upload-backend=s3")
	fs.StringVar(&c.UploadS3Prefix, "upload-s3-prefix", "images", "s3 key prefix for uploads")
	fs.Int64Var(&c.MaxUploadBytes, "max-upload-bytes", 10<<20, "max request body size for form and multipart posts")

	fs.Float64Var(&c.LoginRate, "login-rate", 0.2, "auth form posts per second per client ip")
	fs.IntVar(&c.LoginBurst, "login-burst", 10, "auth form post burst per client ip")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value overrides env %s", f.Name, key)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s: %v", f.Name, key, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Secrets sourced from SSM are checked after resolution, so either the
// literal or the parameter name satisfies the requirement here.
func Validate(c App) error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}
	if c.TrustedHops < 0 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be >= 0 (got %d)", c.TrustedHops))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL: %w", err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}
	if c.EnablePyroscope {
		if u, err := url.Parse(c.PyroServer); c.PyroServer == "" || err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL when ENABLE_PYROSCOPE=true (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// the user collection always lives in mongo, whatever holds sessions
	if c.MongoURI == "" && c.MongoURISSMParam == "" {
		errs = append(errs, fmt.Errorf("MONGO_URI or MONGO_URI_SSM_PARAM is required"))
	}
	if c.MongoDatabase == "" {
		errs = append(errs, fmt.Errorf("MONGO_DATABASE is required"))
	}

	switch c.SessionBackend {
	case "mongo", "memory":
	case "redis":
		if _, _, err := net.SplitHostPort(c.RedisAddr); err != nil {
			errs = append(errs, fmt.Errorf("REDIS_ADDR must be host:port when SESSION_BACKEND=redis (got %q)", c.RedisAddr))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid SESSION_BACKEND %q (mongo|redis|memory)", c.SessionBackend))
	}
	if c.SessionSecretSSMParam == "" {
		if err := ValidateSecret(c.SessionSecret); err != nil {
			errs = append(errs, err)
		}
	}
	if c.SessionCookie == "" {
		errs = append(errs, fmt.Errorf("SESSION_COOKIE is required"))
	}
	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be at least 1m (got %s)", c.SessionTTL))
	}

	switch c.UploadBackend {
	case "disk":
		if c.ImagesDir == "" {
			errs = append(errs, fmt.Errorf("IMAGES_DIR is required when UPLOAD_BACKEND=disk"))
		}
	case "s3":
		if c.UploadS3Bucket == "" {
			errs = append(errs, fmt.Errorf("UPLOAD_S3_BUCKET is required when UPLOAD_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid UPLOAD_BACKEND %q (disk|s3)", c.UploadBackend))
	}
	if c.MaxUploadBytes < 1024 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be >= 1024 (got %d)", c.MaxUploadBytes))
	}

	if c.LoginRate <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE must be > 0 (got %v)", c.LoginRate))
	}
	if c.LoginBurst < 1 {
		errs = append(errs, fmt.Errorf("LOGIN_BURST must be >= 1 (got %d)", c.LoginBurst))
	}

	return errors.Join(errs...)
}

// SplitSecrets splits a comma separated secret list. The first entry signs
// new cookies; the rest are only accepted.
func SplitSecrets(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateSecret checks every entry of a secret list. It is also called on
// secrets resolved from SSM.
func ValidateSecret(s string) error {
	parts := SplitSecrets(s)
	if len(parts) == 0 {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	for i, p := range parts {
		if len(p) < 16 {
			return fmt.Errorf("SESSION_SECRET entry %d must be at least 16 bytes (got %d)", i, len(p))
		}
	}
	return nil
}
