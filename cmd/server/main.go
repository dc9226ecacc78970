package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"github.com/yoshiniks/nodeAppShop/internal/cfg"
	"github.com/yoshiniks/nodeAppShop/internal/health"
	"github.com/yoshiniks/nodeAppShop/internal/httpmw"
	"github.com/yoshiniks/nodeAppShop/internal/mongodb"
	"github.com/yoshiniks/nodeAppShop/internal/opshttp"
	"github.com/yoshiniks/nodeAppShop/internal/ratelimit"
	"github.com/yoshiniks/nodeAppShop/internal/secrets"
	"github.com/yoshiniks/nodeAppShop/internal/session"
	"github.com/yoshiniks/nodeAppShop/internal/static"
	"github.com/yoshiniks/nodeAppShop/internal/upload"
	"github.com/yoshiniks/nodeAppShop/internal/user"
	"github.com/yoshiniks/nodeAppShop/internal/views"
	"github.com/yoshiniks/nodeAppShop/internal/webassets"

	"github.com/yoshiniks/nodeAppShop/internal/httpserver"
	"github.com/yoshiniks/nodeAppShop/internal/log"
	"github.com/yoshiniks/nodeAppShop/internal/metrics"
	"github.com/yoshiniks/nodeAppShop/internal/otelx"
	"github.com/yoshiniks/nodeAppShop/internal/prof"
	v "github.com/yoshiniks/nodeAppShop/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Get build/version info
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// a .env in the working directory only fills variables the environment does not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "dotenv:", err)
	}

	// Fill in config from environment variables with prefix SHOP_ and validate
	cfg.FillFromEnv(flag.CommandLine, "SHOP_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		stackLvl = lvl
	}
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"commit_date", vi.CommitDate,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"mongo_database", conf.MongoDatabase,
		"session_backend", conf.SessionBackend,
		"session_rolling", conf.SessionRolling,
		"upload_backend", conf.UploadBackend,
		"public_dir", conf.PublicDir,
		"images_dir", conf.ImagesDir,
	)

	// Setup metrics
	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		L.Error(ctx, err, "failed to load AWS config")
		os.Exit(1)
	}

	// SSM parameters win over literal values so secrets stay out of unit files
	if conf.MongoURISSMParam != "" || conf.SessionSecretSSMParam != "" {
		params := secrets.NewSSM(ssm.NewFromConfig(awsCfg))
		err := params.Resolve(ctx, map[string]*string{
			conf.MongoURISSMParam:      &conf.MongoURI,
			conf.SessionSecretSSMParam: &conf.SessionSecret,
		})
		if err != nil {
			L.Error(ctx, err, "failed to resolve secrets from SSM")
			os.Exit(1)
		}
	}
	if err := cfg.ValidateSecret(conf.SessionSecret); err != nil {
		L.Error(ctx, err, "invalid session secret")
		os.Exit(1)
	}

	// no listener comes up without the user store
	mc, err := mongodb.Connect(ctx, mongodb.Options{
		URI:      conf.MongoURI,
		Database: conf.MongoDatabase,
		AppName:  v.AppName,
	})
	if err != nil {
		L.Error(ctx, err, "failed to connect to mongodb")
		os.Exit(1)
	}
	defer func() { _ = mc.Close(context.Background()) }()
	L.Info(ctx, "connected to mongodb", "database", conf.MongoDatabase)

	users, err := user.NewMongoStore(ctx, mc.Database(), user.DefaultCollection)
	if err != nil {
		L.Error(ctx, err, "failed to set up user store")
		os.Exit(1)
	}

	sessBackend, err := newSessionBackend(ctx, conf, mc)
	if err != nil {
		L.Error(ctx, err, "failed to set up session store")
		os.Exit(1)
	}
	defer func() { _ = sessBackend.close() }()

	sessions, err := session.NewManager(sessBackend.store, sessionOptions(conf, m.SessionSaved))
	if err != nil {
		L.Error(ctx, err, "failed to create session manager")
		os.Exit(1)
	}

	storage, err := newUploadStorage(conf, awsCfg)
	if err != nil {
		L.Error(ctx, err, "failed to set up upload storage")
		os.Exit(1)
	}
	uploads, err := upload.NewHandler(storage, upload.Options{OnOutcome: m.Upload})
	if err != nil {
		L.Error(ctx, err, "failed to create upload handler")
		os.Exit(1)
	}

	public, fromDir := webassets.Public(conf.PublicDir)
	if !fromDir {
		L.Info(ctx, "serving embedded public assets", "public_dir", conf.PublicDir)
	}
	staticSrv, err := static.New(&static.Options{
		Public: public,
		Images: storage.FS,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create static file server")
		os.Exit(1)
	}

	pages, err := views.New()
	if err != nil {
		L.Error(ctx, err, "failed to parse templates")
		os.Exit(1)
	}

	// Setup rate limiter for credential posts
	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.LoginRate, conf.LoginBurst),
		// increment prometheus counter on each denied request
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first time an ip is denied each time it is cleaned from the bucket
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)

	app, err := httpserver.NewApp(&httpserver.AppOptions{
		Static:        staticSrv,
		Uploads:       uploads,
		Sessions:      sessions,
		Users:         users,
		Views:         pages,
		AuthLimit:     limiter.Middleware(http.MethodPost),
		OnCSRFFailure: m.CSRFFailure,
		OnIdentity:    m.Identity,
	})
	if err != nil {
		L.Error(ctx, err, "failed to assemble storefront")
		os.Exit(1)
	}

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	// ready while not draining and the stores answer
	checks := []health.Probe{
		gate.Probe(),
		health.Ping("mongo", mc, health.DefaultPingTimeout),
	}
	if sessBackend.probe != nil {
		checks = append(checks, sessBackend.probe)
	}
	readiness := health.All(checks...)

	// start storefront http server
	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Port:         conf.HTTPPort,
		Logger:       L,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		App:          app,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		MaxBodyBytes: conf.MaxUploadBytes,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener port")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// ops listener serves metrics, health checks and pprof to internal monitoring only
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		// log and dont exit, worst case systemd will kill the process after timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// wait for ctrl+c / sigterm
	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so the load balancer stops sending new visitors
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining for 15s")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(15 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "app http server shutdown")
	}

	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}

	if err := sessBackend.close(); err != nil {
		L.Error(context.Background(), err, "session store close")
	}

	if err := mc.Close(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "mongodb disconnect")
	}

	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
