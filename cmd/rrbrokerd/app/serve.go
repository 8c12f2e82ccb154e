package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	v1 "github.com/stacklok/rrbroker/pkg/api/v1"
	"github.com/stacklok/rrbroker/pkg/allocator"
	"github.com/stacklok/rrbroker/pkg/allocator/localprocess"
	"github.com/stacklok/rrbroker/pkg/allocator/sshbatch"
	"github.com/stacklok/rrbroker/pkg/allocator/unicore"
	"github.com/stacklok/rrbroker/pkg/broker"
	"github.com/stacklok/rrbroker/pkg/config"
	"github.com/stacklok/rrbroker/pkg/logger"
	"github.com/stacklok/rrbroker/pkg/resourceconfig"
	"github.com/stacklok/rrbroker/pkg/session/manager"
	"github.com/stacklok/rrbroker/pkg/session/repository"
	"github.com/stacklok/rrbroker/pkg/settings"
	"github.com/stacklok/rrbroker/pkg/sweeper"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 60 * time.Second // must exceed forward_timeout for proxied commands
	serverIdleTimeout  = 60 * time.Second
	shutdownGrace      = 30 * time.Second
)

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sessionStore, err := repository.Open(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("opening session repository: %w", err)
	}
	defer sessionStore.Close()

	configStore, err := resourceconfig.Open(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("opening resource-config registry: %w", err)
	}
	defer configStore.Close()
	registry := resourceconfig.NewRegistry(configStore)

	sdb, err := settingsDB(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("opening settings database: %w", err)
	}
	defer sdb.Close()
	admission, err := settings.Open(ctx, sdb, cfg.DefaultKeepAlive)
	if err != nil {
		return fmt.Errorf("loading system global settings: %w", err)
	}

	allocatorFor, localAllocatorFor, err := buildDispatch(cfg, sessionStore, registry)
	if err != nil {
		return fmt.Errorf("building allocator dispatch: %w", err)
	}

	prober := broker.NewVocabularyProber(cfg.ReadinessProbeTimeout)
	mgr := manager.NewManager(sessionStore, admission, allocatorFor, localAllocatorFor, registry, prober, nil)
	b := broker.New(mgr, sessionStore, allocatorFor, localAllocatorFor)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)
	v1.Mount(router, cfg.URIPrefix, b, registry, cfg.ForwardTimeout)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	sweep := sweeper.New(sessionStore, allocatorFor, localAllocatorFor, cfg.SweepInterval, nil)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweep.Run(gCtx)
	})
	g.Go(func() error {
		logger.Infof("rrbrokerd listening on %s (prefix %s)", cfg.ListenAddr, cfg.URIPrefix)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		logger.Infof("shutting down rrbrokerd")
		sweep.Stop()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Infof("rrbrokerd shutdown complete")
	return nil
}

// buildDispatch constructs the allocator backend cfg.Allocator names as
// the primary (scheduled-job) backend, and always additionally
// constructs the local-process backend regardless of cfg.Allocator,
// since the `open` command and process-attached session teardown reach
// it directly and independent of whichever job backend the daemon is
// configured for. It returns two dispatch.For-shaped resolvers: one
// bound to the primary kind, one bound to allocator.KindLocalProcess.
func buildDispatch(cfg *config.Config, sessionStore manager.Store, registry *resourceconfig.Registry) (primary, local func() (allocator.Allocator, error), err error) {
	backends := make(map[allocator.Kind]allocator.Allocator)
	backends[allocator.KindLocalProcess] = localprocess.New(sessionStore, registry)

	var primaryKind allocator.Kind
	switch cfg.Allocator {
	case config.AllocatorSSH:
		primaryKind = allocator.KindSSH
		backends[allocator.KindSSH] = sshbatch.New(sshbatch.Config{
			User:         cfg.SSHUser,
			KeyPath:      cfg.SSHKeyPath,
			EntryHosts:   cfg.SSHEntryHosts,
			DefaultQueue: cfg.SSHDefaultQueue,
			DefaultTime:  cfg.SSHDefaultTime,
			AllocTimeout: cfg.SSHAllocTimeout,
			OutLogPrefix: cfg.SSHOutLogPrefix,
		}, sessionStore, registry)
	case config.AllocatorUNICORE:
		primaryKind = allocator.KindUNICORE
		backends[allocator.KindUNICORE] = unicore.New(unicore.Config{
			RegistryURL: cfg.UnicoreRegistryURL,
			DefaultSite: cfg.UnicoreDefaultSite,
			BearerToken: cfg.UnicoreBearerToken,
			LogCapBytes: cfg.UnicoreLogCapBytes,
			HTTPTimeout: cfg.UnicoreHTTPTimeout,
		}, sessionStore, registry)
	case config.AllocatorLocalProcess:
		primaryKind = allocator.KindLocalProcess
	default:
		return nil, nil, fmt.Errorf("unknown allocator kind %q", cfg.Allocator)
	}

	dispatch := allocator.NewDispatch(backends)
	primary = func() (allocator.Allocator, error) {
		return dispatch.For(primaryKind)
	}
	local = func() (allocator.Allocator, error) {
		return dispatch.For(allocator.KindLocalProcess)
	}
	return primary, local, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
