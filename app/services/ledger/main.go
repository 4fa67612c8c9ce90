package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powledger/app/services/ledger/handlers"
	"github.com/ardanlabs/powledger/business/sys/database"
	"github.com/ardanlabs/powledger/business/sys/metrics"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/redis"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("LEDGER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			APIHost         string        `conf:"default:0.0.0.0:4567"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Log struct {
			ErrorFile  string `conf:"default:log/development-error.log"`
			MaxSizeMB  int    `conf:"default:100"`
			MaxBackups int    `conf:"default:5"`
			MaxAgeDays int    `conf:"default:28"`
			Compress   bool   `conf:"default:false"`
		}
		Store struct {
			Kind          string        `conf:"default:redis"`
			RedisAddr     string        `conf:"default:localhost:6379"`
			RedisPassword string        `conf:"mask"`
			RedisDB       int           `conf:"default:0"`
			RedisPoolSize int           `conf:"default:10"`
			DialTimeout   time.Duration `conf:"default:5s"`
			ReadTimeout   time.Duration `conf:"default:3s"`
			WriteTimeout  time.Duration `conf:"default:3s"`
			DiskPath      string        `conf:"default:zblock/ledger"`
		}
		Cache struct {
			Enabled    bool          `conf:"default:true"`
			LifeWindow time.Duration `conf:"default:1h"`
			MaxSizeMB  int           `conf:"default:64"`
		}
		Genesis struct {
			Path string `conf:"default:zblock/genesis.yaml"`
			Seed bool   `conf:"default:true"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "hash-chained proof of work ledger",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// Errors are also kept in their own rotating file.
	log = logger.WithErrorFile(log, logger.ErrorFile{
		Path:       cfg.Log.ErrorFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Store Support

	log.Infow("startup", "status", "initializing store support", "kind", cfg.Store.Kind)

	kv, err := database.Open(context.Background(), database.Config{
		Kind: cfg.Store.Kind,
		Redis: redis.Config{
			Addr:         cfg.Store.RedisAddr,
			Password:     cfg.Store.RedisPassword,
			DB:           cfg.Store.RedisDB,
			PoolSize:     cfg.Store.RedisPoolSize,
			DialTimeout:  cfg.Store.DialTimeout,
			ReadTimeout:  cfg.Store.ReadTimeout,
			WriteTimeout: cfg.Store.WriteTimeout,
		},
		DiskPath: cfg.Store.DiskPath,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	var cache *bigcache.BigCache
	if cfg.Cache.Enabled {
		cacheCfg := bigcache.DefaultConfig(cfg.Cache.LifeWindow)
		cacheCfg.HardMaxCacheSize = cfg.Cache.MaxSizeMB

		cache, err = bigcache.New(context.Background(), cacheCfg)
		if err != nil {
			return fmt.Errorf("constructing snapshot cache: %w", err)
		}
		defer cache.Close()
	}

	// =========================================================================
	// Ledger Support

	// The ledger packages accept a function of this signature to allow the
	// application to log. Events meant for viewers are also sent to any
	// websocket client that is connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		const websocketPrefix = "viewer:"

		s := fmt.Sprintf(v, args...)
		if strings.Contains(s, ": WARNING: ") {
			log.Warnw(s, "traceid", "00000000-0000-0000-0000-000000000000")
		} else {
			log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		}
		if strings.HasPrefix(s, websocketPrefix) {
			evts.Send(s)
		}
	}

	st, err := state.New(state.Config{
		KV:        kv,
		Cache:     cache,
		EvHandler: ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	if cfg.Genesis.Seed {
		g := genesis.Default()
		switch _, err := os.Stat(cfg.Genesis.Path); {
		case err == nil:
			if g, err = genesis.Load(cfg.Genesis.Path); err != nil {
				return fmt.Errorf("loading genesis: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("loading genesis: %w", err)
		}

		root, created, err := st.Seed(context.Background(), g)
		if err != nil {
			return fmt.Errorf("seeding genesis: %w", err)
		}
		log.Infow("startup", "status", "genesis", "hash", root.Hash, "created", created)
	}

	m := metrics.New()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, kv, m)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Construct the mux for the API calls.
	apiMux := handlers.APIMux(handlers.APIMuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		Metrics:    m,
		State:      st,
		Evts:       evts,
		CORSOrigin: cfg.Web.CORSOrigin,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}
