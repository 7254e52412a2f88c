package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	config "github.com/avvvet/bingo-engine/configs"
	statusdb "github.com/avvvet/bingo-engine/internal/db"
	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/avvvet/bingo-engine/internal/gamesvc/broker"
	"github.com/avvvet/bingo-engine/internal/gamesvc/db"
	handlers "github.com/avvvet/bingo-engine/internal/gamesvc/handlers"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	nats "github.com/avvvet/bingo-engine/internal/nats"
)

const SERVICE_NAME = "engine"

type CLI struct {
	TickInterval time.Duration `help:"Override TICK_INTERVAL (clamped to 1s..3s)."`
	Debug        bool          `help:"Enable debug logging."`
	Autostart    bool          `default:"true" negatable:"" help:"Start the scheduler on boot."`
	NoMirror     bool          `help:"Do not mirror round status to MongoDB."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("enginesvc"),
		kong.Description("Bingo round lifecycle engine"),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(run(cli))
}

func run(cli CLI) error {
	config.LoadEnv(SERVICE_NAME)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cli.Debug {
		cfg.LogLevel = "debug"
	}
	if cli.TickInterval > 0 {
		cfg.TickInterval = engine.ClampInterval(cli.TickInterval)
	}

	instanceId, err := config.CreateUniqueInstance(SERVICE_NAME)
	if err != nil {
		return err
	}
	if err := config.Logging(SERVICE_NAME+"_service_"+instanceId, cfg.LogDir, cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// pg connection
	pool, err := db.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info("pg connection established successfully")
	repo := store.NewPGStore(pool)

	clock := quartz.NewReal()
	var fanout engine.Notifiers
	eng, err := engine.New(repo, cfg.Engine, engine.WithClock(clock), engine.WithNotifier(&fanout))
	if err != nil {
		return err
	}
	sched := engine.NewScheduler(eng, repo, clock, cfg.TickInterval, cfg.MaxTickFailures, instanceId)

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, "bingo-engine-"+instanceId)
	if err != nil {
		return err
	}
	defer n.Close()
	log.Infof("NATS connection established successfully %s", n.Url)

	b := broker.NewBroker(n.Conn, sched, eng)
	fanout = append(fanout, b)

	var mirror handlers.StatusReader
	if cfg.MongoURI != "" && !cli.NoMirror {
		database, err := statusdb.ConnectToDB(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer database.Client().Disconnect(context.Background())
		m, err := statusdb.NewStatusMirror(ctx, database, cfg.StatusTTL, clock)
		if err != nil {
			return err
		}
		fanout = append(fanout, m)
		mirror = m
		log.Info("round status mirror enabled")
	}

	// fanout is complete; control requests may emit events from here on
	sub, err := b.QueueSubscribeControl("bingo-engine")
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	resumed, err := eng.Recover(ctx, cfg.ResumeWindow)
	if err != nil {
		return err
	}
	log.WithField("resumed", resumed).Info("recovery policy applied")

	g, gctx := errgroup.WithContext(ctx)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.AllowOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	h := handlers.NewHandler(gctx, sched, eng, mirror, cfg.Port)
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cli.Autostart {
		// a scheduler that gives up ends the process for the supervisor to restart
		g.Go(func() error {
			if err := sched.Run(gctx); err != nil {
				return fmt.Errorf("engine scheduler: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("%s service shutdown failed: %+v", SERVICE_NAME, err)
		}
		// the heartbeat stays "running" so a quick restart resumes the round
		return sched.Wait(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
	return nil
}
