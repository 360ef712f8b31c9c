// README: Entry point; loads config, wires the store, delivery channels, mirrors and services, then serves HTTP.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"weride/internal/ai"
	"weride/internal/config"
	httptransport "weride/internal/http"
	"weride/internal/infra"
	"weride/internal/logging"
	"weride/internal/maps"
	"weride/internal/mirror"
	"weride/internal/modules/ivr"
	"weride/internal/modules/location"
	"weride/internal/modules/notify"
	"weride/internal/modules/rating"
	"weride/internal/modules/ride"
	"weride/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.Log.Level)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("weride-api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	var st store.Store
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
	} else {
		log.Warn("WERIDE_DB_DSN not set; using the in-memory store")
		st = store.NewMemory()
	}

	deps := ride.Deps{
		Planner: notify.Planner{DriversTopic: cfg.Firebase.DriversTopic, SafetyDesk: cfg.Notify.SafetyDesk},
		Log:     log,
	}
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		closers = append(closers, rdb)
		deps.Locker = ride.NewRedisLocker(rdb, cfg.Redis.LockWait)
		deps.Index = location.NewRedisIndex(rdb)
	}

	hub := mirror.NewHub()
	sinks := mirror.Multi{hub}
	router := notify.Router{}
	if cfg.Firebase.ProjectID != "" {
		fb, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.DatabaseURL, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		router[notify.MediumPush] = notify.NewFCMChannel(fb.Messaging)
		if fb.Database != nil {
			sinks = append(sinks, mirror.NewFirebase(fb.Database))
		}
	}
	if cfg.TwilioEnabled() {
		tw, err := notify.NewTwilioChannel(notify.TwilioConfig{
			AccountSID:  cfg.Twilio.AccountSID,
			AuthToken:   cfg.Twilio.AuthToken,
			From:        cfg.Twilio.From,
			WebhookBase: cfg.Twilio.WebhookBase,
		})
		if err != nil {
			return err
		}
		router[notify.MediumVoice] = tw
		router[notify.MediumSMS] = tw
	} else {
		log.Warn("twilio not configured; voice and SMS dispatches are logged as skipped-demo-mode")
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k := mirror.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, k)
		sinks = append(sinks, k)
	}
	if cfg.AMQP.URL != "" {
		a, err := mirror.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		closers = append(closers, a)
		sinks = append(sinks, a)
	}
	async := mirror.NewAsync(sinks, log, 5*time.Second)
	deps.Mirror = async

	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocoder(cfg.Maps.APIKey, "pk")
		if err != nil {
			return err
		}
		deps.Geocoder = g
	}

	seed := cfg.Notify.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	opts := []notify.Option{
		notify.WithSelector(notify.NewRandSelector(seed)),
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithAsync(cfg.Notify.Async),
	}
	if cfg.AI.GeminiKey != "" {
		composer, err := ai.NewGeminiComposer(ctx, cfg.AI.GeminiKey, cfg.AI.Model)
		if err != nil {
			return err
		}
		closers = append(closers, composer)
		opts = append(opts, notify.WithComposer(composer))
	}
	dispatcher := notify.NewDispatcher(st, router, log, opts...)
	deps.Dispatcher = dispatcher

	rides := ride.NewService(st, deps)
	ratings := rating.NewService(st, log)
	handler := httptransport.NewRouter(httptransport.Deps{
		Rides:           rides,
		Ratings:         ratings,
		IVR:             ivr.NewService(rides, ratings, log),
		Hub:             hub,
		Log:             log,
		TwilioAuthToken: cfg.Twilio.AuthToken,
		WebhookBase:     cfg.Twilio.WebhookBase,
		NearbyRadiusKm:  cfg.Maps.NearbyRadiusKm,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	dispatcher.Wait()
	async.Wait()
	return nil
}
