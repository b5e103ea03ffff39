package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"myrhythm/internal/adapters/auth/jwtauth"
	"myrhythm/internal/adapters/auth/remote"
	"myrhythm/internal/adapters/commands/redisstream"
	"myrhythm/internal/adapters/notify"
	pg "myrhythm/internal/adapters/storage/postgres"
	sqlite "myrhythm/internal/adapters/storage/sqlite"
	"myrhythm/internal/config"
	"myrhythm/internal/domain/doses"
	"myrhythm/internal/domain/reminders"
	"myrhythm/internal/platform/logger"
	"myrhythm/internal/ports/auth"
	port "myrhythm/internal/ports/notify"
	"myrhythm/internal/router"

	"github.com/go-redis/redis/v8"
)

// @title MyRhythm API
// @version 1.0
// @description Agenda de tomas de medicamentos y suplementos: registros, calendario semanal, recordatorios y adherencia.
// @BasePath /
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    "myrhythm",
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("fatal", map[string]any{"err": err})
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	if verifier == nil {
		log.Warn("no auth verifier configured, running in dev mode (X-Debug-User-ID)", nil)
	}

	opts := router.Options{
		AuthVerifier:     verifier,
		AllowDebugHeader: cfg.Auth.AllowDebugHeader,
		DB:               db,
		Driver:           cfg.Storage.Driver,
		Location:         cfg.Location(),
		Logger:           log,
	}
	svc := router.NewServices(opts)

	var wg sync.WaitGroup

	// Comandos: Redis Streams si hay REDIS_ADDR, si no cola en proceso.
	var dispatcher doses.Dispatcher
	if cfg.Commands.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Commands.RedisAddr,
			Password: cfg.Commands.RedisPassword,
			DB:       cfg.Commands.RedisDB,
		})
		defer client.Close()

		dispatcher = redisstream.NewPublisher(client, cfg.Commands.Stream, cfg.Commands.MaxLen)
		consumer := redisstream.NewConsumer(client, svc.Doses, log, redisstream.ConsumerOptions{
			Stream:   cfg.Commands.Stream,
			Group:    cfg.Commands.Group,
			Consumer: cfg.Commands.Consumer,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				log.Error("stream consumer stopped", map[string]any{"err": err})
			}
		}()
	} else {
		async := doses.NewAsyncDispatcher(svc.Doses, log, doses.AsyncOptions{
			Workers:   cfg.Commands.Workers,
			QueueSize: cfg.Commands.QueueSize,
		})
		defer async.Close()
		dispatcher = async
	}

	if cfg.Reminders.Enabled {
		notifier, closeNotifier, err := newNotifier(cfg, log)
		if err != nil {
			return err
		}
		defer closeNotifier()

		scanner := reminders.NewScanner(svc.Doses, notifier, log, reminders.Options{
			Lookback:   cfg.Reminders.Lookback,
			MaxCatchUp: cfg.Reminders.MaxCatchUp,
		})
		sch, err := scanner.Start(cfg.Reminders.Cron)
		if err != nil {
			return err
		}
		defer func() { _ = sch.Shutdown() }()
		log.Info("reminders scheduled", map[string]any{"cron": cfg.Reminders.Cron})
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.NewRouter(opts, svc, dispatcher),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{
			"addr":     srv.Addr,
			"storage":  cfg.Storage.Driver,
			"timezone": cfg.Timezone,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", map[string]any{"err": err})
	}
	stop()
	wg.Wait()
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := pg.Open(cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	case config.StorageSQLite:
		return sqlite.Open(cfg.Storage.SQLitePath)
	default:
		return nil, nil
	}
}

func newVerifier(cfg *config.Config) (auth.AuthVerifier, error) {
	switch {
	case cfg.Auth.JWTSecret != "":
		return jwtauth.NewVerifier(cfg.Auth.JWTSecret)
	case cfg.Auth.RemoteURL != "":
		client, err := remote.NewClient(remote.Config{
			BaseURL:    cfg.Auth.RemoteURL,
			APIKey:     cfg.Auth.RemoteAPIKey,
			Timeout:    cfg.Auth.RemoteTimeout,
			RetryCount: 2,
		})
		if err != nil {
			return nil, err
		}
		return remote.NewVerifier(client), nil
	default:
		return nil, nil
	}
}

// newNotifier junta los canales configurados; el log siempre está.
func newNotifier(cfg *config.Config, log logger.Logger) (port.Notifier, func(), error) {
	channels := notify.Multi{notify.NewLogNotifier(log)}
	closeFn := func() {}

	if t := cfg.Notify.Telegram; t.BotToken != "" {
		tg, err := notify.NewTelegramNotifier(t.BotToken, t.Chats, cfg.Location())
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, tg)
	}

	if m := cfg.Notify.MQTT; m.Broker != "" {
		client, err := notify.NewMQTTClient(notify.MQTTConfig{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Username: m.Username,
			Password: m.Password,
		})
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, notify.NewMQTTNotifier(client, m.TopicPrefix, m.QoS))
		closeFn = client.Disconnect
	}

	return channels, closeFn, nil
}
