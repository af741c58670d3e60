package cli

import (
	"context"
	"errors"
	"fmt"

	"pos-terminal/internal/config"
	"pos-terminal/internal/database"
	"pos-terminal/internal/kvstore"
	"pos-terminal/internal/logger"
	"pos-terminal/internal/messaging"
	"pos-terminal/internal/queue"
	"pos-terminal/internal/remote"
	"pos-terminal/internal/services/syncer"
)

// local is the terminal's on-disk state
type local struct {
	kv    *kvstore.SQLiteStore
	queue *queue.Queue
	log   *logger.Logger
}

func openLocal(ctx context.Context, cfg *config.Config, log *logger.Logger) (*local, error) {
	kv, err := kvstore.OpenSQLite(cfg.Queue.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open local store", err)
	}

	q, err := queue.Open(ctx, kv, log, queue.Options{
		Debounce:   cfg.Queue.Debounce,
		MaxEntries: cfg.Queue.MaxEntries,
	})
	if err != nil {
		kv.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open local queue", err)
	}
	return &local{kv: kv, queue: q, log: log}, nil
}

// Close flushes the queue before releasing the database
func (l *local) Close(ctx context.Context) error {
	return errors.Join(l.queue.Close(ctx), l.kv.Close())
}

// dialRemote returns a dialer for the configured back-office store. The
// dialer tries once; the caller retries on its own schedule.
func dialRemote(cfg *config.Config, log *logger.Logger) remote.DialFunc {
	if cfg.Remote.Driver == "mongo" {
		return func(ctx context.Context) (remote.Store, error) {
			store, err := remote.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Terminal.ID)
			if err != nil {
				return nil, err
			}
			return store, nil
		}
	}

	return func(ctx context.Context) (remote.Store, error) {
		once := *cfg
		once.Database.MaxRetries = 1

		db, err := database.New(ctx, &once, log)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("db_connected", "Connected to PostgreSQL database", "", map[string]interface{}{
			"host": cfg.Database.Host,
		})
		return remote.NewPostgresStore(db, cfg.Terminal.ID), nil
	}
}

// connectBroker opens RabbitMQ when enabled. A broker that is down only
// costs kitchen tickets and remote displays, so failure is logged and nil
// is returned.
func connectBroker(ctx context.Context, cfg *config.Config, log *logger.Logger) (*messaging.Connection, *messaging.Publisher) {
	if !cfg.RabbitMQ.Enabled {
		return nil, nil
	}
	conn, err := messaging.New(ctx, cfg, log)
	if err != nil {
		log.Warn("rabbitmq_unavailable", "Continuing without kitchen announcements", "startup", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}
	log.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", nil)
	return conn, messaging.NewPublisher(conn, log)
}

// announcer avoids handing the writer a typed nil
func announcer(pub *messaging.Publisher) syncer.Announcer {
	if pub == nil {
		return nil
	}
	return pub
}
