package storage

import (
	"context"
	"fmt"
	"log/slog"

	"vibehive/contract"
	"vibehive/errors"

	"github.com/dgraph-io/badger/v4"
)

type Driver string

const (
	DriverBadger   Driver = "badger"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open builds the message store selected by driver. location is the badger
// directory, the sqlite DSN or the postgres connection string. The returned store owns its database.
func Open(ctx context.Context, driver Driver, location string, log *slog.Logger, pageLimit int) (contract.MessageStore, error) {
	switch driver {
	case DriverBadger:
		db, err := badger.Open(buildBadgerOpts(ctx, location, log))
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		store, err := NewBadgerMessageStore(db, log, pageLimit)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil
	case DriverSQLite:
		return OpenSQLiteMessageStore(location, log, pageLimit)
	case DriverPostgres:
		return OpenPostgresMessageStore(ctx, location, log, pageLimit)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownDriver, driver)
	}
}

func buildBadgerOpts(ctx context.Context, path string, log *slog.Logger) badger.Options {
	options := badger.DefaultOptions(path)
	if log.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
