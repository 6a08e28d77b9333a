package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

var _ contract.MessageStore = (*PostgresMessageStore)(nil)

// appendLockKey is the advisory lock serializing appends of every instance
// sharing the database.
const appendLockKey int64 = 0x76696265

const postgresSchema = `
CREATE TABLE IF NOT EXISTS messages (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT   NOT NULL UNIQUE,
	pair       TEXT   NOT NULL,
	sender     TEXT   NOT NULL,
	receiver   TEXT   NOT NULL,
	content    TEXT   NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (pair, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages (sender);
CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages (receiver);
CREATE TABLE IF NOT EXISTS message_meta (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	last_write BIGINT   NOT NULL
);
INSERT INTO message_meta (id, last_write)
	SELECT 1, COALESCE(MAX(created_at), 0) FROM messages
	ON CONFLICT (id) DO NOTHING;
`

// PostgresMessageStore lets several server instances share one history.
// Appends run in a transaction holding an advisory lock, so the write order
// (createdAt, seq) is global and not only per process. The last write time
// lives in the single row of message_meta.
type PostgresMessageStore struct {
	pool      *pgxpool.Pool
	log       *slog.Logger
	clock     func() time.Time
	pageLimit int
}

// OpenPostgresMessageStore connects to dsn and migrates the schema.
func OpenPostgresMessageStore(ctx context.Context, dsn string, log *slog.Logger, pageLimit int) (*PostgresMessageStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err = pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	log.Debug("Postgres message store ready", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return &PostgresMessageStore{pool: pool, log: log, clock: time.Now, pageLimit: pageLimit}, nil
}

func (s *PostgresMessageStore) Append(ctx context.Context, sender, receiver domain.ParticipantID, content string) (domain.Message, error) {
	intent := domain.SendIntent{Sender: sender, Receiver: receiver, Content: content}
	if err := intent.Validate(0); err != nil {
		return domain.Message{}, err
	}

	var message domain.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", appendLockKey); err != nil {
			return err
		}
		var last int64
		if err := tx.QueryRow(ctx, "SELECT last_write FROM message_meta WHERE id = 1").Scan(&last); err != nil {
			return err
		}
		var lastWrite time.Time
		if last > 0 {
			lastWrite = time.Unix(0, last).UTC()
		}
		message = domain.Message{
			ID:        uuid.New(),
			Sender:    sender,
			Receiver:  receiver,
			Content:   content,
			CreatedAt: nextWriteTime(s.clock(), lastWrite),
		}
		var seq int64
		err := tx.QueryRow(ctx,
			`INSERT INTO messages (id, pair, sender, receiver, content, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING seq`,
			message.ID.String(), pairKey(sender, receiver), string(sender), string(receiver), content,
			message.CreatedAt.UnixNano(),
		).Scan(&seq)
		if err != nil {
			return err
		}
		message.Sequence = uint64(seq)
		_, err = tx.Exec(ctx, "UPDATE message_meta SET last_write = $1 WHERE id = 1", message.CreatedAt.UnixNano())
		return err
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return message, nil
}

func (s *PostgresMessageStore) History(ctx context.Context, a, b domain.ParticipantID) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT seq, id, sender, receiver, content, created_at FROM messages WHERE pair = $1 ORDER BY created_at, seq",
		pairKey(a, b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	return messages, nil
}

func (s *PostgresMessageStore) Window(ctx context.Context, a, b domain.ParticipantID, page domain.Page) ([]domain.Message, *string, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = s.pageLimit
	}

	query := "SELECT seq, id, sender, receiver, content, created_at FROM messages WHERE pair = $1"
	args := []any{pairKey(a, b)}
	if page.Before != nil {
		nanos, seq, err := parseCursor(*page.Before)
		if err != nil {
			return nil, nil, err
		}
		query += " AND (created_at, seq) < ($2, $3)"
		args = append(args, nanos, int64(seq))
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, seq DESC LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}

	var cursor *string
	if len(messages) > limit {
		messages = messages[:limit]
		oldest := messages[len(messages)-1]
		cursor = lo.ToPtr(position(oldest.CreatedAt, oldest.Sequence))
	}
	slices.Reverse(messages)
	return messages, cursor, nil
}

func (s *PostgresMessageStore) Counterparties(ctx context.Context, viewer domain.ParticipantID) ([]domain.ParticipantID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT receiver FROM messages WHERE sender = $1
		UNION
		SELECT sender FROM messages WHERE receiver = $1
		ORDER BY 1`, string(viewer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	peers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ParticipantID, error) {
		var peer string
		err := row.Scan(&peer)
		return domain.ParticipantID(peer), err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	return peers, nil
}

func (s *PostgresMessageStore) Close() error {
	s.pool.Close()
	return nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		var (
			seq       int64
			id        string
			sender    string
			receiver  string
			content   string
			createdAt int64
		)
		if err := row.Scan(&seq, &id, &sender, &receiver, &content, &createdAt); err != nil {
			return domain.Message{}, err
		}
		parsedID, err := uuid.Parse(id)
		if err != nil {
			return domain.Message{}, err
		}
		return domain.Message{
			ID:        parsedID,
			Sender:    domain.ParticipantID(sender),
			Receiver:  domain.ParticipantID(receiver),
			Content:   content,
			CreatedAt: time.Unix(0, createdAt).UTC(),
			Sequence:  uint64(seq),
		}, nil
	})
}
