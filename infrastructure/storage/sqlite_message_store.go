package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"

	_ "github.com/mattn/go-sqlite3"
)

var _ contract.MessageStore = (*SQLiteMessageStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL UNIQUE,
	pair       TEXT    NOT NULL,
	sender     TEXT    NOT NULL,
	receiver   TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (pair, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages (sender);
CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages (receiver);
`

// SQLiteMessageStore is the relational flavour of the message store.
// The AUTOINCREMENT rowid is the write sequence.
type SQLiteMessageStore struct {
	mu        sync.Mutex
	db        *sql.DB
	log       *slog.Logger
	clock     func() time.Time
	lastWrite time.Time
	pageLimit int
}

// OpenSQLiteMessageStore opens (and migrates) the database behind dsn.
func OpenSQLiteMessageStore(dsn string, log *slog.Logger, pageLimit int) (*SQLiteMessageStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// A single writer connection avoids "database is locked" under concurrent appends.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}

	var last int64
	if err = db.QueryRow("SELECT COALESCE(MAX(created_at), 0) FROM messages").Scan(&last); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite last write: %w", err)
	}
	store := &SQLiteMessageStore{db: db, log: log, clock: time.Now, pageLimit: pageLimit}
	if last > 0 {
		store.lastWrite = time.Unix(0, last).UTC()
	}
	log.Debug("SQLite message store ready", "dsn", dsn, "last_write", store.lastWrite)
	return store, nil
}

func (s *SQLiteMessageStore) Append(ctx context.Context, sender, receiver domain.ParticipantID, content string) (domain.Message, error) {
	intent := domain.SendIntent{Sender: sender, Receiver: receiver, Content: content}
	if err := intent.Validate(0); err != nil {
		return domain.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	message := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		CreatedAt: nextWriteTime(s.clock(), s.lastWrite),
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, pair, sender, receiver, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		message.ID.String(), pairKey(sender, receiver), string(sender), string(receiver), content,
		message.CreatedAt.UnixNano(),
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	message.Sequence = uint64(seq)
	s.lastWrite = message.CreatedAt
	return message, nil
}

func (s *SQLiteMessageStore) History(ctx context.Context, a, b domain.ParticipantID) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, id, sender, receiver, content, created_at FROM messages WHERE pair = ? ORDER BY created_at, seq",
		pairKey(a, b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	defer rows.Close()
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	return messages, nil
}

func (s *SQLiteMessageStore) Window(ctx context.Context, a, b domain.ParticipantID, page domain.Page) ([]domain.Message, *string, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = s.pageLimit
	}

	query := "SELECT seq, id, sender, receiver, content, created_at FROM messages WHERE pair = ?"
	args := []any{pairKey(a, b)}
	if page.Before != nil {
		nanos, seq, err := parseCursor(*page.Before)
		if err != nil {
			return nil, nil, err
		}
		query += " AND (created_at < ? OR (created_at = ? AND seq < ?))"
		args = append(args, nanos, nanos, int64(seq))
	}
	// One extra row tells whether an older page exists.
	query += " ORDER BY created_at DESC, seq DESC LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	defer rows.Close()
	messages, err := scanMessages(rows)
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

func (s *SQLiteMessageStore) Counterparties(ctx context.Context, viewer domain.ParticipantID) ([]domain.ParticipantID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT receiver FROM messages WHERE sender = ?
		UNION
		SELECT sender FROM messages WHERE receiver = ?
		ORDER BY 1`, string(viewer), string(viewer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	defer rows.Close()

	var peers []domain.ParticipantID
	for rows.Next() {
		var peer string
		if err := rows.Scan(&peer); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
		}
		peers = append(peers, domain.ParticipantID(peer))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	return peers, nil
}

func (s *SQLiteMessageStore) Close() error {
	return s.db.Close()
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var (
			seq       int64
			id        string
			sender    string
			receiver  string
			content   string
			createdAt int64
		)
		if err := rows.Scan(&seq, &id, &sender, &receiver, &content, &createdAt); err != nil {
			return nil, err
		}
		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		messages = append(messages, domain.Message{
			ID:        parsedID,
			Sender:    domain.ParticipantID(sender),
			Receiver:  domain.ParticipantID(receiver),
			Content:   content,
			CreatedAt: time.Unix(0, createdAt).UTC(),
			Sequence:  uint64(seq),
		})
	}
	return messages, rows.Err()
}
