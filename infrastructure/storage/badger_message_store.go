package storage

import (
	"context"
	"encoding/binary"
	goerrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var _ contract.MessageStore = (*BadgerMessageStore)(nil)

const sequenceBandwidth = 128

// BadgerMessageStore persists messages in BadgerDB.
// Keys are "msg:{pair}:{createdAt %019d}:{sequence %020d}" so a prefix scan over
// one pair returns its conversation already ordered, in either direction.
// It owns the database and closes it on Close.
type BadgerMessageStore struct {
	mu        sync.Mutex
	db        *badger.DB
	log       *slog.Logger
	sequence  *badger.Sequence
	clock     func() time.Time
	lastWrite time.Time
	pageLimit int
}

func NewBadgerMessageStore(db *badger.DB, log *slog.Logger, pageLimit int) (*BadgerMessageStore, error) {
	sequence, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	store := &BadgerMessageStore{
		db:        db,
		log:       log,
		sequence:  sequence,
		clock:     time.Now,
		pageLimit: pageLimit,
	}
	if err = store.loadLastWrite(); err != nil {
		_ = sequence.Release()
		return nil, err
	}
	return store, nil
}

func (s *BadgerMessageStore) loadLastWrite() error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastWriteKey))
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				s.lastWrite = time.Unix(0, int64(binary.BigEndian.Uint64(val))).UTC()
			}
			return nil
		})
	})
}

// Append validates and persists a message, assigning its ID, CreatedAt and Sequence.
// The message key, both counterparty index keys and the last write time
// are committed in a single transaction.
func (s *BadgerMessageStore) Append(ctx context.Context, sender, receiver domain.ParticipantID, content string) (domain.Message, error) {
	intent := domain.SendIntent{Sender: sender, Receiver: receiver, Content: content}
	if err := intent.Validate(0); err != nil {
		return domain.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.sequence.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	message := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		CreatedAt: nextWriteTime(s.clock(), s.lastWrite),
		Sequence:  seq,
	}

	last := make([]byte, 8)
	binary.BigEndian.PutUint64(last, uint64(message.CreatedAt.UnixNano()))
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message), encodeMessage(message)); err != nil {
			return err
		}
		if err := txn.Set(peerKey(sender, receiver), nil); err != nil {
			return err
		}
		if err := txn.Set(peerKey(receiver, sender), nil); err != nil {
			return err
		}
		return txn.Set([]byte(lastWriteKey), last)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	s.lastWrite = message.CreatedAt
	return message, nil
}

// History returns the whole conversation between a and b, oldest first.
func (s *BadgerMessageStore) History(ctx context.Context, a, b domain.ParticipantID) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	prefix := []byte(conversationPrefix(a, b))
	var messages []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			message, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	return messages, nil
}

// Window walks the conversation backwards from the cursor and returns at most
// page.Limit messages, oldest first. The returned cursor points at the oldest
// message of the window and is nil once the beginning of the conversation is reached.
func (s *BadgerMessageStore) Window(ctx context.Context, a, b domain.ParticipantID, page domain.Page) ([]domain.Message, *string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	limit := page.Limit
	if limit <= 0 {
		limit = s.pageLimit
	}
	prefixStr := conversationPrefix(a, b)
	prefix := []byte(prefixStr)

	var seekKey []byte
	switch page.Before {
	case nil:
		// '~' sorts after every digit, so this lands on the newest message.
		seekKey = []byte(prefixStr + "~")
	default:
		if _, _, err := parseCursor(*page.Before); err != nil {
			return nil, nil, err
		}
		seekKey = []byte(prefixStr + *page.Before)
	}

	var messages []domain.Message
	var cursor *string
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(seekKey)
		if page.Before != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}
		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				oldest := messages[len(messages)-1]
				cursor = lo.ToPtr(position(oldest.CreatedAt, oldest.Sequence))
				break
			}
			message, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	slices.Reverse(messages)
	return messages, cursor, nil
}

// Counterparties lists every participant viewer has exchanged at least one message with.
func (s *BadgerMessageStore) Counterparties(ctx context.Context, viewer domain.ParticipantID) ([]domain.ParticipantID, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	prefixStr := peerKeyPrefix(viewer)
	prefix := []byte(prefixStr)
	var peers []domain.ParticipantID
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			peer, err := decodeParticipant(string(it.Item().Key()[len(prefixStr):]))
			if err != nil {
				return err
			}
			peers = append(peers, peer)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrQuery, err)
	}
	return peers, nil
}

func (s *BadgerMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sequence.Release(); err != nil {
		s.log.Warn("Failed to release message sequence", "error", err)
	}
	return s.db.Close()
}

func decodeItem(item *badger.Item) (domain.Message, error) {
	var message domain.Message
	err := item.Value(func(val []byte) error {
		var err error
		message, err = decodeMessage(val)
		return err
	})
	return message, err
}
