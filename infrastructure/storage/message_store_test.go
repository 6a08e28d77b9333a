package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T, pageLimit int) contract.MessageStore

func badgerFactory(t *testing.T, pageLimit int) contract.MessageStore {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	store, err := NewBadgerMessageStore(db, slog.Default(), pageLimit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sqliteFactory(t *testing.T, pageLimit int) contract.MessageStore {
	store, err := OpenSQLiteMessageStore(filepath.Join(t.TempDir(), "messages.db"), slog.Default(), pageLimit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// postgresFactory runs against VIBEHIVE_TEST_POSTGRES_DSN and empties the table first.
func postgresFactory(t *testing.T, pageLimit int) contract.MessageStore {
	dsn := os.Getenv("VIBEHIVE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VIBEHIVE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := OpenPostgresMessageStore(ctx, dsn, slog.Default(), pageLimit)
	require.NoError(t, err)
	_, err = store.pool.Exec(ctx, "TRUNCATE messages RESTART IDENTITY; UPDATE message_meta SET last_write = 0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var factories = map[string]storeFactory{
	"badger":   badgerFactory,
	"sqlite":   sqliteFactory,
	"postgres": postgresFactory,
}

func forEachStore(t *testing.T, test func(t *testing.T, newStore storeFactory)) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			test(t, factory)
		})
	}
}

func TestMessageStore_Append_Assigns_Identity(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		req := require.New(t)
		store := newStore(t, 50)
		ctx := context.Background()

		// When alice writes to bob
		message, err := store.Append(ctx, "alice", "bob", "hi")

		// Then the store assigned id and timestamp
		req.NoError(err)
		req.NotEqual(uuid.Nil, message.ID)
		req.False(message.CreatedAt.IsZero())
		req.Equal(domain.ParticipantID("alice"), message.Sender)
		req.Equal(domain.ParticipantID("bob"), message.Receiver)
		req.Equal("hi", message.Content)

		// And history returns the very same message
		history, err := store.History(ctx, "alice", "bob")
		req.NoError(err)
		req.Equal([]domain.Message{message}, history)
	})
}

func TestMessageStore_Append_Rejects_Invalid_Intent(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		req := require.New(t)
		store := newStore(t, 50)
		ctx := context.Background()

		_, err := store.Append(ctx, "", "bob", "hi")
		req.ErrorIs(err, errors.ErrValidation)
		_, err = store.Append(ctx, "alice", "", "hi")
		req.ErrorIs(err, errors.ErrValidation)
		_, err = store.Append(ctx, "alice", "bob", "")
		req.ErrorIs(err, errors.ErrValidation)

		// Nothing was persisted
		history, err := store.History(ctx, "alice", "bob")
		req.NoError(err)
		req.Empty(history)
	})
}

func TestMessageStore_History_Is_Ordered_And_Symmetric(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		req := require.New(t)
		store := newStore(t, 50)
		ctx := context.Background()

		var written []domain.Message
		for i := 0; i < 6; i++ {
			sender, receiver := domain.ParticipantID("alice"), domain.ParticipantID("bob")
			if i%2 == 1 {
				sender, receiver = receiver, sender
			}
			message, err := store.Append(ctx, sender, receiver, fmt.Sprintf("message %d", i))
			req.NoError(err)
			written = append(written, message)
		}
		// A message of another conversation must not leak in
		_, err := store.Append(ctx, "alice", "clara", "other")
		req.NoError(err)

		ab, err := store.History(ctx, "alice", "bob")
		req.NoError(err)
		ba, err := store.History(ctx, "bob", "alice")
		req.NoError(err)

		req.Equal(written, ab)
		req.Equal(ab, ba)
		for i := 1; i < len(ab); i++ {
			req.True(ab[i-1].Less(ab[i]))
		}
	})
}

func TestMessageStore_Equal_Timestamps_Keep_Write_Order(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stores := map[string]contract.MessageStore{}

	badgerStore := badgerFactory(t, 50).(*BadgerMessageStore)
	badgerStore.clock = func() time.Time { return frozen }
	stores["badger"] = badgerStore
	sqliteStore := sqliteFactory(t, 50).(*SQLiteMessageStore)
	sqliteStore.clock = func() time.Time { return frozen }
	stores["sqlite"] = sqliteStore

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			// Given a clock frozen on the same instant
			first, err := store.Append(ctx, "alice", "bob", "first")
			req.NoError(err)
			second, err := store.Append(ctx, "bob", "alice", "second")
			req.NoError(err)

			// Then both share createdAt, write order decides
			req.True(first.CreatedAt.Equal(second.CreatedAt))
			req.Less(first.Sequence, second.Sequence)

			history, err := store.History(ctx, "bob", "alice")
			req.NoError(err)
			req.Equal([]domain.Message{first, second}, history)
		})
	}
}

func TestMessageStore_CreatedAt_Never_Goes_Backwards(t *testing.T) {
	req := require.New(t)
	store := badgerFactory(t, 50).(*BadgerMessageStore)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store.clock = func() time.Time { return now }
	first, err := store.Append(ctx, "alice", "bob", "first")
	req.NoError(err)

	// When the wall clock steps back one minute
	store.clock = func() time.Time { return now.Add(-time.Minute) }
	second, err := store.Append(ctx, "alice", "bob", "second")
	req.NoError(err)

	// Then createdAt stays at the last write time
	req.False(second.CreatedAt.Before(first.CreatedAt))
	req.True(first.Less(second))
}

func TestMessageStore_Concurrent_Appends_Are_All_Persisted(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		req := require.New(t)
		store := newStore(t, 50)
		ctx := context.Background()
		const perSide = 25

		// When alice and bob write to each other at the same time
		var wg sync.WaitGroup
		errs := make(chan error, 2*perSide)
		for _, pair := range [][2]domain.ParticipantID{{"alice", "bob"}, {"bob", "alice"}} {
			wg.Add(1)
			go func(sender, receiver domain.ParticipantID) {
				defer wg.Done()
				for i := 0; i < perSide; i++ {
					_, err := store.Append(ctx, sender, receiver, fmt.Sprintf("%s %d", sender, i))
					errs <- err
				}
			}(pair[0], pair[1])
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			req.NoError(err)
		}

		// Then no write is lost and every position is distinct
		history, err := store.History(ctx, "alice", "bob")
		req.NoError(err)
		req.Len(history, 2*perSide)
		seen := make(map[string]struct{}, len(history))
		for i, message := range history {
			seen[message.ID.String()] = struct{}{}
			if i > 0 {
				req.True(history[i-1].Less(message))
			}
		}
		req.Len(seen, 2*perSide)
	})
}

func TestMessageStore_Window_Pagination(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		req := require.New(t)
		store := newStore(t, 4)
		ctx := context.Background()

		// Given 10 messages
		for i := 1; i <= 10; i++ {
			_, err := store.Append(ctx, "alice", "bob", fmt.Sprintf("message %d", i))
			req.NoError(err)
		}

		// Page 1: newest four, ascending
		page1, cursor1, err := store.Window(ctx, "bob", "alice", domain.Page{})
		req.NoError(err)
		req.Len(page1, 4)
		req.Equal("message 7", page1[0].Content)
		req.Equal("message 10", page1[3].Content)
		req.NotNil(cursor1)

		// Page 2 continues without overlap
		page2, cursor2, err := store.Window(ctx, "bob", "alice", domain.Page{Before: cursor1})
		req.NoError(err)
		req.Len(page2, 4)
		req.Equal("message 3", page2[0].Content)
		req.Equal("message 6", page2[3].Content)
		req.NotNil(cursor2)

		// Page 3 holds the remainder and ends the walk
		page3, cursor3, err := store.Window(ctx, "bob", "alice", domain.Page{Limit: 4, Before: cursor2})
		req.NoError(err)
		req.Len(page3, 2)
		req.Equal("message 1", page3[0].Content)
		req.Nil(cursor3)

		// An explicit limit overrides the default
		latest, _, err := store.Window(ctx, "alice", "bob", domain.Page{Limit: 1})
		req.NoError(err)
		req.Len(latest, 1)
		req.Equal("message 10", latest[0].Content)
	})
}

func TestMessageStore_Window_Rejects_Bad_Cursor(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		req := require.New(t)
		store := newStore(t, 4)
		bad := "not-a-cursor"

		_, _, err := store.Window(context.Background(), "alice", "bob", domain.Page{Before: &bad})
		req.ErrorIs(err, errors.ErrInvalidCursor)
	})
}

func TestMessageStore_Counterparties(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		req := require.New(t)
		store := newStore(t, 50)
		ctx := context.Background()

		_, err := store.Append(ctx, "alice", "bob", "hi bob")
		req.NoError(err)
		_, err = store.Append(ctx, "clara", "alice", "hi alice")
		req.NoError(err)
		_, err = store.Append(ctx, "bob", "clara", "not about alice")
		req.NoError(err)

		peers, err := store.Counterparties(ctx, "alice")
		req.NoError(err)
		req.ElementsMatch([]domain.ParticipantID{"bob", "clara"}, peers)

		none, err := store.Counterparties(ctx, "dave")
		req.NoError(err)
		req.Empty(none)
	})
}

func TestMessageStore_Ids_With_Separators_Do_Not_Collide(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		req := require.New(t)
		store := newStore(t, 50)
		ctx := context.Background()

		_, err := store.Append(ctx, "a:b", "c", "one")
		req.NoError(err)
		_, err = store.Append(ctx, "a", "b:c", "two")
		req.NoError(err)

		first, err := store.History(ctx, "a:b", "c")
		req.NoError(err)
		req.Len(first, 1)
		req.Equal("one", first[0].Content)
	})
}

func TestBadgerMessageStore_Survives_Reopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()

	open := func() *BadgerMessageStore {
		db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
		req.NoError(err)
		store, err := NewBadgerMessageStore(db, slog.Default(), 50)
		req.NoError(err)
		return store
	}

	store := open()
	first, err := store.Append(ctx, "alice", "bob", "before restart")
	req.NoError(err)
	req.NoError(store.Close())

	// When the store is reopened
	store = open()
	defer store.Close()
	second, err := store.Append(ctx, "bob", "alice", "after restart")
	req.NoError(err)

	// Then ordering continues after the previous write
	req.True(first.Less(second))
	history, err := store.History(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal([]domain.Message{first, second}, history)
}

func TestPostgresMessageStore_Equal_Timestamps_Keep_Write_Order(t *testing.T) {
	req := require.New(t)
	store := postgresFactory(t, 50).(*PostgresMessageStore)
	ctx := context.Background()
	frozen := time.Now().Add(time.Hour).UTC()
	store.clock = func() time.Time { return frozen }

	first, err := store.Append(ctx, "alice", "bob", "first")
	req.NoError(err)
	second, err := store.Append(ctx, "bob", "alice", "second")
	req.NoError(err)

	req.True(first.CreatedAt.Equal(second.CreatedAt))
	req.Less(first.Sequence, second.Sequence)
	history, err := store.History(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal([]domain.Message{first, second}, history)
}

func TestPostgresMessageStore_Tracks_Last_Write_In_Meta_Row(t *testing.T) {
	req := require.New(t)
	store := postgresFactory(t, 50).(*PostgresMessageStore)
	ctx := context.Background()
	now := time.Now().Add(2 * time.Hour).UTC()

	store.clock = func() time.Time { return now }
	first, err := store.Append(ctx, "alice", "bob", "first")
	req.NoError(err)

	var last int64
	req.NoError(store.pool.QueryRow(ctx, "SELECT last_write FROM message_meta WHERE id = 1").Scan(&last))
	req.Equal(first.CreatedAt.UnixNano(), last)

	// When the wall clock steps back, the meta row keeps createdAt in place
	store.clock = func() time.Time { return now.Add(-time.Minute) }
	second, err := store.Append(ctx, "bob", "alice", "second")
	req.NoError(err)
	req.True(first.CreatedAt.Equal(second.CreatedAt))
	req.True(first.Less(second))
}

func TestOpen_Unknown_Driver(t *testing.T) {
	req := require.New(t)
	_, err := Open(context.Background(), "mongo", t.TempDir(), slog.Default(), 50)
	req.ErrorIs(err, errors.ErrUnknownDriver)
}
