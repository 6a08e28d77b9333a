package storage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"vibehive/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"
)

func TestMessageMapper_Renders_Messages_And_Peers(t *testing.T) {
	req := require.New(t)
	message := domain.Message{
		ID:        uuid.New(),
		Sender:    "alice",
		Receiver:  "bob",
		Content:   "hi",
		CreatedAt: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
		Sequence:  3,
	}

	row := MessageMapper(string(messageKey(message)), encodeMessage(message))
	req.Equal("MESSAGE", row.Type)
	req.Equal("alice -> bob: hi", row.Detail)

	row = MessageMapper(string(peerKey("alice", "bob")), nil)
	req.Equal("PEER", row.Type)
	req.Equal("alice <-> bob", row.Detail)

	row = MessageMapper(lastWriteKey, make([]byte, 8))
	req.Equal("META", row.Type)
}

func TestMessageMapper_Flags_Corrupted_Value(t *testing.T) {
	req := require.New(t)
	row := MessageMapper(messagePrefix+"x.y:0:0", []byte{0xff})
	req.Equal("Error: decode failed", row.Detail)
}

func TestDumpBadger_Visits_Stored_Messages(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	store, err := NewBadgerMessageStore(db, slog.Default(), 50)
	req.NoError(err)
	_, err = store.Append(context.Background(), "alice", "bob", "first")
	req.NoError(err)
	_, err = store.Append(context.Background(), "bob", "alice", "second")
	req.NoError(err)
	req.NoError(store.Close())

	var details []string
	err = DumpBadger(dir, messagePrefix, func(key string, row database.InspectRow) {
		req.Equal("MESSAGE", row.Type)
		details = append(details, row.Detail)
	})
	req.NoError(err)
	req.Equal([]string{"alice -> bob: first", "bob -> alice: second"}, details)
}
