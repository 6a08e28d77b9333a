package storage

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
)

// StartInspector serves the badger keyspace as an HTML table on port.
// Only meant for local debugging, the listener is never shut down.
func (s *BadgerMessageStore) StartInspector(port int, endpoint string) {
	database.StartDebugServer(s.db, port, endpoint, MessageMapper)
}

// MessageMapper renders stored messages and counterparty index entries for the inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, messagePrefix):
		message, err := decodeMessage(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("%s -> %s: %s", message.Sender, message.Receiver, message.Content)
	case strings.HasPrefix(key, peerPrefix):
		parts := strings.Split(strings.TrimPrefix(key, peerPrefix), ":")
		row.Type = "PEER"
		if len(parts) == 2 {
			viewer, errViewer := decodeParticipant(parts[0])
			other, errOther := decodeParticipant(parts[1])
			if errViewer == nil && errOther == nil {
				row.Detail = fmt.Sprintf("%s <-> %s", viewer, other)
			}
		}
	default:
		row.Type = "META"
	}
	return row
}

// DumpBadger opens the store at path read-only and visits every key under prefix.
// It works while a server holds the directory.
func DumpBadger(path, prefix string, visit func(key string, row database.InspectRow)) error {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				visit(key, MessageMapper(key, val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
