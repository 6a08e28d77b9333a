package storage

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vibehive/domain"
	"vibehive/errors"
)

const (
	messagePrefix = "msg:"
	peerPrefix    = "peer:"
	lastWriteKey  = "meta:last_write"
	sequenceKey   = "meta:sequence"
)

var idEncoding = base64.RawURLEncoding

// pairKey is symmetric: pairKey(a, b) == pairKey(b, a).
// Identities are base64url encoded so ':' inside an id can't break the key layout.
func pairKey(a, b domain.ParticipantID) string {
	ea, eb := idEncoding.EncodeToString([]byte(a)), idEncoding.EncodeToString([]byte(b))
	if eb < ea {
		ea, eb = eb, ea
	}
	return ea + "." + eb
}

func conversationPrefix(a, b domain.ParticipantID) string {
	return messagePrefix + pairKey(a, b) + ":"
}

// position renders "{createdAt %019d}:{sequence %020d}", which sorts
// lexicographically in (createdAt, sequence) order.
func position(at time.Time, sequence uint64) string {
	return fmt.Sprintf("%019d:%020d", at.UnixNano(), sequence)
}

func messageKey(m domain.Message) []byte {
	return []byte(conversationPrefix(m.Sender, m.Receiver) + position(m.CreatedAt, m.Sequence))
}

func peerKeyPrefix(viewer domain.ParticipantID) string {
	return peerPrefix + idEncoding.EncodeToString([]byte(viewer)) + ":"
}

func peerKey(viewer, other domain.ParticipantID) []byte {
	return []byte(peerKeyPrefix(viewer) + idEncoding.EncodeToString([]byte(other)))
}

func decodeParticipant(encoded string) (domain.ParticipantID, error) {
	raw, err := idEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return domain.ParticipantID(raw), nil
}

// parseCursor splits a cursor produced by position back into its parts.
func parseCursor(cursor string) (int64, uint64, error) {
	at, seq, ok := strings.Cut(cursor, ":")
	if !ok || len(at) != 19 || len(seq) != 20 {
		return 0, 0, fmt.Errorf("%w: %q", errors.ErrInvalidCursor, cursor)
	}
	nanos, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", errors.ErrInvalidCursor, cursor)
	}
	sequence, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", errors.ErrInvalidCursor, cursor)
	}
	return nanos, sequence, nil
}

// nextWriteTime keeps CreatedAt non-decreasing in write order even if the wall clock steps back.
// The result is rounded through UnixNano so it survives a storage round-trip unchanged.
func nextWriteTime(now, last time.Time) time.Time {
	at := time.Unix(0, now.UnixNano()).UTC()
	if at.Before(last) {
		return last
	}
	return at
}
