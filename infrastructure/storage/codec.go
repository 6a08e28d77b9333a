package storage

import (
	"fmt"
	"time"

	"vibehive/domain"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Wire layout of a stored message, protobuf compatible:
//
//	1: id (string)  2: sender (string)  3: receiver (string)
//	4: content (string)  5: created_at unix nanos (int64)  6: sequence (uint64)
const (
	fieldID        protowire.Number = 1
	fieldSender    protowire.Number = 2
	fieldReceiver  protowire.Number = 3
	fieldContent   protowire.Number = 4
	fieldCreatedAt protowire.Number = 5
	fieldSequence  protowire.Number = 6
)

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, fieldID, m.ID.String())
	b = appendString(b, fieldSender, string(m.Sender))
	b = appendString(b, fieldReceiver, string(m.Receiver))
	b = appendString(b, fieldContent, m.Content)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Sequence)
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// decodeMessage skips unknown fields so older binaries can read newer records.
func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Message{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && num >= fieldID && num <= fieldContent:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			b = b[n:]
			if err := setStringField(&m, num, v); err != nil {
				return domain.Message{}, err
			}
		case typ == protowire.VarintType && (num == fieldCreatedAt || num == fieldSequence):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			b = b[n:]
			if num == fieldCreatedAt {
				m.CreatedAt = time.Unix(0, int64(v)).UTC()
			} else {
				m.Sequence = v
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Message{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

func setStringField(m *domain.Message, num protowire.Number, v string) error {
	switch num {
	case fieldID:
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("stored message id %q: %w", v, err)
		}
		m.ID = id
	case fieldSender:
		m.Sender = domain.ParticipantID(v)
	case fieldReceiver:
		m.Receiver = domain.ParticipantID(v)
	case fieldContent:
		m.Content = v
	}
	return nil
}
