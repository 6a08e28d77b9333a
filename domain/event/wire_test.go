package event

import (
	"encoding/json"
	"testing"
	"time"

	"vibehive/domain"
	"vibehive/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEncode_Message_Uses_Client_Field_Names(t *testing.T) {
	req := require.New(t)
	message := domain.Message{
		ID:        uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001"),
		Sender:    "alice",
		Receiver:  "bob",
		Content:   "hi",
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 5, time.UTC),
		Sequence:  3,
	}

	raw, err := Encode(MessageDelivered{Message: message})
	req.NoError(err)

	var fields map[string]any
	req.NoError(json.Unmarshal(raw, &fields))
	req.Equal("alice", fields["sender"])
	req.Equal("bob", fields["receiver"])
	req.Equal("2026-03-01T09:30:00.000000005Z", fields["createdAt"])
	req.EqualValues(3, fields["seq"])

	decoded, err := Decode(TypeMessageDelivered, raw)
	req.NoError(err)
	req.Equal(MessageDelivered{Message: message}, decoded)
}

func TestDecode_Rejection(t *testing.T) {
	req := require.New(t)
	raw, err := Encode(SendRejected{RequestID: "r-1", Code: errors.CodeValidation, Reason: "blank"})
	req.NoError(err)

	decoded, err := Decode(TypeSendRejected, raw)
	req.NoError(err)
	req.Equal(SendRejected{RequestID: "r-1", Code: errors.CodeValidation, Reason: "blank"}, decoded)
}

func TestDecode_Unknown_Type(t *testing.T) {
	req := require.New(t)
	_, err := Decode("typing", json.RawMessage(`{}`))
	req.ErrorIs(err, errors.ErrUnknownEvent)
}
