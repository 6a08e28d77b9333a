package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"vibehive/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendIntent is the client request to send a message, prior to persistence.
// Clients never provide a timestamp; it is assigned by the store.
type SendIntent struct {
	RequestID string        `validate:"max=128"`
	Sender    ParticipantID `validate:"required"`
	Receiver  ParticipantID `validate:"required"`
	Content   string        `validate:"required"`
}

// Validate checks the intent and wraps every failure in errors.ErrValidation.
// maxContentLength is counted in runes; zero disables the check.
func (i SendIntent) Validate(maxContentLength int) error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if strings.TrimSpace(i.Content) == "" {
		return fmt.Errorf("%w: content is blank", errors.ErrValidation)
	}
	if maxContentLength > 0 && utf8.RuneCountInString(i.Content) > maxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", errors.ErrValidation, maxContentLength)
	}
	return nil
}

// Page selects a bounded window of a conversation: the newest Limit messages
// strictly older than the Before cursor (nil means from the latest message).
type Page struct {
	Limit  int
	Before *string
}
