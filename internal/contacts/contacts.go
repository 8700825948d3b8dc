package contacts

import (
	"context"
	"errors"
)

// Contact is a dialable target. The authoritative contact record lives in the
// CRM; the dialer only reads the number and writes back a disposition.
type Contact struct {
	ID          string      `json:"id" db:"id"`
	PhoneNumber string      `json:"phone_number" db:"phone_number"`
	Status      Disposition `json:"status" db:"status"`
}

// Disposition is the contact-level call outcome.
type Disposition string

const (
	DispositionNotContacted Disposition = "not_contacted"
	DispositionInProgress   Disposition = "in_progress"
	DispositionContacted    Disposition = "contacted"
	DispositionVoicemail    Disposition = "voicemail"
	DispositionNoAnswer     Disposition = "no_answer"
)

var ErrNotFound = errors.New("contact not found")

// Store is the collaborator interface to the lead/contact system.
type Store interface {
	GetContact(ctx context.Context, id string) (Contact, error)
	UpdateDisposition(ctx context.Context, id string, value Disposition) error
}
