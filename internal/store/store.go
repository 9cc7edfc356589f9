package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Document keys used by the application.
const (
	KeyCredential     = "credential"
	KeyAppIdentity    = "app_identity"
	KeyMailboxAddress = "mailbox_address"
	KeyWritingStyle   = "writing_style"
	KeyLegacyAccount  = "legacy_account"
	KeyOAuthState     = "oauth_state"
)

// ErrNotFound is returned when a document key has never been written.
var ErrNotFound = errors.New("document not found")

// ErrNoChange can be returned from an UpdateFunc to leave the stored
// document untouched without failing the update.
var ErrNoChange = errors.New("no change")

// UpdateFunc receives the current body of a document (nil when absent)
// and returns the body to store.
type UpdateFunc func(current []byte) ([]byte, error)

// Documents is a small keyed store of JSON documents. Update is the only
// read-modify-write primitive and is serialised against every other
// Update, including those from other processes sharing the database.
type Documents interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// FeedbackEvent is one accepted style-feedback signal.
type FeedbackEvent struct {
	ID        string    `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Value     string    `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FeedbackLog is an append-only record of style feedback.
type FeedbackLog interface {
	AppendFeedback(ctx context.Context, ev FeedbackEvent) error
	ListFeedback(ctx context.Context, limit int) ([]FeedbackEvent, error)
}

// GetJSON loads key into v. It returns ErrNotFound when the key is absent.
func GetJSON(ctx context.Context, docs Documents, key string, v any) error {
	body, err := docs.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding document %s: %w", key, err)
	}
	return nil
}

// PutJSON stores v as the JSON body of key.
func PutJSON(ctx context.Context, docs Documents, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", key, err)
	}
	return docs.Put(ctx, key, body)
}

// UpdateJSON runs fn on the decoded document inside Documents.Update.
// found reports whether the document existed; fn mutates v in place.
func UpdateJSON[T any](
	ctx context.Context,
	docs Documents,
	key string,
	fn func(v *T, found bool) error,
) error {
	return docs.Update(ctx, key, func(current []byte) ([]byte, error) {
		var v T
		found := current != nil
		if found {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, fmt.Errorf("decoding document %s: %w", key, err)
			}
		}
		if err := fn(&v, found); err != nil {
			return nil, err
		}
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding document %s: %w", key, err)
		}
		return body, nil
	})
}
