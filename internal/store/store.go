package store

import (
	"context"
	"errors"

	"github.com/lib/pq"

	"github.com/ikaikahussey/stufff-app/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the durable backend behind the sync engine. Exactly one
// implementation is selected at startup: Postgres when remote
// configuration is present, the file-backed local store otherwise.
// Callers never branch on the mode; this interface is the whole contract.
type Store interface {
	// Items returns all active items, newest first.
	Items(ctx context.Context) ([]models.Item, error)
	// GetItem fetches one item by id.
	GetItem(ctx context.Context, id string) (models.Item, error)
	// AddItem persists a new item. The item arrives with its id, seller
	// and creation time already assigned; the returned copy reflects
	// what was stored (in remote mode the server-assigned created_at).
	AddItem(ctx context.Context, item models.Item) (models.Item, error)

	// AddInterest inserts the (item, buyer) pair. A duplicate insert
	// surfaces as an error classified by IsDuplicate; swallowing it is
	// the engine's job. The full item is passed so the local store can
	// keep its denormalized copy.
	AddInterest(ctx context.Context, item models.Item, buyerID string) error
	// RemoveInterest deletes the pair; an absent pair is a no-op.
	RemoveInterest(ctx context.Context, itemID, buyerID string) error
	// Interests returns the items the buyer currently holds an
	// interest in, joined with current item data.
	Interests(ctx context.Context, buyerID string) ([]models.Item, error)

	// AppendMessage durably records one message and returns it with
	// its final creation time. Exactly one row per call.
	AppendMessage(ctx context.Context, msg models.Message) (models.Message, error)
	// Messages returns the thread for an item, ascending by created_at.
	Messages(ctx context.Context, itemID string) ([]models.Message, error)
	// UpdateMeetupStatus sets the status field of the identified
	// proposal message and returns the updated row. The message body
	// and the rest of the log are untouched.
	UpdateMeetupStatus(ctx context.Context, itemID, messageID, status string) (models.Message, error)

	// Profile fetches a user profile.
	Profile(ctx context.Context, id string) (models.Profile, error)
	// SaveProfile upserts a profile, last writer wins.
	SaveProfile(ctx context.Context, p models.Profile) (models.Profile, error)

	Close() error
}

// IsDuplicate reports whether err is a unique-constraint violation.
// Duplicate interest inserts are the one expected, swallowed error class.
func IsDuplicate(err error) bool {
	if errors.Is(err, errDuplicate) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// errDuplicate is the local store's stand-in for a unique violation.
var errDuplicate = errors.New("duplicate key")

// ImageStore uploads listing images and returns a public URL. On
// failure the item keeps its embedded image reference instead.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, ownerID string) (string, error)
}
