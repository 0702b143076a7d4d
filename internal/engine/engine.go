// Package engine implements the dual-mode synchronization engine. One
// backend (remote Postgres+Redis or the local file store) is selected
// at construction and injected; no call site branches on the mode.
// Reads serve a materialized in-memory snapshot; every mutation goes
// through the backend first and updates the snapshot exactly once from
// the value the write returned.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ikaikahussey/stufff-app/internal/models"
	"github.com/ikaikahussey/stufff-app/internal/notify"
	"github.com/ikaikahussey/stufff-app/internal/realtime"
	"github.com/ikaikahussey/stufff-app/internal/store"
)

var (
	// ErrValidation marks input rejected before any write was attempted.
	ErrValidation = errors.New("validation failed")
	// ErrClosed marks use of a conversation session after Close.
	ErrClosed = errors.New("conversation closed")
)

// Options configures an Engine.
type Options struct {
	Store    store.Store
	Broker   realtime.Broker
	Notifier notify.Notifier
	// Remote marks the backend as the shared multi-user store. It only
	// affects the initial-catalog fallback and logging; everything else
	// flows through the injected Store and Broker.
	Remote bool
	// WriteTimeout bounds every backend write. Zero means 10s.
	WriteTimeout time.Duration
	// SampleCatalog is served when the initial remote catalog load
	// fails. It is never used for conversations or interests.
	SampleCatalog []models.Item
}

// Engine is the dual-mode sync and conversation engine.
type Engine struct {
	store   store.Store
	broker  realtime.Broker
	notif   notify.Notifier
	remote  bool
	timeout time.Duration

	mu       sync.Mutex
	items    []models.Item
	myStuff  map[string][]models.Item // buyerID -> interested items
	loadedMy map[string]bool
	threads  map[string][]models.Message // itemID -> ascending thread
	loaded   map[string]bool
	seen     map[string]map[string]struct{} // itemID -> applied message ids
	lastRead map[string]time.Time           // itemID+"\x00"+viewerID
}

// New builds the engine and materializes the initial catalog. A
// failing initial load falls back to the sample catalog in remote mode
// only; conversation and interest data never get fabricated.
func New(ctx context.Context, opts Options) (*Engine, error) {
	e := &Engine{
		store:    opts.Store,
		broker:   opts.Broker,
		notif:    opts.Notifier,
		remote:   opts.Remote,
		timeout:  opts.WriteTimeout,
		myStuff:  make(map[string][]models.Item),
		loadedMy: make(map[string]bool),
		threads:  make(map[string][]models.Message),
		loaded:   make(map[string]bool),
		seen:     make(map[string]map[string]struct{}),
		lastRead: make(map[string]time.Time),
	}
	if e.timeout <= 0 {
		e.timeout = 10 * time.Second
	}
	if e.notif == nil {
		e.notif = notify.Discard{}
	}

	lctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.store.Items(lctx)
	if err != nil {
		if !e.remote {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		log.Printf("[FALLBACK] catalog load failed, serving sample set: %v", err)
		items = append([]models.Item(nil), opts.SampleCatalog...)
	}
	e.items = items
	return e, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// Items returns the active catalog, newest first.
func (e *Engine) Items() []models.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Item(nil), e.items...)
}

// Search filters the catalog by a case-insensitive substring over
// title, description, category and location. An empty or whitespace
// query returns the catalog unchanged.
func (e *Engine) Search(query string) []models.Item {
	if strings.TrimSpace(query) == "" {
		return e.Items()
	}
	q := strings.ToLower(query)

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []models.Item
	for _, it := range e.items {
		if strings.Contains(strings.ToLower(it.Title), q) ||
			strings.Contains(strings.ToLower(it.Description), q) ||
			strings.Contains(strings.ToLower(it.Category), q) ||
			strings.Contains(strings.ToLower(it.Location), q) {
			out = append(out, it)
		}
	}
	return out
}

// AddItem validates and persists a new listing, then prepends it to
// the catalog snapshot. On failure nothing is cached.
func (e *Engine) AddItem(ctx context.Context, draft models.ItemDraft, seller models.SellerRef) (models.Item, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return models.Item{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if draft.Price < 0 {
		return models.Item{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	category := draft.Category
	if category == "" {
		category = models.CategoryOther
	}

	item := models.Item{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		Price:       draft.Price,
		Category:    category,
		Location:    draft.Location,
		ImageURL:    draft.ImageURL,
		Seller:      seller,
	}

	wctx, cancel := e.withTimeout(ctx)
	defer cancel()
	persisted, err := e.store.AddItem(wctx, item)
	if err != nil {
		return models.Item{}, fmt.Errorf("add item: %w", err)
	}

	e.mu.Lock()
	e.items = append([]models.Item{persisted}, e.items...)
	e.mu.Unlock()

	go e.enqueueListing(persisted)
	return persisted, nil
}

// RefreshItems reloads the catalog from the backend.
func (e *Engine) RefreshItems(ctx context.Context) error {
	lctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.store.Items(lctx)
	if err != nil {
		return fmt.Errorf("refresh items: %w", err)
	}
	e.mu.Lock()
	e.items = items
	e.mu.Unlock()
	return nil
}

// GetItem returns one item from the snapshot, falling back to the
// backend for items not yet materialized.
func (e *Engine) GetItem(ctx context.Context, id string) (models.Item, error) {
	e.mu.Lock()
	for _, it := range e.items {
		if it.ID == id {
			e.mu.Unlock()
			return it, nil
		}
	}
	e.mu.Unlock()

	gctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.store.GetItem(gctx, id)
}

// ExpressInterest inserts the (item, buyer) pair. A duplicate insert
// is the one swallowed error class: it reports success because the
// pair is present either way. The flag reports ledger membership, not
// overall success: true alongside a non-nil error means the pair was
// durably recorded but the snapshot refresh failed, so a later read
// retries the load.
func (e *Engine) ExpressInterest(ctx context.Context, item models.Item, buyerID string) (bool, error) {
	wctx, cancel := e.withTimeout(ctx)
	defer cancel()
	err := e.store.AddInterest(wctx, item, buyerID)
	if err != nil && !store.IsDuplicate(err) {
		return false, fmt.Errorf("express interest: %w", err)
	}
	if err := e.refreshMyStuff(ctx, buyerID); err != nil {
		return true, err
	}
	return true, nil
}

// RemoveInterest deletes the pair; removing an absent pair is a no-op.
func (e *Engine) RemoveInterest(ctx context.Context, itemID, buyerID string) error {
	wctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.store.RemoveInterest(wctx, itemID, buyerID); err != nil {
		return fmt.Errorf("remove interest: %w", err)
	}
	return e.refreshMyStuff(ctx, buyerID)
}

// IsInterested reports membership against the current ledger snapshot.
func (e *Engine) IsInterested(ctx context.Context, itemID, buyerID string) (bool, error) {
	stuff, err := e.MyStuff(ctx, buyerID)
	if err != nil {
		return false, err
	}
	for _, it := range stuff {
		if it.ID == itemID {
			return true, nil
		}
	}
	return false, nil
}

// MyStuff returns the items the buyer holds an interest in, joined
// with current item data.
func (e *Engine) MyStuff(ctx context.Context, buyerID string) ([]models.Item, error) {
	e.mu.Lock()
	if e.loadedMy[buyerID] {
		out := append([]models.Item(nil), e.myStuff[buyerID]...)
		e.mu.Unlock()
		return out, nil
	}
	e.mu.Unlock()

	if err := e.refreshMyStuff(ctx, buyerID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Item(nil), e.myStuff[buyerID]...), nil
}

func (e *Engine) refreshMyStuff(ctx context.Context, buyerID string) error {
	rctx, cancel := e.withTimeout(ctx)
	defer cancel()
	stuff, err := e.store.Interests(rctx, buyerID)
	if err != nil {
		return fmt.Errorf("load interests: %w", err)
	}
	e.mu.Lock()
	e.myStuff[buyerID] = stuff
	e.loadedMy[buyerID] = true
	e.mu.Unlock()
	return nil
}

// Profile fetches a user profile from the backend.
func (e *Engine) Profile(ctx context.Context, id string) (models.Profile, error) {
	pctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.store.Profile(pctx, id)
}

// SaveProfile upserts a profile, last writer wins.
func (e *Engine) SaveProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	pctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.store.SaveProfile(pctx, p)
}

func (e *Engine) enqueueListing(item models.Item) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	job := notify.ListingPost{
		JobID:  uuid.NewString(),
		ItemID: item.ID,
		Title:  item.Title,
		Price:  item.Price,
	}
	if err := e.notif.EnqueueListing(ctx, job); err != nil {
		log.Printf("[NOTIFY] listing post for item %s not enqueued: %v", item.ID, err)
	}
}
