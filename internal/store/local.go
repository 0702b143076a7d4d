package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ikaikahussey/stufff-app/internal/models"
)

// File names for the four independent local-mode entries, plus the
// device owner's profile.
const (
	itemsFile    = "items.json"
	myStuffFile  = "mystuff.json"
	messagesFile = "messages.json"
	meetupsFile  = "meetups.json"
	profileFile  = "profile.json"
)

// LocalStore is the single-device durable store. All state lives in a
// handful of JSON files under one directory; each entry is rewritten
// after every mutation so the snapshot survives a process restart.
type LocalStore struct {
	mu  sync.RWMutex
	dir string

	items    []models.Item
	myStuff  []models.Item
	messages map[string][]models.Message
	meetups  map[string]models.MeetupDetails
	profile  *models.Profile
}

// NewLocalStore creates or loads a LocalStore rooted at dir. When no
// items entry exists yet, seed is used as the initial catalog.
func NewLocalStore(dir string, seed []models.Item) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	s := &LocalStore{
		dir:      dir,
		messages: make(map[string][]models.Message),
		meetups:  make(map[string]models.MeetupDetails),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	if s.items == nil {
		s.items = append([]models.Item(nil), seed...)
		if err := s.persist(itemsFile, s.items); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *LocalStore) load() error {
	if err := s.loadEntry(itemsFile, &s.items); err != nil {
		return err
	}
	if err := s.loadEntry(myStuffFile, &s.myStuff); err != nil {
		return err
	}
	if err := s.loadEntry(messagesFile, &s.messages); err != nil {
		return err
	}
	if err := s.loadEntry(meetupsFile, &s.meetups); err != nil {
		return err
	}
	return s.loadEntry(profileFile, &s.profile)
}

func (s *LocalStore) loadEntry(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// persist writes one entry atomically: tmp file then rename.
func (s *LocalStore) persist(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// Items returns all items, newest first.
func (s *LocalStore) Items(ctx context.Context) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Item(nil), s.items...), nil
}

// GetItem fetches one item by id.
func (s *LocalStore) GetItem(ctx context.Context, id string) (models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}
	return models.Item{}, ErrNotFound
}

// AddItem prepends the item and persists the catalog entry.
func (s *LocalStore) AddItem(ctx context.Context, item models.Item) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	s.items = append([]models.Item{item}, s.items...)
	if err := s.persist(itemsFile, s.items); err != nil {
		s.items = s.items[1:]
		return models.Item{}, err
	}
	return item, nil
}

// AddInterest records the item in the denormalized "my stuff" list.
// The buyer id is not stored: the local store serves a single device
// user. A pre-existing entry is reported as a duplicate for the engine
// to swallow.
func (s *LocalStore) AddInterest(ctx context.Context, item models.Item, buyerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.myStuff {
		if it.ID == item.ID {
			return fmt.Errorf("interest exists: %w", errDuplicate)
		}
	}
	s.myStuff = append(s.myStuff, item)
	return s.persist(myStuffFile, s.myStuff)
}

// RemoveInterest drops the item from "my stuff" if present.
func (s *LocalStore) RemoveInterest(ctx context.Context, itemID, buyerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.myStuff[:0]
	removed := false
	for _, it := range s.myStuff {
		if it.ID == itemID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	s.myStuff = kept
	if !removed {
		return nil
	}
	return s.persist(myStuffFile, s.myStuff)
}

// Interests returns the "my stuff" list, refreshed against the current
// catalog so edits to an item are reflected.
func (s *LocalStore) Interests(ctx context.Context, buyerID string) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := make(map[string]models.Item, len(s.items))
	for _, it := range s.items {
		current[it.ID] = it
	}

	out := make([]models.Item, 0, len(s.myStuff))
	for _, it := range s.myStuff {
		if live, ok := current[it.ID]; ok {
			out = append(out, live)
		} else {
			out = append(out, it)
		}
	}
	return out, nil
}

// AppendMessage stamps the message with the local clock, appends it to
// the item's thread and persists. Proposal messages also refresh the
// meetups entry.
func (s *LocalStore) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[msg.ItemID] = append(s.messages[msg.ItemID], msg)
	if err := s.persist(messagesFile, s.messages); err != nil {
		thread := s.messages[msg.ItemID]
		s.messages[msg.ItemID] = thread[:len(thread)-1]
		return models.Message{}, err
	}

	if msg.IsMeetupProposal && msg.Meetup != nil {
		s.meetups[msg.ItemID] = *msg.Meetup
		if err := s.persist(meetupsFile, s.meetups); err != nil {
			return models.Message{}, err
		}
	}
	return msg, nil
}

// Messages returns the thread for an item in append order.
func (s *LocalStore) Messages(ctx context.Context, itemID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages[itemID]...), nil
}

// UpdateMeetupStatus sets the status of one proposal message and keeps
// the meetups entry in step.
func (s *LocalStore) UpdateMeetupStatus(ctx context.Context, itemID, messageID, status string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := s.messages[itemID]
	for i := range thread {
		m := &thread[i]
		if m.ID != messageID || !m.IsMeetupProposal || m.Meetup == nil {
			continue
		}
		updated := *m.Meetup
		updated.Status = status
		m.Meetup = &updated
		if err := s.persist(messagesFile, s.messages); err != nil {
			return models.Message{}, err
		}
		s.meetups[itemID] = updated
		if err := s.persist(meetupsFile, s.meetups); err != nil {
			return models.Message{}, err
		}
		return *m, nil
	}
	return models.Message{}, ErrNotFound
}

// Profile returns the device owner's profile.
func (s *LocalStore) Profile(ctx context.Context, id string) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil || s.profile.ID != id {
		return models.Profile{}, ErrNotFound
	}
	return *s.profile, nil
}

// SaveProfile replaces the stored profile.
func (s *LocalStore) SaveProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		if s.profile != nil && s.profile.ID == p.ID {
			p.CreatedAt = s.profile.CreatedAt
		} else {
			p.CreatedAt = time.Now()
		}
	}
	s.profile = &p
	if err := s.persist(profileFile, s.profile); err != nil {
		return models.Profile{}, err
	}
	return p, nil
}

// Close is a no-op; every mutation is already persisted.
func (s *LocalStore) Close() error {
	return nil
}
