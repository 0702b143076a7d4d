package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ikaikahussey/stufff-app/internal/models"
)

// PostgresStore is the remote durable store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// InitSchema creates the tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(64) DEFAULT '',
		location VARCHAR(255) DEFAULT '',
		location_privacy VARCHAR(50) DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS items (
		id VARCHAR(255) PRIMARY KEY,
		seller_id VARCHAR(255) NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		price DECIMAL(10, 2) NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT 'other',
		location VARCHAR(255),
		image_url TEXT,
		status VARCHAR(50) DEFAULT 'active',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS interests (
		item_id VARCHAR(255) NOT NULL,
		buyer_id VARCHAR(255) NOT NULL,
		PRIMARY KEY (item_id, buyer_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(255) PRIMARY KEY,
		item_id VARCHAR(255) NOT NULL,
		sender_id VARCHAR(255) NOT NULL,
		receiver_id VARCHAR(255) NOT NULL,
		content TEXT NOT NULL,
		is_meetup_proposal BOOLEAN DEFAULT FALSE,
		meetup_date VARCHAR(50),
		meetup_time VARCHAR(50),
		meetup_location VARCHAR(255),
		meetup_status VARCHAR(50),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_status_created ON items(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_interests_buyer_id ON interests(buyer_id);
	CREATE INDEX IF NOT EXISTS idx_messages_item_id ON messages(item_id, created_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const itemColumns = `i.id, i.seller_id, COALESCE(p.name, 'Anonymous'), i.title, i.description,
	i.price, i.category, COALESCE(i.location, ''), COALESCE(i.image_url, ''), i.created_at`

func scanItem(row interface{ Scan(...any) error }) (models.Item, error) {
	var it models.Item
	err := row.Scan(
		&it.ID,
		&it.Seller.ID,
		&it.Seller.Name,
		&it.Title,
		&it.Description,
		&it.Price,
		&it.Category,
		&it.Location,
		&it.ImageURL,
		&it.CreatedAt,
	)
	return it, err
}

// Items returns all active items, newest first.
func (s *PostgresStore) Items(ctx context.Context) ([]models.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM items i
		LEFT JOIN profiles p ON p.id = i.seller_id
		WHERE i.status = 'active'
		ORDER BY i.created_at DESC`, itemColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem fetches one item by id.
func (s *PostgresStore) GetItem(ctx context.Context, id string) (models.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM items i
		LEFT JOIN profiles p ON p.id = i.seller_id
		WHERE i.id = $1`, itemColumns)

	it, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return models.Item{}, ErrNotFound
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

// AddItem inserts the item and returns it with the server-assigned
// creation time.
func (s *PostgresStore) AddItem(ctx context.Context, item models.Item) (models.Item, error) {
	query := `
		INSERT INTO items (id, seller_id, title, description, price, category, location, image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active')
		RETURNING created_at`

	err := s.db.QueryRowContext(
		ctx, query,
		item.ID,
		item.Seller.ID,
		item.Title,
		item.Description,
		item.Price,
		item.Category,
		item.Location,
		item.ImageURL,
	).Scan(&item.CreatedAt)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to insert item: %w", err)
	}
	return item, nil
}

// AddInterest inserts the (item, buyer) pair. A second insert for the
// same pair fails with a unique violation, which the engine swallows.
func (s *PostgresStore) AddInterest(ctx context.Context, item models.Item, buyerID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interests (item_id, buyer_id) VALUES ($1, $2)`,
		item.ID, buyerID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interest: %w", err)
	}
	return nil
}

// RemoveInterest deletes the pair if present.
func (s *PostgresStore) RemoveInterest(ctx context.Context, itemID, buyerID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM interests WHERE item_id = $1 AND buyer_id = $2`,
		itemID, buyerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete interest: %w", err)
	}
	return nil
}

// Interests returns the buyer's interested items joined with current
// item data.
func (s *PostgresStore) Interests(ctx context.Context, buyerID string) ([]models.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM interests n
		JOIN items i ON i.id = n.item_id
		LEFT JOIN profiles p ON p.id = i.seller_id
		WHERE n.buyer_id = $1
		ORDER BY i.created_at DESC`, itemColumns)

	rows, err := s.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interests: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interest item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AppendMessage inserts one message row and returns it with the
// server-assigned creation time, which is authoritative in remote mode.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var date, tm, loc, status sql.NullString
	if msg.IsMeetupProposal && msg.Meetup != nil {
		date = sql.NullString{String: msg.Meetup.Date, Valid: true}
		tm = sql.NullString{String: msg.Meetup.Time, Valid: true}
		loc = sql.NullString{String: msg.Meetup.Location, Valid: true}
		status = sql.NullString{String: msg.Meetup.Status, Valid: true}
	}

	query := `
		INSERT INTO messages (id, item_id, sender_id, receiver_id, content,
			is_meetup_proposal, meetup_date, meetup_time, meetup_location, meetup_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err := s.db.QueryRowContext(
		ctx, query,
		msg.ID,
		msg.ItemID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Body,
		msg.IsMeetupProposal,
		date, tm, loc, status,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// Messages returns the thread for an item in ascending created_at order.
func (s *PostgresStore) Messages(ctx context.Context, itemID string) ([]models.Message, error) {
	query := `
		SELECT id, item_id, sender_id, receiver_id, content,
			is_meetup_proposal, meetup_date, meetup_time, meetup_location, meetup_status, created_at
		FROM messages
		WHERE item_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanMessage(row interface{ Scan(...any) error }) (models.Message, error) {
	var m models.Message
	var date, tm, loc, status sql.NullString
	err := row.Scan(
		&m.ID,
		&m.ItemID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Body,
		&m.IsMeetupProposal,
		&date, &tm, &loc, &status,
		&m.CreatedAt,
	)
	if err != nil {
		return models.Message{}, err
	}
	if m.IsMeetupProposal {
		m.Meetup = &models.MeetupDetails{
			Date:     date.String,
			Time:     tm.String,
			Location: loc.String,
			Status:   status.String,
		}
		if m.Meetup.Status == "" {
			m.Meetup.Status = models.MeetupPending
		}
	}
	return m, nil
}

// UpdateMeetupStatus sets the status of the identified proposal message.
func (s *PostgresStore) UpdateMeetupStatus(ctx context.Context, itemID, messageID, status string) (models.Message, error) {
	query := `
		UPDATE messages
		SET meetup_status = $1
		WHERE id = $2 AND item_id = $3 AND is_meetup_proposal = TRUE
		RETURNING id, item_id, sender_id, receiver_id, content,
			is_meetup_proposal, meetup_date, meetup_time, meetup_location, meetup_status, created_at`

	m, err := scanMessage(s.db.QueryRowContext(ctx, query, status, messageID, itemID))
	if err == sql.ErrNoRows {
		return models.Message{}, ErrNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to update meetup status: %w", err)
	}
	return m, nil
}

// Profile fetches one profile.
func (s *PostgresStore) Profile(ctx context.Context, id string) (models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, location, location_privacy, created_at
		FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Phone, &p.Location, &p.LocationPrivacy, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Profile{}, ErrNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// SaveProfile upserts the profile; on conflict the later write wins.
func (s *PostgresStore) SaveProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	query := `
		INSERT INTO profiles (id, name, phone, location, location_privacy)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			location = EXCLUDED.location,
			location_privacy = EXCLUDED.location_privacy
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query, p.ID, p.Name, p.Phone, p.Location, p.LocationPrivacy).
		Scan(&p.CreatedAt)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return p, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
