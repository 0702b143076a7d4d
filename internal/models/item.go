package models

import "time"

// SellerRef identifies the seller of an item as shown to buyers.
type SellerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Item represents an active classifieds listing.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Location    string    `json:"location,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Seller      SellerRef `json:"seller"`
	CreatedAt   time.Time `json:"created_at"`
}

// Item categories
const (
	CategoryElectronics = "electronics"
	CategoryFurniture   = "furniture"
	CategoryClothing    = "clothing"
	CategorySports      = "sports"
	CategoryMusic       = "music"
	CategoryKitchen     = "kitchen"
	CategoryBooks       = "books"
	CategoryToys        = "toys"
	CategoryOther       = "other"
)

// ItemDraft carries the caller-supplied fields of a new listing.
// The store assigns the id and creation time and attaches the seller.
type ItemDraft struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
	ImageURL    string  `json:"image_url"`
}

// Interest records that a buyer has marked an item. At most one row
// exists per (item, buyer) pair.
type Interest struct {
	ItemID  string `json:"item_id"`
	BuyerID string `json:"buyer_id"`
}

// Profile holds the public profile of a user. Writes are
// last-writer-wins upserts.
type Profile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone,omitempty"`
	Location        string    `json:"location,omitempty"`
	LocationPrivacy string    `json:"location_privacy,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
