// Package sample holds the built-in demo catalog. It seeds the local
// store on first run and backs the remote engine's initial-load
// fallback; it is never used for conversation or interest data.
package sample

import (
	"time"

	"github.com/ikaikahussey/stufff-app/internal/models"
)

// Items returns the demo catalog with creation times relative to now.
func Items() []models.Item {
	now := time.Now()
	return []models.Item{
		{
			ID:          "1",
			Title:       "Vintage Leather Sofa",
			Description: "Beautiful vintage brown leather sofa in excellent condition. Perfect for a living room or office. Minor wear consistent with age, but no tears or major damage.",
			Price:       350,
			Category:    models.CategoryFurniture,
			Location:    "Downtown",
			ImageURL:    "https://images.unsplash.com/photo-1555041469-a586c61ea9bc?w=800",
			Seller:      models.SellerRef{ID: "demo-seller", Name: "John D."},
			CreatedAt:   now.Add(-2 * 24 * time.Hour),
		},
		{
			ID:          "2",
			Title:       "Road Bike - Carbon Frame",
			Description: "High-performance carbon fiber road bike. Shimano 105 groupset, excellent for racing or long rides. Recently serviced.",
			Price:       800,
			Category:    models.CategorySports,
			Location:    "Westside",
			ImageURL:    "https://images.unsplash.com/photo-1485965120184-e220f721d03e?w=800",
			Seller:      models.SellerRef{ID: "demo-seller-2", Name: "Sarah M."},
			CreatedAt:   now.Add(-5 * 24 * time.Hour),
		},
		{
			ID:          "3",
			Title:       "MacBook Pro 14\"",
			Description: "M2 Pro chip, 16GB RAM, 512GB SSD. Like new condition, includes original charger and box.",
			Price:       1500,
			Category:    models.CategoryElectronics,
			Location:    "Midtown",
			ImageURL:    "https://images.unsplash.com/photo-1517336714731-489689fd1ca8?w=800",
			Seller:      models.SellerRef{ID: "demo-seller-3", Name: "Mike R."},
			CreatedAt:   now.Add(-1 * 24 * time.Hour),
		},
		{
			ID:          "4",
			Title:       "Acoustic Guitar - Taylor",
			Description: "Taylor 214ce acoustic-electric guitar. Beautiful sound, no scratches. Includes hardshell case.",
			Price:       650,
			Category:    models.CategoryMusic,
			Location:    "Eastside",
			ImageURL:    "https://images.unsplash.com/photo-1510915361894-db8b60106cb1?w=800",
			Seller:      models.SellerRef{ID: "demo-seller-4", Name: "Lisa K."},
			CreatedAt:   now.Add(-7 * 24 * time.Hour),
		},
		{
			ID:          "5",
			Title:       "Standing Desk - Electric",
			Description: "Electric height-adjustable standing desk. 60\" wide, memory presets. Minor scratches on surface.",
			Price:       275,
			Category:    models.CategoryFurniture,
			Location:    "Downtown",
			ImageURL:    "https://images.unsplash.com/photo-1593062096033-9a26b09da705?w=800",
			Seller:      models.SellerRef{ID: "demo-seller", Name: "John D."},
			CreatedAt:   now.Add(-3 * 24 * time.Hour),
		},
		{
			ID:          "6",
			Title:       "Vintage Record Player",
			Description: "Fully restored 1970s turntable. New needle, built-in speakers. Perfect for vinyl enthusiasts.",
			Price:       180,
			Category:    models.CategoryMusic,
			Location:    "Northside",
			ImageURL:    "https://images.unsplash.com/photo-1539375665275-f9de415ef9ac?w=800",
			Seller:      models.SellerRef{ID: "demo-seller-5", Name: "Tom H."},
			CreatedAt:   now.Add(-4 * 24 * time.Hour),
		},
	}
}
