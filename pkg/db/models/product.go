package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog item. ProductID is the catalog's identifier; descriptive fields are
// refreshed whenever a search returns the product again.
type Product struct {
	ProductID   string     `gorm:"column:product_id;primaryKey"`
	UPC         *string    `gorm:"column:upc;uniqueIndex:uq_products_upc"`
	Name        string     `gorm:"column:name;not null"`
	Brand       *string    `gorm:"column:brand"`
	CategoryID  *uuid.UUID `gorm:"column:category_id;type:uuid;index:idx_products_category_id"`
	Description *string    `gorm:"column:description"`
	Size        *string    `gorm:"column:size"`
	ImageURL    *string    `gorm:"column:image_url"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
