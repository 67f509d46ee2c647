package models

import (
	"time"

	"github.com/angelmondragon/basketcase/pkg/types"
)

// Store is a retail location identified by the catalog's fixed-length location code.
type Store struct {
	StoreID    string           `gorm:"column:store_id;type:varchar(8);primaryKey"`
	Name       string           `gorm:"column:name;not null"`
	Address    *string          `gorm:"column:address"`
	PostalCode *string          `gorm:"column:postal_code;index:idx_stores_postal_code"`
	Latitude   *float64         `gorm:"column:latitude"`
	Longitude  *float64         `gorm:"column:longitude"`
	Hours      types.StoreHours `gorm:"column:hours;type:text"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
