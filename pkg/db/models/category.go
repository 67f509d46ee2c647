package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category groups products for the per-category inflation breakdown. ParentID links a
// sub-category to its parent by id only.
type Category struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name      string     `gorm:"column:name;not null;uniqueIndex:uq_categories_name"`
	ParentID  *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
