package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/pkg/enums"
)

// ErrorLog is an append-only operational record; only Resolved/ResolvedAt change.
type ErrorLog struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Level      enums.ErrorLevel `gorm:"column:level;type:varchar(16);not null"`
	Component  enums.Component  `gorm:"column:component;type:varchar(32);not null"`
	Message    string           `gorm:"column:message;type:text;not null"`
	Details    *string          `gorm:"column:details;type:text"`
	LoggedAt   time.Time        `gorm:"column:logged_at;not null;index:idx_error_log_resolved_logged,priority:2"`
	Resolved   bool             `gorm:"column:resolved;not null;default:false;index:idx_error_log_resolved_logged,priority:1"`
	ResolvedAt *time.Time       `gorm:"column:resolved_at"`
}

func (ErrorLog) TableName() string {
	return "error_log"
}

func (e *ErrorLog) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
