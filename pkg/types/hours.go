package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StoreHours maps a weekday name ("monday") to the opening window reported by the catalog
// ("06:00-23:00"). Stored as JSON text so both Postgres and SQLite can hold it.
type StoreHours map[string]string

// Value marshals the hours into JSON.
func (h StoreHours) Value() (driver.Value, error) {
	if h == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the JSON column into the map.
func (h *StoreHours) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("store hours: unsupported scan type %T", value)
	}

	result := make(StoreHours)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*h = result
	return nil
}
