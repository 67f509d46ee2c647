package cron

import (
	"time"

	"github.com/angelmondragon/basketcase/pkg/config"
)

// Weekly computes the due instants of a job that runs once a week at a fixed UTC slot.
type Weekly struct {
	slot config.WeeklySlot
}

// NewWeekly returns the schedule for slot.
func NewWeekly(slot config.WeeklySlot) Weekly {
	return Weekly{slot: slot}
}

// Previous returns the most recent slot instant at or before now.
func (w Weekly) Previous(now time.Time) time.Time {
	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), w.slot.Hour, w.slot.Minute, 0, 0, time.UTC)
	offset := (int(now.Weekday()) - int(w.slot.Weekday) + 7) % 7
	candidate = candidate.AddDate(0, 0, -offset)
	if candidate.After(now) {
		candidate = candidate.AddDate(0, 0, -7)
	}
	return candidate
}

// Next returns the first slot instant strictly after now.
func (w Weekly) Next(now time.Time) time.Time {
	return w.Previous(now).AddDate(0, 0, 7)
}
