package models

import "time"

// PowerReading is one stored power sample of a device category.
type PowerReading struct {
	ID        int64     `json:"id,omitempty" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Power     float64   `json:"power" db:"power"`
	Category  Category  `json:"category" db:"category"`
}

// ReadingRequest is the body of POST /data/add and of MQTT reading messages.
type ReadingRequest struct {
	Timestamp time.Time `json:"timestamp" binding:"required"`
	Power     *float64  `json:"power" binding:"required"`
	Category  string    `json:"category"`
}
