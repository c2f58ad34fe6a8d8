// internal/domain/status/entity.go
package status

import "time"

// StatusRecord is a work-queue label, an axis independent from the funnel
// lifecycle state. Exactly one record is the default at any time.
type StatusRecord struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	Order     int       `json:"order" db:"sort_order"`
	IsDefault bool      `json:"is_default" db:"is_default"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateStatusRequest is the admin payload for a new label.
type CreateStatusRequest struct {
	Name      string `json:"name" binding:"required"`
	Color     string `json:"color"`
	Order     int    `json:"order"`
	IsDefault bool   `json:"is_default"`
}

// UpdateStatusRequest carries optional label changes.
type UpdateStatusRequest struct {
	Name      *string `json:"name,omitempty"`
	Color     *string `json:"color,omitempty"`
	Order     *int    `json:"order,omitempty"`
	IsDefault *bool   `json:"is_default,omitempty"`
}
