package model

import (
	"strings"
	"time"
)

// Venue owns events and receives bookings.
type Venue struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VenueFields carries the fields needed to create a venue.
type VenueFields struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// Validate checks required fields.
func (f VenueFields) Validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return validationf("missing name")
	case strings.TrimSpace(f.OwnerID) == "":
		return validationf("missing owner_id")
	}
	return nil
}

// Musician submits applications. Profile fields are for display only.
type Musician struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	HourlyRate float64  `json:"hourly_rate"`
	Rating     float64  `json:"rating"`
}
