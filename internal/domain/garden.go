package domain

import "time"

// GardenItem is a plant a user added to their managed collection.
type GardenItem struct {
	ID          string
	UserID      string
	SpeciesName string
	Nickname    string
	CreatedAt   time.Time
}
