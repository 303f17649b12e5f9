package inventory

import "github.com/wolfeidau/grandprix/internal/models"

// Filter narrows the admin catalog locally. Unset fields match everything.
type Filter struct {
	Type     *models.RoomType
	Status   *models.RoomStatus
	Floor    *int
	MaxPrice *float64
}

// IsZero reports whether no field is set.
func (f Filter) IsZero() bool {
	return f.Type == nil && f.Status == nil && f.Floor == nil && f.MaxPrice == nil
}

// Matches applies the filter to a single room.
func (f Filter) Matches(r models.Room) bool {
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Floor != nil && r.Floor != *f.Floor {
		return false
	}
	if f.MaxPrice != nil && r.Price > *f.MaxPrice {
		return false
	}
	return true
}
