package availability

import (
	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/models"
)

// ValidateFilter checks a filter before it is sent. Price bounds must be
// non-negative and ordered, floor at least 1, paging non-negative.
func ValidateFilter(f models.RoomFilter) error {
	if f.MinPrice != nil && *f.MinPrice < 0 {
		return client.NewValidationError("min_price", "minimum price cannot be negative")
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return client.NewValidationError("max_price", "maximum price cannot be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return client.NewValidationError("min_price", "minimum price cannot exceed maximum price")
	}
	if f.Floor != nil && *f.Floor < 1 {
		return client.NewValidationError("floor", "floor must be at least 1")
	}
	if f.Page < 0 {
		return client.NewValidationError("page", "page cannot be negative")
	}
	if f.Limit < 0 {
		return client.NewValidationError("limit", "limit cannot be negative")
	}
	return nil
}

// bookable keeps rooms that are available and match f, whatever the server
// returned.
func bookable(rooms []models.Room, f models.RoomFilter) []models.Room {
	out := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.IsAvailable() && f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}
