package booking

import (
	"strings"
	"time"

	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/models"
)

// ParseDate reads a YYYY-MM-DD calendar date.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, client.NewValidationError(field, field+" must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// Nights is the number of whole calendar days from start to end. It is
// negative when end is before start.
func Nights(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// Quote is the total price of staying in room from start to end. Empty or
// inverted ranges cost nothing.
func Quote(room models.Room, start, end time.Time) float64 {
	n := Nights(start, end)
	if n <= 0 {
		return 0
	}
	return float64(n) * room.Price
}
