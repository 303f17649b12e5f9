package models

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

type RoomType string

const (
	RoomTypeSingle   RoomType = "single"
	RoomTypeDouble   RoomType = "double"
	RoomTypeSuite    RoomType = "suite"
	RoomTypeDeluxe   RoomType = "deluxe"
	RoomTypeStandard RoomType = "standard"
)

// RoomTypes lists every room type known to the inventory service.
var RoomTypes = []RoomType{RoomTypeSingle, RoomTypeDouble, RoomTypeSuite, RoomTypeDeluxe, RoomTypeStandard}

type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusOccupied    RoomStatus = "occupied"
	RoomStatusMaintenance RoomStatus = "maintenance"
	RoomStatusCleaning    RoomStatus = "cleaning"
	RoomStatusReserved    RoomStatus = "reserved"
)

// RoomStatuses lists the statuses an admin can assign.
var RoomStatuses = []RoomStatus{
	RoomStatusAvailable,
	RoomStatusOccupied,
	RoomStatusMaintenance,
	RoomStatusCleaning,
	RoomStatusReserved,
}

// Room is a bookable room owned by the inventory service.
type Room struct {
	ID          ID         `json:"id"`
	Number      string     `json:"number"`
	Type        RoomType   `json:"type"`
	Status      RoomStatus `json:"status"`
	Price       float64    `json:"price"`
	Description string     `json:"description"`
	Capacity    int        `json:"capacity"`
	Floor       int        `json:"floor"`
	HasWifi     bool       `json:"has_wifi"`
	HasAC       bool       `json:"has_ac"`
	HasTV       bool       `json:"has_tv"`
	HasMinibar  bool       `json:"has_minibar"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsAvailable returns true if the room can be booked right now.
func (r *Room) IsAvailable() bool {
	return r.Status == RoomStatusAvailable
}

// Amenities returns the names of the amenities the room offers.
func (r *Room) Amenities() []string {
	var out []string
	if r.HasWifi {
		out = append(out, "wifi")
	}
	if r.HasAC {
		out = append(out, "ac")
	}
	if r.HasTV {
		out = append(out, "tv")
	}
	if r.HasMinibar {
		out = append(out, "minibar")
	}
	return out
}

// RoomList is the paged response of the room listing endpoints.
type RoomList struct {
	Rooms []Room `json:"rooms"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// RoomInput is the body used to create or replace a room.
type RoomInput struct {
	Number      string   `json:"number" validate:"required,notblank"`
	Type        RoomType `json:"type" validate:"required,oneof=single double suite deluxe standard"`
	Price       float64  `json:"price" validate:"gt=0"`
	Description string   `json:"description"`
	Capacity    int      `json:"capacity" validate:"gte=1"`
	Floor       int      `json:"floor" validate:"gte=1"`
	HasWifi     bool     `json:"has_wifi"`
	HasAC       bool     `json:"has_ac"`
	HasTV       bool     `json:"has_tv"`
	HasMinibar  bool     `json:"has_minibar"`
}

// InputFromRoom copies the editable fields of a room, used to prefill an edit.
func InputFromRoom(r Room) RoomInput {
	return RoomInput{
		Number:      r.Number,
		Type:        r.Type,
		Price:       r.Price,
		Description: r.Description,
		Capacity:    r.Capacity,
		Floor:       r.Floor,
		HasWifi:     r.HasWifi,
		HasAC:       r.HasAC,
		HasTV:       r.HasTV,
		HasMinibar:  r.HasMinibar,
	}
}

// RoomFilter narrows a room search. Unset fields do not constrain the result
// and set fields are combined with AND.
type RoomFilter struct {
	Type       *RoomType
	Status     *RoomStatus
	Floor      *int
	MinPrice   *float64
	MaxPrice   *float64
	HasWifi    *bool
	HasAC      *bool
	HasTV      *bool
	HasMinibar *bool
	Query      string
	Page       int
	Limit      int
}

// Values encodes the set fields as query parameters.
func (f RoomFilter) Values() url.Values {
	v := url.Values{}
	if f.Type != nil {
		v.Set("type", string(*f.Type))
	}
	if f.Status != nil {
		v.Set("status", string(*f.Status))
	}
	if f.Floor != nil {
		v.Set("floor", strconv.Itoa(*f.Floor))
	}
	if f.MinPrice != nil {
		v.Set("min_price", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		v.Set("max_price", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	setBool(v, "has_wifi", f.HasWifi)
	setBool(v, "has_ac", f.HasAC)
	setBool(v, "has_tv", f.HasTV)
	setBool(v, "has_minibar", f.HasMinibar)
	if q := strings.TrimSpace(f.Query); q != "" {
		v.Set("q", q)
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// Matches applies the filter to a single room.
func (f RoomFilter) Matches(r Room) bool {
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Floor != nil && r.Floor != *f.Floor {
		return false
	}
	if f.MinPrice != nil && r.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && r.Price > *f.MaxPrice {
		return false
	}
	if f.HasWifi != nil && *f.HasWifi && !r.HasWifi {
		return false
	}
	if f.HasAC != nil && *f.HasAC && !r.HasAC {
		return false
	}
	if f.HasTV != nil && *f.HasTV && !r.HasTV {
		return false
	}
	if f.HasMinibar != nil && *f.HasMinibar && !r.HasMinibar {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		haystack := strings.ToLower(r.Number + " " + string(r.Type) + " " + r.Description)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

func setBool(v url.Values, key string, b *bool) {
	if b != nil && *b {
		v.Set(key, "true")
	}
}

// Ptr returns a pointer to v, handy when building filters.
func Ptr[T any](v T) *T {
	return &v
}
