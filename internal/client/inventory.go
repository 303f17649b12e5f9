package client

import (
	"context"
	"net/http"

	"github.com/wolfeidau/grandprix/internal/models"
)

// InventoryClient talks to the room inventory service.
type InventoryClient struct {
	svc *service
}

// ListRooms returns rooms matching filter.
func (c *InventoryClient) ListRooms(ctx context.Context, filter models.RoomFilter) (*models.RoomList, error) {
	return c.list(ctx, "list rooms", "/api/v1/rooms", filter)
}

// ListAvailable returns rooms the server considers bookable and matching filter.
func (c *InventoryClient) ListAvailable(ctx context.Context, filter models.RoomFilter) (*models.RoomList, error) {
	return c.list(ctx, "search rooms", "/api/v1/rooms/available", filter)
}

// GetRoom fetches one room. Responses are cached.
func (c *InventoryClient) GetRoom(ctx context.Context, id models.ID) (*models.Room, error) {
	var room models.Room

	err := c.svc.do(ctx, call{
		op:     "get room",
		method: http.MethodGet,
		path:   idPath("/api/v1/rooms/%s", id),
		out:    &room,
		cached: true,
	})
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// catalogPageSize is the page size requested when walking the admin catalog.
const catalogPageSize = 100

// AdminListRooms returns the unfiltered catalog, following pages until the
// reported total is reached or the server runs out of rooms.
func (c *InventoryClient) AdminListRooms(ctx context.Context) (*models.RoomList, error) {
	all := &models.RoomList{Page: 1}

	for page := 1; ; page++ {
		list, err := c.list(ctx, "list catalog", "/api/v1/admin/rooms", models.RoomFilter{Page: page, Limit: catalogPageSize})
		if err != nil {
			return nil, err
		}

		all.Rooms = append(all.Rooms, list.Rooms...)
		all.Total = max(all.Total, list.Total)

		// servers may cap the page size below what was asked for
		limit := catalogPageSize
		if list.Limit > 0 {
			limit = list.Limit
		}

		if len(list.Rooms) == 0 || len(list.Rooms) < limit {
			break
		}
		if all.Total > 0 && int64(len(all.Rooms)) >= all.Total {
			break
		}
	}

	all.Limit = len(all.Rooms)
	all.Total = max(all.Total, int64(len(all.Rooms)))
	return all, nil
}

// AdminGetRoom fetches one room through the admin API, bypassing the cache.
func (c *InventoryClient) AdminGetRoom(ctx context.Context, id models.ID) (*models.Room, error) {
	var room models.Room

	err := c.svc.do(ctx, call{
		op:     "get room",
		method: http.MethodGet,
		path:   idPath("/api/v1/admin/rooms/%s", id),
		out:    &room,
	})
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// CreateRoom adds a room to the catalog.
func (c *InventoryClient) CreateRoom(ctx context.Context, in models.RoomInput) (*models.Room, error) {
	var room models.Room

	err := c.svc.do(ctx, call{
		op:     "create room",
		method: http.MethodPost,
		path:   "/api/v1/admin/rooms",
		in:     in,
		out:    &room,
		kind:   callCreate,
	})
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// UpdateRoom replaces the editable fields of a room.
func (c *InventoryClient) UpdateRoom(ctx context.Context, id models.ID, in models.RoomInput) (*models.Room, error) {
	var room models.Room

	err := c.svc.do(ctx, call{
		op:     "update room",
		method: http.MethodPut,
		path:   idPath("/api/v1/admin/rooms/%s", id),
		in:     in,
		out:    &room,
		kind:   callCreate,
	})
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// DeleteRoom removes a room from the catalog.
func (c *InventoryClient) DeleteRoom(ctx context.Context, id models.ID) error {
	return c.svc.do(ctx, call{
		op:     "delete room",
		method: http.MethodDelete,
		path:   idPath("/api/v1/admin/rooms/%s", id),
	})
}

// SetRoomStatus changes the operational status of a room.
func (c *InventoryClient) SetRoomStatus(ctx context.Context, id models.ID, status models.RoomStatus) error {
	body := struct {
		Status models.RoomStatus `json:"status"`
	}{Status: status}

	return c.svc.do(ctx, call{
		op:     "update room status",
		method: http.MethodPatch,
		path:   idPath("/api/v1/admin/rooms/%s/status", id),
		in:     body,
	})
}

func (c *InventoryClient) list(ctx context.Context, op, path string, filter models.RoomFilter) (*models.RoomList, error) {
	var list models.RoomList

	err := c.svc.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   path,
		query:  filter.Values(),
		out:    &list,
	})
	if err != nil {
		return nil, err
	}

	return &list, nil
}
