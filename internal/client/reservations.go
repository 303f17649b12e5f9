package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfeidau/grandprix/internal/models"
)

// ReservationsClient talks to the reservations service.
type ReservationsClient struct {
	svc    *service
	myPath string
}

// Create books a room for a date range.
func (c *ReservationsClient) Create(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error) {
	var resp struct {
		Reservation models.Reservation `json:"reservation"`
	}

	err := c.svc.do(ctx, call{
		op:     "create reservation",
		method: http.MethodPost,
		path:   "/api/reservations",
		in:     req,
		out:    &resp,
		kind:   callCreate,
	})
	if err != nil {
		return nil, err
	}

	return &resp.Reservation, nil
}

// Get fetches one reservation.
func (c *ReservationsClient) Get(ctx context.Context, id models.ID) (*models.Reservation, error) {
	var resp struct {
		Reservation models.Reservation `json:"reservation"`
	}

	err := c.svc.do(ctx, call{
		op:     "get reservation",
		method: http.MethodGet,
		path:   idPath("/api/reservations/%s", id),
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}

	return &resp.Reservation, nil
}

// ListForUser returns the reservations held by a user.
func (c *ReservationsClient) ListForUser(ctx context.Context, userID models.ID) ([]models.Reservation, error) {
	var resp struct {
		Reservations []models.Reservation `json:"reservations"`
	}

	err := c.svc.do(ctx, call{
		op:     "list reservations",
		method: http.MethodGet,
		path:   strings.ReplaceAll(c.myPath, "{id}", url.PathEscape(userID.String())),
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}

	return resp.Reservations, nil
}

// Cancel cancels a reservation, recording reason.
func (c *ReservationsClient) Cancel(ctx context.Context, id models.ID, reason string) error {
	return c.svc.do(ctx, call{
		op:     "cancel reservation",
		method: http.MethodDelete,
		path:   idPath("/api/reservations/%s", id),
		in:     models.CancelReservationRequest{Reason: reason},
	})
}
