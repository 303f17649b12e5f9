package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/models"
	"github.com/wolfeidau/grandprix/internal/telemetry"
)

const (
	// ListView is where a confirmed booking sends the user.
	ListView = "/my-reservations"

	DefaultRedirectDelay = 2 * time.Second
)

// Reservations is the reservations service as used by the workflow.
type Reservations interface {
	Create(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error)
	Get(ctx context.Context, id models.ID) (*models.Reservation, error)
	ListForUser(ctx context.Context, userID models.ID) ([]models.Reservation, error)
	Cancel(ctx context.Context, id models.ID, reason string) error
}

// Users resolves guest profiles for display.
type Users interface {
	GetUser(ctx context.Context, id models.ID) (*models.UserProfile, error)
}

// Rooms resolves rooms for display.
type Rooms interface {
	GetRoom(ctx context.Context, id models.ID) (*models.Room, error)
}

// Config controls the workflow.
type Config struct {
	// CancelableStatuses are the statuses a reservation may be canceled from.
	CancelableStatuses []models.ReservationStatus
	RedirectDelay      time.Duration
	// EnrichConcurrency bounds parallel lookups.
	EnrichConcurrency int
}

// Confirmation describes a successful booking.
type Confirmation struct {
	Reservation   models.Reservation
	Room          models.Room
	Nights        int
	Total         float64
	NextView      string
	RedirectAfter time.Duration
}

// Workflow drives reservation creation, listing and cancellation.
type Workflow struct {
	reservations Reservations
	users        Users
	rooms        Rooms

	cancelable        map[models.ReservationStatus]struct{}
	redirectDelay     time.Duration
	enrichConcurrency int

	mu        sync.Mutex
	creating  bool
	canceling map[models.ID]struct{}

	lookups   singleflight.Group
	cacheMu   sync.Mutex
	userCache map[models.ID]models.UserProfile
	roomCache map[models.ID]models.Room
}

// New creates a Workflow. users and rooms may be nil to skip enrichment.
func New(reservations Reservations, users Users, rooms Rooms, cfg Config) *Workflow {
	statuses := cfg.CancelableStatuses
	if len(statuses) == 0 {
		statuses = models.DefaultCancelableStatuses
	}
	cancelable := make(map[models.ReservationStatus]struct{}, len(statuses))
	for _, s := range statuses {
		cancelable[models.ReservationStatus(strings.ToLower(string(s)))] = struct{}{}
	}

	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = DefaultRedirectDelay
	}
	if cfg.EnrichConcurrency <= 0 {
		cfg.EnrichConcurrency = 4
	}

	return &Workflow{
		reservations:      reservations,
		users:             users,
		rooms:             rooms,
		cancelable:        cancelable,
		redirectDelay:     cfg.RedirectDelay,
		enrichConcurrency: cfg.EnrichConcurrency,
		canceling:         make(map[models.ID]struct{}),
		userCache:         make(map[models.ID]models.UserProfile),
		roomCache:         make(map[models.ID]models.Room),
	}
}

// Create books room for userID from start to end. An empty or inverted range
// is rejected without a request, as is a second submission while one is in
// flight.
func (w *Workflow) Create(ctx context.Context, userID models.ID, room models.Room, start, end time.Time) (*Confirmation, error) {
	nights := Nights(start, end)
	if nights <= 0 {
		return nil, client.NewValidationError("end_date", "end date must be after start date")
	}
	if userID.IsZero() {
		return nil, &client.Error{Kind: client.KindAuthentication, Op: "create reservation", Message: "sign in to make a reservation"}
	}

	w.mu.Lock()
	if w.creating {
		w.mu.Unlock()
		return nil, client.NewBusyError("create reservation")
	}
	w.creating = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.creating = false
		w.mu.Unlock()
	}()

	res, err := w.reservations.Create(ctx, models.CreateReservationRequest{
		UserID:    userID,
		RoomID:    room.ID,
		StartDate: start.Format(models.DateLayout),
		EndDate:   end.Format(models.DateLayout),
	})
	if err != nil {
		return nil, err
	}

	telemetry.GetMetrics().ReservationsCreatedTotal.Add(ctx, 1)

	log.Info().
		Str("reservation", res.ID.String()).
		Str("room", room.Number).
		Int("nights", nights).
		Msg("reservation created")

	return &Confirmation{
		Reservation:   *res,
		Room:          room,
		Nights:        nights,
		Total:         float64(nights) * room.Price,
		NextView:      ListView,
		RedirectAfter: w.redirectDelay,
	}, nil
}

// ListMine returns the reservations of userID ordered by id. Without a user
// it returns an empty list and sends nothing.
func (w *Workflow) ListMine(ctx context.Context, userID models.ID) ([]models.Reservation, error) {
	if userID.IsZero() {
		return []models.Reservation{}, nil
	}

	list, err := w.reservations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Reservation, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID.Less(out[j].ID)
	})

	return out, nil
}

// Get fetches a single reservation.
func (w *Workflow) Get(ctx context.Context, id models.ID) (*models.Reservation, error) {
	if id.IsZero() {
		return nil, client.NewValidationError("id", "reservation id is required")
	}
	return w.reservations.Get(ctx, id)
}

// Cancelable reports whether r may still be canceled.
func (w *Workflow) Cancelable(r models.Reservation) bool {
	_, ok := w.cancelable[models.ReservationStatus(strings.ToLower(string(r.Status)))]
	return ok
}

// Cancel cancels r with reason on behalf of userID and returns userID's
// refetched list. A blank reason, a status that no longer allows
// cancellation, or a cancel already in flight for r are rejected without a
// request.
func (w *Workflow) Cancel(ctx context.Context, userID models.ID, r models.Reservation, reason string) ([]models.Reservation, error) {
	if userID.IsZero() {
		return nil, &client.Error{Kind: client.KindAuthentication, Op: "cancel reservation", Message: "sign in to cancel a reservation"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, client.NewValidationError("reason", "a reason is required to cancel a reservation")
	}
	if !w.Cancelable(r) {
		return nil, client.NewValidationError("status", fmt.Sprintf("a %s reservation cannot be canceled", r.Status))
	}

	w.mu.Lock()
	if _, busy := w.canceling[r.ID]; busy {
		w.mu.Unlock()
		return nil, client.NewBusyError("cancel reservation")
	}
	w.canceling[r.ID] = struct{}{}
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.canceling, r.ID)
		w.mu.Unlock()
	}()

	if err := w.reservations.Cancel(ctx, r.ID, reason); err != nil {
		return nil, err
	}

	telemetry.GetMetrics().ReservationsCanceledTotal.Add(ctx, 1)
	log.Info().Str("reservation", r.ID.String()).Msg("reservation canceled")

	list, err := w.ListMine(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reservation canceled but the list could not be refreshed: %w", err)
	}
	return list, nil
}
