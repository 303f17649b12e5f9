package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/grandprix/internal/models"
	"github.com/wolfeidau/grandprix/internal/telemetry"
)

// Entry is a reservation with display fields resolved from the identity and
// inventory services. Fields that could not be resolved are left empty.
type Entry struct {
	models.Reservation

	GuestName     string
	GuestEmail    string
	RoomNumber    string
	PricePerNight *float64
	Nights        int
	Total         *float64
	Cancelable    bool
}

// Enrich resolves guest and room details for list. Lookups run concurrently,
// are shared between reservations with the same user or room, and are cached
// for the life of the workflow. A failed lookup only omits its fields.
func (w *Workflow) Enrich(ctx context.Context, list []models.Reservation) []Entry {
	entries := make([]Entry, len(list))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.enrichConcurrency)

	for i := range list {
		entries[i] = Entry{Reservation: list[i], Cancelable: w.Cancelable(list[i])}

		start, serr := time.Parse(models.DateLayout, list[i].StartDate)
		end, eerr := time.Parse(models.DateLayout, list[i].EndDate)
		if serr == nil && eerr == nil {
			entries[i].Nights = max(Nights(start, end), 0)
		}

		e := &entries[i]

		if w.users != nil && !e.UserID.IsZero() {
			g.Go(func() error {
				if u, ok := w.lookupUser(gctx, e.UserID); ok {
					e.GuestName = u.FullName()
					e.GuestEmail = u.Email
				}
				return nil
			})
		}

		if w.rooms != nil && !e.RoomID.IsZero() {
			g.Go(func() error {
				if r, ok := w.lookupRoom(gctx, e.RoomID); ok {
					price := r.Price
					total := float64(e.Nights) * price
					e.RoomNumber = r.Number
					e.PricePerNight = &price
					e.Total = &total
				}
				return nil
			})
		}
	}

	// lookups never fail the group
	_ = g.Wait()

	return entries
}

func (w *Workflow) lookupUser(ctx context.Context, id models.ID) (models.UserProfile, bool) {
	w.cacheMu.Lock()
	u, ok := w.userCache[id]
	w.cacheMu.Unlock()
	if ok {
		return u, true
	}

	v, err, _ := w.lookups.Do("user:"+id.String(), func() (any, error) {
		return w.users.GetUser(ctx, id)
	})
	if err != nil {
		lookupFailed(ctx, "user", id, err)
		return models.UserProfile{}, false
	}

	p, _ := v.(*models.UserProfile)
	if p == nil {
		return models.UserProfile{}, false
	}

	u = *p
	w.cacheMu.Lock()
	w.userCache[id] = u
	w.cacheMu.Unlock()

	return u, true
}

func (w *Workflow) lookupRoom(ctx context.Context, id models.ID) (models.Room, bool) {
	w.cacheMu.Lock()
	r, ok := w.roomCache[id]
	w.cacheMu.Unlock()
	if ok {
		return r, true
	}

	v, err, _ := w.lookups.Do("room:"+id.String(), func() (any, error) {
		return w.rooms.GetRoom(ctx, id)
	})
	if err != nil {
		lookupFailed(ctx, "room", id, err)
		return models.Room{}, false
	}

	p, _ := v.(*models.Room)
	if p == nil {
		return models.Room{}, false
	}

	r = *p
	w.cacheMu.Lock()
	w.roomCache[id] = r
	w.cacheMu.Unlock()

	return r, true
}

func lookupFailed(ctx context.Context, kind string, id models.ID, err error) {
	telemetry.GetMetrics().EnrichmentFailuresTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("lookup", kind)))
	log.Debug().Err(err).Str("lookup", kind).Str("id", id.String()).Msg("enrichment lookup failed")
}
