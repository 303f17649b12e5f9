package availability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/grandprix/internal/fanout"
	"github.com/wolfeidau/grandprix/internal/models"
	"github.com/wolfeidau/grandprix/internal/telemetry"
)

// ErrStale is returned by Search when a newer search was issued before the
// response arrived. The response was discarded.
var ErrStale = errors.New("search superseded by a newer request")

// Rooms is the inventory query the browser depends on.
type Rooms interface {
	ListAvailable(ctx context.Context, filter models.RoomFilter) (*models.RoomList, error)
}

// Result is an applied search outcome.
type Result struct {
	Rooms  []models.Room
	Filter models.RoomFilter
	// Err is set when the last search failed. Rooms then holds the previous result.
	Err error
	// Zero is true for a successful search that matched nothing.
	Zero        bool
	RefreshedAt time.Time
	Token       uint64
}

// Browser keeps a cached, filtered view of bookable rooms.
type Browser struct {
	rooms Rooms
	now   func() time.Time

	mu     sync.Mutex
	filter models.RoomFilter
	issued uint64
	last   Result

	hub      fanout.Hub[Result]
	triggers chan Trigger
}

// NewBrowser creates a browser over rooms.
func NewBrowser(rooms Rooms) *Browser {
	return &Browser{
		rooms:    rooms,
		now:      time.Now,
		triggers: make(chan Trigger, 1),
	}
}

// Filter returns the current filter.
func (b *Browser) Filter() models.RoomFilter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// Last returns the most recently applied result.
func (b *Browser) Last() Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Subscribe returns a channel receiving the last result and every applied
// result after it.
func (b *Browser) Subscribe() (<-chan Result, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub.Subscribe(b.last)
}

// Search validates filter, makes it current and fetches matching rooms. An
// invalid filter leaves the current filter and results untouched and sends
// nothing. A response overtaken by a newer search is discarded with ErrStale.
func (b *Browser) Search(ctx context.Context, filter models.RoomFilter) (Result, error) {
	metrics := telemetry.GetMetrics()

	if err := ValidateFilter(filter); err != nil {
		metrics.SearchesRejectedTotal.Add(ctx, 1)
		return b.Last(), err
	}

	b.mu.Lock()
	b.filter = filter
	b.issued++
	token := b.issued
	b.mu.Unlock()

	metrics.SearchesTotal.Add(ctx, 1)
	started := time.Now()

	list, err := b.rooms.ListAvailable(ctx, filter)

	metrics.SearchDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metric.WithAttributes(attribute.Bool("error", err != nil)))

	b.mu.Lock()
	defer b.mu.Unlock()

	if token < b.issued {
		metrics.StaleResponsesTotal.Add(ctx, 1)
		log.Debug().Uint64("token", token).Uint64("latest", b.issued).Msg("discarding stale search response")
		return b.last, ErrStale
	}

	if err != nil {
		b.last = Result{
			Rooms:       b.last.Rooms,
			Filter:      filter,
			Err:         err,
			RefreshedAt: b.last.RefreshedAt,
			Token:       token,
		}
		b.hub.Publish(b.last)
		return b.last, err
	}

	var rooms []models.Room
	if list != nil {
		rooms = bookable(list.Rooms, filter)
	}

	b.last = Result{
		Rooms:       rooms,
		Filter:      filter,
		Zero:        len(rooms) == 0,
		RefreshedAt: b.now(),
		Token:       token,
	}
	b.hub.Publish(b.last)

	log.Debug().Uint64("token", token).Int("rooms", len(rooms)).Msg("search applied")

	return b.last, nil
}

// Refresh re-runs the search with the current filter.
func (b *Browser) Refresh(ctx context.Context) (Result, error) {
	return b.Search(ctx, b.Filter())
}

// Close releases subscribers.
func (b *Browser) Close() {
	b.hub.Close()
}
