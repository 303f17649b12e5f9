package inventory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/fanout"
	"github.com/wolfeidau/grandprix/internal/models"
	"github.com/wolfeidau/grandprix/internal/telemetry"
)

const (
	DefaultReconcileDelay = 500 * time.Millisecond
	DefaultNoticeTTL      = 3 * time.Second
)

// Catalog is the admin side of the inventory service.
type Catalog interface {
	AdminListRooms(ctx context.Context) (*models.RoomList, error)
	AdminGetRoom(ctx context.Context, id models.ID) (*models.Room, error)
	CreateRoom(ctx context.Context, in models.RoomInput) (*models.Room, error)
	UpdateRoom(ctx context.Context, id models.ID, in models.RoomInput) (*models.Room, error)
	DeleteRoom(ctx context.Context, id models.ID) error
	SetRoomStatus(ctx context.Context, id models.ID, status models.RoomStatus) error
}

// Confirmer asks the user to confirm deleting room.
type Confirmer func(room models.Room) bool

// Config controls the manager timers.
type Config struct {
	// ReconcileDelay is how long after a status change the catalog is refetched.
	ReconcileDelay time.Duration
	// NoticeTTL is how long a success notice stays visible.
	NoticeTTL time.Duration
}

// Notice is a transient success message.
type Notice struct {
	Message string
	RoomID  models.ID
	seq     uint64
}

// State is what an admin catalog view renders.
type State struct {
	Rooms    []models.Room
	Filter   Filter
	Notice   *Notice
	Loaded   time.Time
	Updating []models.ID
}

// Manager keeps the admin catalog and serializes status changes per room.
type Manager struct {
	catalog Catalog
	cfg     Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	rooms     []models.Room
	loaded    time.Time
	filter    Filter
	updating  map[models.ID]struct{}
	notice    *Notice
	noticeSeq uint64

	hub fanout.Hub[State]
}

// NewManager creates a Manager. Close releases its timers.
func NewManager(catalog Catalog, cfg Config) *Manager {
	if cfg.ReconcileDelay <= 0 {
		cfg.ReconcileDelay = DefaultReconcileDelay
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = DefaultNoticeTTL
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		catalog:  catalog,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		updating: make(map[models.ID]struct{}),
	}
}

// List fetches the full catalog.
func (m *Manager) List(ctx context.Context) ([]models.Room, error) {
	list, err := m.catalog.AdminListRooms(ctx)
	if err != nil {
		return nil, err
	}

	var rooms []models.Room
	if list != nil {
		rooms = slices.Clone(list.Rooms)
	}

	m.mu.Lock()
	m.rooms = rooms
	m.loaded = time.Now()
	m.publishLocked()
	m.mu.Unlock()

	return slices.Clone(rooms), nil
}

// SetFilter changes the local filter. Nothing is fetched.
func (m *Manager) SetFilter(f Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
	m.publishLocked()
}

// Filtered returns the rooms of the last fetched catalog matching the filter.
func (m *Manager) Filtered() []models.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredLocked()
}

// Counts returns how many rooms the filter shows out of the catalog.
func (m *Manager) Counts() (shown, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.filteredLocked()), len(m.rooms)
}

// Updating reports whether a status change for id is in flight.
func (m *Manager) Updating(id models.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.updating[id]
	return ok
}

// Notice returns the current success notice, if any.
func (m *Manager) Notice() (Notice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notice == nil {
		return Notice{}, false
	}
	return *m.notice, true
}

// Subscribe returns a channel receiving the current state and every change.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hub.Subscribe(m.stateLocked())
}

// SetStatus changes the status of a room. A change already in flight for the
// same room is rejected. On success the local entry is patched, a notice is
// shown and a refetch is scheduled to reconcile with the server.
func (m *Manager) SetStatus(ctx context.Context, id models.ID, status models.RoomStatus) error {
	if !slices.Contains(models.RoomStatuses, status) {
		return client.NewValidationError("status", "unknown room status "+string(status))
	}

	m.mu.Lock()
	if _, busy := m.updating[id]; busy {
		m.mu.Unlock()
		return client.NewBusyError("update room status")
	}
	m.updating[id] = struct{}{}
	m.publishLocked()
	m.mu.Unlock()

	err := m.catalog.SetRoomStatus(ctx, id, status)

	m.mu.Lock()
	delete(m.updating, id)
	if err != nil {
		m.publishLocked()
		m.mu.Unlock()
		return err
	}

	number := id.String()
	for i := range m.rooms {
		if m.rooms[i].ID == id {
			m.rooms[i].Status = status
			number = m.rooms[i].Number
			break
		}
	}
	notice := m.showNoticeLocked(id, "Room "+number+" is now "+string(status))
	m.publishLocked()
	m.mu.Unlock()

	telemetry.GetMetrics().StatusChangesTotal.Add(ctx, 1)
	log.Info().Str("room", id.String()).Str("status", string(status)).Msg("room status updated")

	m.after(m.cfg.NoticeTTL, func() { m.dismissNotice(notice) })
	m.after(m.cfg.ReconcileDelay, m.reconcile)

	return nil
}

// Get fetches a room for editing.
func (m *Manager) Get(ctx context.Context, id models.ID) (*models.Room, error) {
	if id.IsZero() {
		return nil, client.NewValidationError("id", "room id is required")
	}
	return m.catalog.AdminGetRoom(ctx, id)
}

// Create validates in, adds the room and refetches the catalog.
func (m *Manager) Create(ctx context.Context, in models.RoomInput) (*models.Room, error) {
	if err := client.ValidateStruct(in); err != nil {
		return nil, err
	}

	room, err := m.catalog.CreateRoom(ctx, in)
	if err != nil {
		return nil, err
	}

	log.Info().Str("room", room.ID.String()).Str("number", room.Number).Msg("room created")
	m.refetch(ctx)

	return room, nil
}

// Update validates in, replaces the room and refetches the catalog.
func (m *Manager) Update(ctx context.Context, id models.ID, in models.RoomInput) (*models.Room, error) {
	if id.IsZero() {
		return nil, client.NewValidationError("id", "room id is required")
	}
	if err := client.ValidateStruct(in); err != nil {
		return nil, err
	}

	room, err := m.catalog.UpdateRoom(ctx, id, in)
	if err != nil {
		return nil, err
	}

	log.Info().Str("room", id.String()).Msg("room updated")
	m.refetch(ctx)

	return room, nil
}

// Delete removes room once confirm agrees. It returns false, and sends
// nothing, when the confirmation is declined.
func (m *Manager) Delete(ctx context.Context, room models.Room, confirm Confirmer) (bool, error) {
	if room.ID.IsZero() {
		return false, client.NewValidationError("id", "room id is required")
	}
	if confirm == nil || !confirm(room) {
		log.Debug().Str("room", room.ID.String()).Msg("delete declined")
		return false, nil
	}

	if err := m.catalog.DeleteRoom(ctx, room.ID); err != nil {
		return false, err
	}

	log.Info().Str("room", room.ID.String()).Str("number", room.Number).Msg("room deleted")
	m.refetch(ctx)

	return true, nil
}

// Close cancels pending reconcile and notice timers and waits for them.
func (m *Manager) Close() {
	// no timer may be added once Wait starts
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	m.hub.Close()
}

// refetch reloads the catalog after a successful write. The write already
// succeeded so a failure here is only logged.
func (m *Manager) refetch(ctx context.Context) {
	if _, err := m.List(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to refresh room catalog")
	}
}

func (m *Manager) reconcile() {
	telemetry.GetMetrics().ReconcileRefetchTotal.Add(m.ctx, 1)
	if _, err := m.List(m.ctx); err != nil && m.ctx.Err() == nil {
		log.Warn().Err(err).Msg("failed to reconcile room catalog")
	}
}

// after runs fn once d has elapsed unless the manager is closed first.
// Callers must not hold mu.
func (m *Manager) after(d time.Duration, fn func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		t := time.NewTimer(d)
		defer t.Stop()

		select {
		case <-m.ctx.Done():
		case <-t.C:
			fn()
		}
	}()
}

func (m *Manager) showNoticeLocked(id models.ID, msg string) uint64 {
	m.noticeSeq++
	m.notice = &Notice{Message: msg, RoomID: id, seq: m.noticeSeq}
	return m.noticeSeq
}

// dismissNotice clears the notice unless a newer one replaced it.
func (m *Manager) dismissNotice(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notice != nil && m.notice.seq == seq {
		m.notice = nil
		m.publishLocked()
	}
}

func (m *Manager) filteredLocked() []models.Room {
	out := make([]models.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		if m.filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Manager) stateLocked() State {
	s := State{
		Rooms:  m.filteredLocked(),
		Filter: m.filter,
		Loaded: m.loaded,
	}
	if m.notice != nil {
		n := *m.notice
		s.Notice = &n
	}
	for id := range m.updating {
		s.Updating = append(s.Updating, id)
	}
	slices.SortFunc(s.Updating, func(a, b models.ID) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return s
}

func (m *Manager) publishLocked() {
	m.hub.Publish(m.stateLocked())
}
