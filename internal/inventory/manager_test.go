package inventory

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/models"
)

type fakeCatalog struct {
	mu        sync.Mutex
	rooms     map[models.ID]models.Room
	listCalls atomic.Int32
	writes    atomic.Int32
	statusErr error
	// gate holds SetRoomStatus for the given room until closed
	gates   map[models.ID]chan struct{}
	entered chan models.ID
}

func newFakeCatalog(rooms ...models.Room) *fakeCatalog {
	f := &fakeCatalog{rooms: map[models.ID]models.Room{}}
	for _, r := range rooms {
		f.rooms[r.ID] = r
	}
	return f
}

func (f *fakeCatalog) AdminListRooms(ctx context.Context) (*models.RoomList, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	list := &models.RoomList{}
	for _, r := range f.rooms {
		list.Rooms = append(list.Rooms, r)
	}
	list.Total = int64(len(list.Rooms))
	return list, nil
}

func (f *fakeCatalog) AdminGetRoom(ctx context.Context, id models.ID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return nil, &client.Error{Kind: client.KindNotFound, Status: http.StatusNotFound, Message: "room not found"}
	}
	return &r, nil
}

func (f *fakeCatalog) CreateRoom(ctx context.Context, in models.RoomInput) (*models.Room, error) {
	f.writes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	id := models.ID("new")
	r := models.Room{ID: id, Number: in.Number, Type: in.Type, Price: in.Price, Capacity: in.Capacity, Floor: in.Floor, Status: models.RoomStatusAvailable}
	f.rooms[id] = r
	return &r, nil
}

func (f *fakeCatalog) UpdateRoom(ctx context.Context, id models.ID, in models.RoomInput) (*models.Room, error) {
	f.writes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rooms[id]
	r.Number, r.Price, r.Floor = in.Number, in.Price, in.Floor
	f.rooms[id] = r
	return &r, nil
}

func (f *fakeCatalog) DeleteRoom(ctx context.Context, id models.ID) error {
	f.writes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	return nil
}

func (f *fakeCatalog) SetRoomStatus(ctx context.Context, id models.ID, status models.RoomStatus) error {
	f.writes.Add(1)

	f.mu.Lock()
	gate := f.gates[id]
	entered := f.entered
	err := f.statusErr
	f.mu.Unlock()

	if entered != nil {
		entered <- id
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rooms[id]
	r.Status = status
	f.rooms[id] = r
	return nil
}

// serverSide changes a room behind the manager's back.
func (f *fakeCatalog) serverSide(id models.ID, fn func(r *models.Room)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rooms[id]
	fn(&r)
	f.rooms[id] = r
}

var testRooms = []models.Room{
	{ID: "1", Number: "101", Type: models.RoomTypeSingle, Status: models.RoomStatusAvailable, Price: 80, Floor: 1},
	{ID: "2", Number: "102", Type: models.RoomTypeDouble, Status: models.RoomStatusOccupied, Price: 120, Floor: 1},
	{ID: "3", Number: "201", Type: models.RoomTypeSuite, Status: models.RoomStatusMaintenance, Price: 300, Floor: 2},
	{ID: "4", Number: "202", Type: models.RoomTypeDouble, Status: models.RoomStatusAvailable, Price: 140, Floor: 2},
}

func newManager(t *testing.T, catalog Catalog, cfg Config) *Manager {
	t.Helper()
	m := NewManager(catalog, cfg)
	t.Cleanup(m.Close)
	return m
}

func roomByID(rooms []models.Room, id models.ID) (models.Room, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r, true
		}
	}
	return models.Room{}, false
}

func TestFilters_NeverFetch(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	m := newManager(t, catalog, Config{})

	rooms, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 4)
	require.Equal(t, int32(1), catalog.listCalls.Load())

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "none", filter: Filter{}, want: 4},
		{name: "type", filter: Filter{Type: models.Ptr(models.RoomTypeDouble)}, want: 2},
		{name: "status", filter: Filter{Status: models.Ptr(models.RoomStatusAvailable)}, want: 2},
		{name: "floor", filter: Filter{Floor: models.Ptr(2)}, want: 2},
		{name: "max price inclusive", filter: Filter{MaxPrice: models.Ptr(120.0)}, want: 2},
		{name: "combined", filter: Filter{Type: models.Ptr(models.RoomTypeDouble), Floor: models.Ptr(2)}, want: 1},
		{name: "nothing matches", filter: Filter{Type: models.Ptr(models.RoomTypeDeluxe)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.SetFilter(tt.filter)
			assert.Len(t, m.Filtered(), tt.want)
			shown, total := m.Counts()
			assert.Equal(t, tt.want, shown)
			assert.Equal(t, 4, total)
		})
	}

	assert.Equal(t, int32(1), catalog.listCalls.Load())
}

func TestSetStatus_OptimisticThenReconciled(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	m := newManager(t, catalog, Config{ReconcileDelay: 20 * time.Millisecond, NoticeTTL: 40 * time.Millisecond})

	_, err := m.List(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.SetStatus(context.Background(), "2", models.RoomStatusCleaning))

	r, ok := roomByID(m.Filtered(), "2")
	require.True(t, ok)
	assert.Equal(t, models.RoomStatusCleaning, r.Status)

	notice, ok := m.Notice()
	require.True(t, ok)
	assert.Equal(t, "Room 102 is now cleaning", notice.Message)

	// another admin edits the room before the reconcile refetch
	catalog.serverSide("2", func(r *models.Room) { r.Price = 125 })

	require.Eventually(t, func() bool {
		r, _ := roomByID(m.Filtered(), "2")
		return r.Price == 125 && r.Status == models.RoomStatusCleaning
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, catalog.listCalls.Load(), int32(2))

	require.Eventually(t, func() bool {
		_, ok := m.Notice()
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSetStatus_FailureDoesNotPatch(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	catalog.statusErr = &client.Error{Kind: client.KindNotFound, Status: http.StatusNotFound, Message: "room not found"}
	m := newManager(t, catalog, Config{ReconcileDelay: time.Millisecond})

	_, err := m.List(context.Background())
	require.NoError(t, err)

	err = m.SetStatus(context.Background(), "2", models.RoomStatusCleaning)
	assert.Equal(t, client.KindNotFound, client.KindOf(err))

	r, _ := roomByID(m.Filtered(), "2")
	assert.Equal(t, models.RoomStatusOccupied, r.Status)
	_, ok := m.Notice()
	assert.False(t, ok)
	assert.False(t, m.Updating("2"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), catalog.listCalls.Load())
}

func TestSetStatus_SerializedPerRoom(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	catalog.gates = map[models.ID]chan struct{}{"1": make(chan struct{}), "3": make(chan struct{})}
	catalog.entered = make(chan models.ID, 2)
	m := newManager(t, catalog, Config{ReconcileDelay: time.Hour})

	_, err := m.List(context.Background())
	require.NoError(t, err)

	done := make(chan error, 2)
	go func() { done <- m.SetStatus(context.Background(), "1", models.RoomStatusCleaning) }()
	require.Equal(t, models.ID("1"), <-catalog.entered)
	assert.True(t, m.Updating("1"))

	err = m.SetStatus(context.Background(), "1", models.RoomStatusReserved)
	assert.Equal(t, client.KindBusy, client.KindOf(err))

	// a different room proceeds concurrently
	go func() { done <- m.SetStatus(context.Background(), "3", models.RoomStatusAvailable) }()
	require.Equal(t, models.ID("3"), <-catalog.entered)

	close(catalog.gates["1"])
	close(catalog.gates["3"])
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	assert.Equal(t, int32(2), catalog.writes.Load())
	assert.False(t, m.Updating("1"))
}

func TestSetStatus_UnknownStatus(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	m := newManager(t, catalog, Config{})

	err := m.SetStatus(context.Background(), "1", "flooded")
	assert.Equal(t, client.KindValidation, client.KindOf(err))
	assert.Zero(t, catalog.writes.Load())
}

func TestClose_CancelsReconcile(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	m := NewManager(catalog, Config{ReconcileDelay: 50 * time.Millisecond})

	_, err := m.List(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.SetStatus(context.Background(), "1", models.RoomStatusCleaning))

	m.Close()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), catalog.listCalls.Load())
}

func TestClose_RacesStatusChanges(t *testing.T) {
	for range 50 {
		catalog := newFakeCatalog(testRooms...)
		m := NewManager(catalog, Config{ReconcileDelay: time.Millisecond, NoticeTTL: time.Millisecond})

		var wg sync.WaitGroup
		for _, id := range []models.ID{"1", "2", "3", "4"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = m.SetStatus(context.Background(), id, models.RoomStatusCleaning)
			}()
		}
		m.Close()
		wg.Wait()
	}
}

func TestClose_StopsSchedulingTimers(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	m := NewManager(catalog, Config{ReconcileDelay: time.Millisecond})

	_, err := m.List(context.Background())
	require.NoError(t, err)
	m.Close()

	// the write still lands but no reconcile runs after Close
	require.NoError(t, m.SetStatus(context.Background(), "1", models.RoomStatusCleaning))

	var fired atomic.Bool
	m.after(0, func() { fired.Store(true) })

	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.Equal(t, int32(1), catalog.listCalls.Load())
}

func TestCreateUpdate(t *testing.T) {
	valid := models.RoomInput{Number: "301", Type: models.RoomTypeDeluxe, Price: 220, Capacity: 2, Floor: 3}

	t.Run("validation sends nothing", func(t *testing.T) {
		catalog := newFakeCatalog(testRooms...)
		m := newManager(t, catalog, Config{})

		for _, in := range []models.RoomInput{
			{Number: "", Type: models.RoomTypeDeluxe, Price: 220, Capacity: 2, Floor: 3},
			{Number: "301", Type: models.RoomTypeDeluxe, Price: 0, Capacity: 2, Floor: 3},
			{Number: "301", Type: models.RoomTypeDeluxe, Price: 220, Capacity: 0, Floor: 3},
			{Number: "301", Type: models.RoomTypeDeluxe, Price: 220, Capacity: 2, Floor: 0},
		} {
			_, err := m.Create(context.Background(), in)
			assert.Equal(t, client.KindValidation, client.KindOf(err))
			_, err = m.Update(context.Background(), "1", in)
			assert.Equal(t, client.KindValidation, client.KindOf(err))
		}
		assert.Zero(t, catalog.writes.Load())
	})

	t.Run("create refetches", func(t *testing.T) {
		catalog := newFakeCatalog(testRooms...)
		m := newManager(t, catalog, Config{})

		room, err := m.Create(context.Background(), valid)
		require.NoError(t, err)
		assert.Equal(t, "301", room.Number)

		_, total := m.Counts()
		assert.Equal(t, 5, total)
	})

	t.Run("update refetches", func(t *testing.T) {
		catalog := newFakeCatalog(testRooms...)
		m := newManager(t, catalog, Config{})

		current, err := m.Get(context.Background(), "1")
		require.NoError(t, err)

		in := models.InputFromRoom(*current)
		in.Price = 95
		in.Capacity = 1
		_, err = m.Update(context.Background(), "1", in)
		require.NoError(t, err)

		r, ok := roomByID(m.Filtered(), "1")
		require.True(t, ok)
		assert.Equal(t, 95.0, r.Price)
	})

	t.Run("get missing room", func(t *testing.T) {
		m := newManager(t, newFakeCatalog(), Config{})
		_, err := m.Get(context.Background(), "404")
		assert.Equal(t, client.KindNotFound, client.KindOf(err))
	})
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	m := newManager(t, catalog, Config{})

	_, err := m.List(context.Background())
	require.NoError(t, err)

	var asked models.Room
	deleted, err := m.Delete(context.Background(), testRooms[0], func(r models.Room) bool {
		asked = r
		return false
	})
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, "101", asked.Number)
	assert.Zero(t, catalog.writes.Load())

	deleted, err = m.Delete(context.Background(), testRooms[0], nil)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Zero(t, catalog.writes.Load())

	deleted, err = m.Delete(context.Background(), testRooms[0], func(models.Room) bool { return true })
	require.NoError(t, err)
	assert.True(t, deleted)

	_, total := m.Counts()
	assert.Equal(t, 3, total)
}

func TestSubscribe(t *testing.T) {
	catalog := newFakeCatalog(testRooms...)
	m := newManager(t, catalog, Config{})

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	initial := <-ch
	assert.Empty(t, initial.Rooms)

	_, err := m.List(context.Background())
	require.NoError(t, err)
	loaded := <-ch
	assert.Len(t, loaded.Rooms, 4)

	m.SetFilter(Filter{Floor: models.Ptr(1)})
	filtered := <-ch
	assert.Len(t, filtered.Rooms, 2)
}
