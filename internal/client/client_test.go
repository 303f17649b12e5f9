package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/grandprix/internal/models"
)

type memTokens struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (m *memTokens) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *memTokens) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.cleared++
	return nil
}

func (m *memTokens) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

func newTestClients(t *testing.T, r chi.Router, tokens TokenStore) *Clients {
	t.Helper()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.IdentityURL = srv.URL
	cfg.InventoryURL = srv.URL
	cfg.ReservationsURL = srv.URL
	cfg.Timeout = 5 * time.Second

	return New(cfg, tokens)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestIdentity_Login(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jdoe", req["username_or_email"])
		assert.Equal(t, "secret1", req["password"])

		writeJSON(w, http.StatusOK, map[string]any{
			"login": map[string]any{
				"token": "tok-1",
				"user":  map[string]any{"id": 7, "username": "jdoe", "role": "normal"},
			},
		})
	})

	c := newTestClients(t, r, &memTokens{})

	res, err := c.Identity.Login(context.Background(), models.LoginRequest{Identifier: "jdoe", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, models.ID("7"), res.User.ID)
	assert.Equal(t, models.RoleNormal, res.User.Role)
}

func TestIdentity_LoginRejectedKeepsCredentials(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	})

	tokens := &memTokens{token: "existing"}
	c := newTestClients(t, r, tokens)

	notified := false
	c.OnUnauthorized(func() { notified = true })

	_, err := c.Identity.Login(context.Background(), models.LoginRequest{Identifier: "jdoe", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, KindAuthentication, KindOf(err))
	assert.Equal(t, 0, tokens.clearCount())
	assert.Equal(t, "existing", tokens.Token())
	assert.False(t, notified)
}

func TestAuthTransport_UnauthorizedClearsSession(t *testing.T) {
	tests := []struct {
		name    string
		call    func(c *Clients) error
		wantMsg string
	}{
		{
			name: "identity lookup",
			call: func(c *Clients) error {
				_, err := c.Identity.GetUser(context.Background(), "7")
				return err
			},
			wantMsg: "your session has expired, please sign in again",
		},
		{
			name: "reservation list",
			call: func(c *Clients) error {
				_, err := c.Reservations.ListForUser(context.Background(), "7")
				return err
			},
			wantMsg: "you are not permitted to perform this action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer expired", r.Header.Get("Authorization"))
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
			})

			tokens := &memTokens{token: "expired"}
			c := newTestClients(t, r, tokens)

			notified := 0
			c.OnUnauthorized(func() { notified++ })

			err := tt.call(c)
			require.Error(t, err)
			assert.Equal(t, KindAuthorization, KindOf(err))
			assert.Equal(t, tt.wantMsg, MessageOf(err))
			assert.Equal(t, 1, tokens.clearCount())
			assert.Equal(t, 1, notified)
		})
	}
}

func TestAuthTransport_ForbiddenKeepsSession(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/admin/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
	})

	tokens := &memTokens{token: "tok"}
	c := newTestClients(t, r, tokens)

	_, err := c.Inventory.AdminListRooms(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))
	assert.Equal(t, 0, tokens.clearCount())
}

func TestRequestHeaders(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/reservations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Len(t, r.Header.Get("X-Request-ID"), 36)

		var req models.CreateReservationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.ID("3"), req.RoomID)
		assert.Equal(t, "2025-03-01", req.StartDate)

		writeJSON(w, http.StatusCreated, map[string]any{
			"reservation": map[string]any{"id": "r-1", "room_id": 3, "user_id": 7, "status": "active"},
		})
	})

	c := newTestClients(t, r, &memTokens{token: "tok"})

	res, err := c.Reservations.Create(context.Background(), models.CreateReservationRequest{
		UserID: "7", RoomID: "3", StartDate: "2025-03-01", EndDate: "2025-03-03",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ID("r-1"), res.ID)
	assert.Equal(t, models.ReservationStatusActive, res.Status)
}

func TestInventory_ListAvailableEncodesFilter(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/rooms/available", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "suite", q.Get("type"))
		assert.Equal(t, "2", q.Get("floor"))
		assert.Equal(t, "true", q.Get("has_wifi"))
		assert.False(t, q.Has("max_price"))
		assert.False(t, q.Has("has_tv"))

		writeJSON(w, http.StatusOK, models.RoomList{
			Rooms: []models.Room{{ID: "1", Number: "201", Type: models.RoomTypeSuite, Status: models.RoomStatusAvailable}},
			Total: 1,
		})
	})

	c := newTestClients(t, r, &memTokens{})

	list, err := c.Inventory.ListAvailable(context.Background(), models.RoomFilter{
		Type:    models.Ptr(models.RoomTypeSuite),
		Floor:   models.Ptr(2),
		HasWifi: models.Ptr(true),
		HasTV:   models.Ptr(false),
	})
	require.NoError(t, err)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, "201", list.Rooms[0].Number)
}

func TestInventory_AdminListRoomsFollowsPages(t *testing.T) {
	const total = 250
	var (
		mu    sync.Mutex
		pages []string
	)

	r := chi.NewRouter()
	r.Get("/api/v1/admin/rooms", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		pages = append(pages, q.Get("page"))
		mu.Unlock()
		page, err := strconv.Atoi(q.Get("page"))
		require.NoError(t, err)
		limit, err := strconv.Atoi(q.Get("limit"))
		require.NoError(t, err)

		list := models.RoomList{Total: total, Page: page, Limit: limit}
		for i := (page - 1) * limit; i < min(page*limit, total); i++ {
			list.Rooms = append(list.Rooms, models.Room{ID: models.ID(strconv.Itoa(i + 1)), Number: strconv.Itoa(100 + i)})
		}
		writeJSON(w, http.StatusOK, list)
	})

	c := newTestClients(t, r, &memTokens{token: "tok"})

	list, err := c.Inventory.AdminListRooms(context.Background())
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"1", "2", "3"}, pages)
	mu.Unlock()
	require.Len(t, list.Rooms, total)
	assert.Equal(t, int64(total), list.Total)
	assert.Equal(t, models.ID("1"), list.Rooms[0].ID)
	assert.Equal(t, models.ID("250"), list.Rooms[total-1].ID)
}

func TestInventory_AdminListRoomsStopsOnShortPage(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)

	r := chi.NewRouter()
	r.Get("/api/v1/admin/rooms", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		// no total reported and fewer rooms than the server page size
		writeJSON(w, http.StatusOK, models.RoomList{
			Rooms: []models.Room{{ID: "1"}, {ID: "2"}},
			Limit: 20,
		})
	})

	c := newTestClients(t, r, &memTokens{token: "tok"})

	list, err := c.Inventory.AdminListRooms(context.Background())
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	require.Len(t, list.Rooms, 2)
	assert.Equal(t, int64(2), list.Total)
}

func TestInventory_SetRoomStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Patch("/api/v1/admin/rooms/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12", chi.URLParam(r, "id"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"cleaning"}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClients(t, r, &memTokens{token: "tok"})
	require.NoError(t, c.Inventory.SetRoomStatus(context.Background(), "12", models.RoomStatusCleaning))
}

func TestReservations_ListForUserAndCancel(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/users/{id}/myreservations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", chi.URLParam(r, "id"))
		writeJSON(w, http.StatusOK, map[string]any{
			"reservations": []map[string]any{{"id": 2, "status": "active"}, {"id": 1, "status": "canceled"}},
		})
	})
	r.Delete("/api/reservations/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req models.CancelReservationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "change of plans", req.Reason)
		writeJSON(w, http.StatusOK, map[string]string{"message": "canceled"})
	})

	c := newTestClients(t, r, &memTokens{token: "tok"})

	list, err := c.Reservations.ListForUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, c.Reservations.Cancel(context.Background(), "2", "change of plans"))
}

func TestReservations_CustomListPath(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/reservations/users/{id}/myreservations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"reservations": []any{}})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.ReservationsURL = srv.URL
	cfg.MyReservationsPath = "/api/reservations/users/{id}/myreservations"
	c := New(cfg, &memTokens{token: "tok"})

	list, err := c.Reservations.ListForUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	cfg := DefaultConfig()
	cfg.InventoryURL = srv.URL
	c := New(cfg, &memTokens{})

	_, err := c.Inventory.ListRooms(context.Background(), models.RoomFilter{})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestCanceledContextIsNotClassified(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.RoomList{})
	})
	c := newTestClients(t, r, &memTokens{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Inventory.ListRooms(ctx, models.RoomFilter{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindUnknown, KindOf(err))
}
