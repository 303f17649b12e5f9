package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/grandprix/internal/telemetry"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Config holds common client configuration
type Config struct {
	IdentityURL        string
	InventoryURL       string
	ReservationsURL    string
	MyReservationsPath string
	Timeout            time.Duration
	CacheDir           string
	Tracing            bool
	Logger             *zerolog.Logger
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		IdentityURL:        "http://localhost:8081",
		InventoryURL:       "http://localhost:8082",
		ReservationsURL:    "http://localhost:8083",
		MyReservationsPath: "/api/users/{id}/myreservations",
		Timeout:            30 * time.Second,
	}
}

// Clients holds the clients for the three backend services.
type Clients struct {
	Identity     *IdentityClient
	Inventory    *InventoryClient
	Reservations *ReservationsClient

	auth *AuthTransport
}

// New creates the service clients. tokens supplies the bearer token and is
// cleared when a backend rejects it.
func New(cfg Config, tokens TokenStore) *Clients {
	l := log.Logger
	if cfg.Logger != nil {
		l = *cfg.Logger
	}

	base := newBaseTransport(l, cfg.Tracing)
	auth := NewAuthTransport(tokens, base)
	lookupAuth := NewAuthTransport(tokens, newCachingTransport(cfg.CacheDir, base))
	// a rejected token on a lookup invalidates the session the same way
	lookupAuth.OnUnauthorized(auth.notify)

	httpClient := &http.Client{Transport: auth, Timeout: cfg.Timeout}
	lookupClient := &http.Client{Transport: lookupAuth, Timeout: cfg.Timeout}

	myPath := cfg.MyReservationsPath
	if myPath == "" {
		myPath = DefaultConfig().MyReservationsPath
	}

	return &Clients{
		Identity: &IdentityClient{
			svc: newService(ServiceIdentity, cfg.IdentityURL, httpClient, lookupClient),
		},
		Inventory: &InventoryClient{
			svc: newService(ServiceInventory, cfg.InventoryURL, httpClient, lookupClient),
		},
		Reservations: &ReservationsClient{
			svc:    newService(ServiceReservations, cfg.ReservationsURL, httpClient, lookupClient),
			myPath: myPath,
		},
		auth: auth,
	}
}

// OnUnauthorized registers fn to run after a backend rejected the stored token
// and the credentials were cleared.
func (c *Clients) OnUnauthorized(fn func()) {
	c.auth.OnUnauthorized(fn)
}

// service performs JSON calls against one backend.
type service struct {
	name    Service
	baseURL string
	http    *http.Client
	lookup  *http.Client
}

func newService(name Service, baseURL string, httpClient, lookup *http.Client) *service {
	return &service{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		lookup:  lookup,
	}
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	in     any
	out    any
	kind   callKind
	cached bool
}

func (s *service) do(ctx context.Context, c call) error {
	u := s.baseURL + c.path
	if len(c.query) > 0 {
		u += "?" + c.query.Encode()
	}

	var body io.Reader
	if c.in != nil {
		data, err := json.Marshal(c.in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", c.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", c.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := s.http
	if c.cached {
		hc = s.lookup
	}

	resp, err := hc.Do(req)
	if err != nil {
		err = transportError(ctx, c.op, err)
		if KindOf(err) == KindTransport {
			telemetry.RecordRequestError(ctx, string(s.name), KindTransport.String())
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return transportError(ctx, c.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := classify(s.name, c.op, c.kind, resp.StatusCode, data)
		telemetry.RecordRequestError(ctx, string(s.name), e.Kind.String())
		log.Debug().
			Str("service", string(s.name)).
			Str("op", c.op).
			Int("status", resp.StatusCode).
			Str("kind", e.Kind.String()).
			Msg("request failed")
		return e
	}

	if c.cached && fromCache(resp) {
		log.Debug().Str("service", string(s.name)).Str("path", c.path).Msg("served from cache")
	}

	if c.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, c.out); err != nil {
		return &Error{
			Kind:    KindServer,
			Op:      c.op,
			Status:  resp.StatusCode,
			Message: "the server returned an unreadable response",
			Err:     err,
		}
	}

	return nil
}

func idPath(format string, id fmt.Stringer) string {
	return fmt.Sprintf(format, url.PathEscape(id.String()))
}
