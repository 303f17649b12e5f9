package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/grandprix/internal/availability"
	"github.com/wolfeidau/grandprix/internal/booking"
	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/config"
	"github.com/wolfeidau/grandprix/internal/credentials"
	"github.com/wolfeidau/grandprix/internal/guard"
	"github.com/wolfeidau/grandprix/internal/inventory"
	"github.com/wolfeidau/grandprix/internal/logger"
	"github.com/wolfeidau/grandprix/internal/session"
	"github.com/wolfeidau/grandprix/internal/telemetry"
)

// Globals are the flags shared by every command.
type Globals struct {
	Debug           bool          `help:"Enable debug logging." env:"GRANDPRIX_DEBUG"`
	Config          string        `help:"Path to a YAML config file." env:"GRANDPRIX_CONFIG" type:"path"`
	CredentialsDir  string        `help:"Directory holding the stored session." env:"GRANDPRIX_CREDENTIALS_DIR" type:"path"`
	CacheDir        string        `help:"Directory for the lookup cache, in memory when empty." env:"GRANDPRIX_CACHE_DIR" type:"path"`
	IdentityURL     string        `help:"Identity service base URL." env:"GRANDPRIX_IDENTITY_URL"`
	InventoryURL    string        `help:"Inventory service base URL." env:"GRANDPRIX_INVENTORY_URL"`
	ReservationsURL string        `help:"Reservations service base URL." env:"GRANDPRIX_RESERVATIONS_URL"`
	Timeout         time.Duration `help:"Per request timeout." env:"GRANDPRIX_TIMEOUT"`
	Tracing         bool          `help:"Export traces and metrics over OTLP." env:"GRANDPRIX_TRACING"`

	Version string    `kong:"-"`
	Out     io.Writer `kong:"-"`
	In      io.Reader `kong:"-"`
}

// app is the wired client for a single command invocation.
type app struct {
	cfg      config.Config
	store    *credentials.Store
	clients  *client.Clients
	session  *session.Manager
	table    *guard.Table
	nav      *guard.Navigator
	out      io.Writer
	in       io.Reader
	shutdown telemetry.ShutdownFunc
}

func (g *Globals) open(ctx context.Context) (*app, error) {
	log.Logger = logger.Setup(g.Debug)
	if !g.Debug {
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	}

	store, err := credentials.NewStore(g.CredentialsDir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(g.Config, store.Dir())
	if err != nil {
		return nil, err
	}
	cfg.Apply(config.Overrides{
		IdentityURL:     g.IdentityURL,
		InventoryURL:    g.InventoryURL,
		ReservationsURL: g.ReservationsURL,
		CredentialsDir:  g.CredentialsDir,
		CacheDir:        g.CacheDir,
		RequestTimeout:  g.Timeout,
		Tracing:         g.Tracing,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.CredentialsDir != "" && cfg.CredentialsDir != store.Dir() {
		if store, err = credentials.NewStore(cfg.CredentialsDir); err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg:   cfg,
		store: store,
		out:   g.Out,
		in:    g.In,
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.in == nil {
		a.in = os.Stdin
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
			ServiceName: "grandprix-cli",
			Version:     g.Version,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		a.shutdown = shutdown
	}

	l := log.Logger
	a.clients = client.New(client.Config{
		IdentityURL:        cfg.Services.Identity,
		InventoryURL:       cfg.Services.Inventory,
		ReservationsURL:    cfg.Services.Reservations,
		MyReservationsPath: cfg.Services.MyReservationsPath,
		Timeout:            cfg.RequestTimeout,
		CacheDir:           cfg.CacheDir,
		Tracing:            cfg.Telemetry.Enabled,
		Logger:             &l,
	}, store)

	a.session = session.NewManager(a.clients.Identity, store)
	a.clients.OnUnauthorized(a.session.Invalidate)
	a.session.Initialize(ctx)

	a.table = guard.NewTable(guard.DefaultRoutes)
	a.nav = guard.NewNavigator(a.table, store, cfg.DefaultView)

	return a, nil
}

func (a *app) Close() {
	if a.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to flush telemetry")
	}
}

var (
	errSignedOut = errors.New("not signed in, run: grandprix-cli login")
	errForbidden = errors.New("this view needs the admin role")
)

// enter applies the view guard to path, the same check every screen performs
// before it renders.
func (a *app) enter(path string) (guard.Navigation, error) {
	nav := a.nav.Navigate(a.session.Snapshot(), path)
	switch nav.Outcome {
	case guard.Allowed:
		return nav, nil
	case guard.DeniedUnauth:
		return nav, errSignedOut
	case guard.DeniedRole:
		return nav, fmt.Errorf("%w, redirected to %s", errForbidden, nav.Redirect)
	default:
		return nav, fmt.Errorf("session is still loading")
	}
}

func (a *app) workflow() *booking.Workflow {
	return booking.New(a.clients.Reservations, a.clients.Identity, a.clients.Inventory, booking.Config{
		CancelableStatuses: a.cfg.CancelableStatuses,
		RedirectDelay:      a.cfg.RedirectDelay,
	})
}

func (a *app) browser() *availability.Browser {
	return availability.NewBrowser(a.clients.Inventory)
}

func (a *app) catalog() *inventory.Manager {
	return inventory.NewManager(a.clients.Inventory, inventory.Config{
		ReconcileDelay: a.cfg.ReconcileDelay,
		NoticeTTL:      a.cfg.NoticeTTL,
	})
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
