package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/grandprix/internal/availability"
	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/config"
	"github.com/wolfeidau/grandprix/internal/models"
)

type RoomsCmd struct {
	Type     string  `help:"Room type: single, double, suite, deluxe or standard."`
	Floor    string  `help:"Floor number."`
	MinPrice string  `help:"Minimum price per night."`
	MaxPrice string  `help:"Maximum price per night."`
	Wifi     bool    `help:"Only rooms with wifi."`
	AC       bool    `name:"ac" help:"Only rooms with air conditioning."`
	TV       bool    `name:"tv" help:"Only rooms with a TV."`
	Minibar  bool    `help:"Only rooms with a minibar."`
	Query    string  `short:"q" help:"Free text matched against number, type and description."`
	Page     int     `help:"Page number."`
	Limit    int     `help:"Page size."`
	Watch    bool    `short:"w" help:"Keep polling, press Enter to refresh now."`
	Interval float64 `help:"Poll interval in seconds, defaults to the configured interval."`
}

func (cmd *RoomsCmd) filter() (models.RoomFilter, error) {
	f := models.RoomFilter{
		Query: cmd.Query,
		Page:  cmd.Page,
		Limit: cmd.Limit,
	}
	if cmd.Type != "" {
		t, err := parseRoomType(cmd.Type)
		if err != nil {
			return f, err
		}
		f.Type = &t
	}
	if cmd.Floor != "" {
		n, err := strconv.Atoi(cmd.Floor)
		if err != nil {
			return f, client.NewValidationError("floor", "floor must be a whole number")
		}
		f.Floor = &n
	}
	var err error
	if f.MinPrice, err = parsePrice("min_price", cmd.MinPrice); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parsePrice("max_price", cmd.MaxPrice); err != nil {
		return f, err
	}
	if cmd.Wifi {
		f.HasWifi = models.Ptr(true)
	}
	if cmd.AC {
		f.HasAC = models.Ptr(true)
	}
	if cmd.TV {
		f.HasTV = models.Ptr(true)
	}
	if cmd.Minibar {
		f.HasMinibar = models.Ptr(true)
	}
	return f, nil
}

func parseRoomType(s string) (models.RoomType, error) {
	t := models.RoomType(strings.ToLower(s))
	if !slices.Contains(models.RoomTypes, t) {
		return "", client.NewValidationError("type", "type must be one of: single, double, suite, deluxe, standard")
	}
	return t, nil
}

func parseRoomStatus(s string) (models.RoomStatus, error) {
	st := models.RoomStatus(strings.ToLower(s))
	if !slices.Contains(models.RoomStatuses, st) {
		return "", client.NewValidationError("status", "status must be one of: available, occupied, maintenance, cleaning, reserved")
	}
	return st, nil
}

func parsePrice(field, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, client.NewValidationError(field, "price must be a number")
	}
	return &v, nil
}

func (cmd *RoomsCmd) Run(ctx context.Context, globals *Globals) error {
	interval, err := cmd.interval()
	if err != nil {
		return err
	}

	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/rooms"); err != nil {
		return err
	}

	filter, err := cmd.filter()
	if err != nil {
		return err
	}

	b := a.browser()
	defer b.Close()

	if !cmd.Watch {
		res, err := b.Search(ctx, filter)
		if err != nil {
			return err
		}
		printRooms(a.out, res)
		return nil
	}

	if err := availability.ValidateFilter(filter); err != nil {
		return err
	}

	if interval == 0 {
		interval = a.cfg.PollInterval
	}
	return cmd.watch(ctx, a, b, filter, interval)
}

// interval returns the requested poll interval, or zero when none was given.
func (cmd *RoomsCmd) interval() (time.Duration, error) {
	if cmd.Interval == 0 {
		return 0, nil
	}
	d := time.Duration(cmd.Interval * float64(time.Second))
	if d < config.MinPollInterval {
		return 0, client.NewValidationError("interval", fmt.Sprintf("interval must be at least %s", config.MinPollInterval))
	}
	return d, nil
}

func (cmd *RoomsCmd) watch(ctx context.Context, a *app, b *availability.Browser, filter models.RoomFilter, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// resuming from the background counts as becoming visible again
	cont := make(chan os.Signal, 1)
	signal.Notify(cont, syscall.SIGCONT)
	defer signal.Stop(cont)

	if err := b.SetFilter(filter); err != nil {
		return err
	}

	results, unsubscribe := b.Subscribe()
	defer unsubscribe()

	go func() {
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			b.RequestRefresh()
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, availability.PollConfig{Interval: interval})
	}()

	for {
		select {
		case <-ctx.Done():
			return <-done
		case err := <-done:
			return err
		case <-cont:
			b.Visible()
		case res, ok := <-results:
			if !ok {
				return <-done
			}
			// a blank result is the initial snapshot before the first poll
			if res.RefreshedAt.IsZero() && res.Err == nil {
				continue
			}
			fmt.Fprint(a.out, "\033[2J\033[H")
			printRooms(a.out, res)
			fmt.Fprintf(a.out, "\nRefreshing every %s, press Enter to refresh now, Ctrl-C to exit\n", interval)
		}
	}
}

func printRooms(out io.Writer, res availability.Result) {
	if res.Err != nil {
		fmt.Fprintf(out, "Search failed: %s\n", client.MessageOf(res.Err))
		if errors.Is(res.Err, availability.ErrStale) {
			return
		}
	}

	if res.Zero {
		fmt.Fprintln(out, "No rooms are available for this search")
		return
	}
	if len(res.Rooms) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tTYPE\tFLOOR\tCAPACITY\tPRICE\tAMENITIES")
	for _, r := range res.Rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\n",
			r.ID, r.Number, r.Type, r.Floor, r.Capacity, r.Price, strings.Join(r.Amenities(), ","))
	}
	if err := w.Flush(); err != nil {
		log.Warn().Err(err).Msg("failed to write rooms")
	}

	if !res.RefreshedAt.IsZero() {
		fmt.Fprintf(out, "\n%d rooms, updated %s\n", len(res.Rooms), res.RefreshedAt.Local().Format(time.TimeOnly))
	}
}
