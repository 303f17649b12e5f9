package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/grandprix/internal/booking"
	"github.com/wolfeidau/grandprix/internal/models"
)

type QuoteCmd struct {
	RoomID string `arg:"" help:"Room to price."`
	From   string `help:"Check-in date (YYYY-MM-DD)." required:""`
	To     string `help:"Check-out date (YYYY-MM-DD)." required:""`
}

func (cmd *QuoteCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/rooms/" + cmd.RoomID + "/reserve"); err != nil {
		return err
	}

	start, end, err := parseStay(cmd.From, cmd.To)
	if err != nil {
		return err
	}

	room, err := a.clients.Inventory.GetRoom(ctx, models.ID(cmd.RoomID))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Room:\t%s (%s)\n", room.Number, room.Type)
	fmt.Fprintf(w, "Price per night:\t%.2f\n", room.Price)
	fmt.Fprintf(w, "Nights:\t%d\n", max(booking.Nights(start, end), 0))
	fmt.Fprintf(w, "Total:\t%.2f\n", booking.Quote(*room, start, end))
	return w.Flush()
}

type ReserveCmd struct {
	RoomID   string `arg:"" help:"Room to reserve."`
	From     string `help:"Check-in date (YYYY-MM-DD)." required:""`
	To       string `help:"Check-out date (YYYY-MM-DD)." required:""`
	NoFollow bool   `help:"Do not show the reservation list afterwards."`
}

func (cmd *ReserveCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/rooms/" + cmd.RoomID + "/reserve"); err != nil {
		return err
	}

	start, end, err := parseStay(cmd.From, cmd.To)
	if err != nil {
		return err
	}

	room, err := a.clients.Inventory.GetRoom(ctx, models.ID(cmd.RoomID))
	if err != nil {
		return err
	}

	user := a.session.Snapshot().User
	wf := a.workflow()

	conf, err := wf.Create(ctx, user.ID, *room, start, end)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Reservation %s confirmed: room %s, %s to %s, %d nights, total %.2f\n",
		conf.Reservation.ID, conf.Room.Number, conf.Reservation.StartDate, conf.Reservation.EndDate, conf.Nights, conf.Total)

	if cmd.NoFollow {
		return nil
	}

	if _, err := a.enter(conf.NextView); err != nil {
		return err
	}
	if err := sleep(ctx, conf.RedirectAfter); err != nil {
		return nil
	}

	list, err := wf.ListMine(ctx, user.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	return printReservations(a.out, wf.Enrich(ctx, list))
}

type ReservationsCmd struct {
	List   ReservationsListCmd   `cmd:"" default:"1" help:"List your reservations."`
	Show   ReservationsShowCmd   `cmd:"" help:"Show a reservation."`
	Cancel ReservationsCancelCmd `cmd:"" help:"Cancel a reservation."`
}

type ReservationsListCmd struct{}

func (cmd *ReservationsListCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter(booking.ListView); err != nil {
		return err
	}

	wf := a.workflow()
	list, err := wf.ListMine(ctx, a.session.Snapshot().User.ID)
	if err != nil {
		return err
	}
	return printReservations(a.out, wf.Enrich(ctx, list))
}

type ReservationsShowCmd struct {
	ID string `arg:"" help:"Reservation ID."`
}

func (cmd *ReservationsShowCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter(booking.ListView); err != nil {
		return err
	}

	wf := a.workflow()
	r, err := wf.Get(ctx, models.ID(cmd.ID))
	if err != nil {
		return err
	}

	e := wf.Enrich(ctx, []models.Reservation{*r})[0]

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", e.ID)
	fmt.Fprintf(w, "Status:\t%s\n", e.Status)
	fmt.Fprintf(w, "Guest:\t%s\n", orDash(e.GuestName))
	fmt.Fprintf(w, "Email:\t%s\n", orDash(e.GuestEmail))
	fmt.Fprintf(w, "Room:\t%s\n", orDash(e.RoomNumber))
	fmt.Fprintf(w, "Dates:\t%s to %s\n", e.StartDate, e.EndDate)
	fmt.Fprintf(w, "Nights:\t%d\n", e.Nights)
	fmt.Fprintf(w, "Total:\t%s\n", money(e.Total))
	if e.CancelReason != "" {
		fmt.Fprintf(w, "Cancel reason:\t%s\n", e.CancelReason)
	}
	fmt.Fprintf(w, "Cancelable:\t%t\n", e.Cancelable)
	return w.Flush()
}

type ReservationsCancelCmd struct {
	ID     string `arg:"" help:"Reservation ID."`
	Reason string `help:"Why the reservation is canceled." required:""`
}

func (cmd *ReservationsCancelCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter(booking.ListView); err != nil {
		return err
	}

	wf := a.workflow()
	r, err := wf.Get(ctx, models.ID(cmd.ID))
	if err != nil {
		return err
	}

	list, err := wf.Cancel(ctx, a.session.Snapshot().User.ID, *r, cmd.Reason)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Reservation %s canceled\n\n", r.ID)
	return printReservations(a.out, wf.Enrich(ctx, list))
}

func parseStay(from, to string) (start, end time.Time, err error) {
	if start, err = booking.ParseDate("start_date", from); err != nil {
		return
	}
	end, err = booking.ParseDate("end_date", to)
	return
}

func printReservations(out io.Writer, entries []booking.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "You have no reservations")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROOM\tGUEST\tFROM\tTO\tNIGHTS\tTOTAL\tSTATUS\tCANCELABLE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%t\n",
			e.ID, orDash(e.RoomNumber), orDash(e.GuestName), e.StartDate, e.EndDate,
			e.Nights, money(e.Total), e.Status, e.Cancelable)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
