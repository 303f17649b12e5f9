package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/inventory"
	"github.com/wolfeidau/grandprix/internal/models"
)

type AdminCmd struct {
	Rooms AdminRoomsCmd `cmd:"" help:"Manage the room catalog."`
	Users AdminUsersCmd `cmd:"" help:"List registered users."`
}

type AdminRoomsCmd struct {
	List   AdminRoomsListCmd   `cmd:"" default:"1" help:"List the catalog."`
	Show   AdminRoomsShowCmd   `cmd:"" help:"Show a room."`
	Status AdminRoomsStatusCmd `cmd:"" help:"Change the status of a room."`
	Create AdminRoomsCreateCmd `cmd:"" help:"Add a room."`
	Update AdminRoomsUpdateCmd `cmd:"" help:"Edit a room."`
	Delete AdminRoomsDeleteCmd `cmd:"" help:"Delete a room."`
}

type AdminRoomsListCmd struct {
	Type     string  `help:"Room type."`
	Status   string  `help:"Room status."`
	Floor    int     `help:"Floor number."`
	MaxPrice float64 `help:"Maximum price per night."`
}

func (cmd *AdminRoomsListCmd) filter() (inventory.Filter, error) {
	var f inventory.Filter
	if cmd.Type != "" {
		t, err := parseRoomType(cmd.Type)
		if err != nil {
			return f, err
		}
		f.Type = &t
	}
	if cmd.Status != "" {
		s, err := parseRoomStatus(cmd.Status)
		if err != nil {
			return f, err
		}
		f.Status = &s
	}
	if cmd.Floor != 0 {
		f.Floor = models.Ptr(cmd.Floor)
	}
	if cmd.MaxPrice > 0 {
		f.MaxPrice = models.Ptr(cmd.MaxPrice)
	}
	return f, nil
}

func (cmd *AdminRoomsListCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/admin/rooms"); err != nil {
		return err
	}

	f, err := cmd.filter()
	if err != nil {
		return err
	}

	m := a.catalog()
	defer m.Close()

	if _, err := m.List(ctx); err != nil {
		return err
	}
	m.SetFilter(f)

	printCatalog(a.out, m.Filtered())
	shown, total := m.Counts()
	fmt.Fprintf(a.out, "\nShowing %d of %d rooms\n", shown, total)
	return nil
}

type AdminRoomsShowCmd struct {
	ID string `arg:"" help:"Room ID."`
}

func (cmd *AdminRoomsShowCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/admin/rooms/" + cmd.ID); err != nil {
		return err
	}

	m := a.catalog()
	defer m.Close()

	room, err := m.Get(ctx, models.ID(cmd.ID))
	if err != nil {
		return err
	}
	return printRoom(a.out, room)
}

type AdminRoomsStatusCmd struct {
	ID     string `arg:"" help:"Room ID."`
	Status string `arg:"" help:"New status: available, occupied, maintenance, cleaning or reserved."`
}

func (cmd *AdminRoomsStatusCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/admin/rooms"); err != nil {
		return err
	}

	status, err := parseRoomStatus(cmd.Status)
	if err != nil {
		return err
	}

	m := a.catalog()
	defer m.Close()

	if _, err := m.List(ctx); err != nil {
		return err
	}

	states, unsubscribe := m.Subscribe()
	defer unsubscribe()

	changed := time.Now()
	if err := m.SetStatus(ctx, models.ID(cmd.ID), status); err != nil {
		return err
	}
	if n, ok := m.Notice(); ok {
		fmt.Fprintln(a.out, n.Message)
	}

	// wait for the scheduled refetch so the table reflects the server
	deadline := time.NewTimer(a.cfg.ReconcileDelay + a.cfg.RequestTimeout)
	defer deadline.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			break wait
		case s, ok := <-states:
			if !ok || s.Loaded.After(changed) {
				break wait
			}
		}
	}

	for _, r := range m.Filtered() {
		if r.ID == models.ID(cmd.ID) {
			fmt.Fprintln(a.out)
			printCatalog(a.out, []models.Room{r})
		}
	}
	return nil
}

// RoomFlags are the editable fields of a room.
type RoomFlags struct {
	Number      string   `help:"Room number."`
	Type        string   `help:"Room type: single, double, suite, deluxe or standard."`
	Price       float64  `help:"Price per night."`
	Capacity    int      `help:"Number of guests."`
	Floor       int      `help:"Floor number."`
	Description string   `help:"Description."`
	Amenities   []string `help:"Amenities: wifi, ac, tv, minibar." sep:","`
}

// apply copies the set flags onto in.
func (f RoomFlags) apply(in *models.RoomInput, replaceAmenities bool) error {
	if f.Number != "" {
		in.Number = f.Number
	}
	if f.Type != "" {
		t, err := parseRoomType(f.Type)
		if err != nil {
			return err
		}
		in.Type = t
	}
	if f.Price != 0 {
		in.Price = f.Price
	}
	if f.Capacity != 0 {
		in.Capacity = f.Capacity
	}
	if f.Floor != 0 {
		in.Floor = f.Floor
	}
	if f.Description != "" {
		in.Description = f.Description
	}
	if !replaceAmenities && len(f.Amenities) == 0 {
		return nil
	}

	in.HasWifi, in.HasAC, in.HasTV, in.HasMinibar = false, false, false, false
	for _, a := range f.Amenities {
		switch strings.ToLower(strings.TrimSpace(a)) {
		case "wifi":
			in.HasWifi = true
		case "ac":
			in.HasAC = true
		case "tv":
			in.HasTV = true
		case "minibar":
			in.HasMinibar = true
		case "":
		default:
			return client.NewValidationError("amenities", "unknown amenity "+a)
		}
	}
	return nil
}

type AdminRoomsCreateCmd struct {
	RoomFlags `embed:""`
}

func (cmd *AdminRoomsCreateCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/admin/rooms/new"); err != nil {
		return err
	}

	in := models.RoomInput{Capacity: 1, Floor: 1}
	if err := cmd.apply(&in, true); err != nil {
		return err
	}

	m := a.catalog()
	defer m.Close()

	room, err := m.Create(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Room %s created with ID %s\n", room.Number, room.ID)
	return nil
}

type AdminRoomsUpdateCmd struct {
	ID        string `arg:"" help:"Room ID."`
	RoomFlags `embed:""`
}

func (cmd *AdminRoomsUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/admin/rooms/" + cmd.ID); err != nil {
		return err
	}

	m := a.catalog()
	defer m.Close()

	current, err := m.Get(ctx, models.ID(cmd.ID))
	if err != nil {
		return err
	}

	in := models.InputFromRoom(*current)
	if err := cmd.apply(&in, false); err != nil {
		return err
	}

	room, err := m.Update(ctx, current.ID, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Room %s updated\n", room.Number)
	return nil
}

type AdminRoomsDeleteCmd struct {
	ID  string `arg:"" help:"Room ID."`
	Yes bool   `short:"y" help:"Do not ask for confirmation."`
}

func (cmd *AdminRoomsDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/admin/rooms/" + cmd.ID); err != nil {
		return err
	}

	m := a.catalog()
	defer m.Close()

	room, err := m.Get(ctx, models.ID(cmd.ID))
	if err != nil {
		return err
	}

	confirm := func(r models.Room) bool {
		if cmd.Yes {
			return true
		}
		fmt.Fprintf(a.out, "Delete room %s? [y/N] ", r.Number)
		answer, err := readLine(a)
		if err != nil {
			return false
		}
		answer = strings.ToLower(answer)
		return answer == "y" || answer == "yes"
	}

	deleted, err := m.Delete(ctx, *room, confirm)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintln(a.out, "Nothing deleted")
		return nil
	}

	fmt.Fprintf(a.out, "Room %s deleted\n", room.Number)
	return nil
}

type AdminUsersCmd struct{}

func (cmd *AdminUsersCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/admin/users"); err != nil {
		return err
	}

	users, err := a.clients.Identity.ListUsers(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.FullName(), u.Email, u.Role)
	}
	return w.Flush()
}

func printCatalog(out io.Writer, rooms []models.Room) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tTYPE\tSTATUS\tFLOOR\tCAPACITY\tPRICE")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.2f\n", r.ID, r.Number, r.Type, r.Status, r.Floor, r.Capacity, r.Price)
	}
	_ = w.Flush()
}

func printRoom(out io.Writer, r *models.Room) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", r.ID)
	fmt.Fprintf(w, "Number:\t%s\n", r.Number)
	fmt.Fprintf(w, "Type:\t%s\n", r.Type)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	fmt.Fprintf(w, "Floor:\t%d\n", r.Floor)
	fmt.Fprintf(w, "Capacity:\t%d\n", r.Capacity)
	fmt.Fprintf(w, "Price:\t%s\n", strconv.FormatFloat(r.Price, 'f', 2, 64))
	fmt.Fprintf(w, "Amenities:\t%s\n", orDash(strings.Join(r.Amenities(), ", ")))
	fmt.Fprintf(w, "Description:\t%s\n", orDash(r.Description))
	return w.Flush()
}
