package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/grandprix/cmd/cli/internal/commands"
	"github.com/wolfeidau/grandprix/internal/config"
)

var (
	version = "dev"
	cli     struct {
		commands.Globals `embed:""`

		Login        commands.LoginCmd        `cmd:"" help:"Sign in."`
		Register     commands.RegisterCmd     `cmd:"" help:"Create an account and sign in."`
		Logout       commands.LogoutCmd       `cmd:"" help:"Sign out and forget the stored session."`
		Whoami       commands.WhoamiCmd       `cmd:"" help:"Show the signed in user."`
		Rooms        commands.RoomsCmd        `cmd:"" help:"Browse available rooms."`
		Quote        commands.QuoteCmd        `cmd:"" help:"Price a stay."`
		Reserve      commands.ReserveCmd      `cmd:"" help:"Reserve a room."`
		Reservations commands.ReservationsCmd `cmd:"" help:"Manage your reservations."`
		Admin        commands.AdminCmd        `cmd:"" help:"Administer rooms and users."`
		Navigate     commands.NavigateCmd     `cmd:"" help:"Check access to a view path."`
		Version      kong.VersionFlag         `help:"Print the version."`
	}
)

func main() {
	// .env values feed the env tags below, so they must load before parsing
	if err := config.LoadEnv(".env"); err != nil {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("grandprix-cli"),
		kong.Description("Hotel booking client."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	globals := cli.Globals
	globals.Version = version
	err := cmd.Run(&globals)
	cmd.FatalIfErrorf(err)
}
