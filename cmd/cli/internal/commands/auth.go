package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/grandprix/internal/credentials"
	"github.com/wolfeidau/grandprix/internal/models"
)

type LoginCmd struct {
	Identifier string `arg:"" help:"Username or email address."`
	Password   string `help:"Password, read from stdin when empty." env:"GRANDPRIX_PASSWORD"`
}

func (cmd *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	password := cmd.Password
	if password == "" {
		fmt.Fprint(a.out, "Password: ")
		if password, err = readLine(a); err != nil {
			return err
		}
	}

	user, err := a.session.Login(ctx, cmd.Identifier, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", user.FullName(), user.Role)
	next := a.nav.AfterLogin()
	fmt.Fprintf(a.out, "Continue with: grandprix-cli %s\n", a.commandFor(next))
	return nil
}

type RegisterCmd struct {
	Username             string `help:"Username, at least 3 characters." required:""`
	Email                string `help:"Email address." required:""`
	FirstName            string `help:"First name." required:""`
	LastName             string `help:"Last name." required:""`
	Password             string `help:"Password, at least 6 characters." env:"GRANDPRIX_PASSWORD" required:""`
	PasswordConfirmation string `help:"Repeat the password." env:"GRANDPRIX_PASSWORD_CONFIRMATION" required:""`
}

func (cmd *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.enter("/register"); err != nil {
		return err
	}

	user, err := a.session.Register(ctx, models.RegisterRequest{
		Username:             cmd.Username,
		Email:                cmd.Email,
		FirstName:            cmd.FirstName,
		LastName:             cmd.LastName,
		Password:             cmd.Password,
		PasswordConfirmation: cmd.PasswordConfirmation,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Account created, signed in as %s\n", user.Username)
	return nil
}

type LogoutCmd struct{}

func (cmd *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.Logout(); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Signed out")
	return nil
}

type WhoamiCmd struct{}

func (cmd *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.store.Load()
	if errors.Is(err, credentials.ErrNoCredentials) {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", creds.User.ID)
	fmt.Fprintf(w, "Username:\t%s\n", creds.User.Username)
	fmt.Fprintf(w, "Name:\t%s\n", creds.User.FullName())
	fmt.Fprintf(w, "Email:\t%s\n", creds.User.Email)
	fmt.Fprintf(w, "Role:\t%s\n", creds.User.Role)
	fmt.Fprintf(w, "Token:\t%s\n", credentials.Fingerprint(creds.Token))

	// expiry is informational only, the backends decide
	if claims, err := credentials.DecodeClaims(creds.Token); err == nil {
		if exp := claims.ExpiresAtTime(); !exp.IsZero() {
			state := "valid"
			if claims.Expired(time.Now()) {
				state = "expired"
			}
			fmt.Fprintf(w, "Expires:\t%s (%s)\n", exp.Local().Format(time.RFC1123), state)
		}
	}

	return w.Flush()
}

type NavigateCmd struct {
	Path string `arg:"" help:"View path, for example /admin/rooms."`
}

func (cmd *NavigateCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	nav := a.nav.Navigate(a.session.Snapshot(), cmd.Path)

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "View:\t%s (%s)\n", nav.Path, nav.Route.Name)
	fmt.Fprintf(w, "Outcome:\t%s\n", nav.Outcome)
	if nav.Redirect != "" {
		fmt.Fprintf(w, "Redirect:\t%s\n", nav.Redirect)
	}
	if nav.ReturnTo != "" {
		fmt.Fprintf(w, "Return to:\t%s\n", nav.ReturnTo)
	}
	target := nav.Path
	if nav.Redirect != "" {
		target = nav.Redirect
	}
	fmt.Fprintf(w, "Command:\tgrandprix-cli %s\n", a.commandFor(target))
	return w.Flush()
}

// viewCommands maps route names to the command that renders them.
var viewCommands = map[string]string{
	"login":           "login <username>",
	"register":        "register",
	"home":            "rooms",
	"rooms":           "rooms",
	"reserve":         "reserve {id} --from <date> --to <date>",
	"my-reservations": "reservations list",
	"admin-rooms":     "admin rooms list",
	"admin-room-new":  "admin rooms create",
	"admin-room-edit": "admin rooms show {id}",
	"admin-users":     "admin users",
}

func (a *app) commandFor(path string) string {
	route, params, ok := a.table.Resolve(path)
	if !ok {
		return viewCommands["home"]
	}
	c, ok := viewCommands[route.Name]
	if !ok {
		return viewCommands["home"]
	}
	for k, v := range params {
		c = strings.ReplaceAll(c, "{"+k+"}", v)
	}
	return c
}

func readLine(a *app) (string, error) {
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
