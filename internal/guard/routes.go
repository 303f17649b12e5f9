package guard

import (
	"net/url"
	"strings"

	"github.com/wolfeidau/grandprix/internal/models"
)

// Access is the protection level of a route.
type Access int

const (
	Public Access = iota
	Authenticated
	Admin
)

// Route is a view path pattern. Segments starting with ':' capture a parameter.
type Route struct {
	Pattern string
	Access  Access
	Name    string
}

// RequiredRole returns the role a route needs, empty for any signed in user.
func (r Route) RequiredRole() models.Role {
	if r.Access == Admin {
		return models.RoleAdmin
	}
	return ""
}

// DefaultRoutes is the view table of the booking client.
var DefaultRoutes = []Route{
	{Pattern: "/login", Access: Public, Name: "login"},
	{Pattern: "/register", Access: Public, Name: "register"},
	{Pattern: "/", Access: Authenticated, Name: "home"},
	{Pattern: "/rooms", Access: Authenticated, Name: "rooms"},
	{Pattern: "/rooms/:id/reserve", Access: Authenticated, Name: "reserve"},
	{Pattern: "/my-reservations", Access: Authenticated, Name: "my-reservations"},
	{Pattern: "/admin/rooms", Access: Admin, Name: "admin-rooms"},
	{Pattern: "/admin/rooms/new", Access: Admin, Name: "admin-room-new"},
	{Pattern: "/admin/rooms/:id", Access: Admin, Name: "admin-room-edit"},
	{Pattern: "/admin/users", Access: Admin, Name: "admin-users"},
}

// Table resolves view paths to routes.
type Table struct {
	routes []Route
}

// NewTable builds a table. Earlier routes win when more than one matches.
func NewTable(routes []Route) *Table {
	return &Table{routes: routes}
}

// Resolve matches path against the table, ignoring any query string.
func (t *Table) Resolve(path string) (Route, map[string]string, bool) {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}

	segs := split(path)
	for _, r := range t.routes {
		if params, ok := match(split(r.Pattern), segs); ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

func match(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}

	params := map[string]string{}
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if segs[i] == "" {
				return nil, false
			}
			params[p[1:]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
