package guard

import (
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/grandprix/internal/session"
)

// ReturnStore remembers where to resume after signing in.
type ReturnStore interface {
	SaveReturnTo(location string) error
	TakeReturnTo() (string, bool)
}

// Navigator applies the guard to view changes.
type Navigator struct {
	table       *Table
	returns     ReturnStore
	defaultPath string
}

// NewNavigator creates a Navigator. Unknown paths go to defaultPath.
func NewNavigator(table *Table, returns ReturnStore, defaultPath string) *Navigator {
	if defaultPath == "" {
		defaultPath = DefaultPath
	}
	return &Navigator{table: table, returns: returns, defaultPath: defaultPath}
}

// Navigation is the outcome of moving to a path.
type Navigation struct {
	Decision
	Route  Route
	Params map[string]string
	// Path is the location that will render, after any fallback.
	Path string
}

// Navigate resolves path and evaluates access to it for state. An
// unauthenticated denial remembers the path for AfterLogin.
func (n *Navigator) Navigate(state session.State, path string) Navigation {
	route, params, ok := n.table.Resolve(path)
	if !ok {
		log.Debug().Str("path", path).Str("fallback", n.defaultPath).Msg("unknown view")

		if _, _, known := n.table.Resolve(n.defaultPath); !known || path == n.defaultPath {
			return Navigation{Decision: Decision{Outcome: Allowed}, Path: n.defaultPath}
		}

		nav := n.Navigate(state, n.defaultPath)
		if nav.Outcome == Allowed {
			nav.Redirect = n.defaultPath
		}
		return nav
	}

	nav := Navigation{Route: route, Params: params, Path: path}
	if route.Access == Public {
		nav.Decision = Decision{Outcome: Allowed}
		return nav
	}

	nav.Decision = Evaluate(state, route.RequiredRole(), path)
	if nav.Outcome == DeniedUnauth && n.returns != nil {
		if err := n.returns.SaveReturnTo(path); err != nil {
			log.Warn().Err(err).Msg("failed to remember return location")
		}
	}

	return nav
}

// AfterLogin returns the remembered location, or the default, and forgets it.
func (n *Navigator) AfterLogin() string {
	if n.returns != nil {
		if loc, ok := n.returns.TakeReturnTo(); ok && loc != "" {
			return loc
		}
	}
	return n.defaultPath
}
