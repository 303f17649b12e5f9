package guard

import (
	"github.com/wolfeidau/grandprix/internal/models"
	"github.com/wolfeidau/grandprix/internal/session"
)

const (
	LoginPath   = "/login"
	DefaultPath = "/"
)

// Outcome is the result of evaluating access to a view.
type Outcome int

const (
	// Pending means the session is still loading: render nothing, do not redirect.
	Pending Outcome = iota
	// Allowed means the view may render.
	Allowed
	// DeniedUnauth means no user is signed in.
	DeniedUnauth
	// DeniedRole means the signed in user lacks the required role.
	DeniedRole
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Allowed:
		return "allowed"
	case DeniedUnauth:
		return "denied_unauthenticated"
	case DeniedRole:
		return "denied_role"
	default:
		return "unknown"
	}
}

// Decision tells the caller whether to render and, if not, where to go.
type Decision struct {
	Outcome  Outcome
	Redirect string
	// ReturnTo is the location to resume after signing in.
	ReturnTo string
}

// Evaluate decides whether location may render for state. An empty
// requiredRole only requires a signed in user.
func Evaluate(state session.State, requiredRole models.Role, location string) Decision {
	switch {
	case state.Loading:
		return Decision{Outcome: Pending}
	case !state.Authenticated():
		return Decision{Outcome: DeniedUnauth, Redirect: LoginPath, ReturnTo: location}
	case requiredRole != "" && state.User.Role != requiredRole:
		return Decision{Outcome: DeniedRole, Redirect: DefaultPath}
	default:
		return Decision{Outcome: Allowed}
	}
}
