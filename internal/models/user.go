package models

// Role is the authorization role assigned by the identity service.
type Role string

const (
	RoleNormal Role = "normal"
	RoleAdmin  Role = "admin"
)

// UserProfile is the signed in user as returned by the identity service.
type UserProfile struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// FullName joins first and last name, falling back to the username.
func (u *UserProfile) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}

// IsAdmin returns true if the user holds the admin role.
func (u *UserProfile) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Identifier string `json:"username_or_email"`
	Password   string `json:"password"`
}

// LoginResult holds the token and profile issued on a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// RegisterRequest is the body of POST /users.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3"`
	Email     string `json:"email" validate:"required,contains=@"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`

	// PasswordConfirmation is checked locally and never sent.
	PasswordConfirmation string `json:"-"`
}
