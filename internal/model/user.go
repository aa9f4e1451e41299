package model

import "time"

// Role is the closed set of permission tiers. There is no hierarchy:
// endpoints declare the exact roles they accept.
type Role string

const (
	RoleManager    Role = "manager"
	RoleTeamLeader Role = "team_leader"
	RoleUser       Role = "user"
	RoleAgent      Role = "agent"
	RoleLeader     Role = "leader"
)

var validRoles = map[Role]struct{}{
	RoleManager:    {},
	RoleTeamLeader: {},
	RoleUser:       {},
	RoleAgent:      {},
	RoleLeader:     {},
}

func (r Role) Valid() bool {
	_, ok := validRoles[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID                 int64
	Email              string
	Name               string
	PasswordHash       string
	Role               Role
	IsPasswordChanged  bool
	TeamID             *int64
	TokenGeneration    int
	ResetTokenHash     *string
	ResetTokenExpiry   *time.Time
	ResetTokenAttempts int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasActiveReset reports whether the user has an outstanding password-reset
// request. Both fields must be set; a half-cleared row counts as none.
func (u User) HasActiveReset() bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiry != nil
}

// PublicUser is the user shape exposed over the API. It never carries the
// password hash or reset fields.
type PublicUser struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Role              Role   `json:"role"`
	IsPasswordChanged bool   `json:"is_password_changed"`
	TeamID            *int64 `json:"team_id,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		IsPasswordChanged: u.IsPasswordChanged,
		TeamID:            u.TeamID,
	}
}

// Principal is the authenticated identity resolved from an access
// credential. It carries only what the token asserts; callers needing
// fresh role or team data re-fetch the user row.
type Principal struct {
	ID                int64  `json:"id"`
	Email             string `json:"email,omitempty"`
	Role              Role   `json:"role"`
	IsPasswordChanged bool   `json:"is_password_changed"`
	TokenGeneration   int    `json:"-"`
}

type TokenPair struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	User         PublicUser `json:"user"`
}
